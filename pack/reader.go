package pack

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"

	"github.com/antonholmquist/jason"

	"github.com/dlib/accession/util"
)

// ManifestName is the manifest's entry name at the package root.
const ManifestName = "manifest.json"

// ErrNoManifest means the archive has no manifest.json at its root.
var ErrNoManifest = errors.New("package has no manifest.json")

// ErrNotFound means the named content file is not in the package.
var ErrNotFound = errors.New("no such file in package")

// A Reader gives access to a finished package without extracting it: the
// parsed manifest plus each content file as a stream. Packages can be
// opened from disk or straight out of a stage store, which hands back the
// ReaderAt form.
type Reader struct {
	z        *zip.Reader
	closer   io.Closer // set when we own the underlying file
	manifest *jason.Object
}

// OpenFile opens the package archive at path.
func OpenFile(path string) (*Reader, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	r, err := newReader(&rc.Reader)
	if err != nil {
		rc.Close()
		return nil, err
	}
	r.closer = rc
	return r, nil
}

// OpenStored opens a package from any random access source, such as a
// stage store entry.
func OpenStored(ra io.ReaderAt, size int64) (*Reader, error) {
	z, err := zip.NewReader(ra, size)
	if err != nil {
		return nil, err
	}
	return newReader(z)
}

func newReader(z *zip.Reader) (*Reader, error) {
	for _, f := range z.File {
		if f.Name != ManifestName {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		obj, err := jason.NewObjectFromReader(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("bad manifest: %s", err.Error())
		}
		return &Reader{z: z, manifest: obj}, nil
	}
	return nil, ErrNoManifest
}

// Close releases the underlying file, if this Reader owns one.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// Manifest returns the parsed manifest document.
func (r *Reader) Manifest() *jason.Object {
	return r.manifest
}

// Label returns the item label from the manifest, "" when null.
func (r *Reader) Label() string {
	s, _ := r.manifest.GetString("label")
	return s
}

// Files lists the content entries in the package, everything except the
// manifest itself.
func (r *Reader) Files() []string {
	var names []string
	for _, f := range r.z.File {
		if f.Name == ManifestName || !f.Mode().IsRegular() {
			continue
		}
		names = append(names, f.Name)
	}
	return names
}

// Open returns the named content file as a stream.
func (r *Reader) Open(name string) (io.ReadCloser, error) {
	for _, f := range r.z.File {
		if f.Name == name {
			return f.Open()
		}
	}
	return nil, ErrNotFound
}

// Verify checks the package against its own manifest: every attachment
// content file must exist, and recorded digests must match the stored
// bytes. The first problem found is returned.
func (r *Reader) Verify() error {
	attachments, err := r.manifest.GetObjectArray("attachments")
	if err != nil {
		return nil
	}
	for _, a := range attachments {
		content, err := a.GetString("content")
		if err != nil || content == "" {
			continue
		}
		md5, _ := a.GetString("md5")
		sha256, _ := a.GetString("sha256")
		rc, err := r.Open(content)
		if err != nil {
			return fmt.Errorf("package missing content file %s", content)
		}
		ok, err := util.VerifyStream(rc, md5, sha256)
		rc.Close()
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("checksum mismatch on %s", content)
		}
	}
	return nil
}
