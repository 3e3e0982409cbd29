package pack

import (
	"encoding/json"
	"errors"
	"io"
	"io/ioutil"
	"math/rand"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dlib/accession/metadata"
	"github.com/dlib/accession/util"
	"github.com/dlib/accession/ziputil"
)

// ErrClosed means an operation ran after the packaging session's working
// directory was released.
var ErrClosed = errors.New("packaging session is closed")

// A ConflictError means two attachments wanted the same destination name
// inside one package. The first file is left as it was.
type ConflictError struct {
	Name string
}

func (e *ConflictError) Error() string {
	return "duplicate destination name " + e.Name
}

// copies run in chunks of this size
const copyChunkSize = 64 * 1024

// A Packager builds one item's package: a private working directory that
// attachment content is copied into as it is added, and which Write turns
// into a zip archive with a manifest. Close removes the working directory
// whether or not a package was written; callers should defer it as soon
// as New returns.
//
//	p, err := pack.New("My Thesis", nil)
//	if err != nil { ... }
//	defer p.Close()
type Packager struct {
	item *Item
	dir  string // working directory, empty once closed
}

// New begins a packaging session with a fresh working directory. The seed
// values populate the item's metadata as in metadata.New.
func New(label string, seed map[string]interface{}) (*Packager, error) {
	dir, err := ioutil.TempDir("", "package")
	if err != nil {
		return nil, err
	}
	return &Packager{
		item: &Item{
			Label:       label,
			Metadata:    metadata.New(seed),
			Attachments: []*Attachment{},
		},
		dir: dir,
	}, nil
}

// Item returns the descriptor under construction for direct mutation.
func (p *Packager) Item() *Item {
	return p.item
}

// Dir returns the working directory, or "" after Close.
func (p *Packager) Dir() string {
	return p.dir
}

// Close removes the working directory and everything in it. It always
// removes, on success and failure paths alike, and calling it again is
// harmless.
func (p *Packager) Close() error {
	if p.dir == "" {
		return nil
	}
	err := os.RemoveAll(p.dir)
	p.dir = ""
	return err
}

// AddAttachment copies src into the working directory under destName and
// appends the new attachment to the item, returning it so the caller can
// keep annotating its metadata. A "label" key in seed names the
// attachment; otherwise the label is the base name of the destination.
// Leading separators and dot segments are stripped from destName so it
// cannot escape the working directory. An empty destName is derived from
// src when src knows its name, or a fresh token is generated. A nil src
// makes a metadata-only attachment with no content file.
//
// src is read to completion and, when it is an io.Closer, closed. A
// destination name already used by this item returns a *ConflictError and
// leaves the earlier file alone.
func (p *Packager) AddAttachment(src io.Reader, destName string, seed map[string]interface{}) (*Attachment, error) {
	if p.dir == "" {
		return nil, ErrClosed
	}
	a := &Attachment{Metadata: metadata.Record{}}
	for field, value := range seed {
		if field == "label" {
			if s, ok := value.(string); ok {
				a.Label = s
			}
			continue
		}
		a.Metadata.Set(field, value)
	}
	if src != nil {
		name := normalizeName(destName)
		if name == "" {
			name = deriveName(src)
		}
		err := p.copyContent(a, src, name)
		if err != nil {
			return nil, err
		}
	}
	if a.Label == "" && a.Content != "" {
		a.Label = path.Base(a.Content)
	}
	p.item.Attachments = append(p.item.Attachments, a)
	return a, nil
}

// copyContent materializes src at name inside the working directory and
// records the destination and digests on a.
func (p *Packager) copyContent(a *Attachment, src io.Reader, name string) error {
	target := filepath.Join(p.dir, filepath.FromSlash(name))
	err := os.MkdirAll(filepath.Dir(target), 0755)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return &ConflictError{Name: name}
		}
		return err
	}
	cw := util.NewChecksumWriter(f)
	_, err = io.CopyBuffer(cw, src, make([]byte, copyChunkSize))
	cerr := f.Close()
	if c, ok := src.(io.Closer); ok {
		c.Close()
	}
	if err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(target)
		return err
	}
	a.Content = name
	a.MD5 = cw.MD5()
	a.SHA256 = cw.SHA256()
	return nil
}

// Write serializes the manifest into the working directory and archives
// the whole directory to targetBase + ".zip", returning the archive path.
// The item descriptor stays usable afterwards.
func (p *Packager) Write(targetBase string) (string, error) {
	if p.dir == "" {
		return "", ErrClosed
	}
	p.item.validate()
	data, err := json.Marshal(p.item)
	if err != nil {
		return "", err
	}
	err = ioutil.WriteFile(filepath.Join(p.dir, ManifestName), data, 0644)
	if err != nil {
		return "", err
	}
	return ziputil.ZipDirectory(p.dir, targetBase+".zip")
}

// normalizeName cleans a destination path and removes anything that would
// let it refer outside the working directory. It returns "" when nothing
// usable remains.
func normalizeName(name string) string {
	name = path.Clean(filepath.ToSlash(name))
	for {
		switch {
		case strings.HasPrefix(name, "../"):
			name = name[3:]
		case strings.HasPrefix(name, "/"):
			name = name[1:]
		case name == "." || name == ".." || name == "":
			return ""
		default:
			return name
		}
	}
}

// deriveName names content from its source: files contribute their base
// name, anonymous streams get a random token.
func deriveName(src io.Reader) string {
	if n, ok := src.(interface{ Name() string }); ok {
		name := normalizeName(path.Base(filepath.ToSlash(n.Name())))
		if name != "" {
			return name
		}
	}
	return strconv.FormatInt(int64(rand.Int31()), 36)
}
