// Package ziputil turns directory trees into zip archives. Entry names
// always use forward slashes relative to the source root, whatever the
// host platform uses, since that is what the repository expects inside a
// package.
package ziputil

import (
	"archive/zip"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
)

// ZipTo writes every regular file under sourceDir into w as one zip
// archive using deflate compression. Files are added as the walk finds
// them; entry order is not significant.
func ZipTo(w io.Writer, sourceDir string) error {
	z := zip.NewWriter(w)
	err := filepath.Walk(sourceDir, func(path string, info os.FileInfo, walkerr error) error {
		if walkerr != nil {
			return walkerr
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}
		header := &zip.FileHeader{
			Name:     filepath.ToSlash(rel),
			Method:   zip.Deflate,
			Modified: info.ModTime(),
		}
		out, err := z.CreateHeader(header)
		if err != nil {
			return err
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(out, in)
		in.Close()
		return err
	})
	if err != nil {
		z.Close()
		return err
	}
	return z.Close()
}

// ZipDirectory archives sourceDir into the file at targetPath and returns
// the archive's path. An empty targetPath allocates a fresh temporary
// file with a ".zip" suffix. The target is removed again if archiving
// fails partway.
func ZipDirectory(sourceDir, targetPath string) (string, error) {
	var f *os.File
	var err error
	if targetPath == "" {
		f, err = ioutil.TempFile("", "package-*.zip")
	} else {
		f, err = os.Create(targetPath)
	}
	if err != nil {
		return "", err
	}
	err = ZipTo(f, sourceDir)
	cerr := f.Close()
	if err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
