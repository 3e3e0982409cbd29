package stage

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	raven "github.com/getsentry/raven-go"
)

// FileSystem keeps each entry as one file directly under a root
// directory, with the key as the file name. Writes land in a scratch
// subdirectory and are renamed into place on Close, so a partially
// written package is never visible under its final key.
type FileSystem struct {
	root string
}

// name of the subdirectory holding in-progress writes
const scratchdir = ".scratch"

var _ Store = &FileSystem{}

// NewFileSystem returns a FileSystem rooted at the given directory. The
// directory is created if needed.
func NewFileSystem(root string) (*FileSystem, error) {
	err := os.MkdirAll(filepath.Join(root, scratchdir), 0775)
	if err != nil {
		return nil, err
	}
	return &FileSystem{root: root}, nil
}

// List emits the key for every entry under the root.
func (s *FileSystem) List() <-chan string {
	c := make(chan string)
	go func() {
		defer close(c)
		f, err := os.Open(s.root)
		if err != nil {
			log.Println("stage list:", err)
			raven.CaptureError(err, nil)
			return
		}
		defer f.Close()
		for {
			entries, err := f.Readdir(1000)
			for _, e := range entries {
				if e.IsDir() {
					continue
				}
				c <- e.Name()
			}
			if err != nil {
				if err != io.EOF {
					log.Println("stage list:", err)
					raven.CaptureError(err, nil)
				}
				return
			}
		}
	}()
	return c
}

// ListPrefix returns the keys beginning with prefix.
func (s *FileSystem) ListPrefix(prefix string) ([]string, error) {
	if err := validKey(prefix); prefix != "" && err != nil {
		return nil, err
	}
	matches, err := filepath.Glob(filepath.Join(s.root, glob(prefix)))
	if err != nil {
		return nil, err
	}
	var result []string
	for _, m := range matches {
		fi, err := os.Stat(m)
		if err != nil || fi.IsDir() {
			continue
		}
		result = append(result, filepath.Base(m))
	}
	return result, nil
}

// glob escapes any metacharacters in prefix and appends a wildcard.
func glob(prefix string) string {
	var b strings.Builder
	for _, r := range prefix {
		switch r {
		case '*', '?', '[', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('*')
	return b.String()
}

// Open returns the file backing key and its size.
func (s *FileSystem) Open(key string) (ReadAtCloser, int64, error) {
	if err := validKey(key); err != nil {
		return nil, 0, err
	}
	f, err := os.Open(filepath.Join(s.root, key))
	if err != nil {
		if os.IsNotExist(err) {
			err = ErrNotExist
		}
		return nil, 0, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, fi.Size(), nil
}

// Create starts a new entry in the scratch area. Its Close moves the
// file under the final key, refusing to replace an entry that appeared
// in the meantime.
func (s *FileSystem) Create(key string) (io.WriteCloser, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	target := filepath.Join(s.root, key)
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		return nil, ErrKeyExists
	}
	temp := filepath.Join(s.root, scratchdir, key)
	f, err := os.OpenFile(temp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0664)
	if err != nil {
		return nil, err
	}
	return &moveCloser{WriteCloser: f, temp: temp, target: target}, nil
}

// moveCloser renames the scratch file into place when closed.
type moveCloser struct {
	io.WriteCloser
	temp   string
	target string
}

func (w *moveCloser) Close() error {
	err := w.WriteCloser.Close()
	if err != nil {
		os.Remove(w.temp)
		return err
	}
	if _, err := os.Stat(w.target); !os.IsNotExist(err) {
		os.Remove(w.temp)
		return ErrKeyExists
	}
	err = os.Rename(w.temp, w.target)
	if err != nil {
		raven.CaptureError(err, nil)
	}
	return err
}

// Delete removes the entry for key. Absent keys are fine.
func (s *FileSystem) Delete(key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.root, key))
	if err != nil && os.IsNotExist(err) {
		err = nil
	}
	return err
}

// validKey rejects keys that cannot be file names or that would escape
// the root: path separators, whitespace, control characters, bad UTF-8,
// and the scratch directory's own name.
func validKey(key string) error {
	if key == "" || key == scratchdir || !utf8.ValidString(key) {
		return ErrBadKey
	}
	if strings.ContainsAny(key, "/\\") {
		return ErrBadKey
	}
	for _, r := range key {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return ErrBadKey
		}
	}
	if key == "." || key == ".." {
		return ErrBadKey
	}
	return nil
}
