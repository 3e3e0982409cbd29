// Package stage holds finished submission packages, and the small records
// the development repository server keeps, as streams in a key-value
// store. Values are streams rather than byte slices so multi-gigabyte
// packages never need to sit in memory, and Open hands back random access
// so archives can be read in place without extraction.
//
// FileSystem is the usual backend. Memory serves tests, and S3 serves
// deployments staging packages in a bucket.
package stage

import (
	"errors"
	"io"
)

// Store is the stream based key-value interface every backend provides.
// Entries are immutable once written; replace one by deleting and
// recreating it. Keys name files in the FileSystem backend, so they may
// not contain a path separator.
type Store interface {
	// List emits every key in the store, in no particular order.
	List() <-chan string
	// ListPrefix returns the keys beginning with prefix.
	ListPrefix(prefix string) ([]string, error)
	// Open returns the value stream for key and its size.
	Open(key string) (ReadAtCloser, int64, error)
	// Create makes a new entry. The value is whatever is written to the
	// returned writer up to its Close. Existing keys return ErrKeyExists.
	Create(key string) (io.WriteCloser, error)
	// Delete removes an entry. Absent keys are not an error.
	Delete(key string) error
}

// ReadAtCloser is what Open returns: random access plus a Close. Zip
// readers need the random access.
type ReadAtCloser interface {
	io.ReaderAt
	io.Closer
}

// ErrKeyExists means Create was given a key already in the store.
var ErrKeyExists = errors.New("key already exists")

// ErrNotExist means Open was given a key with no entry behind it.
var ErrNotExist = errors.New("key does not exist")

// ErrBadKey means the key contains a slash, whitespace, a control
// character, or invalid UTF-8.
var ErrBadKey = errors.New("malformed key")

// NewReader adapts the random access value from Open into a plain
// io.Reader for sequential consumers.
func NewReader(r io.ReaderAt) io.Reader {
	return &reader{r: r}
}

type reader struct {
	r   io.ReaderAt
	off int64
}

func (r *reader) Read(p []byte) (n int, err error) {
	n, err = r.r.ReadAt(p, r.off)
	r.off += int64(n)
	if err == io.EOF && n > 0 {
		// a short read is not an error for io.Reader
		err = nil
	}
	return
}
