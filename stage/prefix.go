package stage

import (
	"io"
	"strings"
)

// NewWithPrefix wraps a store so every key gains the given prefix. It
// lets several namespaces, say packages and item records, share one
// backing store.
func NewWithPrefix(s Store, prefix string) Store {
	return prefixed{s: s, p: prefix}
}

type prefixed struct {
	s Store
	p string
}

func (ps prefixed) List() <-chan string {
	out := make(chan string)
	go func() {
		for key := range ps.s.List() {
			if strings.HasPrefix(key, ps.p) {
				out <- key[len(ps.p):]
			}
		}
		close(out)
	}()
	return out
}

func (ps prefixed) ListPrefix(prefix string) ([]string, error) {
	keys, err := ps.s.ListPrefix(ps.p + prefix)
	result := make([]string, 0, len(keys))
	for _, key := range keys {
		if strings.HasPrefix(key, ps.p) {
			result = append(result, key[len(ps.p):])
		}
	}
	return result, err
}

func (ps prefixed) Open(key string) (ReadAtCloser, int64, error) {
	return ps.s.Open(ps.p + key)
}

func (ps prefixed) Create(key string) (io.WriteCloser, error) {
	return ps.s.Create(ps.p + key)
}

func (ps prefixed) Delete(key string) error {
	return ps.s.Delete(ps.p + key)
}
