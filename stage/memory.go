package stage

import (
	"io"
	"strings"
	"sync"
)

// Memory is an in-memory Store for testing.
type Memory struct {
	m       sync.RWMutex
	entries map[string]*entry
}

var _ Store = &Memory{}

// NewMemory returns a new, empty memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*entry)}
}

// List emits every key. The producing goroutine drops the store lock
// while the channel blocks, so readers may mutate as they consume.
func (ms *Memory) List() <-chan string {
	c := make(chan string)
	go func() {
		ms.m.RLock()
		for k := range ms.entries {
			ms.m.RUnlock()
			c <- k
			ms.m.RLock()
		}
		ms.m.RUnlock()
		close(c)
	}()
	return c
}

// ListPrefix returns the keys beginning with prefix.
func (ms *Memory) ListPrefix(prefix string) ([]string, error) {
	var result []string
	ms.m.RLock()
	for k := range ms.entries {
		if strings.HasPrefix(k, prefix) {
			result = append(result, k)
		}
	}
	ms.m.RUnlock()
	return result, nil
}

// Open returns the value for key and its length.
func (ms *Memory) Open(key string) (ReadAtCloser, int64, error) {
	ms.m.RLock()
	e, ok := ms.entries[key]
	ms.m.RUnlock()
	if !ok {
		return nil, 0, ErrNotExist
	}
	e.m.RLock()
	return e, int64(len(e.b)), nil
}

// Create makes a new entry, which holds whatever is written until Close.
func (ms *Memory) Create(key string) (io.WriteCloser, error) {
	ms.m.Lock()
	defer ms.m.Unlock()
	if _, ok := ms.entries[key]; ok {
		return nil, ErrKeyExists
	}
	e := &entry{}
	e.m.Lock()
	e.writing = true
	ms.entries[key] = e
	return e, nil
}

// Delete removes an entry. Absent keys are fine.
func (ms *Memory) Delete(key string) error {
	ms.m.Lock()
	delete(ms.entries, key)
	ms.m.Unlock()
	return nil
}

// An entry is locked exclusively while being written and shared while
// being read. One Close serves both cases, so it remembers which unlock
// to use. An RWMutex is needed since archives are sometimes opened twice
// at once while streaming members out.
type entry struct {
	m       sync.RWMutex
	writing bool
	b       []byte
}

func (e *entry) Close() error {
	if e.writing {
		e.writing = false
		e.m.Unlock()
	} else {
		e.m.RUnlock()
	}
	return nil
}

func (e *entry) ReadAt(p []byte, off int64) (int, error) {
	if int(off) >= len(e.b) {
		return 0, io.EOF
	}
	return copy(p, e.b[off:]), nil
}

func (e *entry) Write(p []byte) (int, error) {
	e.b = append(e.b, p...)
	return len(p), nil
}
