package repotest

import (
	"log"
	"net/http"
	"sort"
	"sync"
)

// An ErrorServer wraps another http.Handler and injects errors as
// described by a playbook. A playbook is installed by calling Reset.
// Each call to ServeHTTP increments a count starting at 0. A play gives
// a count to activate on, and when the server reaches that count it
// answers with the play's Status and Body instead of calling the
// wrapped handler. Otherwise requests pass through. Safe for concurrent
// use.
type ErrorServer struct {
	h http.Handler

	m        sync.Mutex
	count    int
	playbook []Play
}

// A Play is one scripted fault.
type Play struct {
	When   int
	Status int
	Body   string
}

// NewErrorServer wraps h with an empty playbook, so every request
// passes through until Reset installs some faults.
func NewErrorServer(h http.Handler) *ErrorServer {
	return &ErrorServer{h: h}
}

func (s *ErrorServer) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.m.Lock()
	count := s.count
	s.count++
	log.Printf("(%d) %s %s\n", count, req.Method, req.URL)
	for len(s.playbook) > 0 && s.playbook[0].When <= count {
		p := s.playbook[0]
		s.playbook = s.playbook[1:]
		if p.When < count {
			// more than one play had same count. Ignore the rest.
			continue
		}
		s.m.Unlock()
		w.WriteHeader(p.Status)
		w.Write([]byte(p.Body))
		return
	}
	s.m.Unlock()
	s.h.ServeHTTP(w, req)
}

// Reset zeros the request count and installs a new playbook. A nil
// playbook clears all faults.
func (s *ErrorServer) Reset(playbook []Play) {
	s.m.Lock()
	s.count = 0
	s.playbook = append([]Play(nil), playbook...)
	sort.Sort(byWhen(s.playbook))
	s.m.Unlock()
}

type byWhen []Play

func (p byWhen) Len() int           { return len(p) }
func (p byWhen) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }
func (p byWhen) Less(i, j int) bool { return p[i].When < p[j].When }
