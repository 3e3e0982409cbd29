/*
Package repotest is a small repository server speaking the same REST
dialect the rest package's client expects. Tests mount Handler() in an
httptest.Server to run against a private repository, and the arepo
command serves the same handler for real. All state lives in a
stage.Store, so the repository can be kept in memory, on disk, or in a
bucket.
*/
package repotest

import (
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/julienschmidt/httprouter"

	"github.com/dlib/accession/stage"
)

// Version is reported by the root route. The arepo command sets it at
// build time.
var Version = "devel"

// A Server holds one repository. Configure the public fields before
// calling Handler.
type Server struct {
	// Decoder validates API tokens. New installs a decoder which
	// accepts any token with full rights, so tests do not need to
	// provision users.
	Decoder TokenDecoder

	// MaxIntake limits how many package submissions are processed at
	// once. Extra submissions wait.
	MaxIntake int

	collections jsonStore
	items       jsonStore
	attachments jsonStore
	contents    stage.Store // attachment content, keyed by attachment id
	packages    stage.Store // submitted archives, keyed by a random id

	intake chan struct{}

	m      sync.Mutex // protects records and lastID
	lastID int64
}

// New creates a Server backed by s. A nil s keeps the repository in
// memory. Records already in s, for example from an earlier run against
// the same directory, are served again.
func New(s stage.Store) *Server {
	if s == nil {
		s = stage.NewMemory()
	}
	srv := &Server{
		Decoder:     NewAnyoneDecoder(),
		MaxIntake:   2,
		collections: newJSONStore(stage.NewWithPrefix(s, "collection:")),
		items:       newJSONStore(stage.NewWithPrefix(s, "item:")),
		attachments: newJSONStore(stage.NewWithPrefix(s, "attachment:")),
		contents:    stage.NewWithPrefix(s, "content:"),
		packages:    stage.NewWithPrefix(s, "package:"),
	}
	srv.loadLastID()
	return srv
}

// loadLastID scans the record stores so new ids don't collide with
// records from an earlier run.
func (s *Server) loadLastID() {
	for _, js := range []jsonStore{s.collections, s.items, s.attachments} {
		for key := range js.List() {
			n, err := strconv.ParseInt(key, 10, 64)
			if err == nil && n > s.lastID {
				s.lastID = n
			}
		}
	}
}

// nextID returns an id no record is using. Caller must hold s.m.
func (s *Server) nextID() int64 {
	s.lastID++
	return s.lastID
}

// Handler returns the routing table for this server.
func (s *Server) Handler() http.Handler {
	s.intake = make(chan struct{}, s.MaxIntake)
	var routes = []struct {
		method  string
		route   string
		role    Role
		handler httprouter.Handle
	}{
		{"GET", "/", RoleUnknown, s.WelcomeHandler},

		{"GET", "/collections", RoleRead, s.ListCollectionsHandler},
		{"POST", "/collections", RoleWrite, s.CreateCollectionHandler},
		{"GET", "/collections/:id", RoleRead, s.CollectionHandler},
		{"PUT", "/collections/:id", RoleWrite, s.UpdateCollectionHandler},
		{"DELETE", "/collections/:id", RoleAdmin, s.DeleteCollectionHandler},
		{"POST", "/collections/:id/items", RoleWrite, s.CreateItemHandler},
		{"POST", "/collections/:id/package", RoleWrite, s.SubmitPackageHandler},

		{"GET", "/items/:id", RoleRead, s.ItemHandler},
		{"PUT", "/items/:id", RoleWrite, s.UpdateItemHandler},
		{"DELETE", "/items/:id", RoleWrite, s.DeleteItemHandler},
		{"GET", "/items/:id/metadata", RoleRead, s.ItemMetadataHandler},
		{"PUT", "/items/:id/metadata", RoleWrite, s.PutItemMetadataHandler},
		{"POST", "/items/:id/attachments", RoleWrite, s.CreateAttachmentHandler},
		{"POST", "/items/:id/commit", RoleWrite, s.CommitItemHandler},
		{"POST", "/items/:id/rollback", RoleWrite, s.RollbackItemHandler},

		{"GET", "/attachments/:id", RoleRead, s.AttachmentHandler},
		{"PUT", "/attachments/:id", RoleWrite, s.UpdateAttachmentHandler},
		{"DELETE", "/attachments/:id", RoleWrite, s.DeleteAttachmentHandler},
		{"GET", "/attachments/:id/metadata", RoleRead, s.AttachmentMetadataHandler},
		{"PUT", "/attachments/:id/metadata", RoleWrite, s.PutAttachmentMetadataHandler},
		{"GET", "/attachments/:id/content", RoleRead, s.ContentHandler},
		{"PUT", "/attachments/:id/content", RoleWrite, s.UploadContentHandler},
	}

	r := httprouter.New()
	for _, route := range routes {
		r.Handle(route.method,
			route.route,
			logWrapper(s.authzWrapper(route.handler, route.role)))
	}
	return r
}

// WelcomeHandler handles GET /
func (s *Server) WelcomeHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	fmt.Fprintf(w, "Accession Repository (%s)\n", Version)
}

// authzWrapper returns a handler which first verifies the caller's token
// as having at least the given role. The user name is added as the
// parameter "username".
func (s *Server) authzWrapper(handler httprouter.Handle, leastRole Role) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Token ")
		user, role, err := s.Decoder.TokenDecode(token)
		if err != nil {
			w.WriteHeader(500)
			fmt.Fprintln(w, err.Error())
			return
		}
		if role < leastRole {
			w.WriteHeader(401)
			fmt.Fprintln(w, "Forbidden")
			return
		}
		ps = append(ps, httprouter.Param{Key: "username", Value: user})
		handler(w, r, ps)
	}
}

// logWrapper takes a handler and returns a handler which does the same
// thing, after first logging the request.
func logWrapper(handler httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		log.Println(r.Method, r.URL)
		handler(w, r, ps)
	}
}

// paramID extracts the numeric ":id" route parameter. Returns 0 if it
// is missing or not a positive number.
func paramID(ps httprouter.Params) int64 {
	id, err := strconv.ParseInt(ps.ByName("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

func randomid() string {
	var n = rand.Int31()
	return strconv.FormatInt(int64(n), 36)
}
