package repotest

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// ListCollectionsHandler handles GET /collections
func (s *Server) ListCollectionsHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.m.Lock()
	defer s.m.Unlock()
	var refs []map[string]string
	for key := range s.collections.List() {
		refs = append(refs, ref("collection", baseURL(r)+"/collections/"+key))
	}
	writeJSON(w, map[string]interface{}{"collections": refs})
}

// CreateCollectionHandler handles POST /collections
func (s *Server) CreateCollectionHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var doc struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	err := json.NewDecoder(r.Body).Decode(&doc)
	if err != nil {
		w.WriteHeader(400)
		fmt.Fprintln(w, err.Error())
		return
	}
	s.m.Lock()
	defer s.m.Unlock()
	id := s.nextID()
	err = s.collections.Save(key(id), collectionRecord{
		Name:        doc.Name,
		Description: doc.Description,
	})
	if err != nil {
		w.WriteHeader(500)
		fmt.Fprintln(w, err.Error())
		return
	}
	w.Header().Set("Location", "/collections/"+key(id))
	w.WriteHeader(201)
}

// CollectionHandler handles GET /collections/:id
func (s *Server) CollectionHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := paramID(ps)
	s.m.Lock()
	defer s.m.Unlock()
	var rec collectionRecord
	if id == 0 || s.collections.Open(key(id), &rec) != nil {
		w.WriteHeader(404)
		fmt.Fprintln(w, "cannot find collection")
		return
	}
	writeJSON(w, s.collectionRep(r, id, rec))
}

// UpdateCollectionHandler handles PUT /collections/:id
func (s *Server) UpdateCollectionHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var doc map[string]interface{}
	err := json.NewDecoder(r.Body).Decode(&doc)
	if err != nil {
		w.WriteHeader(400)
		fmt.Fprintln(w, err.Error())
		return
	}
	id := paramID(ps)
	s.m.Lock()
	defer s.m.Unlock()
	var rec collectionRecord
	if id == 0 || s.collections.Open(key(id), &rec) != nil {
		w.WriteHeader(404)
		fmt.Fprintln(w, "cannot find collection")
		return
	}
	if v, ok := doc["name"].(string); ok {
		rec.Name = v
	}
	if v, ok := doc["description"].(string); ok {
		rec.Description = v
	}
	err = s.collections.Save(key(id), rec)
	if err != nil {
		w.WriteHeader(500)
		fmt.Fprintln(w, err.Error())
	}
}

// DeleteCollectionHandler handles DELETE /collections/:id. Only empty
// collections can be removed.
func (s *Server) DeleteCollectionHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := paramID(ps)
	s.m.Lock()
	defer s.m.Unlock()
	var rec collectionRecord
	if id == 0 || s.collections.Open(key(id), &rec) != nil {
		w.WriteHeader(404)
		fmt.Fprintln(w, "cannot find collection")
		return
	}
	if len(rec.Items) > 0 {
		w.WriteHeader(409)
		fmt.Fprintln(w, "collection is not empty")
		return
	}
	err := s.collections.Delete(key(id))
	if err != nil {
		w.WriteHeader(500)
		fmt.Fprintln(w, err.Error())
		return
	}
	w.WriteHeader(204)
}

// CreateItemHandler handles POST /collections/:id/items
func (s *Server) CreateItemHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var doc struct {
		Label string `json:"label"`
	}
	err := json.NewDecoder(r.Body).Decode(&doc)
	if err != nil {
		w.WriteHeader(400)
		fmt.Fprintln(w, err.Error())
		return
	}
	colid := paramID(ps)
	s.m.Lock()
	defer s.m.Unlock()
	var col collectionRecord
	if colid == 0 || s.collections.Open(key(colid), &col) != nil {
		w.WriteHeader(404)
		fmt.Fprintln(w, "cannot find collection")
		return
	}
	id := s.nextID()
	err = s.items.Save(key(id), itemRecord{
		Collection: colid,
		Label:      doc.Label,
		Status:     "Private",
	})
	if err == nil {
		col.Items = append(col.Items, id)
		err = s.collections.Save(key(colid), col)
	}
	if err != nil {
		w.WriteHeader(500)
		fmt.Fprintln(w, err.Error())
		return
	}
	w.Header().Set("Location", "/items/"+key(id))
	w.WriteHeader(201)
}
