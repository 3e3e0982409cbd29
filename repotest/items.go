package repotest

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/dlib/accession/metadata"
)

// ItemHandler handles GET /items/:id
func (s *Server) ItemHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := paramID(ps)
	s.m.Lock()
	defer s.m.Unlock()
	var rec itemRecord
	if id == 0 || s.items.Open(key(id), &rec) != nil {
		w.WriteHeader(404)
		fmt.Fprintln(w, "cannot find item")
		return
	}
	writeJSON(w, s.itemRep(r, id, rec))
}

// UpdateItemHandler handles PUT /items/:id. The body is a JSON object
// naming the fields to change. A null clears a field.
func (s *Server) UpdateItemHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
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
	var rec itemRecord
	if id == 0 || s.items.Open(key(id), &rec) != nil {
		w.WriteHeader(404)
		fmt.Fprintln(w, "cannot find item")
		return
	}
	for name, value := range doc {
		text, _ := value.(string) // a null or a non-string clears
		switch name {
		case "label":
			rec.Label = text
		case "status":
			rec.Status = text
		case "embargo_date":
			rec.EmbargoDate = text
		}
	}
	err = s.items.Save(key(id), rec)
	if err != nil {
		w.WriteHeader(500)
		fmt.Fprintln(w, err.Error())
	}
}

// DeleteItemHandler handles DELETE /items/:id. The item's attachments
// and their content go with it.
func (s *Server) DeleteItemHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := paramID(ps)
	s.m.Lock()
	defer s.m.Unlock()
	var rec itemRecord
	if id == 0 || s.items.Open(key(id), &rec) != nil {
		w.WriteHeader(404)
		fmt.Fprintln(w, "cannot find item")
		return
	}
	for _, aid := range rec.Attachments {
		s.attachments.Delete(key(aid))
		s.contents.Delete(key(aid))
	}
	err := s.items.Delete(key(id))
	if err == nil {
		var col collectionRecord
		if s.collections.Open(key(rec.Collection), &col) == nil {
			col.Items = removeID(col.Items, id)
			err = s.collections.Save(key(rec.Collection), col)
		}
	}
	if err != nil {
		w.WriteHeader(500)
		fmt.Fprintln(w, err.Error())
		return
	}
	w.WriteHeader(204)
}

// ItemMetadataHandler handles GET /items/:id/metadata
func (s *Server) ItemMetadataHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := paramID(ps)
	s.m.Lock()
	defer s.m.Unlock()
	var rec itemRecord
	if id == 0 || s.items.Open(key(id), &rec) != nil {
		w.WriteHeader(404)
		fmt.Fprintln(w, "cannot find item")
		return
	}
	if rec.Metadata == nil {
		rec.Metadata = metadata.New(nil)
	}
	writeJSON(w, rec.Metadata)
}

// PutItemMetadataHandler handles PUT /items/:id/metadata. The body
// replaces the whole metadata record.
func (s *Server) PutItemMetadataHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var meta metadata.Record
	err := json.NewDecoder(r.Body).Decode(&meta)
	if err != nil {
		w.WriteHeader(400)
		fmt.Fprintln(w, err.Error())
		return
	}
	id := paramID(ps)
	s.m.Lock()
	defer s.m.Unlock()
	var rec itemRecord
	if id == 0 || s.items.Open(key(id), &rec) != nil {
		w.WriteHeader(404)
		fmt.Fprintln(w, "cannot find item")
		return
	}
	rec.Metadata = meta
	err = s.items.Save(key(id), rec)
	if err != nil {
		w.WriteHeader(500)
		fmt.Fprintln(w, err.Error())
	}
}

// CreateAttachmentHandler handles POST /items/:id/attachments
func (s *Server) CreateAttachmentHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var doc struct {
		Label string `json:"label"`
	}
	err := json.NewDecoder(r.Body).Decode(&doc)
	if err != nil {
		w.WriteHeader(400)
		fmt.Fprintln(w, err.Error())
		return
	}
	itemid := paramID(ps)
	s.m.Lock()
	defer s.m.Unlock()
	var rec itemRecord
	if itemid == 0 || s.items.Open(key(itemid), &rec) != nil {
		w.WriteHeader(404)
		fmt.Fprintln(w, "cannot find item")
		return
	}
	id := s.nextID()
	err = s.attachments.Save(key(id), attachmentRecord{
		Item:  itemid,
		Label: doc.Label,
	})
	if err == nil {
		rec.Attachments = append(rec.Attachments, id)
		err = s.items.Save(key(itemid), rec)
	}
	if err != nil {
		w.WriteHeader(500)
		fmt.Fprintln(w, err.Error())
		return
	}
	w.Header().Set("Location", "/attachments/"+key(id))
	w.WriteHeader(201)
}

// CommitItemHandler handles POST /items/:id/commit
func (s *Server) CommitItemHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.bumpItem(w, ps, func(rec *itemRecord) { rec.Commits++ })
}

// RollbackItemHandler handles POST /items/:id/rollback
func (s *Server) RollbackItemHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.bumpItem(w, ps, func(rec *itemRecord) { rec.Rollbacks++ })
}

func (s *Server) bumpItem(w http.ResponseWriter, ps httprouter.Params, update func(*itemRecord)) {
	id := paramID(ps)
	s.m.Lock()
	defer s.m.Unlock()
	var rec itemRecord
	if id == 0 || s.items.Open(key(id), &rec) != nil {
		w.WriteHeader(404)
		fmt.Fprintln(w, "cannot find item")
		return
	}
	update(&rec)
	err := s.items.Save(key(id), rec)
	if err != nil {
		w.WriteHeader(500)
		fmt.Fprintln(w, err.Error())
		return
	}
	w.WriteHeader(204)
}

func removeID(list []int64, id int64) []int64 {
	result := list[:0]
	for _, x := range list {
		if x != id {
			result = append(result, x)
		}
	}
	return result
}
