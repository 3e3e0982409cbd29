package repotest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/dlib/accession/metadata"
	"github.com/dlib/accession/stage"
	"github.com/dlib/accession/util"
)

// AttachmentHandler handles GET /attachments/:id
func (s *Server) AttachmentHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := paramID(ps)
	s.m.Lock()
	defer s.m.Unlock()
	var rec attachmentRecord
	if id == 0 || s.attachments.Open(key(id), &rec) != nil {
		w.WriteHeader(404)
		fmt.Fprintln(w, "cannot find attachment")
		return
	}
	writeJSON(w, s.attachmentRep(r, id, rec))
}

// UpdateAttachmentHandler handles PUT /attachments/:id
func (s *Server) UpdateAttachmentHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
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
	var rec attachmentRecord
	if id == 0 || s.attachments.Open(key(id), &rec) != nil {
		w.WriteHeader(404)
		fmt.Fprintln(w, "cannot find attachment")
		return
	}
	if v, ok := doc["label"]; ok {
		rec.Label, _ = v.(string)
	}
	err = s.attachments.Save(key(id), rec)
	if err != nil {
		w.WriteHeader(500)
		fmt.Fprintln(w, err.Error())
	}
}

// DeleteAttachmentHandler handles DELETE /attachments/:id
func (s *Server) DeleteAttachmentHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := paramID(ps)
	s.m.Lock()
	defer s.m.Unlock()
	var rec attachmentRecord
	if id == 0 || s.attachments.Open(key(id), &rec) != nil {
		w.WriteHeader(404)
		fmt.Fprintln(w, "cannot find attachment")
		return
	}
	s.contents.Delete(key(id))
	err := s.attachments.Delete(key(id))
	if err == nil {
		var item itemRecord
		if s.items.Open(key(rec.Item), &item) == nil {
			item.Attachments = removeID(item.Attachments, id)
			err = s.items.Save(key(rec.Item), item)
		}
	}
	if err != nil {
		w.WriteHeader(500)
		fmt.Fprintln(w, err.Error())
		return
	}
	w.WriteHeader(204)
}

// AttachmentMetadataHandler handles GET /attachments/:id/metadata
func (s *Server) AttachmentMetadataHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := paramID(ps)
	s.m.Lock()
	defer s.m.Unlock()
	var rec attachmentRecord
	if id == 0 || s.attachments.Open(key(id), &rec) != nil {
		w.WriteHeader(404)
		fmt.Fprintln(w, "cannot find attachment")
		return
	}
	if rec.Metadata == nil {
		rec.Metadata = metadata.New(nil)
	}
	writeJSON(w, rec.Metadata)
}

// PutAttachmentMetadataHandler handles PUT /attachments/:id/metadata
func (s *Server) PutAttachmentMetadataHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
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
	var rec attachmentRecord
	if id == 0 || s.attachments.Open(key(id), &rec) != nil {
		w.WriteHeader(404)
		fmt.Fprintln(w, "cannot find attachment")
		return
	}
	rec.Metadata = meta
	err = s.attachments.Save(key(id), rec)
	if err != nil {
		w.WriteHeader(500)
		fmt.Fprintln(w, err.Error())
	}
}

// ContentHandler handles GET /attachments/:id/content. An attachment
// with no content is a 404; that is a normal state, not server trouble.
func (s *Server) ContentHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := paramID(ps)
	s.m.Lock()
	var rec attachmentRecord
	err := s.attachments.Open(key(id), &rec)
	s.m.Unlock()
	if id == 0 || err != nil {
		w.WriteHeader(404)
		fmt.Fprintln(w, "cannot find attachment")
		return
	}
	if !rec.HasContent {
		w.WriteHeader(404)
		fmt.Fprintln(w, "attachment has no content")
		return
	}
	src, size, err := s.contents.Open(key(id))
	if err != nil {
		w.WriteHeader(500)
		fmt.Fprintln(w, err.Error())
		return
	}
	defer src.Close()
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", size))
	io.Copy(w, stage.NewReader(src))
}

// UploadContentHandler handles PUT /attachments/:id/content. The raw
// body replaces the attachment's content and its digests are recorded.
func (s *Server) UploadContentHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := paramID(ps)
	s.m.Lock()
	var rec attachmentRecord
	err := s.attachments.Open(key(id), &rec)
	s.m.Unlock()
	if id == 0 || err != nil {
		w.WriteHeader(404)
		fmt.Fprintln(w, "cannot find attachment")
		return
	}
	// replace any previous content
	s.contents.Delete(key(id))
	dst, err := s.contents.Create(key(id))
	if err != nil {
		w.WriteHeader(500)
		fmt.Fprintln(w, err.Error())
		return
	}
	hw := util.NewChecksumWriter(dst)
	_, err = io.Copy(hw, r.Body)
	err2 := dst.Close()
	if err == nil {
		err = err2
	}
	if err != nil {
		s.contents.Delete(key(id))
		w.WriteHeader(500)
		fmt.Fprintln(w, err.Error())
		return
	}
	s.m.Lock()
	defer s.m.Unlock()
	rec.HasContent = true
	rec.MD5 = hw.MD5()
	rec.SHA256 = hw.SHA256()
	err = s.attachments.Save(key(id), rec)
	if err != nil {
		w.WriteHeader(500)
		fmt.Fprintln(w, err.Error())
		return
	}
	w.WriteHeader(204)
}
