package repotest

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/dlib/accession/metadata"
	"github.com/dlib/accession/stage"
)

// A jsonStore wraps a stage.Store and serializes its entries as JSON
// instead of using streams. Since it deals with interface{} values it
// does not match the stage.Store interface.
type jsonStore struct {
	stage.Store
}

func newJSONStore(s stage.Store) jsonStore {
	return jsonStore{s}
}

// Open the entry having the given key and unserialize it into value.
func (js jsonStore) Open(key string, value interface{}) error {
	r, _, err := js.Store.Open(key)
	if err != nil {
		return err
	}
	err = json.NewDecoder(stage.NewReader(r)).Decode(value)
	err2 := r.Close()
	if err == nil {
		err = err2
	} else if err2 != nil {
		log.Println(key, err2)
	}
	return err
}

// Save the value under the given key, replacing any previous value.
func (js jsonStore) Save(key string, value interface{}) error {
	err := js.Delete(key)
	if err != nil {
		return err
	}
	w, err := js.Store.Create(key)
	if err != nil {
		return err
	}
	err = json.NewEncoder(w).Encode(value)
	err2 := w.Close()
	if err == nil {
		err = err2
	} else if err2 != nil {
		log.Println(key, err2)
	}
	return err
}

// The stored record types. Ids are assigned by the server and appear in
// the storage key, not in the record.

type collectionRecord struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Items       []int64 `json:"items"`
}

type itemRecord struct {
	Collection  int64           `json:"collection"`
	Label       string          `json:"label"`
	Status      string          `json:"status"`
	EmbargoDate string          `json:"embargo_date"`
	Metadata    metadata.Record `json:"metadata"`
	Attachments []int64         `json:"attachments"`
	Commits     int             `json:"commits"`
	Rollbacks   int             `json:"rollbacks"`
}

type attachmentRecord struct {
	Item       int64           `json:"item"`
	Label      string          `json:"label"`
	Metadata   metadata.Record `json:"metadata"`
	HasContent bool            `json:"has_content"`
	MD5        string          `json:"md5"`
	SHA256     string          `json:"sha256"`
}

func key(id int64) string {
	return strconv.FormatInt(id, 10)
}

// Representations embed absolute URLs, built from the request's Host
// header. The test server only speaks http.

func baseURL(r *http.Request) string {
	return "http://" + r.Host
}

func collectionURL(r *http.Request, id int64) string {
	return baseURL(r) + "/collections/" + key(id)
}

func itemURL(r *http.Request, id int64) string {
	return baseURL(r) + "/items/" + key(id)
}

func attachmentURL(r *http.Request, id int64) string {
	return baseURL(r) + "/attachments/" + key(id)
}

// ref is the reference object representations use to point at other
// resources.
func ref(kind, url string) map[string]string {
	return map[string]string{"kind": kind, "url": url}
}

// nullable turns "" into JSON null.
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func (s *Server) collectionRep(r *http.Request, id int64, rec collectionRecord) map[string]interface{} {
	items := make([]map[string]string, 0, len(rec.Items))
	for _, itemid := range rec.Items {
		items = append(items, ref("item", itemURL(r, itemid)))
	}
	return map[string]interface{}{
		"kind":        "collection",
		"url":         collectionURL(r, id),
		"name":        rec.Name,
		"description": rec.Description,
		"items":       items,
	}
}

func (s *Server) itemRep(r *http.Request, id int64, rec itemRecord) map[string]interface{} {
	attachments := make([]map[string]string, 0, len(rec.Attachments))
	for _, aid := range rec.Attachments {
		attachments = append(attachments, ref("attachment", attachmentURL(r, aid)))
	}
	return map[string]interface{}{
		"kind":           "item",
		"url":            itemURL(r, id),
		"label":          nullable(rec.Label),
		"status":         nullable(rec.Status),
		"embargo_date":   nullable(rec.EmbargoDate),
		"persistent_url": baseURL(r) + "/show/" + key(id),
		"collection":     ref("collection", collectionURL(r, rec.Collection)),
		"attachments":    attachments,
	}
}

func (s *Server) attachmentRep(r *http.Request, id int64, rec attachmentRecord) map[string]interface{} {
	rep := map[string]interface{}{
		"kind":  "attachment",
		"url":   attachmentURL(r, id),
		"label": nullable(rec.Label),
		"item":  ref("item", itemURL(r, rec.Item)),
	}
	if rec.HasContent {
		rep["md5"] = rec.MD5
		rep["sha256"] = rec.SHA256
	}
	return rep
}

func writeJSON(w http.ResponseWriter, val interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(val)
}
