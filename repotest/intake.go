package repotest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"

	"github.com/julienschmidt/httprouter"

	"github.com/dlib/accession/metadata"
	"github.com/dlib/accession/pack"
	"github.com/dlib/accession/util"
)

// manifestDoc is the part of a package manifest the server reads
// directly. Item metadata rides at the manifest's top level and is
// picked out separately.
type manifestDoc struct {
	Label       string `json:"label"`
	Status      string `json:"status"`
	Embargo     string `json:"embargo_date"`
	Attachments []struct {
		Label    string          `json:"label"`
		Metadata metadata.Record `json:"metadata"`
		Content  *string         `json:"content"`
		MD5      string          `json:"md5"`
		SHA256   string          `json:"sha256"`
	} `json:"attachments"`
}

// itemEnvelope are the top level manifest keys which are not item
// metadata.
var itemEnvelope = []string{"label", "status", "embargo_date", "enabled", "attachments"}

// SubmitPackageHandler handles POST /collections/:id/package. The body
// is a package archive. A good package makes a new item and returns 201
// with the item's URL in the Location header. A package that cannot be
// read back, or whose content does not match its manifest, is a 400.
func (s *Server) SubmitPackageHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	colid := paramID(ps)
	s.m.Lock()
	var col collectionRecord
	err := s.collections.Open(key(colid), &col)
	s.m.Unlock()
	if colid == 0 || err != nil {
		w.WriteHeader(404)
		fmt.Fprintln(w, "cannot find collection")
		return
	}

	// limit concurrent intakes
	s.intake <- struct{}{}
	defer func() { <-s.intake }()

	// spool the archive first. the zip directory is at the end, so we
	// need the whole thing before we can read any of it.
	spool := randomid()
	dst, err := s.packages.Create(spool)
	if err != nil {
		w.WriteHeader(500)
		fmt.Fprintln(w, err.Error())
		return
	}
	_, err = io.Copy(dst, r.Body)
	err2 := dst.Close()
	if err == nil {
		err = err2
	}
	if err != nil {
		s.packages.Delete(spool)
		w.WriteHeader(500)
		fmt.Fprintln(w, err.Error())
		return
	}

	ra, size, err := s.packages.Open(spool)
	if err != nil {
		w.WriteHeader(500)
		fmt.Fprintln(w, err.Error())
		return
	}
	defer ra.Close()
	pr, err := pack.OpenStored(ra, size)
	if err != nil {
		s.packages.Delete(spool)
		w.WriteHeader(400)
		fmt.Fprintln(w, "bad package:", err.Error())
		return
	}
	err = pr.Verify()
	if err != nil {
		s.packages.Delete(spool)
		w.WriteHeader(400)
		fmt.Fprintln(w, "bad package:", err.Error())
		return
	}

	itemid, err := s.acceptPackage(colid, pr)
	if err != nil {
		w.WriteHeader(500)
		fmt.Fprintln(w, err.Error())
		return
	}
	w.Header().Set("Location", "/items/"+key(itemid))
	w.WriteHeader(201)
}

// acceptPackage turns a verified package into an item with attachments.
func (s *Server) acceptPackage(colid int64, pr *pack.Reader) (int64, error) {
	doc, meta, err := readManifest(pr)
	if err != nil {
		return 0, err
	}

	s.m.Lock()
	defer s.m.Unlock()

	item := itemRecord{
		Collection:  colid,
		Label:       doc.Label,
		Status:      doc.Status,
		EmbargoDate: doc.Embargo,
		Metadata:    meta,
	}
	itemid := s.nextID()
	for _, a := range doc.Attachments {
		aid := s.nextID()
		rec := attachmentRecord{
			Item:     itemid,
			Label:    a.Label,
			Metadata: a.Metadata,
		}
		if a.Content != nil {
			err = s.copyContent(aid, pr, *a.Content, &rec)
			if err != nil {
				return 0, err
			}
		}
		if rec.Label == "" && a.Content != nil {
			rec.Label = path.Base(*a.Content)
		}
		err = s.attachments.Save(key(aid), rec)
		if err != nil {
			return 0, err
		}
		item.Attachments = append(item.Attachments, aid)
	}
	err = s.items.Save(key(itemid), item)
	if err != nil {
		return 0, err
	}
	var col collectionRecord
	err = s.collections.Open(key(colid), &col)
	if err != nil {
		return 0, err
	}
	col.Items = append(col.Items, itemid)
	err = s.collections.Save(key(colid), col)
	if err != nil {
		return 0, err
	}
	return itemid, nil
}

// copyContent moves one content file out of the package and into the
// content store, recording its digests as it goes.
func (s *Server) copyContent(aid int64, pr *pack.Reader, name string, rec *attachmentRecord) error {
	src, err := pr.Open(name)
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := s.contents.Create(key(aid))
	if err != nil {
		return err
	}
	hw := util.NewChecksumWriter(dst)
	_, err = io.Copy(hw, src)
	err2 := dst.Close()
	if err == nil {
		err = err2
	}
	if err != nil {
		s.contents.Delete(key(aid))
		return err
	}
	rec.HasContent = true
	rec.MD5 = hw.MD5()
	rec.SHA256 = hw.SHA256()
	return nil
}

// readManifest decodes the manifest twice: once into the fixed envelope
// and once into a free map to pick up the item metadata keys.
func readManifest(pr *pack.Reader) (manifestDoc, metadata.Record, error) {
	var doc manifestDoc
	rc, err := pr.Open(pack.ManifestName)
	if err != nil {
		return doc, nil, err
	}
	err = json.NewDecoder(rc).Decode(&doc)
	rc.Close()
	if err != nil {
		return doc, nil, err
	}

	var raw map[string]interface{}
	rc, err = pr.Open(pack.ManifestName)
	if err != nil {
		return doc, nil, err
	}
	err = json.NewDecoder(rc).Decode(&raw)
	rc.Close()
	if err != nil {
		return doc, nil, err
	}
	meta := metadata.New(nil)
	for k, v := range raw {
		if isEnvelope(k) {
			continue
		}
		meta[k] = v
	}
	return doc, meta, nil
}

func isEnvelope(name string) bool {
	for _, e := range itemEnvelope {
		if e == name {
			return true
		}
	}
	return false
}
