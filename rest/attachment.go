package rest

import (
	"io"
	"net/http"

	"github.com/dlib/accession/metadata"
)

// An Attachment is one file belonging to an item, plus its metadata.
type Attachment struct {
	Resource
}

// Kind implements Remote.
func (a *Attachment) Kind() Kind { return KindAttachment }

// Label returns the attachment's label.
func (a *Attachment) Label() (string, error) {
	return a.GetString("label")
}

// SetLabel renames the attachment.
func (a *Attachment) SetLabel(label string) error {
	return a.Set("label", label)
}

// Metadata fetches the attachment's metadata record.
func (a *Attachment) Metadata() (metadata.Record, error) {
	var r metadata.Record
	err := a.client.getDecode(a.url+"/metadata", &r)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// PutMetadata replaces the attachment's metadata record.
func (a *Attachment) PutMetadata(r metadata.Record) error {
	err := a.client.sendJSON("PUT", a.url+"/metadata", r)
	if err != nil {
		return err
	}
	a.rep = nil
	return nil
}

// UploadContent replaces the attachment's content with the bytes from r.
// Streams of unknown length go up with chunked transfer encoding; the
// server does not need the length ahead of time.
func (a *Attachment) UploadContent(r io.Reader, contentType string) error {
	req, err := http.NewRequest("PUT", a.url+"/content", r)
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := a.client.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case 200, 201, 204:
		a.rep = nil
		return nil
	case 404:
		return ErrNotFound
	case 401:
		return ErrNotAuthorized
	default:
		return statusError(resp)
	}
}

// Content copies the attachment's content into w. It returns false, and
// writes nothing, when the attachment has no content; that is a normal
// state for metadata-only attachments, not an error.
func (a *Attachment) Content(w io.Writer) (bool, error) {
	req, err := http.NewRequest("GET", a.url+"/content", nil)
	if err != nil {
		return false, err
	}
	resp, err := a.client.do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case 200:
		_, err = io.Copy(w, resp.Body)
		return true, err
	case 404:
		return false, nil
	case 401:
		return false, ErrNotAuthorized
	default:
		return false, statusError(resp)
	}
}
