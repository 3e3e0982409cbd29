package pack

import (
	"encoding/json"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/dlib/accession/metadata"
)

// Access levels the repository understands for attachment content and
// derivatives.
const (
	AccessOpen   = "OpenAccess"
	AccessCampus = "Campus"
	AccessClosed = "Closed"
)

// ErrBadAccess is returned for an access level outside the allowed set.
var ErrBadAccess = errors.New("unknown access level")

// MaxLabelLength is the longest label the repository accepts. Longer
// labels are truncated during packaging and the original is preserved as
// a note.
const MaxLabelLength = 255

// An Item is one repository item under construction: its descriptive
// metadata plus the ordered list of attachments added so far. Attachment
// order is preserved into the manifest.
type Item struct {
	Label       string
	Metadata    metadata.Record
	Status      string    // "" serializes as null
	Embargo     time.Time // zero serializes as null
	Enabled     *bool     // nil serializes as null
	Attachments []*Attachment
}

// SetPublic marks the item publicly visible.
func (item *Item) SetPublic() { item.Status = "Public" }

// SetPrivate hides the item from public view.
func (item *Item) SetPrivate() { item.Status = "Private" }

// Enable turns the item on.
func (item *Item) Enable() { t := true; item.Enabled = &t }

// Disable turns the item off without deleting it.
func (item *Item) Disable() { f := false; item.Enabled = &f }

// SetEmbargo restricts the item until the given date.
func (item *Item) SetEmbargo(date time.Time) { item.Embargo = date }

// ClearEmbargo removes any embargo date.
func (item *Item) ClearEmbargo() { item.Embargo = time.Time{} }

// validate applies the transformations required before serialization.
// Right now that is only the label length rule.
func (item *Item) validate() {
	if len(item.Label) <= MaxLabelLength {
		return
	}
	full := item.Label
	cut := MaxLabelLength - 3
	for cut > 0 && !utf8.RuneStart(full[cut]) {
		cut--
	}
	item.Label = full[:cut] + "..."
	item.Metadata.AddNote("Label truncated. Original label: " + full)
}

// MarshalJSON writes the item in the manifest shape: metadata fields at
// the top level alongside label, status, embargo_date, enabled, and the
// attachments array. The fixed names shadow metadata fields of the same
// name.
func (item *Item) MarshalJSON() ([]byte, error) {
	m := make(map[string]interface{}, len(item.Metadata)+5)
	for field, value := range item.Metadata {
		m[field] = value
	}
	m["label"] = nullable(item.Label)
	m["status"] = nullable(item.Status)
	m["embargo_date"] = nil
	if !item.Embargo.IsZero() {
		m["embargo_date"] = item.Embargo.Format("2006-01-02")
	}
	m["enabled"] = item.Enabled
	attachments := item.Attachments
	if attachments == nil {
		attachments = []*Attachment{}
	}
	m["attachments"] = attachments
	return json.Marshal(m)
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// An Attachment is one file (or metadata-only entry) belonging to an
// item. Content holds the file's path inside the package, empty for
// metadata-only attachments. The digests are filled in as content is
// copied into the working directory.
type Attachment struct {
	Label    string
	Metadata metadata.Record
	Content  string
	MD5      string
	SHA256   string
}

// SetFileAccess records who may retrieve the attachment's content.
func (a *Attachment) SetFileAccess(level string) error {
	return a.setAccess("file_access", level)
}

// SetDerivativeAccess records who may retrieve derivatives made from the
// attachment, thumbnails and the like.
func (a *Attachment) SetDerivativeAccess(level string) error {
	return a.setAccess("derivative_access", level)
}

func (a *Attachment) setAccess(field, level string) error {
	switch level {
	case AccessOpen, AccessCampus, AccessClosed:
	default:
		return ErrBadAccess
	}
	a.Metadata.Set(field, level)
	return nil
}

// MarshalJSON writes the manifest fragment for this attachment. Metadata
// nests under its own key, unlike items. Digests appear only when content
// was copied.
func (a *Attachment) MarshalJSON() ([]byte, error) {
	meta := a.Metadata
	if meta == nil {
		meta = metadata.Record{}
	}
	m := map[string]interface{}{
		"label":    a.Label,
		"metadata": meta,
		"content":  nullable(a.Content),
	}
	if a.MD5 != "" {
		m["md5"] = a.MD5
	}
	if a.SHA256 != "" {
		m["sha256"] = a.SHA256
	}
	return json.Marshal(m)
}
