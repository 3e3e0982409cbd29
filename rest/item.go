package rest

import (
	"fmt"

	"github.com/dlib/accession/metadata"
)

// An Item is one repository item: descriptive metadata plus attachments,
// owned by a collection.
type Item struct {
	Resource
}

// ItemByURL wraps an item URL handed out by the server, for example from
// a package submission's Location header.
func (c *Client) ItemByURL(url string) *Item {
	return &Item{Resource{client: c, url: url}}
}

// Kind implements Remote.
func (item *Item) Kind() Kind { return KindItem }

// Label returns the item's label.
func (item *Item) Label() (string, error) {
	return item.GetString("label")
}

// SetLabel renames the item.
func (item *Item) SetLabel(label string) error {
	return item.Set("label", label)
}

// Status returns the item's visibility status, such as "Public".
func (item *Item) Status() (string, error) {
	return item.GetString("status")
}

// SetStatus changes the item's visibility status.
func (item *Item) SetStatus(status string) error {
	return item.Set("status", status)
}

// EmbargoDate returns the item's embargo date as "YYYY-MM-DD", or ""
// when the item has none.
func (item *Item) EmbargoDate() (string, error) {
	rep, err := item.representation()
	if err != nil {
		return "", err
	}
	s, err := rep.GetString("embargo_date")
	if err != nil {
		// null or absent means no embargo
		return "", nil
	}
	return s, nil
}

// SetEmbargoDate restricts the item until the given "YYYY-MM-DD" date.
// An empty date clears the embargo.
func (item *Item) SetEmbargoDate(date string) error {
	if date == "" {
		return item.Set("embargo_date", nil)
	}
	return item.Set("embargo_date", date)
}

// PersistentURL returns the item's citable URL.
func (item *Item) PersistentURL() (string, error) {
	return item.GetString("persistent_url")
}

// Metadata fetches the item's full metadata record.
func (item *Item) Metadata() (metadata.Record, error) {
	var r metadata.Record
	err := item.client.getDecode(item.url+"/metadata", &r)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// PutMetadata replaces the item's metadata record.
func (item *Item) PutMetadata(r metadata.Record) error {
	err := item.client.sendJSON("PUT", item.url+"/metadata", r)
	if err != nil {
		return err
	}
	item.rep = nil
	return nil
}

// Attachments returns handles for the item's attachments.
func (item *Item) Attachments() ([]*Attachment, error) {
	remotes, err := item.RelatedList("attachments")
	if err != nil {
		return nil, err
	}
	result := make([]*Attachment, 0, len(remotes))
	for _, remote := range remotes {
		a, ok := remote.(*Attachment)
		if !ok {
			return nil, fmt.Errorf("item lists a %s where an attachment belongs", remote.Kind())
		}
		result = append(result, a)
	}
	return result, nil
}

// CreateAttachment makes a new, contentless attachment on the item.
func (item *Item) CreateAttachment(label string) (*Attachment, error) {
	loc, err := item.client.create(item.url+"/attachments", map[string]string{
		"label": label,
	})
	if err != nil {
		return nil, err
	}
	return &Attachment{Resource{client: item.client, url: loc}}, nil
}

// Collection resolves the item's owning collection.
func (item *Item) Collection() (*Collection, error) {
	remote, err := item.Related("collection")
	if err != nil {
		return nil, err
	}
	col, ok := remote.(*Collection)
	if !ok {
		return nil, fmt.Errorf("item's collection reference is a %s", remote.Kind())
	}
	return col, nil
}

// Commit asks the server to publish the item's pending changes.
func (item *Item) Commit() error {
	err := item.client.post(item.url + "/commit")
	if err != nil {
		return err
	}
	item.rep = nil
	return nil
}

// Rollback asks the server to discard the item's pending changes.
func (item *Item) Rollback() error {
	err := item.client.post(item.url + "/rollback")
	if err != nil {
		return err
	}
	item.rep = nil
	return nil
}
