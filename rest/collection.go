package rest

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
)

// Collections addresses the server's collection list.
type Collections struct {
	client *Client
	url    string
}

// Collections returns the handle for the server's collection list.
func (c *Client) Collections() *Collections {
	return &Collections{client: c, url: c.HostURL + "/collections"}
}

// ByID addresses one collection by its numeric id.
func (cs *Collections) ByID(id int) *Collection {
	return &Collection{Resource{
		client: cs.client,
		url:    cs.url + "/" + strconv.Itoa(id),
	}}
}

// ByURL wraps a collection URL handed out by the server.
func (cs *Collections) ByURL(url string) *Collection {
	return &Collection{Resource{client: cs.client, url: url}}
}

// Create makes a new collection and returns its handle.
func (cs *Collections) Create(name, description string) (*Collection, error) {
	loc, err := cs.client.create(cs.url, map[string]string{
		"name":        name,
		"description": description,
	})
	if err != nil {
		return nil, err
	}
	return cs.ByURL(loc), nil
}

// List returns a handle for every collection on the server.
func (cs *Collections) List() ([]*Collection, error) {
	var doc struct {
		Collections []struct {
			URL string `json:"url"`
		} `json:"collections"`
	}
	err := cs.client.getDecode(cs.url, &doc)
	if err != nil {
		return nil, err
	}
	result := make([]*Collection, 0, len(doc.Collections))
	for _, ref := range doc.Collections {
		result = append(result, cs.ByURL(ref.URL))
	}
	return result, nil
}

// A Collection groups items and accepts package submissions, creating a
// new item per package.
type Collection struct {
	Resource
}

// Kind implements Remote.
func (col *Collection) Kind() Kind { return KindCollection }

// Name returns the collection's name.
func (col *Collection) Name() (string, error) {
	return col.GetString("name")
}

// Description returns the collection's description.
func (col *Collection) Description() (string, error) {
	return col.GetString("description")
}

// Items returns handles for the collection's items.
func (col *Collection) Items() ([]*Item, error) {
	remotes, err := col.RelatedList("items")
	if err != nil {
		return nil, err
	}
	result := make([]*Item, 0, len(remotes))
	for _, remote := range remotes {
		item, ok := remote.(*Item)
		if !ok {
			return nil, fmt.Errorf("collection lists a %s where an item belongs", remote.Kind())
		}
		result = append(result, item)
	}
	return result, nil
}

// CreateItem makes a new, empty item in the collection.
func (col *Collection) CreateItem(label string) (*Item, error) {
	loc, err := col.client.create(col.url+"/items", map[string]string{
		"label": label,
	})
	if err != nil {
		return nil, err
	}
	return &Item{Resource{client: col.client, url: loc}}, nil
}

// SubmitPackage posts a package archive to the collection. A 201 reply
// is success and yields the new item's URL from the Location header; any
// other reply is a submission failure.
func (col *Collection) SubmitPackage(r io.Reader) (string, error) {
	req, err := http.NewRequest("POST", col.url+"/package", r)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/zip")
	resp, err := col.client.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case 201:
		loc, err := resp.Location()
		if err != nil {
			return "", ErrNoLocation
		}
		return loc.String(), nil
	case 404:
		return "", ErrNotFound
	case 401:
		return "", ErrNotAuthorized
	default:
		return "", statusError(resp)
	}
}

// SubmitPackageFile opens the archive at path and submits it.
func (col *Collection) SubmitPackageFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return col.SubmitPackage(f)
}
