package rest

import (
	"net/http"

	"github.com/antonholmquist/jason"
)

// A Resource is a handle on one remote object. It keeps a local copy of
// the server's JSON representation, fetched on first use. Reads come from
// the copy; every write goes to the server and drops the copy, so the
// next read sees the server's view. Nothing refreshes behind the caller's
// back.
type Resource struct {
	client *Client
	url    string
	rep    *jason.Object
}

// URL returns the resource's address.
func (r *Resource) URL() string {
	return r.url
}

// representation returns the cached JSON, fetching it if needed.
func (r *Resource) representation() (*jason.Object, error) {
	if r.rep == nil {
		rep, err := r.client.getJSON(r.url)
		if err != nil {
			return nil, err
		}
		r.rep = rep
	}
	return r.rep, nil
}

// Refresh drops the local copy and fetches the current representation.
func (r *Resource) Refresh() error {
	r.rep = nil
	_, err := r.representation()
	return err
}

// Get returns the value at the given key path in the representation.
func (r *Resource) Get(keys ...string) (*jason.Value, error) {
	rep, err := r.representation()
	if err != nil {
		return nil, err
	}
	return rep.GetValue(keys...)
}

// GetString returns the string at the given key path.
func (r *Resource) GetString(keys ...string) (string, error) {
	rep, err := r.representation()
	if err != nil {
		return "", err
	}
	return rep.GetString(keys...)
}

// Set updates one field on the server and invalidates the local copy.
func (r *Resource) Set(name string, value interface{}) error {
	err := r.client.sendJSON("PUT", r.url, map[string]interface{}{name: value})
	if err != nil {
		return err
	}
	r.rep = nil
	return nil
}

// Delete removes the remote resource. The handle is useless afterwards.
func (r *Resource) Delete() error {
	req, err := http.NewRequest("DELETE", r.url, nil)
	if err != nil {
		return err
	}
	resp, err := r.client.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case 200, 204:
		return nil
	case 404:
		return ErrNotFound
	case 401:
		return ErrNotAuthorized
	default:
		return statusError(resp)
	}
}

// Related resolves a resource reference stored at the given key of the
// representation, using the kind registry. References look like
// {"kind": "item", "url": "..."}.
func (r *Resource) Related(key string) (Remote, error) {
	rep, err := r.representation()
	if err != nil {
		return nil, err
	}
	ref, err := rep.GetObject(key)
	if err != nil {
		return nil, err
	}
	return r.client.fromRef(ref)
}

// RelatedList resolves a list of resource references stored at the given
// key, skipping nothing: a malformed reference fails the whole call.
func (r *Resource) RelatedList(key string) ([]Remote, error) {
	rep, err := r.representation()
	if err != nil {
		return nil, err
	}
	refs, err := rep.GetObjectArray(key)
	if err != nil {
		return nil, err
	}
	result := make([]Remote, 0, len(refs))
	for _, ref := range refs {
		remote, err := r.client.fromRef(ref)
		if err != nil {
			return nil, err
		}
		result = append(result, remote)
	}
	return result, nil
}
