package rest

import (
	"fmt"

	"github.com/antonholmquist/jason"
)

// A Kind tags the type of a remote resource in reference objects the
// server embeds in representations.
type Kind string

// The resource kinds this client understands.
const (
	KindCollection Kind = "collection"
	KindItem       Kind = "item"
	KindAttachment Kind = "attachment"
)

// Remote is any resource handle the registry can make: a typed wrapper
// around a URL on our server.
type Remote interface {
	URL() string
	Kind() Kind
}

// The registry maps kind tags to handle constructors. It is filled at
// init and read-only afterwards, so no locking.
var registry = make(map[Kind]func(*Client, string) Remote)

// Register adds a constructor for a kind. Call it from init; registering
// the same kind twice panics since it means two types claim one tag.
func Register(kind Kind, factory func(*Client, string) Remote) {
	if _, ok := registry[kind]; ok {
		panic("duplicate resource kind " + string(kind))
	}
	registry[kind] = factory
}

func init() {
	Register(KindCollection, func(c *Client, url string) Remote {
		return &Collection{Resource{client: c, url: url}}
	})
	Register(KindItem, func(c *Client, url string) Remote {
		return &Item{Resource{client: c, url: url}}
	})
	Register(KindAttachment, func(c *Client, url string) Remote {
		return &Attachment{Resource{client: c, url: url}}
	})
}

// NewRemote makes a handle of the given kind for a URL. Unknown kinds
// are an error, not a reflection lookup.
func (c *Client) NewRemote(kind Kind, url string) (Remote, error) {
	factory, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("unknown resource kind %q", kind)
	}
	return factory(c, url), nil
}

// fromRef builds a handle from a reference object {"kind":..., "url":...}.
func (c *Client) fromRef(ref *jason.Object) (Remote, error) {
	kind, err := ref.GetString("kind")
	if err != nil {
		return nil, fmt.Errorf("resource reference missing kind: %s", err.Error())
	}
	url, err := ref.GetString("url")
	if err != nil {
		return nil, fmt.Errorf("resource reference missing url: %s", err.Error())
	}
	return c.NewRemote(Kind(kind), url)
}
