// Package rest is the client for the repository's REST API. It models
// collections, items, and attachments as handles around their URLs,
// fetching JSON representations lazily and pushing changes back with
// explicit calls, so every network round trip is visible in the caller's
// code. It also implements the package submission protocol the ingest
// package drives.
package rest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"strings"
	"time"

	"github.com/antonholmquist/jason"
)

// Exported errors. Server responses outside this set come back as a
// *StatusError.
var (
	ErrNotFound      = errors.New("not found in repository")
	ErrNotAuthorized = errors.New("access denied")
	ErrNoLocation    = errors.New("no Location header in response")
)

// A StatusError is a response with a status code the operation did not
// expect. The start of the response body is kept for diagnostics.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("received status %d from repository", e.Code)
	}
	return fmt.Sprintf("received status %d from repository: %s", e.Code, e.Body)
}

// A Client holds a connection to one repository server. It can be shared
// between goroutines.
type Client struct {
	// HostURL names the server, e.g. "https://repository.example.edu".
	HostURL string
	// Token is sent as the Authorization credential when set.
	Token string

	client *http.Client
}

// New returns a Client for the server at hosturl. token may be "" for
// anonymous access.
func New(hosturl, token string) *Client {
	return &Client{
		HostURL: strings.TrimRight(hosturl, "/"),
		Token:   token,
		client: &http.Client{
			Timeout: 10 * time.Minute, // arbitrary; submissions can be big
		},
	}
}

// do performs the request with our auth header and shared http client.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	if c.Token != "" {
		req.Header.Set("Authorization", "Token "+c.Token)
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: 10 * time.Minute}
	}
	return c.client.Do(req)
}

// getJSON fetches url and parses the body. The url is absolute since
// resource handles carry full URLs handed out by the server.
func (c *Client) getJSON(url string) (*jason.Object, error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case 200:
		return jason.NewObjectFromReader(resp.Body)
	case 404:
		return nil, ErrNotFound
	case 401:
		return nil, ErrNotAuthorized
	default:
		return nil, statusError(resp)
	}
}

// getDecode fetches url and decodes the body into v.
func (c *Client) getDecode(url string, v interface{}) error {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case 200:
		return json.NewDecoder(resp.Body).Decode(v)
	case 404:
		return ErrNotFound
	case 401:
		return ErrNotAuthorized
	default:
		return statusError(resp)
	}
}

// sendJSON marshals body and sends it to url with the given method,
// expecting a 2xx back.
func (c *Client) sendJSON(method, url string, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(method, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.do(req)
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

// create POSTs body to url and returns the absolute URL of the new
// resource from the 201 response.
func (c *Client) create(url string, body interface{}) (string, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequest("POST", url, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.do(req)
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

// post sends a bodyless POST to url, for action endpoints like commit.
func (c *Client) post(url string) error {
	req, err := http.NewRequest("POST", url, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case 200, 202, 204:
		return nil
	case 404:
		return ErrNotFound
	case 401:
		return ErrNotAuthorized
	default:
		return statusError(resp)
	}
}

// statusError drains a little of the response body into a *StatusError.
func statusError(resp *http.Response) error {
	body, _ := ioutil.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{
		Code: resp.StatusCode,
		Body: strings.TrimSpace(string(body)),
	}
}
