package repotest

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// A TokenDecoder validates and decodes the API tokens passed on
// requests. If the given token is not valid, for whatever reason, the
// user "" with a role of RoleUnknown is returned. An error is returned
// only if the lookup itself failed and the token's status is unknown.
type TokenDecoder interface {
	TokenDecode(token string) (user string, role Role, err error)
}

// A Role is a level of access. Roles are ordered, so a user holding a
// role also passes any check for a lesser one.
type Role int

const (
	RoleUnknown Role = iota
	RoleRead
	RoleWrite
	RoleAdmin
)

func atoRole(s string) Role {
	switch strings.ToLower(s) {
	case "read":
		return RoleRead
	case "write":
		return RoleWrite
	case "admin":
		return RoleAdmin
	default:
		return RoleUnknown
	}
}

// NewAnyoneDecoder creates a TokenDecoder that accepts every possible
// token as a user named "anyone" with the Admin role. It is the default
// on a new Server, where provisioning users would just slow tests down.
func NewAnyoneDecoder() TokenDecoder {
	return new(anyoneDecoder)
}

type anyoneDecoder struct{}

func (_ anyoneDecoder) TokenDecode(token string) (user string, role Role, err error) {
	return "anyone", RoleAdmin, nil
}

// A list decoder is backed by a predefined list of users, read from r
// when created. The reader holds one user per line in the form
//
//	<user name>  <role>  <token>
//
// with the fields separated by spaces or tabs, so neither user names nor
// tokens may contain spaces. The role is one of "Read", "Write" or
// "Admin" (case insensitive). Empty lines and lines beginning with a
// hash '#' are skipped.
func NewListDecoder(r io.Reader) (TokenDecoder, error) {
	users, err := parseListFile(r)
	if err != nil {
		return nil, err
	}
	return listDecoder{users}, nil
}

// NewListDecoderFile reads the contents of the given file into a list
// decoder. The file has the format NewListDecoder expects.
func NewListDecoderFile(fname string) (TokenDecoder, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return NewListDecoder(f)
}

// NewListDecoderString passes the given string into a list decoder. The
// string has the format NewListDecoder expects.
func NewListDecoderString(data string) (TokenDecoder, error) {
	return NewListDecoder(strings.NewReader(data))
}

func parseListFile(r io.Reader) (map[string]userEntry, error) {
	result := make(map[string]userEntry)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		pieces := strings.Fields(scanner.Text())
		// skip blank lines and comments
		if len(pieces) == 0 || pieces[0][0] == '#' {
			continue
		}
		if len(pieces) != 3 {
			// wrong number of columns
			continue
		}
		result[pieces[2]] = userEntry{
			user: pieces[0],
			role: atoRole(pieces[1]),
		}
	}
	return result, scanner.Err()
}

type userEntry struct {
	user string
	role Role
}

type listDecoder struct {
	data map[string]userEntry
}

func (ld listDecoder) TokenDecode(token string) (string, Role, error) {
	entry, ok := ld.data[token]
	if !ok {
		return "", RoleUnknown, nil
	}
	return entry.user, entry.role, nil
}
