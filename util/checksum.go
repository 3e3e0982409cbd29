package util

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
)

// A ChecksumWriter wraps an io.Writer and computes the MD5 and SHA256
// digests of everything written through it. Digests are reported hex
// encoded, the form the package manifest records.
type ChecksumWriter struct {
	io.Writer // MultiWriter fanning out to w and the hashes
	md5       hash.Hash
	sha256    hash.Hash
}

// NewChecksumWriter returns a ChecksumWriter wrapping w.
func NewChecksumWriter(w io.Writer) *ChecksumWriter {
	cw := &ChecksumWriter{
		md5:    md5.New(),
		sha256: sha256.New(),
	}
	cw.Writer = io.MultiWriter(w, cw.md5, cw.sha256)
	return cw
}

// NewChecksumSink returns a ChecksumWriter with no underlying stream. It
// only digests what is written to it, which is all verification needs.
func NewChecksumSink() *ChecksumWriter {
	cw := &ChecksumWriter{
		md5:    md5.New(),
		sha256: sha256.New(),
	}
	cw.Writer = io.MultiWriter(cw.md5, cw.sha256)
	return cw
}

// MD5 returns the hex encoded MD5 digest of the bytes written so far.
func (cw *ChecksumWriter) MD5() string {
	return hex.EncodeToString(cw.md5.Sum(nil))
}

// SHA256 returns the hex encoded SHA256 digest of the bytes written so far.
func (cw *ChecksumWriter) SHA256() string {
	return hex.EncodeToString(cw.sha256.Sum(nil))
}

// Match compares the digests computed so far against hex encoded goals.
// An empty goal string skips that digest. Comparison is case insensitive
// on the hex letters.
func (cw *ChecksumWriter) Match(hexmd5, hexsha256 string) bool {
	if hexmd5 != "" && !hexequal(hexmd5, cw.MD5()) {
		return false
	}
	if hexsha256 != "" && !hexequal(hexsha256, cw.SHA256()) {
		return false
	}
	return true
}

func hexequal(a, b string) bool {
	x, err := hex.DecodeString(a)
	if err != nil {
		return false
	}
	y, err := hex.DecodeString(b)
	if err != nil {
		return false
	}
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

// VerifyStream digests r and compares against the given hex goals, with
// empty goals skipped as in Match. The reader is drained but not closed.
func VerifyStream(r io.Reader, hexmd5, hexsha256 string) (bool, error) {
	if hexmd5 == "" && hexsha256 == "" {
		return true, nil
	}
	cw := NewChecksumSink()
	_, err := io.Copy(cw, r)
	if err != nil {
		return false, err
	}
	return cw.Match(hexmd5, hexsha256), nil
}
