package pack

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"
)

// buildZip makes an in-memory archive from entry name -> content.
func buildZip(t *testing.T, entries map[string]string) *bytes.Reader {
	var buf bytes.Buffer
	z := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := z.Create(name)
		if err != nil {
			t.Fatalf("Received error %s", err.Error())
		}
		w.Write([]byte(content))
	}
	if err := z.Close(); err != nil {
		t.Fatalf("Received error %s", err.Error())
	}
	return bytes.NewReader(buf.Bytes())
}

func TestMissingManifest(t *testing.T) {
	r := buildZip(t, map[string]string{"foo.txt": "no manifest here"})
	_, err := OpenStored(r, r.Size())
	if err != ErrNoManifest {
		t.Errorf("Received %v, expected ErrNoManifest", err)
	}
}

func TestBadManifest(t *testing.T) {
	r := buildZip(t, map[string]string{ManifestName: "{not json"})
	_, err := OpenStored(r, r.Size())
	if err == nil || !strings.Contains(err.Error(), "bad manifest") {
		t.Errorf("Received %v, expected bad manifest error", err)
	}
}

func TestVerifyMismatch(t *testing.T) {
	manifest := `{"label":"x","attachments":[
		{"label":"f","metadata":{},"content":"f.txt",
		 "md5":"d41d8cd98f00b204e9800998ecf8428e"}]}`
	r := buildZip(t, map[string]string{
		ManifestName: manifest,
		"f.txt":      "hello",
	})
	pr, err := OpenStored(r, r.Size())
	if err != nil {
		t.Fatalf("Received error %s", err.Error())
	}
	err = pr.Verify()
	if err == nil || !strings.Contains(err.Error(), "checksum mismatch") {
		t.Errorf("Received %v, expected checksum mismatch", err)
	}
}

func TestVerifyMissingContent(t *testing.T) {
	manifest := `{"label":"x","attachments":[
		{"label":"g","metadata":{},"content":"g.txt"}]}`
	r := buildZip(t, map[string]string{ManifestName: manifest})
	pr, err := OpenStored(r, r.Size())
	if err != nil {
		t.Fatalf("Received error %s", err.Error())
	}
	err = pr.Verify()
	if err == nil || !strings.Contains(err.Error(), "missing content file") {
		t.Errorf("Received %v, expected missing content error", err)
	}
}

func TestFilesSkipsManifest(t *testing.T) {
	r := buildZip(t, map[string]string{
		ManifestName: `{"label":null,"attachments":[]}`,
		"a.txt":      "a",
		"b/c.txt":    "c",
	})
	pr, err := OpenStored(r, r.Size())
	if err != nil {
		t.Fatalf("Received error %s", err.Error())
	}
	files := pr.Files()
	if len(files) != 2 {
		t.Errorf("Received files %v, expected 2 entries", files)
	}
	for _, name := range files {
		if name == ManifestName {
			t.Errorf("Files() includes the manifest")
		}
	}
	if _, err := pr.Open("nope.txt"); err != ErrNotFound {
		t.Errorf("Received %v, expected ErrNotFound", err)
	}
}
