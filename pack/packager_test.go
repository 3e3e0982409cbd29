package pack

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dlib/accession/metadata"
)

func TestRoundTrip(t *testing.T) {
	p, err := New("Annual Report", map[string]interface{}{"title": "Annual Report"})
	if err != nil {
		t.Fatalf("Received error %s", err.Error())
	}
	defer p.Close()
	_, err = p.AddAttachment(strings.NewReader("first file body"),
		"docs/report.pdf",
		map[string]interface{}{"label": "The Report"})
	if err != nil {
		t.Fatalf("Received error %s", err.Error())
	}
	a2, err := p.AddAttachment(strings.NewReader("second,file,body"), "data.csv", nil)
	if err != nil {
		t.Fatalf("Received error %s", err.Error())
	}
	if err = a2.SetFileAccess(AccessCampus); err != nil {
		t.Fatalf("Received error %s", err.Error())
	}

	outdir, _ := ioutil.TempDir("", "pack")
	defer os.RemoveAll(outdir)
	zipPath, err := p.Write(filepath.Join(outdir, "item-0001"))
	if err != nil {
		t.Fatalf("Received error %s", err.Error())
	}
	if !strings.HasSuffix(zipPath, "item-0001.zip") {
		t.Errorf("Received %s, expected item-0001.zip path", zipPath)
	}

	r, err := OpenFile(zipPath)
	if err != nil {
		t.Fatalf("Received error %s", err.Error())
	}
	defer r.Close()
	if r.Label() != "Annual Report" {
		t.Errorf("Received label %s, expected Annual Report", r.Label())
	}
	titles, err := r.Manifest().GetStringArray("title")
	if err != nil || len(titles) != 1 || titles[0] != "Annual Report" {
		t.Errorf("Received title %v (err %v), expected [Annual Report]", titles, err)
	}
	atts, err := r.Manifest().GetObjectArray("attachments")
	if err != nil {
		t.Fatalf("Received error %s", err.Error())
	}
	if len(atts) != 2 {
		t.Fatalf("Received %d attachments, expected 2", len(atts))
	}
	var contents []string
	for _, a := range atts {
		c, _ := a.GetString("content")
		contents = append(contents, c)
	}
	if contents[0] != "docs/report.pdf" || contents[1] != "data.csv" {
		t.Errorf("Received contents %v, expected insertion order", contents)
	}
	label0, _ := atts[0].GetString("label")
	if label0 != "The Report" {
		t.Errorf("Received label %s, expected The Report", label0)
	}
	label1, _ := atts[1].GetString("label")
	if label1 != "data.csv" {
		t.Errorf("Received label %s, expected data.csv", label1)
	}
	access, err := atts[1].GetString("metadata", "file_access")
	if err != nil || access != AccessCampus {
		t.Errorf("Received file_access %s (err %v), expected %s", access, err, AccessCampus)
	}

	for name, want := range map[string]string{
		"docs/report.pdf": "first file body",
		"data.csv":        "second,file,body",
	} {
		rc, err := r.Open(name)
		if err != nil {
			t.Fatalf("Open %s: %s", name, err.Error())
		}
		data, _ := ioutil.ReadAll(rc)
		rc.Close()
		if string(data) != want {
			t.Errorf("Entry %s content %q, expected %q", name, data, want)
		}
	}
	if err := r.Verify(); err != nil {
		t.Errorf("Verify: %s", err.Error())
	}
}

func TestDuplicateDestination(t *testing.T) {
	p, err := New("dup test", nil)
	if err != nil {
		t.Fatalf("Received error %s", err.Error())
	}
	defer p.Close()
	if _, err = p.AddAttachment(strings.NewReader("one"), "a.txt", nil); err != nil {
		t.Fatalf("Received error %s", err.Error())
	}
	_, err = p.AddAttachment(strings.NewReader("two"), "a.txt", nil)
	if _, ok := err.(*ConflictError); !ok {
		t.Fatalf("Received %v, expected *ConflictError", err)
	}
	data, err := ioutil.ReadFile(filepath.Join(p.Dir(), "a.txt"))
	if err != nil {
		t.Fatalf("Received error %s", err.Error())
	}
	if string(data) != "one" {
		t.Errorf("Received %q, expected first file untouched", data)
	}
	if n := len(p.Item().Attachments); n != 1 {
		t.Errorf("Received %d attachments, expected 1", n)
	}
}

func TestClosedSession(t *testing.T) {
	p, err := New("closed test", nil)
	if err != nil {
		t.Fatalf("Received error %s", err.Error())
	}
	dir := p.Dir()
	if err = p.Close(); err != nil {
		t.Fatalf("Received error %s", err.Error())
	}
	if _, err = os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("Working directory %s still present after Close", dir)
	}
	if _, err = p.AddAttachment(strings.NewReader("x"), "x.txt", nil); err != ErrClosed {
		t.Errorf("Received %v, expected ErrClosed", err)
	}
	if _, err = p.Write("never"); err != ErrClosed {
		t.Errorf("Received %v, expected ErrClosed", err)
	}
	if err = p.Close(); err != nil {
		t.Errorf("Second Close: %v", err)
	}
}

func TestLabelTruncation(t *testing.T) {
	long := strings.Repeat("label ", 50) // 300 chars
	item := &Item{Label: long, Metadata: metadata.Record{}}
	item.validate()
	if len(item.Label) != MaxLabelLength {
		t.Errorf("Received label length %d, expected %d", len(item.Label), MaxLabelLength)
	}
	if !strings.HasSuffix(item.Label, "...") {
		t.Errorf("Received label %q, expected ... suffix", item.Label)
	}
	notes := item.Metadata.Entries("notes")
	if len(notes) != 1 {
		t.Fatalf("Received %d notes, expected 1", len(notes))
	}
	if !strings.Contains(notes[0].(string), long) {
		t.Errorf("Note %q does not reference original label", notes[0])
	}

	short := &Item{Label: "fine", Metadata: metadata.Record{}}
	short.validate()
	if short.Label != "fine" {
		t.Errorf("Received %q, expected short label unchanged", short.Label)
	}
	if len(short.Metadata.Entries("notes")) != 0 {
		t.Errorf("Short label gained a note")
	}
}

func TestNormalizeName(t *testing.T) {
	var table = []struct{ input, output string }{
		{"a.txt", "a.txt"},
		{"sub/inner.txt", "sub/inner.txt"},
		{"/etc/passwd", "etc/passwd"},
		{"./a/b.txt", "a/b.txt"},
		{"../../x.dat", "x.dat"},
		{"a/../../b.txt", "b.txt"},
		{"a//b", "a/b"},
		{"..", ""},
		{".", ""},
		{"", ""},
	}
	for _, tab := range table {
		if result := normalizeName(tab.input); result != tab.output {
			t.Errorf("normalizeName(%q) = %q, expected %q", tab.input, result, tab.output)
		}
	}
}

func TestDerivedNames(t *testing.T) {
	p, err := New("names", nil)
	if err != nil {
		t.Fatalf("Received error %s", err.Error())
	}
	defer p.Close()

	f, err := ioutil.TempFile("", "notes-*.txt")
	if err != nil {
		t.Fatalf("Received error %s", err.Error())
	}
	defer os.Remove(f.Name())
	f.WriteString("from a file")
	f.Seek(0, 0)
	a, err := p.AddAttachment(f, "", nil)
	if err != nil {
		t.Fatalf("Received error %s", err.Error())
	}
	if a.Content != filepath.Base(f.Name()) {
		t.Errorf("Received content %s, expected %s", a.Content, filepath.Base(f.Name()))
	}

	b, err := p.AddAttachment(strings.NewReader("anonymous"), "", nil)
	if err != nil {
		t.Fatalf("Received error %s", err.Error())
	}
	if b.Content == "" {
		t.Errorf("Expected generated destination name")
	}
	if b.Label != b.Content {
		t.Errorf("Received label %s, expected %s", b.Label, b.Content)
	}
}

func TestMetadataOnlyAttachment(t *testing.T) {
	p, err := New("meta only", nil)
	if err != nil {
		t.Fatalf("Received error %s", err.Error())
	}
	defer p.Close()
	a, err := p.AddAttachment(nil, "", map[string]interface{}{
		"label":   "Pure metadata",
		"subject": "imaginary",
	})
	if err != nil {
		t.Fatalf("Received error %s", err.Error())
	}
	if a.Content != "" {
		t.Errorf("Received content %q, expected none", a.Content)
	}

	outdir, _ := ioutil.TempDir("", "pack")
	defer os.RemoveAll(outdir)
	zipPath, err := p.Write(filepath.Join(outdir, "meta"))
	if err != nil {
		t.Fatalf("Received error %s", err.Error())
	}
	r, err := OpenFile(zipPath)
	if err != nil {
		t.Fatalf("Received error %s", err.Error())
	}
	defer r.Close()
	if files := r.Files(); len(files) != 0 {
		t.Errorf("Received files %v, expected none", files)
	}
	var manifest struct {
		Attachments []struct {
			Label   string  `json:"label"`
			Content *string `json:"content"`
			MD5     string  `json:"md5"`
		} `json:"attachments"`
	}
	rc, err := r.Open(ManifestName)
	if err != nil {
		t.Fatalf("Received error %s", err.Error())
	}
	err = json.NewDecoder(rc).Decode(&manifest)
	rc.Close()
	if err != nil {
		t.Fatalf("Received error %s", err.Error())
	}
	if len(manifest.Attachments) != 1 {
		t.Fatalf("Received %d attachments, expected 1", len(manifest.Attachments))
	}
	entry := manifest.Attachments[0]
	if entry.Content != nil {
		t.Errorf("Received content %v, expected null", *entry.Content)
	}
	if entry.MD5 != "" {
		t.Errorf("Received md5 %s, expected none", entry.MD5)
	}
	if entry.Label != "Pure metadata" {
		t.Errorf("Received label %s, expected Pure metadata", entry.Label)
	}
}

func TestAccessLevels(t *testing.T) {
	a := &Attachment{Metadata: metadata.Record{}}
	if err := a.SetFileAccess("everyone"); err != ErrBadAccess {
		t.Errorf("Received %v, expected ErrBadAccess", err)
	}
	if err := a.SetDerivativeAccess(AccessClosed); err != nil {
		t.Errorf("Received %v, expected no error", err)
	}
	level, err := a.Metadata.String("derivative_access")
	if err != nil || level != AccessClosed {
		t.Errorf("Received %s (err %v), expected %s", level, err, AccessClosed)
	}
}
