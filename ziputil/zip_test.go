package ziputil

import (
	"archive/zip"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

func TestZipDirectory(t *testing.T) {
	var files = map[string]string{
		"a.txt":     "alpha content",
		"sub/b.txt": "beta content",
	}
	dir := makeTree(t, files)
	defer os.RemoveAll(dir)

	target, err := ZipDirectory(dir, "")
	if err != nil {
		t.Fatalf("Received error %s", err.Error())
	}
	defer os.Remove(target)
	if !strings.HasSuffix(target, ".zip") {
		t.Errorf("Received %s, expected a .zip path", target)
	}

	z, err := zip.OpenReader(target)
	if err != nil {
		t.Fatalf("Received error %s", err.Error())
	}
	defer z.Close()
	var names []string
	for _, f := range z.File {
		names = append(names, f.Name)
		if f.Method != zip.Deflate {
			t.Errorf("Entry %s method %d, expected deflate", f.Name, f.Method)
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("Open %s: %s", f.Name, err.Error())
		}
		data, _ := ioutil.ReadAll(rc)
		rc.Close()
		if string(data) != files[f.Name] {
			t.Errorf("Entry %s content %q, expected %q", f.Name, data, files[f.Name])
		}
	}
	sort.Strings(names)
	expected := []string{"a.txt", "sub/b.txt"}
	if len(names) != len(expected) {
		t.Fatalf("Received entries %v, expected %v", names, expected)
	}
	for i := range names {
		if names[i] != expected[i] {
			t.Errorf("Received entries %v, expected %v", names, expected)
			break
		}
	}
}

func TestZipDirectoryTarget(t *testing.T) {
	dir := makeTree(t, map[string]string{"only.txt": "x"})
	defer os.RemoveAll(dir)
	out := filepath.Join(dir, "..", "out-test.zip")
	target, err := ZipDirectory(dir, out)
	if err != nil {
		t.Fatalf("Received error %s", err.Error())
	}
	defer os.Remove(target)
	if target != out {
		t.Errorf("Received %s, expected %s", target, out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Errorf("Stat target: %s", err.Error())
	}
}

// makeTree builds a temp tree from relative path -> content.
// Caller removes the returned root.
func makeTree(t *testing.T, files map[string]string) string {
	root, err := ioutil.TempDir("", "ziputil")
	if err != nil {
		t.Fatalf("Received error %s", err.Error())
	}
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		os.MkdirAll(filepath.Dir(p), 0755)
		if err := ioutil.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatalf("Received error %s", err.Error())
		}
	}
	return root
}
