package ingest

import (
	"io"
	"io/ioutil"
	"net"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/dlib/accession/pack"
	"github.com/dlib/accession/repotest"
	"github.com/dlib/accession/rest"
)

func TestBatchRun(t *testing.T) {
	es := repotest.NewErrorServer(repotest.New(nil).Handler())
	remote := httptest.NewServer(es)
	defer remote.Close()

	client := rest.New(remote.URL, "")
	col, err := client.Collections().Create("batch", "")
	if err != nil {
		t.Fatal(err)
	}

	paths := []string{
		writePackage(t, "one"),
		writePackage(t, "two"),
		writePackage(t, "three"),
	}

	// fail the second submission only
	es.Reset([]repotest.Play{{When: 1, Status: 500, Body: "tape jam"}})
	batch := &Batch{Target: col, Paths: paths}
	batch.Run()

	if len(batch.Successes) != 2 {
		t.Fatalf("Received %d successes, expected %d", len(batch.Successes), 2)
	}
	if batch.Successes[0].Path != paths[0] || batch.Successes[1].Path != paths[2] {
		t.Errorf("Received %v, expected paths 0 and 2", batch.Successes)
	}
	if len(batch.Failures) != 1 {
		t.Fatalf("Received %d failures, expected %d", len(batch.Failures), 1)
	}
	f := batch.Failures[0]
	if f.Path != paths[1] {
		t.Errorf("Received %v, expected %v", f.Path, paths[1])
	}
	if !IsStatus(f.Err, 500) {
		t.Errorf("Received %v, expected a 500 from the server", f.Err)
	}

	// every success points at a live item
	for _, s := range batch.Successes {
		label, err := client.ItemByURL(s.Location).Label()
		if err != nil {
			t.Fatal(err)
		}
		if label == "" {
			t.Errorf("item at %v has no label", s.Location)
		}
	}

	// the fault is gone, so a blanket retry clears the failure
	batch.RetryFailed(nil)
	if len(batch.Failures) != 0 {
		t.Fatalf("Received %v, expected no failures after retry", batch.Failures)
	}
	if len(batch.Successes) != 3 {
		t.Errorf("Received %d successes, expected %d", len(batch.Successes), 3)
	}
}

func TestRetrySelective(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeFile(t, dir, "a"),
		writeFile(t, dir, "b"),
		writeFile(t, dir, "c"),
	}
	target := &scriptedTarget{script: map[string][]error{
		"b": {&net.OpError{Op: "dial", Err: errors.New("connection refused")}},
		"c": {&rest.StatusError{Code: 500, Body: "tape jam"}},
	}}

	batch := &Batch{Target: target, Paths: paths}
	batch.Run()
	if len(batch.Successes) != 1 || len(batch.Failures) != 2 {
		t.Fatalf("Received %d/%d, expected 1 success and 2 failures",
			len(batch.Successes), len(batch.Failures))
	}

	// only the connection failure is worth another try
	batch.RetryFailed(IsConnection)
	if len(batch.Successes) != 2 {
		t.Errorf("Received %d successes, expected %d", len(batch.Successes), 2)
	}
	if len(batch.Failures) != 1 {
		t.Fatalf("Received %v, expected the 500 to stay failed", batch.Failures)
	}
	if !IsStatus(batch.Failures[0].Err, 500) {
		t.Errorf("Received %v, expected the 500 failure kept", batch.Failures[0].Err)
	}
	// and the refused package was not resubmitted
	if countCalls(target.calls, "c") != 1 {
		t.Errorf("Received %d submissions of c, expected 1", countCalls(target.calls, "c"))
	}
	if countCalls(target.calls, "b") != 2 {
		t.Errorf("Received %d submissions of b, expected 2", countCalls(target.calls, "b"))
	}
}

func TestMissingPackage(t *testing.T) {
	target := &scriptedTarget{}
	batch := &Batch{
		Target: target,
		Paths:  []string{filepath.Join(t.TempDir(), "no-such.zip")},
	}
	batch.Run()
	if len(batch.Failures) != 1 {
		t.Fatalf("Received %v, expected one failure", batch.Failures)
	}
	if IsConnection(batch.Failures[0].Err) {
		t.Errorf("Received %v, expected not a connection error", batch.Failures[0].Err)
	}
	if len(target.calls) != 0 {
		t.Errorf("Received %v, expected no submissions", target.calls)
	}
}

func TestIsConnection(t *testing.T) {
	// grab an address nothing is listening on
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	l.Close()

	client := rest.New("http://"+addr, "")
	col := client.Collections().ByID(1)
	_, err = col.SubmitPackage(strings.NewReader("zip"))
	if err == nil {
		t.Fatal("expected an error talking to a dead server")
	}
	if !IsConnection(err) {
		t.Errorf("Received %v, expected a connection error", err)
	}
	if !IsConnection(errors.Wrap(err, "submitting")) {
		t.Error("expected classification to look through wrapping")
	}
	if IsConnection(&rest.StatusError{Code: 500}) {
		t.Error("a server status is not a connection error")
	}
	if !IsStatus(&rest.StatusError{Code: 500}, 500) {
		t.Error("expected IsStatus to match")
	}
	if IsStatus(&rest.StatusError{Code: 500}, 400) {
		t.Error("expected IsStatus to mind the code")
	}
}

func TestJournalSkip(t *testing.T) {
	es := repotest.NewErrorServer(repotest.New(nil).Handler())
	remote := httptest.NewServer(es)
	defer remote.Close()
	client := rest.New(remote.URL, "")
	col, err := client.Collections().Create("journaled", "")
	if err != nil {
		t.Fatal(err)
	}

	journal, err := NewQlJournal("memory")
	if err != nil {
		t.Fatal(err)
	}
	defer journal.Close()

	paths := []string{writePackage(t, "only")}
	batch := &Batch{Target: col, Paths: paths, Journal: journal}
	batch.Run()
	if len(batch.Successes) != 1 {
		t.Fatalf("Received %v, expected one success", batch.Failures)
	}

	// a fresh batch over the same journal resubmits nothing
	second := &Batch{Target: col, Paths: paths, Journal: journal}
	second.Run()
	if len(second.Skipped) != 1 {
		t.Errorf("Received %v, expected the path skipped", second.Skipped)
	}
	if len(second.Successes) != 0 || len(second.Failures) != 0 {
		t.Errorf("Received %v/%v, expected nothing submitted",
			second.Successes, second.Failures)
	}
}

func TestFindPackages(t *testing.T) {
	dir := t.TempDir()
	os.Mkdir(filepath.Join(dir, "sub"), 0755)
	for _, name := range []string{"c.zip", "a.zip", "notes.txt", "sub/b.ZIP"} {
		err := ioutil.WriteFile(filepath.Join(dir, name), []byte("x"), 0644)
		if err != nil {
			t.Fatal(err)
		}
	}
	result, err := FindPackages(dir)
	if err != nil {
		t.Fatal(err)
	}
	expected := []string{
		filepath.Join(dir, "a.zip"),
		filepath.Join(dir, "c.zip"),
		filepath.Join(dir, "sub", "b.ZIP"),
	}
	if len(result) != len(expected) {
		t.Fatalf("Received %v, expected %v", result, expected)
	}
	for i := range expected {
		if result[i] != expected[i] {
			t.Errorf("Received %v, expected %v", result[i], expected[i])
		}
	}
}

// A scriptedTarget answers submissions from a queue of errors per
// package. Packages are identified by their content, and an empty queue
// means success.
type scriptedTarget struct {
	script map[string][]error
	calls  []string
}

func (st *scriptedTarget) SubmitPackage(r io.Reader) (string, error) {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return "", err
	}
	key := string(data)
	st.calls = append(st.calls, key)
	queue := st.script[key]
	if len(queue) > 0 {
		err := queue[0]
		st.script[key] = queue[1:]
		if err != nil {
			return "", err
		}
	}
	return "http://repo.example.edu/items/" + key, nil
}

func countCalls(calls []string, key string) int {
	var n int
	for _, c := range calls {
		if c == key {
			n++
		}
	}
	return n
}

// writePackage builds a small real package archive.
func writePackage(t *testing.T, label string) string {
	t.Helper()
	p, err := pack.New(label, map[string]interface{}{"title": label})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	_, err = p.AddAttachment(strings.NewReader("data for "+label), "data.txt", nil)
	if err != nil {
		t.Fatal(err)
	}
	zipname, err := p.Write(filepath.Join(t.TempDir(), label))
	if err != nil {
		t.Fatal(err)
	}
	return zipname
}

// writeFile makes a file whose content is its own name, for the
// scripted target to key on.
func writeFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name+".zip")
	err := ioutil.WriteFile(path, []byte(name), 0644)
	if err != nil {
		t.Fatal(err)
	}
	return path
}
