/*
Package ingest drives batch submission of package archives into a
repository collection. A Batch works through its paths one at a time and
keeps going past bad packages, recording a Success or a Failure for
each, so one corrupt archive in a directory of thousands does not stop
an overnight run. Failures can then be retried selectively, picking out
just one class of error, such as the connection troubles worth trying
again.
*/
package ingest

import (
	"io"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"

	raven "github.com/getsentry/raven-go"
	"github.com/pkg/errors"

	"github.com/dlib/accession/rest"
	"github.com/dlib/accession/util"
)

// A Submitter accepts one package archive and returns the URL of the
// item made from it. *rest.Collection is the usual implementation.
type Submitter interface {
	SubmitPackage(r io.Reader) (string, error)
}

// A Batch submits package archives to one collection, in order. Set up
// Target and Paths, call Run, then read the results.
type Batch struct {
	Target Submitter
	Paths  []string

	// BytesPerSecond caps the upload rate when positive.
	BytesPerSecond int64

	// Journal, when set, records every outcome, and paths the journal
	// already shows as ingested are skipped instead of resubmitted.
	Journal Journal

	Successes []Success
	Failures  []Failure
	Skipped   []string

	throttle *util.Throttle
}

// A Success records where one package ended up.
type Success struct {
	Path     string
	Location string
}

// A Failure records why one package did not go in.
type Failure struct {
	Path string
	Err  error
}

// Run submits every path, in order. It does not stop on a bad package;
// each path ends up in either Successes or Failures, or in Skipped if
// the journal shows it was ingested by an earlier run.
func (b *Batch) Run() {
	defer b.startThrottle()()
	for _, path := range b.Paths {
		if b.alreadyIngested(path) {
			b.Skipped = append(b.Skipped, path)
			continue
		}
		b.submit(path)
	}
}

// RetryFailed submits recorded failures again. Only failures match
// reports true for are retried; a nil match retries them all. Retried
// paths leave Failures and end up in Successes or back in Failures with
// their fresh error.
func (b *Batch) RetryFailed(match func(error) bool) {
	defer b.startThrottle()()
	var keep []Failure
	var retry []string
	for _, f := range b.Failures {
		if match == nil || match(f.Err) {
			retry = append(retry, f.Path)
		} else {
			keep = append(keep, f)
		}
	}
	b.Failures = keep
	for _, path := range retry {
		b.submit(path)
	}
}

// startThrottle sets up the rate cap for one Run or RetryFailed pass and
// returns the teardown to defer.
func (b *Batch) startThrottle() func() {
	if b.BytesPerSecond <= 0 {
		return func() {}
	}
	b.throttle = util.NewThrottle(b.BytesPerSecond)
	return func() {
		b.throttle.Stop()
		b.throttle = nil
	}
}

func (b *Batch) submit(path string) {
	b.journal(Entry{Path: path, Status: StatusPending})
	location, err := b.submitFile(path)
	if err != nil {
		log.Println("ingest:", path, err)
		b.Failures = append(b.Failures, Failure{Path: path, Err: err})
		b.journal(Entry{Path: path, Status: StatusFailed, Note: err.Error()})
		return
	}
	log.Println("ingest:", path, "->", location)
	b.Successes = append(b.Successes, Success{Path: path, Location: location})
	b.journal(Entry{Path: path, Status: StatusIngested, Location: location})
}

func (b *Batch) submitFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "open package")
	}
	defer f.Close()
	var r io.Reader = f
	if b.throttle != nil {
		r = b.throttle.Reader(f)
	}
	return b.Target.SubmitPackage(r)
}

func (b *Batch) alreadyIngested(path string) bool {
	if b.Journal == nil {
		return false
	}
	entry := b.Journal.Lookup(path)
	return entry != nil && entry.Status == StatusIngested
}

func (b *Batch) journal(e Entry) {
	if b.Journal == nil {
		return
	}
	err := b.Journal.Record(e)
	if err != nil {
		// losing the journal does not stop the batch
		log.Println("ingest journal:", err)
		raven.CaptureError(err, nil)
	}
}

// IsConnection reports whether err means the server could not be
// reached at all. Those failures are the ones worth retrying once the
// network settles; a package the server looked at and refused will just
// be refused again.
func IsConnection(err error) bool {
	_, ok := errors.Cause(err).(net.Error)
	return ok
}

// IsStatus reports whether err is the server answering with the given
// HTTP status.
func IsStatus(err error, code int) bool {
	se, ok := errors.Cause(err).(*rest.StatusError)
	return ok && se.Code == code
}

// FindPackages returns the package archives under dir, walking any
// subdirectories, in lexical order.
func FindPackages(dir string) ([]string, error) {
	var result []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() && strings.EqualFold(filepath.Ext(path), ".zip") {
			result = append(result, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
