package ingest

import (
	"log"
	"time"

	"github.com/BurntSushi/migration"
)

// A Journal persists the outcome of each package submission, so an
// interrupted batch can be rerun without resubmitting what already went
// in. Implementations are expected to keep one entry per path.
type Journal interface {
	// Lookup returns the recorded entry for path, or nil if the path
	// has never been journaled.
	Lookup(path string) *Entry

	// Record saves the entry for its path, replacing any earlier one.
	Record(e Entry) error
}

// An Entry is one package's recorded outcome.
type Entry struct {
	Path     string
	Status   Status
	Location string // the item URL, once ingested
	Note     string // the error text, when failed
	Updated  time.Time
}

// A Status tracks how far a package got.
type Status int

const (
	StatusUnknown Status = iota
	StatusPending        // submission has started
	StatusIngested       // the server accepted it
	StatusFailed         // the server refused it, or it never arrived
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusIngested:
		return "ingested"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

func atoStatus(s string) Status {
	switch s {
	case "pending":
		return StatusPending
	case "ingested":
		return StatusIngested
	case "failed":
		return StatusFailed
	}
	return StatusUnknown
}

// The migration package needs to be taught how each database keeps its
// schema version. This code is slightly modified from
// github.com/BurntSushi/migration.

type dbVersion struct {
	// SQL to get the version of this db, returns one row and one column
	GetSQL string
	// SQL to insert a new version of this db. takes one parameter, the
	// new version
	SetSQL string
	// the SQL to create the version table for this db
	CreateSQL string
}

func (d dbVersion) Get(tx migration.LimitedTx) (int, error) {
	v, err := d.get(tx)
	if err != nil {
		// we assume error means there is no migration table
		log.Println(err.Error())
		return 0, nil
	}
	return v, nil
}

func (d dbVersion) Set(tx migration.LimitedTx, version int) error {
	if err := d.set(tx, version); err != nil {
		if err := d.createTable(tx); err != nil {
			return err
		}
		return d.set(tx, version)
	}
	return nil
}

func (d dbVersion) get(tx migration.LimitedTx) (int, error) {
	var version int
	r := tx.QueryRow(d.GetSQL)
	if err := r.Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}

func (d dbVersion) set(tx migration.LimitedTx, version int) error {
	_, err := tx.Exec(d.SetSQL, version)
	return err
}

func (d dbVersion) createTable(tx migration.LimitedTx) error {
	_, err := tx.Exec(d.CreateSQL)
	if err == nil {
		err = d.set(tx, 0)
	}
	return err
}

// execlist exec's each statement in the list, stopping at the first
// error. Works around the mysql driver not handling compound exec
// statements.
func execlist(tx migration.LimitedTx, stms []string) error {
	var err error
	for _, s := range stms {
		_, err = tx.Exec(s)
		if err != nil {
			break
		}
	}
	return err
}
