package ingest

import (
	"database/sql"
	"log"
	"time"

	_ "github.com/cznic/ql/driver"
)

// A qlJournal keeps the ingest journal in an embedded QL database, so a
// batch run needs nothing more than a file it can write.
type qlJournal struct {
	db *sql.DB
}

var _ Journal = &qlJournal{}

const qlJournalInit = `
	CREATE TABLE IF NOT EXISTS ingests (
		path string,
		status string,
		location string,
		note string,
		updated time
	);
	CREATE INDEX IF NOT EXISTS ingestpath ON ingests (path);
`

// NewQlJournal makes a journal saved to the given file. The file name
// "memory" means to keep everything in memory, which is only good for
// tests.
func NewQlJournal(filename string) (*qlJournal, error) {
	var db *sql.DB
	var err error
	if filename == "memory" {
		db, err = sql.Open("ql-mem", "journal.db")
	} else {
		db, err = sql.Open("ql", filename)
	}
	if err == nil {
		_, err = performExec(db, qlJournalInit)
	}
	if err != nil {
		return nil, err
	}
	return &qlJournal{db: db}, nil
}

func (qj *qlJournal) Lookup(path string) *Entry {
	const query = `
		SELECT status, location, note, updated
		FROM ingests
		WHERE path == ?1
		LIMIT 1`

	var status string
	e := Entry{Path: path}
	err := qj.db.QueryRow(query, path).Scan(&status, &e.Location, &e.Note, &e.Updated)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Printf("Ingest Journal QL: %s", err.Error())
		}
		return nil
	}
	e.Status = atoStatus(status)
	return &e
}

func (qj *qlJournal) Record(e Entry) error {
	const update = `
		UPDATE ingests
		SET status = ?2, location = ?3, note = ?4, updated = ?5
		WHERE path == ?1`
	const insert = `INSERT INTO ingests VALUES (?1, ?2, ?3, ?4, ?5)`

	if e.Updated.IsZero() {
		e.Updated = time.Now()
	}
	result, err := performExec(qj.db, update, e.Path, e.Status.String(), e.Location, e.Note, e.Updated)
	if err != nil {
		return err
	}
	nrows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if nrows == 0 {
		// record didn't exist. create it
		_, err = performExec(qj.db, insert, e.Path, e.Status.String(), e.Location, e.Note, e.Updated)
	}
	return err
}

// Close releases the underlying database.
func (qj *qlJournal) Close() error {
	return qj.db.Close()
}

func performExec(db *sql.DB, query string, args ...interface{}) (sql.Result, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	var result sql.Result
	result, err = tx.Exec(query, args...)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	err = tx.Commit()
	return result, err
}
