package ingest

import (
	"database/sql"
	"log"
	"time"

	// no _ in import mysql since we need mysql.NullTime
	"github.com/BurntSushi/migration"
	"github.com/go-sql-driver/mysql"
)

// A mysqlJournal keeps the ingest journal in MySQL, for shops where
// several operators share one batch state.
type mysqlJournal struct {
	db *sql.DB
}

var _ Journal = &mysqlJournal{}

// List of migrations to perform. Add new ones to the end.
// DO NOT change the order of items already in this list.
var mysqlMigrations = []migration.Migrator{
	mysqlschema1,
}

// Adapt the schema versioning for MySQL.
var mysqlVersioning = dbVersion{
	GetSQL:    `SELECT max(version) FROM migration_version`,
	SetSQL:    `INSERT INTO migration_version (version, applied) VALUES (?, now())`,
	CreateSQL: `CREATE TABLE migration_version (version INTEGER, applied datetime)`,
}

// NewMysqlJournal connects to a MySQL database, migrating its schema
// forward if needed. dial is a go-sql-driver connection string.
func NewMysqlJournal(dial string) (*mysqlJournal, error) {
	db, err := migration.OpenWith(
		"mysql",
		dial,
		mysqlMigrations,
		mysqlVersioning.Get,
		mysqlVersioning.Set)
	if err != nil {
		log.Printf("Open Mysql: %s", err.Error())
		return nil, err
	}
	return &mysqlJournal{db: db}, nil
}

func (mj *mysqlJournal) Lookup(path string) *Entry {
	const query = `
		SELECT status, location, note, updated
		FROM ingests
		WHERE path = ?
		LIMIT 1`

	var status string
	var updated mysql.NullTime
	e := Entry{Path: path}
	err := mj.db.QueryRow(query, path).Scan(&status, &e.Location, &e.Note, &updated)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Printf("Ingest Journal: %s", err.Error())
		}
		return nil
	}
	if updated.Valid {
		e.Updated = updated.Time
	}
	e.Status = atoStatus(status)
	return &e
}

func (mj *mysqlJournal) Record(e Entry) error {
	const stmt = `
		INSERT INTO ingests (path, status, location, note, updated)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE status=?, location=?, note=?, updated=?`

	if e.Updated.IsZero() {
		e.Updated = time.Now()
	}
	status := e.Status.String()
	_, err := mj.db.Exec(stmt,
		e.Path, status, e.Location, e.Note, e.Updated,
		status, e.Location, e.Note, e.Updated)
	return err
}

// Close releases the underlying database.
func (mj *mysqlJournal) Close() error {
	return mj.db.Close()
}

// database migrations. each one is a go function. Add them to the list
// mysqlMigrations at the top of this file for them to be run.

func mysqlschema1(tx migration.LimitedTx) error {
	var s = []string{
		`CREATE TABLE IF NOT EXISTS ingests (
		id int PRIMARY KEY AUTO_INCREMENT,
		path varchar(1000),
		status varchar(32),
		location varchar(1000),
		note text,
		updated datetime,
		UNIQUE INDEX ingests_path (path(255)))`,
	}
	return execlist(tx, s)
}
