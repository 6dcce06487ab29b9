// Package store persists file descriptions in SQLite.
//
// Descriptions are keyed by directory and file name so a whole directory
// can be fetched with one query when the controller navigates into it.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/justyntemme/pikeru/internal/debug"
	"github.com/justyntemme/pikeru/internal/epoch"
	"github.com/justyntemme/pikeru/internal/logging"
	"github.com/justyntemme/pikeru/internal/metrics"
)

// ErrNotOpen is returned by operations on a DB that has not been opened.
var ErrNotOpen = errors.New("description store is not open")

type EventType int

const (
	Lookup EventType = iota
	Put
)

// Description is the text attached to one file.
type Description struct {
	Path  string
	Text  string
	MTime int64
}

type Request struct {
	Op    EventType
	Dirs  []string    // Lookup
	Desc  Description // Put
	Epoch epoch.Token
}

type Response struct {
	Op           EventType
	Descriptions []Description
	Epoch        epoch.Token
	Err          error
}

type DB struct {
	conn         *sql.DB
	RequestChan  chan Request
	ResponseChan chan Response
}

func NewDB() *DB {
	return &DB{
		RequestChan:  make(chan Request, 10),
		ResponseChan: make(chan Response, 10),
	}
}

// DefaultPath returns the database location under the user config dir.
func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "pikeru", "descriptions.db"), nil
}

// Open initializes the database connection and schema
func (d *DB) Open(dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", dbPath, err)
	}

	// WAL lets the CLI write while a running session reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return err
	}
	if _, err := db.Exec("PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return err
	}

	query := `
	CREATE TABLE IF NOT EXISTS descriptions (
		directory   TEXT NOT NULL,
		filename    TEXT NOT NULL,
		description TEXT NOT NULL,
		mtime       INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (directory, filename)
	);
	`
	if _, err := db.Exec(query); err != nil {
		db.Close()
		return fmt.Errorf("create schema: %w", err)
	}

	d.conn = db
	return nil
}

// Start serves RequestChan until it is closed.
func (d *DB) Start() {
	for req := range d.RequestChan {
		switch req.Op {
		case Lookup:
			descs, err := d.Lookup(req.Dirs...)
			if err != nil {
				logging.Warn("description lookup failed", zap.Strings("dirs", req.Dirs), zap.Error(err))
			}
			d.ResponseChan <- Response{Op: Lookup, Descriptions: descs, Epoch: req.Epoch, Err: err}
		case Put:
			err := d.Put(req.Desc)
			if err != nil {
				logging.Warn("description save failed", zap.String("path", req.Desc.Path), zap.Error(err))
			}
			d.ResponseChan <- Response{Op: Put, Descriptions: []Description{req.Desc}, Epoch: req.Epoch, Err: err}
		}
	}
}

// Lookup returns every description stored for files directly inside dirs.
func (d *DB) Lookup(dirs ...string) ([]Description, error) {
	if d.conn == nil {
		return nil, ErrNotOpen
	}
	if len(dirs) == 0 {
		return nil, nil
	}

	args := make([]any, len(dirs))
	for i, dir := range dirs {
		args[i] = filepath.Clean(dir)
	}
	query := "SELECT directory, filename, description, mtime FROM descriptions WHERE directory IN (?" +
		strings.Repeat(", ?", len(dirs)-1) + ")"

	rows, err := d.conn.Query(query, args...)
	if err != nil {
		metrics.DescriptionLookupsTotal.WithLabelValues("lookup", "error").Inc()
		return nil, err
	}
	defer rows.Close()

	var descs []Description
	for rows.Next() {
		var dir, name string
		var desc Description
		if err := rows.Scan(&dir, &name, &desc.Text, &desc.MTime); err != nil {
			continue
		}
		desc.Path = filepath.Join(dir, name)
		descs = append(descs, desc)
	}
	if err := rows.Err(); err != nil {
		metrics.DescriptionLookupsTotal.WithLabelValues("lookup", "error").Inc()
		return descs, err
	}
	metrics.DescriptionLookupsTotal.WithLabelValues("lookup", "success").Inc()
	debug.Log(debug.STORE, "lookup %d dirs: %d descriptions", len(dirs), len(descs))
	return descs, nil
}

// Put inserts or replaces one description.
func (d *DB) Put(desc Description) error {
	if d.conn == nil {
		return ErrNotOpen
	}
	return d.put(d.conn, desc)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func (d *DB) put(x execer, desc Description) error {
	p := filepath.Clean(desc.Path)
	_, err := x.Exec(
		"INSERT OR REPLACE INTO descriptions (directory, filename, description, mtime) VALUES (?, ?, ?, ?)",
		filepath.Dir(p), filepath.Base(p), desc.Text, desc.MTime)
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DescriptionLookupsTotal.WithLabelValues("put", status).Inc()
	return err
}

func (d *DB) Close() {
	if d.conn != nil {
		d.conn.Close()
		d.conn = nil
	}
}
