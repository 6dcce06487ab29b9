package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ImportCSV loads a caption index with a header row followed by
// path,description records. Relative paths are resolved against base.
// Records whose file still exists get its modification time.
func (d *DB) ImportCSV(r io.Reader, base string) (int, error) {
	if d.conn == nil {
		return 0, ErrNotOpen
	}

	rd := csv.NewReader(r)
	rd.FieldsPerRecord = -1
	rd.TrimLeadingSpace = true
	if _, err := rd.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil
		}
		return 0, fmt.Errorf("read header: %w", err)
	}

	tx, err := d.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	n := 0
	for {
		rec, err := rd.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return n, fmt.Errorf("line %d: %w", n+2, err)
		}
		if len(rec) < 2 || strings.TrimSpace(rec[0]) == "" {
			continue
		}

		p := rec[0]
		if !filepath.IsAbs(p) {
			p = filepath.Join(base, p)
		}
		desc := Description{Path: p, Text: strings.TrimSpace(rec[1])}
		if info, err := os.Stat(p); err == nil {
			desc.MTime = info.ModTime().Unix()
		}
		if err := d.put(tx, desc); err != nil {
			return n, fmt.Errorf("store %s: %w", p, err)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}
