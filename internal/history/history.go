// ***************************************************************************
//
//  Copyright 2017 David (Dizzy) Smith, dizzyd@dizzyd.com
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//       http://www.apache.org/licenses/LICENSE-2.0
//
//   Unless required by applicable law or agreed to in writing, software
//   distributed under the License is distributed on an "AS IS" BASIS,
//   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//   See the License for the specific language governing permissions and
//   limitations under the License.
// ***************************************************************************

// Package history keeps a durable log of completed install attempts in a
// small SQLite database, so a caller can ask "is this instance already
// installed, and when" without re-walking the versions directory.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/xeonx/timeago"
)

// Entry is one recorded install attempt.
type Entry struct {
	InstallID          string
	Loader             string
	VersionID          string
	InstalledVersionID string
	Outcome            string // "ok" or "failed"
	When               time.Time
}

// Ago renders the entry's timestamp as a human-readable relative time
// ("3 hours ago") for log and console output.
func (e Entry) Ago() string {
	return timeago.English.Format(e.When)
}

// Log is an open history database.
type Log struct {
	db     *sql.DB
	dbPath string
}

// Open opens (creating if needed) the history database at dbPath.
func Open(dbPath string) (*Log, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS installs(
		install_id TEXT,
		loader TEXT,
		version_id TEXT,
		installed_version_id TEXT,
		outcome TEXT,
		at INT)`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Log{db: db, dbPath: dbPath}, nil
}

// Record appends one install attempt.
func (l *Log) Record(e Entry) error {
	_, err := l.db.Exec(
		"INSERT INTO installs(install_id, loader, version_id, installed_version_id, outcome, at) VALUES (?, ?, ?, ?, ?, ?)",
		e.InstallID, e.Loader, e.VersionID, e.InstalledVersionID, e.Outcome, e.When.Unix())
	return err
}

// Last returns the most recent attempt for installedVersionID, if any.
func (l *Log) Last(installedVersionID string) (Entry, bool, error) {
	var e Entry
	var at int64
	err := l.db.QueryRow(
		"SELECT install_id, loader, version_id, installed_version_id, outcome, at FROM installs WHERE installed_version_id = ? ORDER BY at DESC, rowid DESC LIMIT 1",
		installedVersionID).Scan(&e.InstallID, &e.Loader, &e.VersionID, &e.InstalledVersionID, &e.Outcome, &at)
	switch {
	case err == sql.ErrNoRows:
		return Entry{}, false, nil
	case err != nil:
		return Entry{}, false, fmt.Errorf("history: query %s: %w", installedVersionID, err)
	}
	e.When = time.Unix(at, 0).UTC()
	return e, true, nil
}

// Installed reports whether the most recent attempt for installedVersionID
// succeeded.
func (l *Log) Installed(installedVersionID string) (bool, error) {
	e, ok, err := l.Last(installedVersionID)
	if err != nil || !ok {
		return false, err
	}
	return e.Outcome == "ok", nil
}

// Close releases the underlying database handle.
func (l *Log) Close() error {
	return l.db.Close()
}
