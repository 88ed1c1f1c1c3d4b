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

// Package txn implements the write-ahead transaction over a version
// directory: back up anything already there, then either commit (drop the
// backup) or roll back (restore it) so a failed install never leaves a
// half-installed versions/<id>/ on disk.
package txn

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/mcdex/installcore/internal/hashfs"
)

type state int

const (
	idle state = iota
	begun
	committed
	rolledBack
)

// Transaction owns one versions/<id>/ directory for the duration of an
// install.
type Transaction struct {
	target    string // data_dir/versions/<installed_version_id>
	backupDir string // data_dir/backups/<installed_version_id>
	st        state
	hadPrior  bool
}

// New constructs a transaction for the given version directory and its
// backup root; it does nothing on disk until Begin is called.
func New(versionsDir, backupsRoot, installedVersionID string) *Transaction {
	return &Transaction{
		target:    filepath.Join(versionsDir, installedVersionID),
		backupDir: filepath.Join(backupsRoot, installedVersionID),
	}
}

// Target returns the version directory this transaction owns.
func (t *Transaction) Target() string { return t.target }

// Begin moves any pre-existing versions/<id>/ into backups/<id>/versions/<id>/.
func (t *Transaction) Begin() error {
	if t.st != idle {
		return fmt.Errorf("txn: begin called in state %d", t.st)
	}

	if _, err := os.Stat(t.target); err == nil {
		t.hadPrior = true
		backupTarget := filepath.Join(t.backupDir, "versions", filepath.Base(t.target))
		if err := hashfs.MoveDir(t.target, backupTarget); err != nil {
			return fmt.Errorf("txn: backup %s: %w", t.target, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("txn: stat %s: %w", t.target, err)
	}

	t.st = begun
	return nil
}

// Commit removes the backup directory (and its now-empty parent). Failures
// here are logged but do not invalidate the already-installed files.
func (t *Transaction) Commit() error {
	if t.st != begun {
		return fmt.Errorf("txn: commit called in state %d", t.st)
	}
	t.st = committed

	if !t.hadPrior {
		return nil
	}

	if err := os.RemoveAll(t.backupDir); err != nil {
		log.Printf("txn: failed to remove backup %s: %v", t.backupDir, err)
		return nil
	}
	removeIfEmpty(filepath.Dir(t.backupDir))
	return nil
}

// Rollback deletes any partially-installed target directory and restores
// the backup if one exists. It is idempotent and safe to call more than
// once, including after a partial Commit.
func (t *Transaction) Rollback(reason string) error {
	if t.st == rolledBack {
		return nil
	}
	t.st = rolledBack

	log.Printf("txn: rolling back %s: %s", t.target, reason)

	if err := os.RemoveAll(t.target); err != nil {
		return fmt.Errorf("txn: remove partial install %s: %w", t.target, err)
	}

	backupTarget := filepath.Join(t.backupDir, "versions", filepath.Base(t.target))
	if _, err := os.Stat(backupTarget); err == nil {
		if err := hashfs.MoveDir(backupTarget, t.target); err != nil {
			return fmt.Errorf("txn: restore backup %s: %w", backupTarget, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("txn: stat backup %s: %w", backupTarget, err)
	}

	if err := os.RemoveAll(t.backupDir); err != nil && !os.IsNotExist(err) {
		log.Printf("txn: failed to remove backup root %s: %v", t.backupDir, err)
	}
	removeIfEmpty(filepath.Dir(t.backupDir))
	return nil
}

func removeIfEmpty(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) > 0 {
		return
	}
	os.Remove(dir)
}
