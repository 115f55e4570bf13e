// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package testdb opens throwaway migrated databases for store tests.
package testdb

import (
	"path/filepath"
	"testing"

	"github.com/autobrr/curator/internal/database"
)

// Open returns a fully migrated database backed by a file in the test's
// temp directory. The database is closed when the test finishes.
func Open(t *testing.T) *database.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "curator-test.db")
	db, err := database.New(dbPath)
	if err != nil {
		t.Fatalf("open test database %s: %v", dbPath, err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("close test database: %v", err)
		}
	})

	return db
}
