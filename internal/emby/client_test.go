// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package emby

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScan(t *testing.T) {
	var gotPath, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("api_key")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", srv.Client())
	require.NoError(t, c.Scan(context.Background()))
	assert.Equal(t, "/Library/Refresh", gotPath)
	assert.Equal(t, "secret", gotKey)
}

func TestScanRetriesTransientFailure(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", srv.Client())
	require.NoError(t, c.Scan(context.Background()))
	assert.Equal(t, 3, attempts)
}

func TestScanDisabled(t *testing.T) {
	t.Parallel()

	var c *Client
	assert.NoError(t, c.Scan(context.Background()))
	assert.NoError(t, NewClient("", "", nil).Scan(context.Background()))
}
