// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package proxy

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/curator/internal/domain"
)

func TestNewHTTPClientWithProxy(t *testing.T) {
	t.Parallel()

	client, err := NewHTTPClient(&domain.Config{
		ProxyEnabled: true,
		ProxyURL:     "http://127.0.0.1:7890",
	})
	require.NoError(t, err)
	require.NotNil(t, client)

	rt, ok := client.Transport.(*retryTransport)
	require.True(t, ok)

	base, ok := rt.base.(*http.Transport)
	require.True(t, ok)
	proxyURL, err := base.Proxy(&http.Request{URL: &url.URL{Scheme: "https", Host: "example.test"}})
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:7890", proxyURL.String())
}

func TestNewHTTPClientInvalidProxy(t *testing.T) {
	t.Parallel()

	_, err := NewHTTPClient(&domain.Config{ProxyEnabled: true, ProxyURL: "http://bad url"})
	assert.Error(t, err)
}

func TestRetryTransportRecovers(t *testing.T) {
	t.Parallel()

	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		if hits == 1 {
			// Drop the connection without a response.
			hj, _ := w.(http.Hijacker)
			conn, _, _ := hj.Hijack()
			conn.Close()
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := &http.Client{Transport: newRetryTransport(http.DefaultTransport)}
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, hits)
}
