// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package proxy builds the outbound HTTP client used by the scraper and
// artwork fetches, honoring the configured forward proxy and retrying
// transient network errors.
package proxy

import (
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/curator/internal/domain"
)

// NewHTTPClient returns a client routed through the configured proxy when
// one is enabled. Scrape targets are frequently only reachable through it.
func NewHTTPClient(cfg *domain.Config) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if cfg != nil && cfg.ProxyEnabled && cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, errors.Wrapf(err, "parse proxy url %q", cfg.ProxyURL)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
		log.Debug().Str("proxy", proxyURL.Redacted()).Msg("[PROXY] outbound proxy enabled")
	}

	return &http.Client{
		Transport: newRetryTransport(transport),
		Timeout:   60 * time.Second,
	}, nil
}
