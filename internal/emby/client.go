// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package emby triggers library refreshes on an Emby/Jellyfin server after
// transfers land. The scan is fire-and-forget; a failure never blocks the
// pipeline.
package emby

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: baseURL, apiKey: apiKey, client: httpClient}
}

// Enabled reports whether a server is configured at all.
func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != ""
}

// Scan asks the server to refresh its library. Retries transient failures a
// few times before giving up.
func (c *Client) Scan(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}

	url := fmt.Sprintf("%s/Library/Refresh?api_key=%s", c.baseURL, c.apiKey)

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}

			resp, err := c.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode >= 400 {
				return errors.Errorf("library refresh: status %d", resp.StatusCode)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return errors.Wrap(err, "emby scan")
	}

	log.Info().Str("server", c.baseURL).Msg("[EMBY] library scan triggered")
	return nil
}
