// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package downloader

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapPath(t *testing.T) {
	t.Parallel()

	c := &Client{mappings: map[string]string{"/downloads": "/mnt/media/downloads"}}

	assert.Equal(t, "/mnt/media/downloads/show/e1.mkv", c.MapPath("/downloads/show/e1.mkv", false))
	assert.Equal(t, "/downloads/show/e1.mkv", c.MapPath("/mnt/media/downloads/show/e1.mkv", true))

	// Unmapped prefixes pass through.
	assert.Equal(t, "/other/file.mkv", c.MapPath("/other/file.mkv", false))
}
