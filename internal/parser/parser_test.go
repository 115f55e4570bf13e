// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
	}{
		{"/media/sdmua-001-c.mkv", "SDMUA-001"},
		{"/media/kmhrs-023-C.mkv", "KMHRS-023"},
		{"/media/sekao-023-leak.mkv", "SEKAO-023"},
		{"/media/FC2-PPV-1234567.mkv", "FC2-1234567"},
		{"/media/FC2PPV-1234567.mkv", "FC2-1234567"},
		{"/media/fc2-ppv-1234567-xxx.com.mp4", "FC2-1234567"},
		{"/media/FC2-PPV-1111223/1111223.mp4", "FC2-1111223"},
		{"/media/FC2-1123456-1.mp4", "FC2-1123456"},
		{"/media/111234_123 movie/111234_123.mp4", "111234_123"},
		{"/media/some(011015_780).mp4", "011015_780"},
		{"/media/S2M-001-FHD/S2MBD-001.mp4", "S2MBD-001"},
		{"/media/SIRO-1234-C.mkv", "SIRO-1234"},
		{"/media/MXGS-1234-C.mkv", "MXGS-1234"},
		{"/media/pred-1234-C.mkv", "PRED-1234"},
		{"/media/heyzo_hd_2636_full.mp4", "HEYZO-2636"},
		{"/media/HeyDouga-4017-233.mp4", "heydouga-4017-233"},
		{"/media/xxx-av-20761.mp4", "xxx-av-20761"},
		{"/media/x-art.19.11.03.mp4", "X-ART.19.11.03"},
		{"/media/T28-558.mp4", "T28-558"},
		{"/media/n1012-CD1.wmv", "n1012"},
		{"/media/Sexy.Movie.20.01.02.Name.XXX.1080p.mp4", "Movie.20.01.02"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Number(tt.path))
		})
	}
}

func TestParseTags(t *testing.T) {
	t.Parallel()

	t.Run("chinese subtitle suffix", func(t *testing.T) {
		info := Parse("/media/kmhrs-023-C.mkv")
		assert.Equal(t, "KMHRS-023", info.Number)
		assert.True(t, info.Chs)
		assert.False(t, info.Leak)
		assert.False(t, info.Multipart)
	})

	t.Run("leak marker", func(t *testing.T) {
		info := Parse("/media/sekao-023-leak.mkv")
		assert.True(t, info.Leak)
		assert.False(t, info.Chs)
	})

	t.Run("hack marker", func(t *testing.T) {
		info := Parse("/media/abp-123-hack.mkv")
		assert.True(t, info.Hack)
	})

	t.Run("uncensored by prefix", func(t *testing.T) {
		info := Parse("/media/S2M-001.mp4")
		assert.True(t, info.Uncensored)
	})

	t.Run("uncensored by date number", func(t *testing.T) {
		info := Parse("/media/111234_123.mp4")
		assert.True(t, info.Uncensored)
	})

	t.Run("multipart cd suffix", func(t *testing.T) {
		info := Parse("/media/abc-123-cd2.mkv")
		assert.True(t, info.Multipart)
		assert.Equal(t, "-CD2", info.Part)
	})

	t.Run("multipart bare digit", func(t *testing.T) {
		info := Parse("/media/FC2-1123456-1.mp4")
		assert.True(t, info.Multipart)
		assert.Equal(t, "-CD1", info.Part)
		assert.True(t, info.IsPartOneOrSingle())
	})

	t.Run("special footage", func(t *testing.T) {
		info := Parse("/media/abc-123-sp.mkv")
		assert.True(t, info.Special)
		assert.Equal(t, "abc-123-sp", info.FixedName())
	})
}

func TestFixedNameRoundTrip(t *testing.T) {
	t.Parallel()

	// Identifier components survive a rebuild-and-reparse cycle.
	paths := []string{
		"/media/kmhrs-023-C.mkv",
		"/media/sekao-023-leak.mkv",
		"/media/abc-123-cd2.mkv",
		"/media/SIRO-1234-C.mkv",
	}

	for _, p := range paths {
		first := Parse(p)
		second := Parse("/media/" + first.FixedName() + ".mkv")

		assert.Equal(t, first.Number, second.Number, p)
		assert.Equal(t, first.Chs, second.Chs, p)
		assert.Equal(t, first.Leak, second.Leak, p)
		assert.Equal(t, first.Multipart, second.Multipart, p)
		assert.Equal(t, first.Part, second.Part, p)
	}
}

func TestUpdateCD(t *testing.T) {
	t.Parallel()

	info := Parse("/media/abc-123.mkv")
	assert.False(t, info.Multipart)

	info.UpdateCD(3)
	assert.True(t, info.Multipart)
	assert.Equal(t, "-CD3", info.Part)
	assert.False(t, info.IsPartOneOrSingle())
}
