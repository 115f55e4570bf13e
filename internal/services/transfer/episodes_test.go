// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchSeries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		wantSeason int
		wantEp     int
	}{
		{"The.Office.S03E05.1080p", 3, 5},
		{"Friends.S01E22.1080p.BluRay", 1, 22},
		{"Show Season 2 Episode 7", 2, 7},
		{"节目第3季第12集", 3, 12},
		{"Yes.Prime.Minister.COMPLETE.PACK.DVD.x264-P2P", -1, -1},
	}

	for _, tt := range tests {
		season, episode := matchSeries(tt.name)
		assert.Equal(t, tt.wantSeason, season, tt.name)
		assert.Equal(t, tt.wantEp, episode, tt.name)
	}
}

func TestMatchSeason(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want int
	}{
		{"Fights.Break.Sphere.2018.S02.WEB-DL.1080p.H264.AAC-TJUPT", 2},
		{"第二季.Friends.S02.1080p", 2},
		{"Friends Season 2 1080p", 2},
		{"Breaking.Bad.Season.5.1080p.BluRay", 5},
		{"第3季", 3},
		{"第四季", 4},
		// A multi-season pack must stay unresolved.
		{"疑犯追踪S01-S05.Person.of.Interest.2011-2016.1080p.Blu-ray.x265.AC3￡cXcY@FRDS", -1},
		{"Yes.Prime.Minister.COMPLETE.PACK.DVD.x264-P2P", -1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, matchSeason(tt.name), tt.name)
	}
}

func TestMatchEpPart(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want string
	}{
		{"生徒会役員共＊ 09 (BDrip 1920x1080 HEVC-YUV420P10 FLAC)", " 09 "},
		{"[Rip] SLAM DUNK 第013話「湘北VS陵南 燃える主将!」(BDrip 1440x1080 H264 FLAC)", "第013話"},
		{"[Rip] SLAM DUNK [013]「湘北VS陵南 燃える主将!」(BDrip 1440x1080 H264 FLAC)", "[013]"},
		{"[Rip] SLAM DUNK [13.5]「湘北VS陵南 燃える主将!」(BDrip 1440x1080 H264 FLAC)", "[13.5]"},
		{"[Rip] SLAM DUNK [13v2]「湘北VS陵南 燃える主将!」(BDrip 1440x1080 H264 FLAC)", "[13v2]"},
		{"[Rip] SLAM DUNK [13(OA)]「湘北VS陵南 燃える主将!」(BDrip 1440x1080 H264 FLAC)", "[13(OA)]"},
		{"[Neon Genesis Evangelion][23(Video)][BDRIP][1440x1080][H264_FLACx2]", "[23(Video)]"},
		{"[Studio] Fullmetal Alchemist꞉ Brotherhood [01][Ma10p_1080p][x265_flac]", "[01]"},
		{"[raws][Code Geass Lelouch of the Rebellion R2][15][BDRIP][Hi10P FLAC][1920X1080]", "[15]"},
		{"Steins;Gate 2011 EP01 [BluRay 1920x1080p 23.976fps x264-Hi10P FLAC]", " EP01 "},
		{"Fate Zero EP01 [BluRay 1920x1080p 23.976fps x264-Hi10P FLAC PGSx2]", " EP01 "},
		{"[AI-Raws&ANK-Raws] Initial D First Stage 01 (BDRip 960x720 x264 DTS-HD Hi10P)[044D7040]", " 01 "},
		{"[AI-Raws&ANK-Raws] Initial D First Stage [05] (BDRip 960x720 x264 DTS-HD Hi10P)[044D7040]", "[05]"},
		{"Shadow.2021.E11.WEB-DL.4k.H265.60fps.AAC.2Audio", ".E11."},
		{"Shadow 2021 E11 WEB-DL 4k H265 AAC 2Audio", " E11 "},
		{"Shadow.2021.第11集.WEB-DL.4k.H265.60fps.AAC.2Audio", "第11集"},
		{"Shadow.2021.E13v2.WEB-DL.4k.H265.60fps.AAC.2Audio", ".E13v2."},
		{"Shadow.2021.E14(OA).WEB-DL.4k.H265.60fps.AAC.2Audio", ".E14(OA)."},
		{"Person.of.Interest.EP01.2013.1080p.Blu-ray.x265.10bit.AC3", ".EP01."},
		{"Slam.Dunk.22.Ma10p.1080p.x265.flac", ".22."},
		{"TV 节目 第1期 嘉宾张三", "第1期"},
		{"The.Office.S01E05.1080p.BluRay", "S01E05"},
		{"no episode here", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, matchEpPart(tt.name), tt.name)
	}
}

func TestExtractEpNum(t *testing.T) {
	t.Parallel()

	tests := []struct {
		marker string
		want   string
	}{
		{" 09 ", "09"},
		{"第013話", "013"},
		{"[013]", "013"},
		{"[13.5]", "13.5"},
		{"[13v2]", "13v2"},
		{"[13(OA)]", "13(OA)"},
		{".E11.", "11"},
		{" EP01 ", "01"},
		{".22.", "22"},
		// Single digits and years are too ambiguous without an E prefix.
		{" 5 ", ""},
		{" 2014 ", ""},
		{".E2014.", "2014"},
		// Asymmetric boundaries never qualify.
		{"E05", ""},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, extractEpNum(tt.marker), tt.marker)
	}
}

func TestSimpleMatchEp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want int
	}{
		{"01 呵呵呵", 1},
		{"02_哈哈哈", 2},
		{"03.嘿嘿嘿", 3},
		{"04. 嘿嘿嘿", 4},
		{"05 - 嘿嘿嘿", 5},
		{"06", 6},
		{"EP07", 7},
		{"e08", 8},
		{"第9集", 9},
		{"第10话", 10},
		{"no number", -1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, simpleMatchEp(tt.name), tt.name)
	}
}
