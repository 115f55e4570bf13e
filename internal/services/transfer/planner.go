// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package transfer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/moistari/rls"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/curator/internal/mediafs"
)

// groupTags are release-group and quality markers whose presence raises the
// minimum length a simplified folder name must keep.
var groupTags = []string{"cmct", "wiki", "frds", "1080p", "x264", "x265"}

// specialTags in a second-level folder mark bonus content mapped to Specials.
var specialTags = []string{"花絮", "特典", "特辑", "extra", "special", "[sp]"}

// handleGroupNaming applies the CMCT convention: the group names its video
// files more carefully than its folders, so when a non-episode CMCT folder
// holds exactly one CMCT-tagged video, that file's basename becomes the
// folder name.
func handleGroupNaming(src *SourceFile, target *TargetFile, group []*SourceFile) {
	if !strings.Contains(src.TopFolder, "CMCT") {
		return
	}
	for _, f := range group {
		if f.IsEpisode {
			return
		}
	}

	var named *SourceFile
	count := 0
	for _, f := range group {
		if strings.Contains(f.Basename, "CMCT") {
			named = f
			count++
		}
	}
	if count == 1 {
		target.TopFolder = named.Basename
		log.Debug().Str("top_folder", target.TopFolder).Msg("[TRANSFER] cmct folder renamed from file")
	}
}

// simplifyFolderName strips CJK runs, release tags, and season-range
// prefixes from a folder name. The simplified name is only used when long
// enough to still identify the release: at least 20 characters plus the
// length of any group tags it retains.
func simplifyFolderName(original string) string {
	simplified := mediafs.ReplaceCJK(original)
	simplified, err := mediafs.ReplaceRegex(simplified, `^s(\d{2})-s(\d{2})`)
	if err != nil {
		return original
	}

	minLen := 20
	lower := strings.ToLower(simplified)
	counted := make(map[string]bool, len(groupTags))
	for _, tag := range groupTags {
		if strings.Contains(lower, tag) {
			minLen += len(tag)
			counted[tag] = true
		}
	}
	// Release groups outside the static list still count toward the
	// minimum, so a simplified name is never just a group tag.
	if r := rls.ParseString(original); r.Group != "" {
		if g := strings.ToLower(r.Group); !counted[g] && strings.Contains(lower, g) {
			minLen += len(g)
		}
	}
	if utf8.RuneCountInString(simplified) > minLen {
		log.Debug().Str("folder", simplified).Msg("[TRANSFER] simplified folder name")
		return simplified
	}
	return original
}

// fixSeriesNaming resolves season and episode for a series pipeline and
// rewrites the basename around a normalized SxxEyy marker. Season
// resolution order: forced or parsed values, the top folder name, an empty
// second folder (single-season layout, season 1), special-content tags
// (season 0), and finally season 1. Season 0 lands in "Specials", anything
// else in "Season N".
func fixSeriesNaming(src *SourceFile, target *TargetFile) {
	season := src.Season
	if target.ForcedSeason {
		season = target.Season
	}
	episode, epText := src.Episode, src.EpisodeText
	if target.ForcedEpisode {
		episode, epText = target.Episode, ""
	}
	name := src.Basename
	marker := src.OriginalMarker

	if season == -1 {
		if found := matchSeason(src.TopFolder); found > -1 {
			season = found
		} else if src.SecondFolder == "" {
			// No season marker anywhere and a flat layout: single season.
			season = 1
		} else if containsSpecialTag(src.SecondFolder) {
			season = 0
		} else {
			season = 1
		}
	}
	if episode == -1 && epText == "" {
		if found := simpleMatchEp(name); found > -1 {
			episode = found
			marker = markerPass
		}
	}

	if episode > -1 || epText != "" {
		m := episodeMarker(season, episode, epText)
		switch {
		case strings.Contains(name, m):
			// Already normalized.
		case marker != "" && marker != markerPass && strings.Contains(name, marker):
			name = replaceMarker(name, marker, m)
		default:
			name = m
		}
	}

	target.IsEpisode = true
	target.Season = season
	target.Episode = episode
	target.EpisodeText = epText
	target.Basename = name
	if season == 0 {
		target.SecondFolder = "Specials"
	} else {
		target.SecondFolder = fmt.Sprintf("Season %d", season)
	}
}

// episodeMarker renders SxxEyy, keeping non-integer designators verbatim
// ("S01E13.5").
func episodeMarker(season, episode int, text string) string {
	if text != "" {
		return fmt.Sprintf("S%02dE%s", season, text)
	}
	return fmt.Sprintf("S%02dE%02d", season, episode)
}

// replaceMarker swaps the raw matched marker for the normalized one,
// preserving the separator style of the original.
func replaceMarker(name, original, marker string) string {
	renum := " " + marker + " "
	if strings.HasPrefix(original, ".") {
		renum = "." + marker + "."
	}
	return strings.TrimSpace(strings.ReplaceAll(name, original, renum))
}

func containsSpecialTag(folder string) bool {
	for _, tag := range specialTags {
		if strings.Contains(folder, tag) {
			return true
		}
	}
	return false
}
