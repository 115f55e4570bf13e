// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package transfer

import (
	"regexp"
	"strconv"
	"strings"
)

// markerPass flags an episode parsed from an exact SxxEyy match: the name
// already carries a well-formed marker and needs no substitution.
const markerPass = "Pass"

// seriesRules match a combined season+episode marker. First hit wins.
var seriesRules = []*regexp.Regexp{
	regexp.MustCompile(`[Ss](\d{1,2})[Ee](\d{1,4})`),
	regexp.MustCompile(`(?i)season[\s.]?(\d{1,2})[\s.]?ep(?:isode)?[\s.]?(\d{1,4})`),
	regexp.MustCompile(`第(\d{1,2})季第(\d{1,4})[集话期]`),
}

// matchSeries extracts (season, episode) from a basename carrying both,
// e.g. "The.Office.S03E05.1080p" -> (3, 5). Returns (-1, -1) when absent.
func matchSeries(basename string) (int, int) {
	for _, re := range seriesRules {
		if m := re.FindStringSubmatch(basename); m != nil {
			season, _ := strconv.Atoi(m[1])
			episode, _ := strconv.Atoi(m[2])
			return season, episode
		}
	}
	return -1, -1
}

var seasonRules = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:s|season)[\s.]?(\d{1,2})`),
	regexp.MustCompile(`第(\d{1,2})季`),
	regexp.MustCompile(`第([一二三四五六七八九十])季`),
	regexp.MustCompile(`(?i)season[\s.](\d{1,2})`),
}

var chineseNumerals = map[string]int{
	"一": 1, "二": 2, "三": 3, "四": 4, "五": 5,
	"六": 6, "七": 7, "八": 8, "九": 9, "十": 10,
}

// matchSeason extracts a season number from a folder or release name. A rule
// only counts when it matches exactly once: "S01-S05" pack names stay
// unresolved rather than picking an arbitrary season. Returns -1 when absent.
func matchSeason(filename string) int {
	for _, re := range seasonRules {
		ms := re.FindAllStringSubmatch(filename, -1)
		if len(ms) != 1 {
			continue
		}
		if n, ok := chineseNumerals[ms[0][1]]; ok {
			return n
		}
		if n, err := strconv.Atoi(ms[0][1]); err == nil {
			return n
		}
	}
	return -1
}

// epPartRules match an episode marker with its surrounding boundary
// characters, ordered most to least specific. A rule only counts when it
// matches exactly once in the name; resolution markers like 1080p would
// otherwise shadow the real episode. group selects the submatch returned
// for rules that must consume a boundary character to emulate a lookbehind.
var epPartRules = []struct {
	re    *regexp.Regexp
	group int
}{
	{regexp.MustCompile(`第\d*[話话集期]`), 0},
	{regexp.MustCompile(`(?i) ep?[0-9.()videoa]* `), 0},
	{regexp.MustCompile(`(?i)\.ep?[0-9()videoa]*\.`), 0},
	{regexp.MustCompile(`(?i)\.\d{1,3}(?:v\d)?[()videoa]*\.`), 0},
	{regexp.MustCompile(`(?i) \d{1,3}(?:\.\d|v\d)?[()videoa]* `), 0},
	{regexp.MustCompile(`(?i)\[(?:ep?)?[0-9.v]*(?:\(oa\)|\(video\))?\]`), 0},
	{regexp.MustCompile(`[Ss]\d{1,2}[Ee]\d{1,3}`), 0},
	{regexp.MustCompile(`[.\s]([Ee]\d{1,3})[.\s]`), 1},
	{regexp.MustCompile(`[^a-zA-Z0-9](E\d{1,3})`), 1},
}

var sxxEyyPattern = regexp.MustCompile(`[Ss]\d{1,2}([Ee]\d{1,3})`)

// matchEpPart finds the raw episode marker in a basename, boundaries
// included, e.g. "[013]", ".E11.", "第11集", " EP01 ". Empty when no rule
// matches exactly once; a combined SxxEyy falls back to its Eyy part.
func matchEpPart(basename string) string {
	for _, rule := range epPartRules {
		ms := rule.re.FindAllStringSubmatch(basename, -1)
		if len(ms) == 1 {
			return ms[0][rule.group]
		}
	}
	if m := sxxEyyPattern.FindStringSubmatch(basename); m != nil {
		return m[1]
	}
	return ""
}

var (
	anyDigitPattern = regexp.MustCompile(`\d`)
	yearPattern     = regexp.MustCompile(`[1-3][0-9]{3}`)
)

// extractEpNum reduces a raw marker from matchEpPart to the episode value.
// The marker must be symmetric (same rune on both ends, [] pair, or 第..話)
// and the remainder must contain a digit. Markers without an E prefix reject
// single digits and year-like values. The result is not always an integer:
// "13.5" and "13v2" are legal episode designators.
func extractEpNum(single string) string {
	runes := []rune(single)
	if len(runes) < 2 {
		return ""
	}
	left, right := runes[0], runes[len(runes)-1]
	symmetric := left == right ||
		(left == '[' && right == ']') ||
		(left == '第' && strings.ContainsRune("話话集", right))
	if !symmetric {
		return ""
	}

	result := strings.TrimLeft(single, "第.EPep[ ")
	result = strings.TrimRight(result, "話话集]. ")

	if !anyDigitPattern.MatchString(result) {
		return ""
	}
	if !strings.ContainsAny(single, "Ee") {
		if len([]rune(result)) == 1 {
			return ""
		}
		if yearPattern.MatchString(result) {
			return ""
		}
	}
	return result
}

var simpleEpRules = []*regexp.Regexp{
	regexp.MustCompile(`^(\d{1,3}) ?[_\-.]? ?[\p{L}_]+`),
	regexp.MustCompile(`^(?i:ep?)(\d{1,3})`),
	regexp.MustCompile(`^第(\d{1,3})[集话期]`),
}

// simpleMatchEp handles names where the season is already forced but no
// marker parsed: a leading number ("03.嘿嘿嘿"), EP01/e08, 第9集, or a
// digit-only name. Returns -1 when nothing matches.
func simpleMatchEp(basename string) int {
	if basename != "" && strings.IndexFunc(basename, func(r rune) bool { return r < '0' || r > '9' }) == -1 {
		n, err := strconv.Atoi(basename)
		if err == nil {
			return n
		}
	}
	for _, re := range simpleEpRules {
		if m := re.FindStringSubmatch(basename); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				return n
			}
		}
	}
	return -1
}
