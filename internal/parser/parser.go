// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package parser extracts canonical release identifiers from video
// filenames. Parsing is pure: no I/O, deterministic for a given path.
package parser

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// watermarkPattern strips site watermarks and quality markers before the
// fallback extractors run.
var watermarkPattern = regexp.MustCompile(`(?i)^\w+\.(cc|com|net|me|club|jp|tv|xyz|biz|wiki|info|tw|us|de)@|^22-sht\.me|^(fhd|hd|sd|1080p|720p|4K)(-|_)|(-|_)(fhd|hd|sd|1080p|720p|4K|x264|x265|uncensored|hack|leak)`)

// Ordered identifier rules; the first match wins. Input is the upper-cased
// basename without extension.
var numberRules = []func(string) string{
	regexRule(`(?i)\d{6}(-|_)\d{2,3}`),
	regexRule(`(?i)x-art\.\d{2}\.\d{2}\.\d{2}`),
	prefixedRule(`(?i)xxx-av[^\d]*(\d{3,5})[^\d]*`, "xxx-av-"),
	heydougaRule,
	prefixedRule(`(?i)heyzo[^\d]*(\d{4})`, "HEYZO-"),
	regexRule(`(?i)mdbk(-|_)(\d{4})`),
	regexRule(`(?i)mdtm(-|_)(\d{4})`),
	regexRule(`(?i)s2mbd(-|_)(\d{3})`),
	regexRule(`(?i)s2m(-|_)(\d{3})`),
	regexRule(`(?i)fc2(-|_)(\d{5,7})`),
	regexRule(`(?i)h_\d{3,4}[a-z]{1,10}\d{2,5}`),
	regexRule(`(?i)t28(-|_)\d{3}`),
	regexRule(`(?i)[A-Za-z]{2,6}-?\d{3,4}`),
}

func regexRule(pattern string) func(string) string {
	re := regexp.MustCompile(pattern)
	return func(s string) string {
		return re.FindString(s)
	}
}

func prefixedRule(pattern, prefix string) func(string) string {
	re := regexp.MustCompile(pattern)
	return func(s string) string {
		m := re.FindStringSubmatch(s)
		if m == nil {
			return ""
		}
		return prefix + m[1]
	}
}

var heydougaPattern = regexp.MustCompile(`(?i)(\d{4})[-_](\d{3,4})[^\d]*`)

func heydougaRule(s string) string {
	if !strings.Contains(strings.ToLower(s), "heydouga") {
		return ""
	}
	m := heydougaPattern.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return "heydouga-" + m[1] + "-" + m[2]
}

var (
	chsSuffixPattern  = regexp.MustCompile(`(?i)[-_]C(\.\w+$|-\w+)|\d+ch(\.\w+$|-\w+)`)
	partCDPattern     = regexp.MustCompile(`(?i)(?:-|_)cd\d{1,2}`)
	partDigitPattern  = regexp.MustCompile(`(?i)(?:-|_)\d{1,2}$`)
	specialPattern    = regexp.MustCompile(`(?i)(?:-|_)sp(?:_|-|$)`)
	uncensoredPattern = regexp.MustCompile(`(?i)^([\d-]{4,}|\d{6}_\d{2,3}|(cz|gedo|k|n|red-|se)\d{2,4}|heyzo.+|xxx-av-.+|heydouga-.+|x-art\.\d{2}\.\d{2}\.\d{2})`)
	uncensoredPrefix  = buildPrefixPattern("S2M,BT,LAF,SMD,SMBD,SM3D2DBD,SKY-,SKYHD,CWP,CWDV,CWBD,CW3D2DBD,MKD,MKBD,MXBD,MK3D2DBD,MCB3DBD,MCBD,RHJ,MMDV")
)

func buildPrefixPattern(csv string) *regexp.Regexp {
	parts := strings.Split(csv, ",")
	escaped := make([]string, 0, len(parts))
	for i, p := range parts {
		if i == 0 {
			escaped = append(escaped, regexp.QuoteMeta(p))
			continue
		}
		escaped = append(escaped, regexp.QuoteMeta(p)+".+")
	}
	return regexp.MustCompile(`(?i)^(` + strings.Join(escaped, "|") + `)`)
}

// NumInfo is the parsed identity of one video file.
type NumInfo struct {
	Number       string
	OriginalName string
	Part         string // multipart suffix, normalized to -CDn
	Chs          bool   // Chinese-subtitle marker
	Uncensored   bool
	Leak         bool
	Hack         bool
	Multipart    bool
	Special      bool // bonus/extra footage marker (-sp)
}

// Parse extracts the identifier and tag flags from a file path.
func Parse(path string) *NumInfo {
	info := &NumInfo{
		Number: Number(path),
	}

	if info.Number != "" && IsUncensored(info.Number) {
		info.Uncensored = true
	}

	lower := strings.ToLower(path)
	if strings.Contains(lower, "流出") ||
		strings.Contains(lower, "-leak") || strings.Contains(lower, "_leak") ||
		strings.Contains(lower, "-uncensored") || strings.Contains(lower, "_uncensored") {
		info.Leak = true
	}
	if strings.Contains(lower, "破解") ||
		strings.Contains(lower, "-hack") || strings.Contains(lower, "_hack") ||
		hackSuffixPattern.MatchString(lower) {
		info.Hack = true
	}

	for _, marker := range []string{"中文", "字幕", "-c.", "_c.", "_c_", "-c-", "-uc", "_uc"} {
		if strings.Contains(lower, marker) {
			info.Chs = true
			break
		}
	}
	if !info.Chs && chsSuffixPattern.MatchString(lower) {
		info.Chs = true
	}

	basename := filepath.Base(lower)
	info.OriginalName = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	info.Part = checkPart(basename)
	if info.Part != "" {
		info.Multipart = true
	}
	info.Special = checkSpecial(basename)

	return info
}

// hackSuffixPattern matches the trailing -U convention for cracked releases
// without tripping on every "-u..." substring.
var hackSuffixPattern = regexp.MustCompile(`(?i)[-_]u(\.\w+)?$`)

// FixedName rebuilds the canonical filename stem from the parsed identity:
// number plus tag suffixes plus part. Specials keep their original name.
func (n *NumInfo) FixedName() string {
	if n.Special {
		return n.OriginalName
	}

	name := n.Number
	if n.Uncensored {
		name += "-uncensored"
	}
	if n.Leak {
		name += "-leak"
	}
	if n.Hack {
		name += "-hack"
	}
	if n.Chs {
		name += "-C"
	}
	if n.Multipart {
		name += n.Part
	}
	return name
}

// UpdateCD overrides the multipart suffix, used when the resolver supplies
// an explicit part number.
func (n *NumInfo) UpdateCD(cd int) {
	n.Multipart = true
	n.Part = "-CD" + strconv.Itoa(cd)
}

// IsPartOneOrSingle reports whether this file is the only or first part of a
// release; artwork and NFO files are written once, for this part.
func (n *NumInfo) IsPartOneOrSingle() bool {
	return !n.Multipart || n.Part == "-CD1" || n.Part == "-CD01"
}

func checkPart(filename string) string {
	if strings.Contains(filename, "_cd") || strings.Contains(filename, "-cd") {
		if m := partCDPattern.FindString(filename); m != "" {
			return strings.ReplaceAll(strings.ToUpper(m), "_", "-")
		}
	}

	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	if m := partDigitPattern.FindString(stem); m != "" {
		part := strings.ReplaceAll(strings.ToUpper(m), "_", "-")
		if !strings.Contains(part, "CD") {
			part = strings.Replace(part, "-", "-CD", 1)
		}
		return part
	}
	return ""
}

func checkSpecial(filename string) bool {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	return len(specialPattern.FindAllString(stem, -1)) == 1
}

// IsUncensored reports whether the identifier belongs to a known uncensored
// numbering scheme.
func IsUncensored(number string) bool {
	if uncensoredPattern.MatchString(number) {
		return true
	}
	return uncensoredPrefix.MatchString(number)
}

// Number extracts the canonical identifier from a file path. The basename is
// tried first, then the parent directory, then the last-resort extractors.
func Number(path string) string {
	basename := filepath.Base(path)
	parent := filepath.Base(filepath.Dir(path))
	stem := strings.TrimSuffix(basename, filepath.Ext(basename))

	if num := applyRules(stem); num != "" {
		return num
	}
	if num := applyRules(parent); num != "" {
		return num
	}

	return fallbackNumber(basename, stem)
}

func applyRules(name string) string {
	name = strings.ToUpper(name)
	for _, rule := range numberRules {
		if strings.Contains(name, "FC2") {
			name = strings.NewReplacer("PPV", "", "--", "-", "_", "-", " ", "").Replace(name)
		}
		if num := rule(name); num != "" {
			return num
		}
	}
	return ""
}

var (
	subGroupBrackets = regexp.MustCompile(`\[.*?\]`)
	katakanaStart    = regexp.MustCompile(`^[\x{30a0}-\x{30ff}]+`)
	dateStampPattern = regexp.MustCompile(`\[\d{4}-\d{1,2}-\d{1,2}\] - `)
	cdSuffixPattern  = regexp.MustCompile(`(?i)[-_]cd\d{1,2}`)
	wordPattern      = regexp.MustCompile(`\w+`)
	tokenPattern     = regexp.MustCompile(`[\w\-_]+`)
	trailingCPattern = regexp.MustCompile(`(?i)(-|_)c$`)
	channelPattern   = regexp.MustCompile(`(?i)\d+ch$`)
	westernPattern   = regexp.MustCompile(`[a-zA-Z]+\.\d{2}\.\d{2}\.\d{2}`)
	upToDotPattern   = regexp.MustCompile(`(.+?)\.`)
)

// fallbackNumber handles names no rule matched: fansub releases, generic
// dash-separated names, and Western date-style names.
func fallbackNumber(basename, stem string) string {
	switch {
	case strings.Contains(stem, "字幕组") || strings.Contains(strings.ToUpper(stem), "SUB") || katakanaStart.MatchString(stem):
		name := watermarkPattern.ReplaceAllString(stem, "")
		name = subGroupBrackets.ReplaceAllString(name, "")
		name = strings.NewReplacer(".chs", "", ".cht", "").Replace(name)
		if m := upToDotPattern.FindStringSubmatch(name); m != nil {
			return m[1]
		}
		return name

	case strings.ContainsAny(stem, "-_"):
		name := watermarkPattern.ReplaceAllString(stem, "")
		name = dateStampPattern.ReplaceAllString(name, "")
		name = cdSuffixPattern.ReplaceAllString(name, "")
		if !strings.ContainsAny(name, "-_") {
			// Nothing left to split on once the part suffix is gone,
			// e.g. n1012-CD1.wmv.
			return wordPattern.FindString(name)
		}
		number := name
		if tok := tokenPattern.FindString(name); tok != "" {
			number = tok
		}
		number = trailingCPattern.ReplaceAllString(number, "")
		if channelPattern.MatchString(number) {
			number = number[:len(number)-2]
		}
		return strings.ToUpper(number)

	default:
		if m := westernPattern.FindString(basename); m != "" {
			return m
		}
		return strings.ReplaceAll(stem, "_", "-")
	}
}
