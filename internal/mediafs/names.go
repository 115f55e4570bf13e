// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package mediafs

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

var (
	bracketGroupPattern = regexp.MustCompile(`[\(\[（](.*?)[\)\]）]`)
	cjkPattern          = regexp.MustCompile(`[\x{3000}-\x{33FF}\x{4e00}-\x{9fff}]+`)
	illegalPathPattern  = regexp.MustCompile(`[\\/:*?"<>|]`)
)

const (
	trimLeftCutset  = " !?@#$.:：]）)"
	trimRightCutset = " !?@#$.:：[(（"
)

// ReplaceCJK strips CJK runs from a folder name: bracketed groups containing
// CJK are dropped whole, then remaining CJK runs, then leftover empty
// brackets and repeated separators.
func ReplaceCJK(base string) string {
	tmp := base
	for _, m := range bracketGroupPattern.FindAllStringSubmatch(base, -1) {
		if cjkPattern.MatchString(m[1]) {
			tmp = strings.ReplaceAll(tmp, m[0], "")
		}
	}
	tmp = cjkPattern.ReplaceAllString(tmp, "")
	tmp = CleanParentheses(tmp)
	return trimEdges(collapseRepeats(tmp))
}

// CleanParentheses removes empty bracket pairs left behind by tag stripping.
func CleanParentheses(text string) string {
	for strings.Contains(text, "()") || strings.Contains(text, "[]") || strings.Contains(text, "（）") {
		text = strings.NewReplacer("()", "", "[]", "", "（）", "").Replace(text)
	}
	return text
}

// ReplaceRegex removes every match of a user-supplied pattern from the name,
// then normalizes the leftovers.
func ReplaceRegex(base, pattern string) (string, error) {
	re, err := regexp.Compile("(?is)" + pattern)
	if err != nil {
		return base, errors.Wrapf(err, "compile pattern %q", pattern)
	}
	return trimEdges(collapseRepeats(re.ReplaceAllString(base, ""))), nil
}

// SanitizePath replaces characters illegal in file names on either Windows
// or POSIX systems.
func SanitizePath(name string) string {
	if name == "" {
		return ""
	}
	return illegalPathPattern.ReplaceAllString(name, "_")
}

// collapseRepeats squeezes runs of the same non-word character into one,
// e.g. "a..b--c" into "a.b-c".
func collapseRepeats(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	var prev rune = -1
	for _, r := range s {
		isWord := r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
		if !isWord && r == prev {
			continue
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}

func trimEdges(s string) string {
	return strings.TrimRight(strings.TrimLeft(s, trimLeftCutset), trimRightCutset)
}
