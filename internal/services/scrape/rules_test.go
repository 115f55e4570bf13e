// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalRule(t *testing.T) {
	t.Parallel()

	env := map[string]any{
		"number": "ABC-123",
		"title":  "Example",
		"actor":  "Alice",
	}

	got, err := evalRule("actor+'/'+number+' '+title", env)
	require.NoError(t, err)
	assert.Equal(t, "Alice/ABC-123 Example", got)

	got, err = evalRule("number+' '+title", env)
	require.NoError(t, err)
	assert.Equal(t, "ABC-123 Example", got)

	_, err = evalRule("number+", env)
	assert.Error(t, err)
}

func TestRuleIdentifiers(t *testing.T) {
	t.Parallel()

	ids, err := ruleIdentifiers("actor+'/'+number+' '+title")
	require.NoError(t, err)
	assert.True(t, ids["actor"])
	assert.True(t, ids["number"])
	assert.True(t, ids["title"])

	// The word inside a string literal is not a reference.
	ids, err = ruleIdentifiers("'actor cut '+number")
	require.NoError(t, err)
	assert.False(t, ids["actor"])
	assert.True(t, ids["number"])
}
