// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package scrape

import (
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	"github.com/pkg/errors"
)

// evalRule runs a naming rule against the metadata fields. Rules are plain
// expressions over string fields, e.g. "actor+'/'+number+' '+title".
func evalRule(rule string, env map[string]any) (string, error) {
	program, err := expr.Compile(rule, expr.Env(env))
	if err != nil {
		return "", errors.Wrapf(err, "compile rule %q", rule)
	}

	out, err := expr.Run(program, env)
	if err != nil {
		return "", errors.Wrapf(err, "eval rule %q", rule)
	}

	s, ok := out.(string)
	if !ok {
		return "", errors.Errorf("rule %q did not evaluate to a string", rule)
	}
	return s, nil
}

type identVisitor struct {
	names map[string]bool
}

func (v *identVisitor) Visit(node *ast.Node) {
	if id, ok := (*node).(*ast.IdentifierNode); ok {
		v.names[id.Value] = true
	}
}

// ruleIdentifiers returns the variable names a rule references. Walking the
// AST keeps a title containing the word "actor" from tripping the
// multi-performer substitution; only a real identifier counts.
func ruleIdentifiers(rule string) (map[string]bool, error) {
	tree, err := parser.Parse(rule)
	if err != nil {
		return nil, errors.Wrapf(err, "parse rule %q", rule)
	}

	v := &identVisitor{names: make(map[string]bool)}
	ast.Walk(&tree.Node, v)
	return v.names, nil
}
