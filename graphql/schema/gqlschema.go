/*
 * SPDX-FileCopyrightText: © Fanflow Authors <dev@fanflow.io>
 * SPDX-License-Identifier: Apache-2.0
 */

// Package schema is the request gate: it owns the compiled GraphQL schema
// and turns raw request text into a validated, executable operation, or into
// the error list that gets returned instead. No resolver runs until a
// request has made it through Operation.
package schema

import (
	_ "embed"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/fanflow/fanflow/x"
)

//go:embed schema.graphql
var sdl string

// MaxQueryDepth is the deepest selection-set nesting a request may have.
// Anything deeper is rejected at validation, before any resolver runs, so a
// maliciously nested query can't force unbounded fan-out through the
// loaders.
const MaxQueryDepth = 5

// Schema is the compiled fanflow schema. Build it once at startup and share
// it across requests; it is read-only after New.
type Schema struct {
	schema *ast.Schema
}

// New compiles the embedded SDL. The SDL is part of the binary, so failure
// here is a programming error, not an input error.
func New() (*Schema, error) {
	s, err := gqlparser.LoadSchema(&ast.Source{Name: "schema.graphql", Input: sdl})
	if err != nil {
		return nil, x.Wrapf(err, "compiling GraphQL schema")
	}
	return &Schema{schema: s}, nil
}

// Types returns the type definition for name, or nil.
func (s *Schema) Types(name string) *ast.Definition {
	return s.schema.Types[name]
}
