/*
 * SPDX-FileCopyrightText: © Fanflow Authors <dev@fanflow.io>
 * SPDX-License-Identifier: Apache-2.0
 */

package schema

import (
	"github.com/pkg/errors"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
	"github.com/vektah/gqlparser/v2/validator"
)

// A Request represents a GraphQL request. It makes no guarantees that the
// request is valid.
type Request struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

// An Operation is a validated request: parsed, checked against the schema,
// depth-limited and with its variables coerced. Fragments have been expanded
// into plain field selections, so consumers only ever see *ast.Field.
type Operation struct {
	op     *ast.OperationDefinition
	fields []*ast.Field

	// Vars holds the coerced variable values for this operation.
	Vars map[string]interface{}
}

func (o *Operation) IsQuery() bool {
	return o.op.Operation == ast.Query
}

func (o *Operation) IsMutation() bool {
	return o.op.Operation == ast.Mutation
}

// Fields are the top-level fields of the operation, in request order.
func (o *Operation) Fields() []*ast.Field {
	return o.fields
}

// Operation finds the operation in req, if it is a valid request for the
// fanflow schema. If the request is valid it contains a single executable
// operation; otherwise all GraphQL errors encountered are returned.
func (s *Schema) Operation(req *Request) (*Operation, error) {
	if req == nil || req.Query == "" {
		return nil, errors.New("no query string supplied in request")
	}

	doc, gqlErr := parser.ParseQuery(&ast.Source{Input: req.Query})
	if gqlErr != nil {
		return nil, gqlErr
	}

	listErr := validator.Validate(s.schema, doc)
	if len(listErr) != 0 {
		return nil, listErr
	}

	if len(doc.Operations) > 1 && req.OperationName == "" {
		return nil, errors.Errorf("Operation name must be supplied when query has more " +
			"than 1 operation.")
	}

	op := doc.Operations.ForName(req.OperationName)
	if op == nil {
		return nil, errors.Errorf("Supplied operation name %s isn't present in the request.",
			req.OperationName)
	}

	if err := checkDepth(op); err != nil {
		return nil, err
	}

	vars, gqlErr2 := validator.VariableValues(s.schema, op, req.Variables)
	if gqlErr2 != nil {
		return nil, gqlErr2
	}

	return &Operation{
		op:     op,
		fields: collectFields(op.SelectionSet),
		Vars:   vars,
	}, nil
}

// collectFields flattens a selection set into plain fields: fragment spreads
// and inline fragments are replaced by their selections, and fields that
// repeat a response name have their selection sets merged, as the GraphQL
// spec's CollectFields does. The fanflow schema has no interfaces or unions,
// so there are no type conditions to discriminate on.
func collectFields(sel ast.SelectionSet) []*ast.Field {
	var fields []*ast.Field
	seen := make(map[string]*ast.Field)

	var walk func(ss ast.SelectionSet)
	walk = func(ss ast.SelectionSet) {
		for _, s := range ss {
			switch s := s.(type) {
			case *ast.Field:
				name := responseName(s)
				if existing, ok := seen[name]; ok {
					existing.SelectionSet = append(existing.SelectionSet, s.SelectionSet...)
					continue
				}
				// copy, so merging selection sets can't mutate a fragment
				// definition shared with another spread point
				f := *s
				seen[name] = &f
				fields = append(fields, &f)
			case *ast.FragmentSpread:
				walk(s.Definition.SelectionSet)
			case *ast.InlineFragment:
				walk(s.SelectionSet)
			}
		}
	}
	walk(sel)

	for _, f := range fields {
		children := collectFields(f.SelectionSet)
		ss := make(ast.SelectionSet, len(children))
		for i, c := range children {
			ss[i] = c
		}
		f.SelectionSet = ss
	}
	return fields
}

func responseName(f *ast.Field) string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}
