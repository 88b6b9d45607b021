/*
 * SPDX-FileCopyrightText: © Fanflow Authors <dev@fanflow.io>
 * SPDX-License-Identifier: Apache-2.0
 */

package schema

import (
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// checkDepth rejects operations whose selection sets nest deeper than
// MaxQueryDepth. A scalar leaf contributes nothing; each object-field level
// adds one. Fragment selections count at the point they are spread, and
// introspection meta fields are ignored, matching how graphql-depth-limit
// counts.
func checkDepth(op *ast.OperationDefinition) error {
	if d := selectionDepth(op.SelectionSet); d > MaxQueryDepth {
		return gqlerror.Errorf(
			"Query is too deep: depth %d exceeds the maximum allowed depth of %d.",
			d, MaxQueryDepth)
	}
	return nil
}

func selectionDepth(sel ast.SelectionSet) int {
	max := 0
	for _, s := range sel {
		var d int
		switch s := s.(type) {
		case *ast.Field:
			if len(s.Name) >= 2 && s.Name[:2] == "__" {
				continue
			}
			if len(s.SelectionSet) == 0 {
				continue
			}
			d = 1 + selectionDepth(s.SelectionSet)
		case *ast.FragmentSpread:
			d = selectionDepth(s.Definition.SelectionSet)
		case *ast.InlineFragment:
			d = selectionDepth(s.SelectionSet)
		}
		if d > max {
			max = d
		}
	}
	return max
}
