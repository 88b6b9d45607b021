/*
 * SPDX-FileCopyrightText: © Fanflow Authors <dev@fanflow.io>
 * SPDX-License-Identifier: Apache-2.0
 */

// Package resolve executes validated GraphQL operations against the store
// and the request's loaders, producing the response envelope. Queries
// resolve in parallel, mutations serially; relation fields always go through
// the loaders so sibling lookups collapse into grouped store calls.
package resolve

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"

	"github.com/golang/glog"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/fanflow/fanflow/graphql/api"
	"github.com/fanflow/fanflow/graphql/dataloader"
	"github.com/fanflow/fanflow/graphql/schema"
	"github.com/fanflow/fanflow/store"
	"github.com/fanflow/fanflow/x"
)

const errInternal = "Internal error"

// RequestResolver can process one GraphQL request and write a GraphQL JSON
// response. Construct a fresh one per request: it owns the request's loader
// set, and loader caches must not leak across requests.
type RequestResolver struct {
	schema  *schema.Schema
	store   store.Store
	loaders *dataloader.Loaders
}

// New builds a resolver for one request over s and st, with a fresh set of
// batched loaders.
func New(s *schema.Schema, st store.Store) *RequestResolver {
	return &RequestResolver{
		schema:  s,
		store:   st,
		loaders: dataloader.New(st),
	}
}

// Resolved is the result of resolving a single top-level field.
type Resolved struct {
	Field *ast.Field
	Data  interface{}
	Errs  x.GqlErrorList
}

// Resolve processes a GraphQL request. A request may contain any number of
// queries or mutations (never both); Resolve finds the resolved answer of
// each component field and joins them into a single response.
func (r *RequestResolver) Resolve(ctx context.Context, req *schema.Request) *schema.Response {
	if r == nil {
		glog.Errorf("Call to Resolve with nil RequestResolver")
		return schema.ErrorResponse(x.GqlErrorf(errInternal))
	}

	op, err := r.schema.Operation(req)
	if err != nil {
		return schema.ErrorResponse(err)
	}

	if glog.V(3) {
		b, err := json.Marshal(req.Variables)
		if err != nil {
			glog.Infof("Failed to marshal variables for logging: %s", err)
		}
		glog.Infof("Resolving GQL request: \n%s\nWith Variables: \n%s\n", req.Query, string(b))
	}

	resp := &schema.Response{}

	switch {
	case op.IsQuery():
		// Queries run in parallel and are independent of each other: an
		// error in one query doesn't affect the others. They share the
		// request's loaders, so lookups batch across sibling queries too.
		var wg sync.WaitGroup
		allResolved := make([]*Resolved, len(op.Fields()))

		for i, q := range op.Fields() {
			wg.Add(1)
			go func(q *ast.Field, storeAt int) {
				defer wg.Done()
				defer api.PanicHandler(
					func(err error) {
						allResolved[storeAt] = &Resolved{
							Field: q,
							Errs:  schema.AsGQLErrors(err),
						}
					}, req.Query)
				allResolved[storeAt] = r.resolveQuery(ctx, op, q)
			}(q, i)
		}
		wg.Wait()

		// The data response is written in the same order as the queries in
		// the request.
		for _, res := range allResolved {
			addResult(resp, res)
		}
	case op.IsMutation():
		// Mutation fields execute serially, and execution stops after the
		// first failed mutation: the remaining fields get a "not executed"
		// error instead of running against state the failed mutation was
		// supposed to establish.
		allSuccessful := true

		for _, m := range op.Fields() {
			if !allSuccessful {
				resp.WithError(x.GqlErrorf(
					"Mutation %s was not executed because of a previous error.",
					respName(m)).
					WithLocations(locationOf(m)).
					WithPath([]interface{}{respName(m)}))
				addResult(resp, &Resolved{Field: m})
				continue
			}

			var res *Resolved
			res, allSuccessful = r.resolveMutation(ctx, op, m)
			addResult(resp, res)
		}
	default:
		return schema.ErrorResponse(x.GqlErrorf(
			"Only queries and mutations are supported"))
	}

	return resp
}

// addResult adds the data and errors of one resolved field into the
// response. A nil Data still writes `"field": null`, per the GraphQL
// partial-response rules.
func addResult(resp *schema.Response, res *Resolved) {
	if res == nil {
		return
	}

	b, err := json.Marshal(res.Data)
	if err != nil {
		glog.Errorf("Failed to marshal resolved data for %q: %v", res.Field.Name, err)
		b = []byte("null")
		res.Errs = append(res.Errs, x.GqlErrorf(errInternal).
			WithPath([]interface{}{respName(res.Field)}))
	}

	var pair bytes.Buffer
	x.Check2(pair.WriteString(`"` + respName(res.Field) + `":`))
	x.Check2(pair.Write(b))
	resp.AddData(pair.Bytes())

	for _, e := range res.Errs {
		resp.WithError(e)
	}
}

// object is a JSON object whose field order follows the query's selection
// order, as the GraphQL spec requires. A plain map would serialize sorted.
type object struct {
	fields []objField
}

type objField struct {
	name  string
	value interface{}
}

func (o *object) set(name string, value interface{}) {
	o.fields = append(o.fields, objField{name: name, value: value})
}

func (o *object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range o.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.name)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(f.value)
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func respName(f *ast.Field) string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

func locationOf(f *ast.Field) x.Location {
	if f.Position == nil {
		return x.Location{}
	}
	return x.Location{Line: f.Position.Line, Column: f.Position.Column}
}

// errResolved turns a store or argument error into a top-level field error
// with the field's path and location, resolving the field itself to null.
func errResolved(f *ast.Field, err error) *Resolved {
	errs := schema.AsGQLErrors(schema.GQLWrapf(err, "couldn't resolve %s", respName(f)))
	for _, e := range errs {
		e.WithLocations(locationOf(f))
		if e.Path == nil {
			e.WithPath([]interface{}{respName(f)})
		}
	}
	return &Resolved{Field: f, Errs: errs}
}
