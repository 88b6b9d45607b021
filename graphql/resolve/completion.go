/*
 * SPDX-FileCopyrightText: © Fanflow Authors <dev@fanflow.io>
 * SPDX-License-Identifier: Apache-2.0
 */

package resolve

import (
	"context"

	dl "github.com/graph-gophers/dataloader/v7"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/fanflow/fanflow/graphql/dataloader"
	"github.com/fanflow/fanflow/store"
	"github.com/fanflow/fanflow/x"
)

// completer walks a validated selection set over resolved entities and
// collects field errors along the way. Completion is level-order: for a set
// of sibling parents, every loader key of a relation field is enqueued
// before the first thunk is read, and the children of all parents are then
// flattened and completed as one batch. That guarantees one grouped store
// call per relation field per level, independent of how many parents there
// are, without leaning on goroutine scheduling.
type completer struct {
	loaders *dataloader.Loaders
	errs    x.GqlErrorList
}

func (c *completer) addErr(err error, path []interface{}, f *ast.Field) {
	c.errs = append(c.errs, x.GqlErrorf("%s", err.Error()).
		WithLocations(locationOf(f)).
		WithPath(path))
}

// completeObjects resolves sel for every entity in ents jointly; ents are
// all of the type named by typeName. A nil entity completes to a nil object
// (JSON null). paths[i] is the response path to ents[i], used for field
// errors.
func (c *completer) completeObjects(ctx context.Context, typeName string,
	sel ast.SelectionSet, ents []interface{}, paths [][]interface{}) []*object {

	results := make([]*object, len(ents))
	for i, e := range ents {
		if e != nil {
			results[i] = &object{}
		}
	}

	for _, s := range sel {
		f, ok := s.(*ast.Field)
		if !ok {
			// fragments were expanded away at the gate
			continue
		}
		name := respName(f)

		if f.Name == "__typename" {
			for i := range results {
				if results[i] != nil {
					results[i].set(name, typeName)
				}
			}
			continue
		}

		switch typeName {
		case "User":
			c.completeUserField(ctx, f, name, ents, paths, results)
		case "Post":
			c.completePostField(f, name, ents, results)
		case "Profile":
			c.completeProfileField(ctx, f, name, ents, paths, results)
		case "MemberType":
			c.completeMemberTypeField(f, name, ents, results)
		}
	}
	return results
}

func (c *completer) completeUserField(ctx context.Context, f *ast.Field, name string,
	ents []interface{}, paths [][]interface{}, results []*object) {

	switch f.Name {
	case "id", "name", "balance":
		for i, e := range ents {
			if results[i] == nil {
				continue
			}
			u := e.(*store.User)
			switch f.Name {
			case "id":
				results[i].set(name, u.ID)
			case "name":
				results[i].set(name, u.Name)
			case "balance":
				results[i].set(name, u.Balance)
			}
		}
	case "posts":
		loadListField(c, ctx, f, name, "Post", c.loaders.PostsByAuthor,
			userKeys(ents), paths, results)
	case "userSubscribedTo":
		loadListField(c, ctx, f, name, "User", c.loaders.UserSubscribedTo,
			userKeys(ents), paths, results)
	case "subscribedToUser":
		loadListField(c, ctx, f, name, "User", c.loaders.SubscribedToUser,
			userKeys(ents), paths, results)
	case "profile":
		loadObjectField(c, ctx, f, name, "Profile", c.loaders.ProfileByUser,
			userKeys(ents), paths, results)
	}
}

func (c *completer) completePostField(f *ast.Field, name string,
	ents []interface{}, results []*object) {

	for i, e := range ents {
		if results[i] == nil {
			continue
		}
		p := e.(*store.Post)
		switch f.Name {
		case "id":
			results[i].set(name, p.ID)
		case "title":
			results[i].set(name, p.Title)
		case "content":
			results[i].set(name, p.Content)
		}
	}
}

func (c *completer) completeProfileField(ctx context.Context, f *ast.Field, name string,
	ents []interface{}, paths [][]interface{}, results []*object) {

	switch f.Name {
	case "id", "isMale", "yearOfBirth":
		for i, e := range ents {
			if results[i] == nil {
				continue
			}
			p := e.(*store.Profile)
			switch f.Name {
			case "id":
				results[i].set(name, p.ID)
			case "isMale":
				results[i].set(name, p.IsMale)
			case "yearOfBirth":
				results[i].set(name, p.YearOfBirth)
			}
		}
	case "memberType":
		keys := make([]string, len(ents))
		for i, e := range ents {
			if results[i] != nil {
				keys[i] = e.(*store.Profile).MemberTypeID
			}
		}
		loadObjectField(c, ctx, f, name, "MemberType", c.loaders.MemberTypeByID,
			keys, paths, results)
	}
}

func (c *completer) completeMemberTypeField(f *ast.Field, name string,
	ents []interface{}, results []*object) {

	for i, e := range ents {
		if results[i] == nil {
			continue
		}
		mt := e.(*store.MemberType)
		switch f.Name {
		case "id":
			results[i].set(name, mt.ID)
		case "discount":
			results[i].set(name, mt.Discount)
		case "postsLimitPerMonth":
			results[i].set(name, mt.PostsLimitPerMonth)
		}
	}
}

// loadListField completes a list-valued relation field across a sibling set.
// Phase 1 enqueues every key, phase 2 reads the thunks, then the children of
// all parents complete as one flattened batch before being fanned back out
// in parent order. A failed load completes that parent's field as null and
// records a field error; siblings are unaffected.
func loadListField[V any](c *completer, ctx context.Context, f *ast.Field,
	name, childType string, ldr *dl.Loader[string, []V],
	keys []string, paths [][]interface{}, results []*object) {

	thunks := make([]dl.Thunk[[]V], len(results))
	for i := range results {
		if results[i] == nil {
			continue
		}
		thunks[i] = ldr.Load(ctx, keys[i])
	}

	perParent := make([][]V, len(results))
	failed := make([]bool, len(results))
	for i := range results {
		if results[i] == nil {
			continue
		}
		vals, err := thunks[i]()
		if err != nil {
			c.addErr(err, childPath(paths[i], name), f)
			failed[i] = true
			continue
		}
		perParent[i] = vals
	}

	var flat []interface{}
	var flatPaths [][]interface{}
	for i := range results {
		if results[i] == nil || failed[i] {
			continue
		}
		for j, v := range perParent[i] {
			flat = append(flat, v)
			flatPaths = append(flatPaths, childPath(paths[i], name, j))
		}
	}
	completed := c.completeObjects(ctx, childType, f.SelectionSet, flat, flatPaths)

	idx := 0
	for i := range results {
		if results[i] == nil {
			continue
		}
		if failed[i] {
			results[i].set(name, nil)
			continue
		}
		list := make([]interface{}, len(perParent[i]))
		for j := range perParent[i] {
			list[j] = completed[idx]
			idx++
		}
		results[i].set(name, list)
	}
	x.AssertTruef(idx == len(completed),
		"completed %d child objects for %s but fanned out %d", len(completed), name, idx)
}

// loadObjectField is loadListField for singleton-valued relations: a zero
// value from the loader (no matching row) completes as null.
func loadObjectField[V comparable](c *completer, ctx context.Context, f *ast.Field,
	name, childType string, ldr *dl.Loader[string, V],
	keys []string, paths [][]interface{}, results []*object) {

	thunks := make([]dl.Thunk[V], len(results))
	for i := range results {
		if results[i] == nil {
			continue
		}
		thunks[i] = ldr.Load(ctx, keys[i])
	}

	var zero V
	vals := make([]V, len(results))
	present := make([]bool, len(results))
	for i := range results {
		if results[i] == nil {
			continue
		}
		v, err := thunks[i]()
		if err != nil {
			c.addErr(err, childPath(paths[i], name), f)
			results[i].set(name, nil)
			continue
		}
		if v == zero {
			results[i].set(name, nil)
			continue
		}
		vals[i] = v
		present[i] = true
	}

	var flat []interface{}
	var flatPaths [][]interface{}
	for i := range results {
		if present[i] {
			flat = append(flat, vals[i])
			flatPaths = append(flatPaths, childPath(paths[i], name))
		}
	}
	completed := c.completeObjects(ctx, childType, f.SelectionSet, flat, flatPaths)

	idx := 0
	for i := range results {
		if present[i] {
			results[i].set(name, completed[idx])
			idx++
		}
	}
}

func userKeys(ents []interface{}) []string {
	keys := make([]string, len(ents))
	for i, e := range ents {
		if u, ok := e.(*store.User); ok && u != nil {
			keys[i] = u.ID
		}
	}
	return keys
}

// childPath copies the parent path and appends the child elements; paths
// are shared across siblings, so appending in place would corrupt them.
func childPath(parent []interface{}, elems ...interface{}) []interface{} {
	out := make([]interface{}, len(parent), len(parent)+len(elems))
	copy(out, parent)
	return append(out, elems...)
}

func toAnySlice[T any](in []*T) []interface{} {
	out := make([]interface{}, len(in))
	for i, v := range in {
		if v != nil {
			out[i] = v
		}
	}
	return out
}

func indexPaths(name string, n int) [][]interface{} {
	out := make([][]interface{}, n)
	for i := range out {
		out[i] = []interface{}{name, i}
	}
	return out
}

func asList(objs []*object) []interface{} {
	out := make([]interface{}, len(objs))
	for i, o := range objs {
		if o != nil {
			out[i] = o
		}
	}
	return out
}
