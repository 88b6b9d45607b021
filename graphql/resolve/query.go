/*
 * SPDX-FileCopyrightText: © Fanflow Authors <dev@fanflow.io>
 * SPDX-License-Identifier: Apache-2.0
 */

package resolve

import (
	"context"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/fanflow/fanflow/graphql/schema"
	"github.com/fanflow/fanflow/store"
)

// resolveQuery resolves one top-level query field. Root list and singleton
// queries call the store directly (there is no batching to win at the
// root); everything below the root goes through the loaders during
// completion.
func (r *RequestResolver) resolveQuery(ctx context.Context, op *schema.Operation,
	f *ast.Field) *Resolved {

	c := &completer{loaders: r.loaders}
	name := respName(f)
	var data interface{}

	switch f.Name {
	case "__typename":
		data = "Query"

	case "users":
		users, err := r.store.Users().FindMany(ctx, store.UserFilter{})
		if err != nil {
			return errResolved(f, err)
		}
		// prime the per-user loader so nested user resolution in this
		// request reuses the rows just fetched
		r.loaders.PrimeUsers(ctx, users)
		data = asList(c.completeObjects(ctx, "User", f.SelectionSet,
			toAnySlice(users), indexPaths(name, len(users))))

	case "posts":
		posts, err := r.store.Posts().FindMany(ctx, store.PostFilter{})
		if err != nil {
			return errResolved(f, err)
		}
		data = asList(c.completeObjects(ctx, "Post", f.SelectionSet,
			toAnySlice(posts), indexPaths(name, len(posts))))

	case "profiles":
		profiles, err := r.store.Profiles().FindMany(ctx, store.ProfileFilter{})
		if err != nil {
			return errResolved(f, err)
		}
		data = asList(c.completeObjects(ctx, "Profile", f.SelectionSet,
			toAnySlice(profiles), indexPaths(name, len(profiles))))

	case "memberTypes":
		memberTypes, err := r.store.MemberTypes().FindMany(ctx, store.MemberTypeFilter{})
		if err != nil {
			return errResolved(f, err)
		}
		data = asList(c.completeObjects(ctx, "MemberType", f.SelectionSet,
			toAnySlice(memberTypes), indexPaths(name, len(memberTypes))))

	case "user":
		id, err := uuidArg(f, "id", op.Vars)
		if err != nil {
			return errResolved(f, err)
		}
		u, err := r.store.Users().FindUnique(ctx, id)
		if err != nil {
			return errResolved(f, err)
		}
		if u != nil {
			r.loaders.PrimeUsers(ctx, []*store.User{u})
			data = c.completeObjects(ctx, "User", f.SelectionSet,
				[]interface{}{u}, [][]interface{}{{name}})[0]
		}

	case "post":
		id, err := uuidArg(f, "id", op.Vars)
		if err != nil {
			return errResolved(f, err)
		}
		p, err := r.store.Posts().FindUnique(ctx, id)
		if err != nil {
			return errResolved(f, err)
		}
		if p != nil {
			data = c.completeObjects(ctx, "Post", f.SelectionSet,
				[]interface{}{p}, [][]interface{}{{name}})[0]
		}

	case "profile":
		id, err := uuidArg(f, "id", op.Vars)
		if err != nil {
			return errResolved(f, err)
		}
		p, err := r.store.Profiles().FindUnique(ctx, id)
		if err != nil {
			return errResolved(f, err)
		}
		if p != nil {
			data = c.completeObjects(ctx, "Profile", f.SelectionSet,
				[]interface{}{p}, [][]interface{}{{name}})[0]
		}

	case "memberType":
		id, err := stringArg(f, "id", op.Vars)
		if err != nil {
			return errResolved(f, err)
		}
		mt, err := r.store.MemberTypes().FindUnique(ctx, id)
		if err != nil {
			return errResolved(f, err)
		}
		if mt != nil {
			data = c.completeObjects(ctx, "MemberType", f.SelectionSet,
				[]interface{}{mt}, [][]interface{}{{name}})[0]
		}

	default:
		// validation guarantees the field exists; this is a schema/resolver
		// mismatch
		return errResolved(f, errUnknownField(f))
	}

	return &Resolved{Field: f, Data: data, Errs: c.errs}
}
