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

// resolveMutation resolves one top-level mutation field. The second return
// reports whether the mutation itself succeeded; completion errors on the
// returned entity's relation fields don't stop the serial mutation chain.
//
// Deletes resolve to true on success. A delete of a missing entity
// propagates the store's not-found as a field error and resolves the field
// to null, never to a false-but-successful boolean.
func (r *RequestResolver) resolveMutation(ctx context.Context, op *schema.Operation,
	f *ast.Field) (*Resolved, bool) {

	c := &completer{loaders: r.loaders}
	name := respName(f)
	var data interface{}

	fail := func(err error) (*Resolved, bool) {
		return errResolved(f, err), false
	}

	switch f.Name {
	case "__typename":
		data = "Mutation"

	case "createUser":
		dto, err := objectArg(f, "dto", op.Vars)
		if err != nil {
			return fail(err)
		}
		userName, err := stringField(dto, "name")
		if err != nil {
			return fail(err)
		}
		balance, err := floatField(dto, "balance", 0)
		if err != nil {
			return fail(err)
		}
		u, err := r.store.Users().Create(ctx, store.CreateUser{Name: userName, Balance: balance})
		if err != nil {
			return fail(err)
		}
		data = c.completeObjects(ctx, "User", f.SelectionSet,
			[]interface{}{u}, [][]interface{}{{name}})[0]

	case "createPost":
		dto, err := objectArg(f, "dto", op.Vars)
		if err != nil {
			return fail(err)
		}
		d := store.CreatePost{}
		if d.AuthorID, err = uuidField(dto, "authorId"); err != nil {
			return fail(err)
		}
		if d.Title, err = stringField(dto, "title"); err != nil {
			return fail(err)
		}
		if d.Content, err = stringField(dto, "content"); err != nil {
			return fail(err)
		}
		p, err := r.store.Posts().Create(ctx, d)
		if err != nil {
			return fail(err)
		}
		data = c.completeObjects(ctx, "Post", f.SelectionSet,
			[]interface{}{p}, [][]interface{}{{name}})[0]

	case "createProfile":
		dto, err := objectArg(f, "dto", op.Vars)
		if err != nil {
			return fail(err)
		}
		d := store.CreateProfile{}
		if d.UserID, err = uuidField(dto, "userId"); err != nil {
			return fail(err)
		}
		if d.IsMale, err = boolField(dto, "isMale"); err != nil {
			return fail(err)
		}
		if d.YearOfBirth, err = intField(dto, "yearOfBirth"); err != nil {
			return fail(err)
		}
		if d.MemberTypeID, err = stringField(dto, "memberTypeId"); err != nil {
			return fail(err)
		}
		p, err := r.store.Profiles().Create(ctx, d)
		if err != nil {
			return fail(err)
		}
		data = c.completeObjects(ctx, "Profile", f.SelectionSet,
			[]interface{}{p}, [][]interface{}{{name}})[0]

	case "changeUser":
		id, err := uuidArg(f, "id", op.Vars)
		if err != nil {
			return fail(err)
		}
		dto, err := objectArg(f, "dto", op.Vars)
		if err != nil {
			return fail(err)
		}
		d := store.ChangeUser{}
		if d.Name, err = optStringField(dto, "name"); err != nil {
			return fail(err)
		}
		u, err := r.store.Users().Update(ctx, id, d)
		if err != nil {
			return fail(err)
		}
		data = c.completeObjects(ctx, "User", f.SelectionSet,
			[]interface{}{u}, [][]interface{}{{name}})[0]

	case "changePost":
		id, err := uuidArg(f, "id", op.Vars)
		if err != nil {
			return fail(err)
		}
		dto, err := objectArg(f, "dto", op.Vars)
		if err != nil {
			return fail(err)
		}
		d := store.ChangePost{}
		if d.Title, err = optStringField(dto, "title"); err != nil {
			return fail(err)
		}
		p, err := r.store.Posts().Update(ctx, id, d)
		if err != nil {
			return fail(err)
		}
		data = c.completeObjects(ctx, "Post", f.SelectionSet,
			[]interface{}{p}, [][]interface{}{{name}})[0]

	case "changeProfile":
		id, err := uuidArg(f, "id", op.Vars)
		if err != nil {
			return fail(err)
		}
		dto, err := objectArg(f, "dto", op.Vars)
		if err != nil {
			return fail(err)
		}
		d := store.ChangeProfile{}
		if d.IsMale, err = optBoolField(dto, "isMale"); err != nil {
			return fail(err)
		}
		p, err := r.store.Profiles().Update(ctx, id, d)
		if err != nil {
			return fail(err)
		}
		data = c.completeObjects(ctx, "Profile", f.SelectionSet,
			[]interface{}{p}, [][]interface{}{{name}})[0]

	case "deleteUser":
		id, err := uuidArg(f, "id", op.Vars)
		if err != nil {
			return fail(err)
		}
		if err := r.store.Users().Delete(ctx, id); err != nil {
			return fail(err)
		}
		data = true

	case "deletePost":
		id, err := uuidArg(f, "id", op.Vars)
		if err != nil {
			return fail(err)
		}
		if err := r.store.Posts().Delete(ctx, id); err != nil {
			return fail(err)
		}
		data = true

	case "deleteProfile":
		id, err := uuidArg(f, "id", op.Vars)
		if err != nil {
			return fail(err)
		}
		if err := r.store.Profiles().Delete(ctx, id); err != nil {
			return fail(err)
		}
		data = true

	case "subscribeTo":
		userID, err := uuidArg(f, "userId", op.Vars)
		if err != nil {
			return fail(err)
		}
		authorID, err := uuidArg(f, "authorId", op.Vars)
		if err != nil {
			return fail(err)
		}
		if err := r.store.Subscriptions().Create(ctx, userID, authorID); err != nil {
			return fail(err)
		}
		// the field resolves to the updated subscriber, as the API contract
		// has it
		u, err := r.store.Users().FindUnique(ctx, userID)
		if err != nil {
			return fail(err)
		}
		if u != nil {
			data = c.completeObjects(ctx, "User", f.SelectionSet,
				[]interface{}{u}, [][]interface{}{{name}})[0]
		}

	case "unsubscribeFrom":
		userID, err := uuidArg(f, "userId", op.Vars)
		if err != nil {
			return fail(err)
		}
		authorID, err := uuidArg(f, "authorId", op.Vars)
		if err != nil {
			return fail(err)
		}
		if err := r.store.Subscriptions().Delete(ctx, userID, authorID); err != nil {
			return fail(err)
		}
		data = true

	default:
		return fail(errUnknownField(f))
	}

	return &Resolved{Field: f, Data: data, Errs: c.errs}, true
}
