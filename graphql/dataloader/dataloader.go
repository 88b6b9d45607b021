/*
 * SPDX-FileCopyrightText: © Fanflow Authors <dev@fanflow.io>
 * SPDX-License-Identifier: Apache-2.0
 */

// Package dataloader holds the request-scoped batched loaders, one per
// relation traversal. Each loader collapses the single-key lookups issued
// while a sibling set resolves into one grouped store call, memoizes per
// key, and fans the grouped result back out in key order. A Loaders value
// lives exactly as long as one request; nothing here is shared across
// requests.
package dataloader

import (
	"context"
	"time"

	dl "github.com/graph-gophers/dataloader/v7"

	"github.com/fanflow/fanflow/store"
)

// batchWait is how long a loader holds its pending batch open. The executor
// enqueues every sibling key before reading the first thunk, so any positive
// window collects the whole level; this only bounds the flush latency.
const batchWait = 2 * time.Millisecond

// Loaders carries one loader per relation traversal. Construct a fresh set
// per request with New and pass it through resolution explicitly; a loader's
// cache must never outlive its request.
type Loaders struct {
	UserByID         *dl.Loader[string, *store.User]
	PostsByAuthor    *dl.Loader[string, []*store.Post]
	ProfileByUser    *dl.Loader[string, *store.Profile]
	MemberTypeByID   *dl.Loader[string, *store.MemberType]
	UserSubscribedTo *dl.Loader[string, []*store.User]
	SubscribedToUser *dl.Loader[string, []*store.User]
}

// New builds the per-request loader set over s.
func New(s store.Store) *Loaders {
	l := &Loaders{}
	l.UserByID = newLoader(func(ctx context.Context, keys []string) ([]*store.User, error) {
		return s.Users().FindMany(ctx, store.UserFilter{IDIn: keys})
	}, func(u *store.User) string { return u.ID })

	l.PostsByAuthor = newGroupLoader(func(ctx context.Context, keys []string) ([]*store.Post, error) {
		return s.Posts().FindMany(ctx, store.PostFilter{AuthorIDIn: keys})
	}, func(p *store.Post) string { return p.AuthorID })

	l.ProfileByUser = newLoader(func(ctx context.Context, keys []string) ([]*store.Profile, error) {
		return s.Profiles().FindMany(ctx, store.ProfileFilter{UserIDIn: keys})
	}, func(p *store.Profile) string { return p.UserID })

	l.MemberTypeByID = newLoader(func(ctx context.Context, keys []string) ([]*store.MemberType, error) {
		return s.MemberTypes().FindMany(ctx, store.MemberTypeFilter{IDIn: keys})
	}, func(mt *store.MemberType) string { return mt.ID })

	l.UserSubscribedTo = newEdgeLoader(l.UserByID,
		func(ctx context.Context, keys []string) ([]*store.Subscription, error) {
			return s.Subscriptions().FindMany(ctx, store.SubscriptionFilter{SubscriberIDIn: keys})
		},
		func(e *store.Subscription) (groupKey, userID string) {
			return e.SubscriberID, e.AuthorID
		})

	l.SubscribedToUser = newEdgeLoader(l.UserByID,
		func(ctx context.Context, keys []string) ([]*store.Subscription, error) {
			return s.Subscriptions().FindMany(ctx, store.SubscriptionFilter{AuthorIDIn: keys})
		},
		func(e *store.Subscription) (groupKey, userID string) {
			return e.AuthorID, e.SubscriberID
		})

	return l
}

// PrimeUsers pre-populates the UserByID cache, so per-user resolution later
// in the same request reuses rows the root `users` query already fetched
// instead of re-fetching them.
func (l *Loaders) PrimeUsers(ctx context.Context, users []*store.User) {
	for _, u := range users {
		l.UserByID.Prime(ctx, u.ID, u)
	}
}

// newLoader builds a singleton-valued loader: one grouped call, results
// mapped back by key; keys with no matching row resolve to the zero value
// (a nil pointer), which the resolver renders as null.
func newLoader[V any](
	fetch func(ctx context.Context, keys []string) ([]V, error),
	keyOf func(V) string,
) *dl.Loader[string, V] {
	batch := func(ctx context.Context, keys []string) []*dl.Result[V] {
		rows, err := fetch(ctx, keys)
		if err != nil {
			return failAll[V](len(keys), err)
		}
		byKey := make(map[string]V, len(rows))
		for _, row := range rows {
			byKey[keyOf(row)] = row
		}
		out := make([]*dl.Result[V], len(keys))
		for i, k := range keys {
			out[i] = &dl.Result[V]{Data: byKey[k]}
		}
		return out
	}
	return dl.NewBatchedLoader(batch, dl.WithWait[string, V](batchWait))
}

// newGroupLoader builds a list-valued loader: one grouped call, rows grouped
// by key; keys with no rows resolve to an empty list.
func newGroupLoader[V any](
	fetch func(ctx context.Context, keys []string) ([]V, error),
	keyOf func(V) string,
) *dl.Loader[string, []V] {
	batch := func(ctx context.Context, keys []string) []*dl.Result[[]V] {
		rows, err := fetch(ctx, keys)
		if err != nil {
			return failAll[[]V](len(keys), err)
		}
		grouped := make(map[string][]V, len(keys))
		for _, row := range rows {
			k := keyOf(row)
			grouped[k] = append(grouped[k], row)
		}
		out := make([]*dl.Result[[]V], len(keys))
		for i, k := range keys {
			out[i] = &dl.Result[[]V]{Data: grouped[k]}
		}
		return out
	}
	return dl.NewBatchedLoader(batch, dl.WithWait[string, []V](batchWait))
}

// newEdgeLoader builds the subscription traversals: one grouped edge call,
// then the user at the far end of each edge is joined through the UserByID
// loader, so the join fetch batches and dedups with every other pending user
// lookup in the request (including rows primed by the root users query).
func newEdgeLoader(
	userByID *dl.Loader[string, *store.User],
	fetchEdges func(ctx context.Context, keys []string) ([]*store.Subscription, error),
	endpoints func(e *store.Subscription) (groupKey, userID string),
) *dl.Loader[string, []*store.User] {
	batch := func(ctx context.Context, keys []string) []*dl.Result[[]*store.User] {
		edges, err := fetchEdges(ctx, keys)
		if err != nil {
			return failAll[[]*store.User](len(keys), err)
		}

		userIDs := make(map[string]dl.Thunk[*store.User])
		for _, e := range edges {
			_, userID := endpoints(e)
			if _, ok := userIDs[userID]; !ok {
				// enqueue only; reads happen after every key is pending
				userIDs[userID] = userByID.Load(ctx, userID)
			}
		}

		users := make(map[string]*store.User, len(userIDs))
		for id, thunk := range userIDs {
			u, err := thunk()
			if err != nil {
				return failAll[[]*store.User](len(keys), err)
			}
			if u != nil {
				users[id] = u
			}
		}

		grouped := make(map[string][]*store.User, len(keys))
		for _, e := range edges {
			groupKey, userID := endpoints(e)
			if u, ok := users[userID]; ok {
				grouped[groupKey] = append(grouped[groupKey], u)
			}
		}
		out := make([]*dl.Result[[]*store.User], len(keys))
		for i, k := range keys {
			out[i] = &dl.Result[[]*store.User]{Data: grouped[k]}
		}
		return out
	}
	return dl.NewBatchedLoader(batch, dl.WithWait[string, []*store.User](batchWait))
}

func failAll[V any](n int, err error) []*dl.Result[V] {
	out := make([]*dl.Result[V], n)
	for i := range out {
		out[i] = &dl.Result[V]{Error: err}
	}
	return out
}
