/*
 * SPDX-FileCopyrightText: © Fanflow Authors <dev@fanflow.io>
 * SPDX-License-Identifier: Apache-2.0
 */

package store

import (
	"context"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// SeedDemo loads a small fixture set: three users, a couple of posts each,
// profiles on two of them, and a subscription triangle. Used by
// `fanflow serve --seed` so a fresh store has something to query.
func SeedDemo(ctx context.Context, s Store) error {
	alice, err := s.Users().Create(ctx, CreateUser{Name: "alice", Balance: 100})
	if err != nil {
		return errors.Wrap(err, "seeding users")
	}
	bob, err := s.Users().Create(ctx, CreateUser{Name: "bob", Balance: 25.5})
	if err != nil {
		return errors.Wrap(err, "seeding users")
	}
	carol, err := s.Users().Create(ctx, CreateUser{Name: "carol"})
	if err != nil {
		return errors.Wrap(err, "seeding users")
	}

	postSeed := []CreatePost{
		{AuthorID: alice.ID, Title: "hello fanflow", Content: "first!"},
		{AuthorID: alice.ID, Title: "on batching", Content: "two round trips, not N+1"},
		{AuthorID: bob.ID, Title: "bob writes too", Content: "occasionally"},
	}
	for _, d := range postSeed {
		if _, err := s.Posts().Create(ctx, d); err != nil {
			return errors.Wrap(err, "seeding posts")
		}
	}

	if _, err := s.Profiles().Create(ctx, CreateProfile{
		UserID: alice.ID, IsMale: false, YearOfBirth: 1990, MemberTypeID: MemberTypeBusiness,
	}); err != nil {
		return errors.Wrap(err, "seeding profiles")
	}
	if _, err := s.Profiles().Create(ctx, CreateProfile{
		UserID: bob.ID, IsMale: true, YearOfBirth: 1984, MemberTypeID: MemberTypeBasic,
	}); err != nil {
		return errors.Wrap(err, "seeding profiles")
	}

	edges := [][2]string{
		{bob.ID, alice.ID},
		{carol.ID, alice.ID},
		{alice.ID, bob.ID},
	}
	for _, e := range edges {
		if err := s.Subscriptions().Create(ctx, e[0], e[1]); err != nil {
			return errors.Wrap(err, "seeding subscriptions")
		}
	}

	glog.Infof("seeded demo fixtures: users %s, %s, %s", alice.ID, bob.ID, carol.ID)
	return nil
}
