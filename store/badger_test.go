/*
 * SPDX-FileCopyrightText: © Fanflow Authors <dev@fanflow.io>
 * SPDX-License-Identifier: Apache-2.0
 */

package store

import (
	"context"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func TestMemberTypesSeeded(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mts, err := s.MemberTypes().FindMany(ctx, MemberTypeFilter{})
	require.NoError(t, err)
	sort.Slice(mts, func(i, j int) bool { return mts[i].ID < mts[j].ID })
	want := []*MemberType{
		{ID: MemberTypeBasic, Discount: 2.5, PostsLimitPerMonth: 20},
		{ID: MemberTypeBusiness, Discount: 7.7, PostsLimitPerMonth: 100},
	}
	if diff := cmp.Diff(want, mts); diff != "" {
		t.Errorf("unexpected seeded member types (-want +got):\n%s", diff)
	}

	business, err := s.MemberTypes().FindUnique(ctx, MemberTypeBusiness)
	require.NoError(t, err)
	require.NotNil(t, business)
	require.Equal(t, 7.7, business.Discount)
	require.Equal(t, 100, business.PostsLimitPerMonth)

	missing, err := s.MemberTypes().FindUnique(ctx, "platinum")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestUserCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.Users().Create(ctx, CreateUser{Name: "alice", Balance: 10})
	require.NoError(t, err)
	require.NotEmpty(t, u.ID)

	got, err := s.Users().FindUnique(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, u, got)

	missing, err := s.Users().FindUnique(ctx, uuid.NewString())
	require.NoError(t, err)
	require.Nil(t, missing)

	name := "alicia"
	updated, err := s.Users().Update(ctx, u.ID, ChangeUser{Name: &name})
	require.NoError(t, err)
	require.Equal(t, "alicia", updated.Name)
	require.Equal(t, 10.0, updated.Balance)

	_, err = s.Users().Update(ctx, uuid.NewString(), ChangeUser{Name: &name})
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Users().Delete(ctx, u.ID))
	require.ErrorIs(t, s.Users().Delete(ctx, u.ID), ErrNotFound)
}

func TestUsersFindManyByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.Users().Create(ctx, CreateUser{Name: "a"})
	require.NoError(t, err)
	b, err := s.Users().Create(ctx, CreateUser{Name: "b"})
	require.NoError(t, err)
	_, err = s.Users().Create(ctx, CreateUser{Name: "c"})
	require.NoError(t, err)

	all, err := s.Users().FindMany(ctx, UserFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	// missing ids are simply absent, not errors
	got, err := s.Users().FindMany(ctx, UserFilter{IDIn: []string{a.ID, b.ID, uuid.NewString()}})
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestPostRequiresAuthor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Posts().Create(ctx, CreatePost{AuthorID: uuid.NewString(), Title: "t", Content: "c"})
	require.ErrorIs(t, err, ErrNotFound)

	u, err := s.Users().Create(ctx, CreateUser{Name: "author"})
	require.NoError(t, err)

	p, err := s.Posts().Create(ctx, CreatePost{AuthorID: u.ID, Title: "t", Content: "c"})
	require.NoError(t, err)
	require.Equal(t, u.ID, p.AuthorID)

	title := "t2"
	updated, err := s.Posts().Update(ctx, p.ID, ChangePost{Title: &title})
	require.NoError(t, err)
	require.Equal(t, "t2", updated.Title)
	require.Equal(t, "c", updated.Content)

	require.NoError(t, s.Posts().Delete(ctx, p.ID))
	require.ErrorIs(t, s.Posts().Delete(ctx, p.ID), ErrNotFound)
}

func TestPostsFindManyByAuthor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.Users().Create(ctx, CreateUser{Name: "a"})
	require.NoError(t, err)
	b, err := s.Users().Create(ctx, CreateUser{Name: "b"})
	require.NoError(t, err)

	for _, d := range []CreatePost{
		{AuthorID: a.ID, Title: "a1", Content: "x"},
		{AuthorID: a.ID, Title: "a2", Content: "x"},
		{AuthorID: b.ID, Title: "b1", Content: "x"},
	} {
		_, err := s.Posts().Create(ctx, d)
		require.NoError(t, err)
	}

	got, err := s.Posts().FindMany(ctx, PostFilter{AuthorIDIn: []string{a.ID}})
	require.NoError(t, err)
	require.Len(t, got, 2)
	var titles []string
	for _, p := range got {
		titles = append(titles, p.Title)
	}
	sort.Strings(titles)
	require.Equal(t, []string{"a1", "a2"}, titles)
}

func TestProfileInvariants(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.Users().Create(ctx, CreateUser{Name: "u"})
	require.NoError(t, err)

	_, err = s.Profiles().Create(ctx, CreateProfile{
		UserID: uuid.NewString(), IsMale: true, YearOfBirth: 1990, MemberTypeID: MemberTypeBasic,
	})
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.Profiles().Create(ctx, CreateProfile{
		UserID: u.ID, IsMale: true, YearOfBirth: 1990, MemberTypeID: "platinum",
	})
	require.ErrorIs(t, err, ErrNotFound)

	p, err := s.Profiles().Create(ctx, CreateProfile{
		UserID: u.ID, IsMale: true, YearOfBirth: 1990, MemberTypeID: MemberTypeBasic,
	})
	require.NoError(t, err)

	// one profile per user
	_, err = s.Profiles().Create(ctx, CreateProfile{
		UserID: u.ID, IsMale: false, YearOfBirth: 1991, MemberTypeID: MemberTypeBusiness,
	})
	require.ErrorIs(t, err, ErrDuplicate)

	isMale := false
	updated, err := s.Profiles().Update(ctx, p.ID, ChangeProfile{IsMale: &isMale})
	require.NoError(t, err)
	require.False(t, updated.IsMale)
	require.Equal(t, 1990, updated.YearOfBirth)

	require.NoError(t, s.Profiles().Delete(ctx, p.ID))
	require.ErrorIs(t, s.Profiles().Delete(ctx, p.ID), ErrNotFound)

	// deleting the profile frees the user slot
	_, err = s.Profiles().Create(ctx, CreateProfile{
		UserID: u.ID, IsMale: true, YearOfBirth: 1990, MemberTypeID: MemberTypeBasic,
	})
	require.NoError(t, err)
}

func TestProfilesFindManyByUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.Users().Create(ctx, CreateUser{Name: "a"})
	require.NoError(t, err)
	b, err := s.Users().Create(ctx, CreateUser{Name: "b"})
	require.NoError(t, err)

	pa, err := s.Profiles().Create(ctx, CreateProfile{
		UserID: a.ID, IsMale: true, YearOfBirth: 1990, MemberTypeID: MemberTypeBasic,
	})
	require.NoError(t, err)
	_, err = s.Profiles().Create(ctx, CreateProfile{
		UserID: b.ID, IsMale: false, YearOfBirth: 1985, MemberTypeID: MemberTypeBusiness,
	})
	require.NoError(t, err)

	got, err := s.Profiles().FindMany(ctx, ProfileFilter{UserIDIn: []string{a.ID, uuid.NewString()}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, pa.ID, got[0].ID)
}

func TestSubscriptions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.Users().Create(ctx, CreateUser{Name: "a"})
	require.NoError(t, err)
	b, err := s.Users().Create(ctx, CreateUser{Name: "b"})
	require.NoError(t, err)
	c, err := s.Users().Create(ctx, CreateUser{Name: "c"})
	require.NoError(t, err)

	require.ErrorIs(t, s.Subscriptions().Create(ctx, a.ID, uuid.NewString()), ErrNotFound)

	require.NoError(t, s.Subscriptions().Create(ctx, a.ID, b.ID))
	require.NoError(t, s.Subscriptions().Create(ctx, c.ID, b.ID))
	require.ErrorIs(t, s.Subscriptions().Create(ctx, a.ID, b.ID), ErrDuplicate)

	bySubscriber, err := s.Subscriptions().FindMany(ctx, SubscriptionFilter{SubscriberIDIn: []string{a.ID}})
	require.NoError(t, err)
	require.Len(t, bySubscriber, 1)
	require.Equal(t, b.ID, bySubscriber[0].AuthorID)

	byAuthor, err := s.Subscriptions().FindMany(ctx, SubscriptionFilter{AuthorIDIn: []string{b.ID}})
	require.NoError(t, err)
	require.Len(t, byAuthor, 2)

	require.NoError(t, s.Subscriptions().Delete(ctx, a.ID, b.ID))
	require.ErrorIs(t, s.Subscriptions().Delete(ctx, a.ID, b.ID), ErrNotFound)

	byAuthor, err = s.Subscriptions().FindMany(ctx, SubscriptionFilter{AuthorIDIn: []string{b.ID}})
	require.NoError(t, err)
	require.Len(t, byAuthor, 1)
	require.Equal(t, c.ID, byAuthor[0].SubscriberID)
}

func TestDeleteUserCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.Users().Create(ctx, CreateUser{Name: "doomed"})
	require.NoError(t, err)
	other, err := s.Users().Create(ctx, CreateUser{Name: "other"})
	require.NoError(t, err)

	p, err := s.Profiles().Create(ctx, CreateProfile{
		UserID: u.ID, IsMale: true, YearOfBirth: 1990, MemberTypeID: MemberTypeBasic,
	})
	require.NoError(t, err)
	post, err := s.Posts().Create(ctx, CreatePost{AuthorID: u.ID, Title: "t", Content: "c"})
	require.NoError(t, err)
	otherPost, err := s.Posts().Create(ctx, CreatePost{AuthorID: other.ID, Title: "keep", Content: "c"})
	require.NoError(t, err)

	// an edge in each direction
	require.NoError(t, s.Subscriptions().Create(ctx, u.ID, other.ID))
	require.NoError(t, s.Subscriptions().Create(ctx, other.ID, u.ID))

	require.NoError(t, s.Users().Delete(ctx, u.ID))

	gone, err := s.Profiles().FindUnique(ctx, p.ID)
	require.NoError(t, err)
	require.Nil(t, gone)

	gonePost, err := s.Posts().FindUnique(ctx, post.ID)
	require.NoError(t, err)
	require.Nil(t, gonePost)

	kept, err := s.Posts().FindUnique(ctx, otherPost.ID)
	require.NoError(t, err)
	require.NotNil(t, kept)

	edges, err := s.Subscriptions().FindMany(ctx, SubscriptionFilter{})
	require.NoError(t, err)
	require.Empty(t, edges)

	// the once-subscribed user has no dangling author-side mirror either
	byAuthor, err := s.Subscriptions().FindMany(ctx, SubscriptionFilter{AuthorIDIn: []string{other.ID}})
	require.NoError(t, err)
	require.Empty(t, byAuthor)

	// the freed profile slot is usable again by another user
	_, err = s.Profiles().Create(ctx, CreateProfile{
		UserID: other.ID, IsMale: false, YearOfBirth: 1991, MemberTypeID: MemberTypeBusiness,
	})
	require.NoError(t, err)
}

func TestSeedDemo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, SeedDemo(ctx, s))

	users, err := s.Users().FindMany(ctx, UserFilter{})
	require.NoError(t, err)
	require.Len(t, users, 3)

	posts, err := s.Posts().FindMany(ctx, PostFilter{})
	require.NoError(t, err)
	require.Len(t, posts, 3)

	profiles, err := s.Profiles().FindMany(ctx, ProfileFilter{})
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	edges, err := s.Subscriptions().FindMany(ctx, SubscriptionFilter{})
	require.NoError(t, err)
	require.Len(t, edges, 3)
}
