/*
 * SPDX-FileCopyrightText: © Fanflow Authors <dev@fanflow.io>
 * SPDX-License-Identifier: Apache-2.0
 */

// Package store owns persistence for the fanflow entities. The rest of the
// system consumes the Store interface and never touches the underlying
// key-value engine directly, so reads can be grouped (the "id in set"
// filters) without the callers knowing how the rows are laid out.
package store

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned by Update/Delete when no entity has the given
	// id, and by Create when a referenced entity is missing.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned by Create when a uniqueness invariant would
	// be violated (one profile per user, one subscription per pair).
	ErrDuplicate = errors.New("entity already exists")
)

// User is someone who can author posts and subscribe to other users.
type User struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Balance float64 `json:"balance"`
}

// Post is authored by exactly one user.
type Post struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	AuthorID string `json:"authorId"`
}

// Profile holds the optional per-user profile. UserID is unique across
// profiles.
type Profile struct {
	ID           string `json:"id"`
	IsMale       bool   `json:"isMale"`
	YearOfBirth  int    `json:"yearOfBirth"`
	UserID       string `json:"userId"`
	MemberTypeID string `json:"memberTypeId"`
}

// MemberType is one of a small fixed set of membership tiers. Rows are
// seeded at open and immutable at the API surface.
type MemberType struct {
	ID                 string  `json:"id"`
	Discount           float64 `json:"discount"`
	PostsLimitPerMonth int     `json:"postsLimitPerMonth"`
}

// Subscription is the "subscriber follows author" edge. The pair is unique.
type Subscription struct {
	SubscriberID string `json:"subscriberId"`
	AuthorID     string `json:"authorId"`
}

// Member type ids. The GraphQL schema exposes these as a closed enum.
const (
	MemberTypeBasic    = "basic"
	MemberTypeBusiness = "business"
)

type UserFilter struct {
	IDIn []string
}

type PostFilter struct {
	AuthorIDIn []string
}

type ProfileFilter struct {
	UserIDIn []string
}

type MemberTypeFilter struct {
	IDIn []string
}

// SubscriptionFilter selects edges by either endpoint. At most one side is
// set per call.
type SubscriptionFilter struct {
	SubscriberIDIn []string
	AuthorIDIn     []string
}

type CreateUser struct {
	Name    string
	Balance float64
}

type ChangeUser struct {
	Name *string
}

type CreatePost struct {
	AuthorID string
	Title    string
	Content  string
}

type ChangePost struct {
	Title *string
}

type CreateProfile struct {
	UserID       string
	IsMale       bool
	YearOfBirth  int
	MemberTypeID string
}

type ChangeProfile struct {
	IsMale *bool
}

// Users provides CRUD over users. FindUnique returns (nil, nil) when no user
// has the id, which the GraphQL layer renders as null.
type Users interface {
	FindMany(ctx context.Context, f UserFilter) ([]*User, error)
	FindUnique(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, d CreateUser) (*User, error)
	Update(ctx context.Context, id string, d ChangeUser) (*User, error)
	Delete(ctx context.Context, id string) error
}

type Posts interface {
	FindMany(ctx context.Context, f PostFilter) ([]*Post, error)
	FindUnique(ctx context.Context, id string) (*Post, error)
	Create(ctx context.Context, d CreatePost) (*Post, error)
	Update(ctx context.Context, id string, d ChangePost) (*Post, error)
	Delete(ctx context.Context, id string) error
}

type Profiles interface {
	FindMany(ctx context.Context, f ProfileFilter) ([]*Profile, error)
	FindUnique(ctx context.Context, id string) (*Profile, error)
	Create(ctx context.Context, d CreateProfile) (*Profile, error)
	Update(ctx context.Context, id string, d ChangeProfile) (*Profile, error)
	Delete(ctx context.Context, id string) error
}

type MemberTypes interface {
	FindMany(ctx context.Context, f MemberTypeFilter) ([]*MemberType, error)
	FindUnique(ctx context.Context, id string) (*MemberType, error)
}

type Subscriptions interface {
	FindMany(ctx context.Context, f SubscriptionFilter) ([]*Subscription, error)
	Create(ctx context.Context, subscriberID, authorID string) error
	Delete(ctx context.Context, subscriberID, authorID string) error
}

// Store groups the per-entity repositories.
type Store interface {
	Users() Users
	Posts() Posts
	Profiles() Profiles
	MemberTypes() MemberTypes
	Subscriptions() Subscriptions
	Close() error
}
