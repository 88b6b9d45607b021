/*
 * SPDX-FileCopyrightText: © Fanflow Authors <dev@fanflow.io>
 * SPDX-License-Identifier: Apache-2.0
 */

package store

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/ristretto/v2"
	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/fanflow/fanflow/x"
)

// Key layout. Every entity row is JSON under a typed prefix. The two
// secondary keys keep the uniqueness invariants checkable with a single Get:
// profileUserPrefix maps a user id to its profile id (one profile per user),
// rsubPrefix mirrors every subscription edge for author-side scans.
const (
	userPrefix        = "user:"
	postPrefix        = "post:"
	profilePrefix     = "profile:"
	profileUserPrefix = "profile_user:"
	memberTypePrefix  = "membertype:"
	subPrefix         = "sub:"  // sub:<subscriberID>:<authorID>
	rsubPrefix        = "rsub:" // rsub:<authorID>:<subscriberID>
)

// BadgerStore implements Store on an embedded badger database.
type BadgerStore struct {
	db *badger.DB

	// Member types are seeded at open and never mutated, so their reads can
	// be fronted by a shared cache without an invalidation path.
	memberTypes *ristretto.Cache[string, *MemberType]
}

// Open opens (or creates) a store at dir. An empty dir opens an in-memory
// database, which is what the tests use.
func Open(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "opening badger store at %q", dir)
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, *MemberType]{
		NumCounters: 1 << 10,
		MaxCost:     1 << 10,
		BufferItems: 64,
	})
	if err != nil {
		x.Ignore(db.Close())
		return nil, errors.Wrap(err, "creating member type cache")
	}

	s := &BadgerStore{db: db, memberTypes: cache}
	if err := s.seedMemberTypes(); err != nil {
		x.Ignore(db.Close())
		return nil, err
	}
	return s, nil
}

func (s *BadgerStore) Close() error {
	s.memberTypes.Close()
	return s.db.Close()
}

func (s *BadgerStore) Users() Users                 { return users{s} }
func (s *BadgerStore) Posts() Posts                 { return posts{s} }
func (s *BadgerStore) Profiles() Profiles           { return profiles{s} }
func (s *BadgerStore) MemberTypes() MemberTypes     { return memberTypes{s} }
func (s *BadgerStore) Subscriptions() Subscriptions { return subscriptions{s} }

// seedMemberTypes writes the fixed membership tiers. Existing rows are left
// untouched so reopening a store keeps whatever it had.
func (s *BadgerStore) seedMemberTypes() error {
	seed := []*MemberType{
		{ID: MemberTypeBasic, Discount: 2.5, PostsLimitPerMonth: 20},
		{ID: MemberTypeBusiness, Discount: 7.7, PostsLimitPerMonth: 100},
	}
	return s.db.Update(func(txn *badger.Txn) error {
		for _, mt := range seed {
			key := []byte(memberTypePrefix + mt.ID)
			if _, err := txn.Get(key); err == nil {
				continue
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return errors.Wrap(err, "seeding member types")
			}
			if err := setJSON(txn, key, mt); err != nil {
				return err
			}
		}
		return nil
	})
}

func setJSON(txn *badger.Txn, key []byte, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "marshaling %s", key)
	}
	return errors.Wrapf(txn.Set(key, b), "writing %s", key)
}

// getJSON reads key into out. Returns (false, nil) when the key is absent.
func getJSON(txn *badger.Txn, key []byte, out interface{}) (bool, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "reading %s", key)
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
	return err == nil, errors.Wrapf(err, "decoding %s", key)
}

// scanPrefix decodes every value under prefix, handing each to fn.
func scanPrefix(txn *badger.Txn, prefix string, fn func(val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
		if err := it.Item().Value(func(val []byte) error {
			return fn(val)
		}); err != nil {
			return errors.Wrapf(err, "scanning %s", prefix)
		}
	}
	return nil
}

// keysWithPrefix collects the raw keys under prefix, for delete passes that
// can't remove entries while iterating.
func keysWithPrefix(txn *badger.Txn, prefix string) [][]byte {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()
	var keys [][]byte
	for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys
}

func inSet(set []string) map[string]bool {
	if set == nil {
		return nil
	}
	m := make(map[string]bool, len(set))
	for _, s := range set {
		m[s] = true
	}
	return m
}

type users struct{ s *BadgerStore }

func (r users) FindMany(_ context.Context, f UserFilter) ([]*User, error) {
	var out []*User
	err := r.s.db.View(func(txn *badger.Txn) error {
		// With an id set this is a grouped point-lookup, not a scan; missing
		// ids are simply absent from the result.
		if f.IDIn != nil {
			for _, id := range f.IDIn {
				var u User
				found, err := getJSON(txn, []byte(userPrefix+id), &u)
				if err != nil {
					return err
				}
				if found {
					out = append(out, &u)
				}
			}
			return nil
		}
		return scanPrefix(txn, userPrefix, func(val []byte) error {
			var u User
			if err := json.Unmarshal(val, &u); err != nil {
				return err
			}
			out = append(out, &u)
			return nil
		})
	})
	return out, err
}

func (r users) FindUnique(_ context.Context, id string) (*User, error) {
	var u User
	var found bool
	err := r.s.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = getJSON(txn, []byte(userPrefix+id), &u)
		return err
	})
	if err != nil || !found {
		return nil, err
	}
	return &u, nil
}

func (r users) Create(_ context.Context, d CreateUser) (*User, error) {
	u := &User{ID: uuid.NewString(), Name: d.Name, Balance: d.Balance}
	err := r.s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, []byte(userPrefix+u.ID), u)
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r users) Update(_ context.Context, id string, d ChangeUser) (*User, error) {
	var u User
	err := r.s.db.Update(func(txn *badger.Txn) error {
		found, err := getJSON(txn, []byte(userPrefix+id), &u)
		if err != nil {
			return err
		}
		if !found {
			return errors.Wrapf(ErrNotFound, "user %s", id)
		}
		if d.Name != nil {
			u.Name = *d.Name
		}
		return setJSON(txn, []byte(userPrefix+id), &u)
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Delete removes the user and cascades over everything hanging off it: the
// profile, authored posts, and subscription edges in both directions.
func (r users) Delete(_ context.Context, id string) error {
	return r.s.db.Update(func(txn *badger.Txn) error {
		userKey := []byte(userPrefix + id)
		if _, err := txn.Get(userKey); errors.Is(err, badger.ErrKeyNotFound) {
			return errors.Wrapf(ErrNotFound, "user %s", id)
		} else if err != nil {
			return errors.Wrapf(err, "reading %s", userKey)
		}
		if err := txn.Delete(userKey); err != nil {
			return errors.Wrapf(err, "deleting user %s", id)
		}

		var profileID string
		found, err := getJSON(txn, []byte(profileUserPrefix+id), &profileID)
		if err != nil {
			return err
		}
		if found {
			if err := txn.Delete([]byte(profilePrefix + profileID)); err != nil {
				return errors.Wrapf(err, "deleting profile of user %s", id)
			}
			if err := txn.Delete([]byte(profileUserPrefix + id)); err != nil {
				return errors.Wrapf(err, "deleting profile index of user %s", id)
			}
		}

		var postKeys [][]byte
		if err := scanAll(txn, postPrefix, func(key, val []byte) error {
			var p Post
			if err := json.Unmarshal(val, &p); err != nil {
				return err
			}
			if p.AuthorID == id {
				postKeys = append(postKeys, append([]byte(nil), key...))
			}
			return nil
		}); err != nil {
			return err
		}

		edgeKeys := keysWithPrefix(txn, subPrefix+id+":")
		for _, key := range keysWithPrefix(txn, rsubPrefix+id+":") {
			edgeKeys = append(edgeKeys, key)
			// rsub:<author>:<subscriber> mirrors sub:<subscriber>:<author>
			subscriberID := strings.TrimPrefix(string(key), rsubPrefix+id+":")
			edgeKeys = append(edgeKeys, []byte(subPrefix+subscriberID+":"+id))
		}
		for _, key := range keysWithPrefix(txn, subPrefix+id+":") {
			authorID := strings.TrimPrefix(string(key), subPrefix+id+":")
			edgeKeys = append(edgeKeys, []byte(rsubPrefix+authorID+":"+id))
		}

		for _, key := range append(postKeys, edgeKeys...) {
			if err := txn.Delete(key); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return errors.Wrapf(err, "cascade deleting %s", key)
			}
		}
		glog.V(2).Infof("deleted user %s with %d posts and %d edge keys",
			id, len(postKeys), len(edgeKeys))
		return nil
	})
}

// scanAll is scanPrefix but also hands the key to fn.
func scanAll(txn *badger.Txn, prefix string, fn func(key, val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
		item := it.Item()
		key := item.KeyCopy(nil)
		if err := item.Value(func(val []byte) error {
			return fn(key, val)
		}); err != nil {
			return errors.Wrapf(err, "scanning %s", prefix)
		}
	}
	return nil
}

type posts struct{ s *BadgerStore }

func (r posts) FindMany(_ context.Context, f PostFilter) ([]*Post, error) {
	authors := inSet(f.AuthorIDIn)
	var out []*Post
	err := r.s.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, postPrefix, func(val []byte) error {
			var p Post
			if err := json.Unmarshal(val, &p); err != nil {
				return err
			}
			if authors == nil || authors[p.AuthorID] {
				out = append(out, &p)
			}
			return nil
		})
	})
	return out, err
}

func (r posts) FindUnique(_ context.Context, id string) (*Post, error) {
	var p Post
	var found bool
	err := r.s.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = getJSON(txn, []byte(postPrefix+id), &p)
		return err
	})
	if err != nil || !found {
		return nil, err
	}
	return &p, nil
}

func (r posts) Create(_ context.Context, d CreatePost) (*Post, error) {
	p := &Post{ID: uuid.NewString(), Title: d.Title, Content: d.Content, AuthorID: d.AuthorID}
	err := r.s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(userPrefix + d.AuthorID)); errors.Is(err, badger.ErrKeyNotFound) {
			return errors.Wrapf(ErrNotFound, "author %s", d.AuthorID)
		} else if err != nil {
			return errors.Wrap(err, "checking author")
		}
		return setJSON(txn, []byte(postPrefix+p.ID), p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r posts) Update(_ context.Context, id string, d ChangePost) (*Post, error) {
	var p Post
	err := r.s.db.Update(func(txn *badger.Txn) error {
		found, err := getJSON(txn, []byte(postPrefix+id), &p)
		if err != nil {
			return err
		}
		if !found {
			return errors.Wrapf(ErrNotFound, "post %s", id)
		}
		if d.Title != nil {
			p.Title = *d.Title
		}
		return setJSON(txn, []byte(postPrefix+id), &p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r posts) Delete(_ context.Context, id string) error {
	return r.s.db.Update(func(txn *badger.Txn) error {
		key := []byte(postPrefix + id)
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return errors.Wrapf(ErrNotFound, "post %s", id)
		} else if err != nil {
			return errors.Wrapf(err, "reading %s", key)
		}
		return errors.Wrapf(txn.Delete(key), "deleting post %s", id)
	})
}

type profiles struct{ s *BadgerStore }

func (r profiles) FindMany(_ context.Context, f ProfileFilter) ([]*Profile, error) {
	var out []*Profile
	err := r.s.db.View(func(txn *badger.Txn) error {
		// The per-user index turns a filtered lookup into grouped point
		// reads instead of a scan.
		if f.UserIDIn != nil {
			for _, userID := range f.UserIDIn {
				var profileID string
				found, err := getJSON(txn, []byte(profileUserPrefix+userID), &profileID)
				if err != nil {
					return err
				}
				if !found {
					continue
				}
				var p Profile
				if found, err = getJSON(txn, []byte(profilePrefix+profileID), &p); err != nil {
					return err
				} else if found {
					out = append(out, &p)
				}
			}
			return nil
		}
		return scanPrefix(txn, profilePrefix, func(val []byte) error {
			var p Profile
			if err := json.Unmarshal(val, &p); err != nil {
				return err
			}
			out = append(out, &p)
			return nil
		})
	})
	return out, err
}

func (r profiles) FindUnique(_ context.Context, id string) (*Profile, error) {
	var p Profile
	var found bool
	err := r.s.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = getJSON(txn, []byte(profilePrefix+id), &p)
		return err
	})
	if err != nil || !found {
		return nil, err
	}
	return &p, nil
}

func (r profiles) Create(_ context.Context, d CreateProfile) (*Profile, error) {
	p := &Profile{
		ID:           uuid.NewString(),
		IsMale:       d.IsMale,
		YearOfBirth:  d.YearOfBirth,
		UserID:       d.UserID,
		MemberTypeID: d.MemberTypeID,
	}
	err := r.s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(userPrefix + d.UserID)); errors.Is(err, badger.ErrKeyNotFound) {
			return errors.Wrapf(ErrNotFound, "user %s", d.UserID)
		} else if err != nil {
			return errors.Wrap(err, "checking user")
		}
		if _, err := txn.Get([]byte(memberTypePrefix + d.MemberTypeID)); errors.Is(err, badger.ErrKeyNotFound) {
			return errors.Wrapf(ErrNotFound, "member type %s", d.MemberTypeID)
		} else if err != nil {
			return errors.Wrap(err, "checking member type")
		}
		if _, err := txn.Get([]byte(profileUserPrefix + d.UserID)); err == nil {
			return errors.Wrapf(ErrDuplicate, "profile for user %s", d.UserID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return errors.Wrap(err, "checking profile uniqueness")
		}
		if err := setJSON(txn, []byte(profilePrefix+p.ID), p); err != nil {
			return err
		}
		return setJSON(txn, []byte(profileUserPrefix+d.UserID), p.ID)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r profiles) Update(_ context.Context, id string, d ChangeProfile) (*Profile, error) {
	var p Profile
	err := r.s.db.Update(func(txn *badger.Txn) error {
		found, err := getJSON(txn, []byte(profilePrefix+id), &p)
		if err != nil {
			return err
		}
		if !found {
			return errors.Wrapf(ErrNotFound, "profile %s", id)
		}
		if d.IsMale != nil {
			p.IsMale = *d.IsMale
		}
		return setJSON(txn, []byte(profilePrefix+id), &p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r profiles) Delete(_ context.Context, id string) error {
	return r.s.db.Update(func(txn *badger.Txn) error {
		var p Profile
		found, err := getJSON(txn, []byte(profilePrefix+id), &p)
		if err != nil {
			return err
		}
		if !found {
			return errors.Wrapf(ErrNotFound, "profile %s", id)
		}
		if err := txn.Delete([]byte(profilePrefix + id)); err != nil {
			return errors.Wrapf(err, "deleting profile %s", id)
		}
		return errors.Wrapf(txn.Delete([]byte(profileUserPrefix+p.UserID)),
			"deleting profile index of user %s", p.UserID)
	})
}

type memberTypes struct{ s *BadgerStore }

func (r memberTypes) FindMany(_ context.Context, f MemberTypeFilter) ([]*MemberType, error) {
	var out []*MemberType
	if f.IDIn != nil {
		var misses []string
		for _, id := range f.IDIn {
			if mt, ok := r.s.memberTypes.Get(id); ok {
				out = append(out, mt)
			} else {
				misses = append(misses, id)
			}
		}
		if len(misses) == 0 {
			return out, nil
		}
		err := r.s.db.View(func(txn *badger.Txn) error {
			for _, id := range misses {
				var mt MemberType
				found, err := getJSON(txn, []byte(memberTypePrefix+id), &mt)
				if err != nil {
					return err
				}
				if found {
					r.s.memberTypes.Set(id, &mt, 1)
					out = append(out, &mt)
				}
			}
			return nil
		})
		return out, err
	}
	err := r.s.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, memberTypePrefix, func(val []byte) error {
			var mt MemberType
			if err := json.Unmarshal(val, &mt); err != nil {
				return err
			}
			out = append(out, &mt)
			return nil
		})
	})
	return out, err
}

func (r memberTypes) FindUnique(ctx context.Context, id string) (*MemberType, error) {
	if mt, ok := r.s.memberTypes.Get(id); ok {
		return mt, nil
	}
	found, err := r.FindMany(ctx, MemberTypeFilter{IDIn: []string{id}})
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return found[0], nil
}

type subscriptions struct{ s *BadgerStore }

func (r subscriptions) FindMany(_ context.Context, f SubscriptionFilter) ([]*Subscription, error) {
	var out []*Subscription
	decode := func(val []byte) error {
		var sub Subscription
		if err := json.Unmarshal(val, &sub); err != nil {
			return err
		}
		out = append(out, &sub)
		return nil
	}
	err := r.s.db.View(func(txn *badger.Txn) error {
		switch {
		case f.SubscriberIDIn != nil:
			for _, id := range f.SubscriberIDIn {
				if err := scanPrefix(txn, subPrefix+id+":", decode); err != nil {
					return err
				}
			}
		case f.AuthorIDIn != nil:
			for _, id := range f.AuthorIDIn {
				if err := scanPrefix(txn, rsubPrefix+id+":", decode); err != nil {
					return err
				}
			}
		default:
			return scanPrefix(txn, subPrefix, decode)
		}
		return nil
	})
	return out, err
}

func (r subscriptions) Create(_ context.Context, subscriberID, authorID string) error {
	return r.s.db.Update(func(txn *badger.Txn) error {
		for _, userID := range []string{subscriberID, authorID} {
			if _, err := txn.Get([]byte(userPrefix + userID)); errors.Is(err, badger.ErrKeyNotFound) {
				return errors.Wrapf(ErrNotFound, "user %s", userID)
			} else if err != nil {
				return errors.Wrap(err, "checking user")
			}
		}
		forward := []byte(subPrefix + subscriberID + ":" + authorID)
		if _, err := txn.Get(forward); err == nil {
			return errors.Wrapf(ErrDuplicate, "subscription of %s to %s", subscriberID, authorID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return errors.Wrap(err, "checking subscription")
		}
		sub := &Subscription{SubscriberID: subscriberID, AuthorID: authorID}
		if err := setJSON(txn, forward, sub); err != nil {
			return err
		}
		return setJSON(txn, []byte(rsubPrefix+authorID+":"+subscriberID), sub)
	})
}

func (r subscriptions) Delete(_ context.Context, subscriberID, authorID string) error {
	return r.s.db.Update(func(txn *badger.Txn) error {
		forward := []byte(subPrefix + subscriberID + ":" + authorID)
		if _, err := txn.Get(forward); errors.Is(err, badger.ErrKeyNotFound) {
			return errors.Wrapf(ErrNotFound, "subscription of %s to %s", subscriberID, authorID)
		} else if err != nil {
			return errors.Wrap(err, "checking subscription")
		}
		if err := txn.Delete(forward); err != nil {
			return errors.Wrap(err, "deleting subscription")
		}
		return errors.Wrap(txn.Delete([]byte(rsubPrefix+authorID+":"+subscriberID)),
			"deleting subscription mirror")
	})
}
