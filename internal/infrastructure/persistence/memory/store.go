// Package memory implements port.Store in process memory.
// A unit of work runs against a private copy of every table and swaps it in
// on success, so a failed unit of work leaves no trace. Units of work are
// serialized. Used by tests and by the API when no DATABASE_URL is set.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/impact-hub/partner-portal/internal/application/port"
	"github.com/impact-hub/partner-portal/internal/domain/contribution"
	"github.com/impact-hub/partner-portal/internal/domain/identity"
	"github.com/impact-hub/partner-portal/internal/domain/notification"
	"github.com/impact-hub/partner-portal/internal/domain/partner"
	"github.com/impact-hub/partner-portal/internal/domain/recognition"
	"github.com/impact-hub/partner-portal/internal/domain/shared"
)

// tables holds every record of the store.
type tables struct {
	users         map[string]*identity.User
	partners      map[string]*partner.Partner
	scores        []partner.ScorePoint
	contributions map[string]*contribution.Contribution
	notifications map[string]*storedNotification
	recognitions  map[string]*recognition.Recognition
	seq           int64
}

type storedNotification struct {
	n   notification.Notification
	seq int64
}

func newTables() *tables {
	return &tables{
		users:         make(map[string]*identity.User),
		partners:      make(map[string]*partner.Partner),
		contributions: make(map[string]*contribution.Contribution),
		notifications: make(map[string]*storedNotification),
		recognitions:  make(map[string]*recognition.Recognition),
	}
}

func (t *tables) clone() *tables {
	c := &tables{
		users:         make(map[string]*identity.User, len(t.users)),
		partners:      make(map[string]*partner.Partner, len(t.partners)),
		scores:        slices.Clone(t.scores),
		contributions: make(map[string]*contribution.Contribution, len(t.contributions)),
		notifications: make(map[string]*storedNotification, len(t.notifications)),
		recognitions:  make(map[string]*recognition.Recognition, len(t.recognitions)),
		seq:           t.seq,
	}
	for k, v := range t.users {
		u := *v
		c.users[k] = &u
	}
	for k, v := range t.partners {
		p := *v
		c.partners[k] = &p
	}
	for k, v := range t.contributions {
		c.contributions[k] = copyContribution(v)
	}
	for k, v := range t.notifications {
		n := *v
		n.n.Metadata = maps.Clone(v.n.Metadata)
		c.notifications[k] = &n
	}
	for k, v := range t.recognitions {
		r := *v
		c.recognitions[k] = &r
	}
	return c
}

func copyContribution(c *contribution.Contribution) *contribution.Contribution {
	out := *c
	if c.ReviewedAt != nil {
		at := *c.ReviewedAt
		out.ReviewedAt = &at
	}
	return &out
}

// ══════════════════════════════════════════════════════════════════════════════
// STORE
// ══════════════════════════════════════════════════════════════════════════════

// Store is an in-memory port.Store.
type Store struct {
	// txMu serializes writers: units of work and single-statement writes.
	txMu sync.Mutex
	// mu guards the tables pointer and in-place writes.
	mu sync.RWMutex
	t  *tables

	now    shared.Clock
	faults *faults
}

var _ port.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for UpdatedAt stamps.
func WithClock(now shared.Clock) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		t:      newTables(),
		now:    shared.SystemClock,
		faults: newFaults(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Repositories returns repositories that read and write the live tables.
func (s *Store) Repositories() port.Repositories {
	return s.repositories(binding{store: s})
}

// Do runs fn against a copy of the tables and commits the copy if fn
// returns nil.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, repos port.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return shared.Transient("memory", "Begin", err)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	work := s.t.clone()
	s.mu.RUnlock()

	if err := fn(ctx, s.repositories(binding{store: s, tx: work})); err != nil {
		return err
	}
	if err := s.faults.take("Commit"); err != nil {
		return err
	}

	s.mu.Lock()
	s.t = work
	s.mu.Unlock()
	return nil
}

func (s *Store) repositories(b binding) port.Repositories {
	return port.Repositories{
		Partners:      &PartnerRepository{b: b},
		ScoreHistory:  &ScoreHistoryRepository{b: b},
		Contributions: &ContributionRepository{b: b},
		Notifications: &NotificationRepository{b: b},
		Users:         &UserRepository{b: b},
		Recognitions:  &RecognitionRepository{b: b},
		Leaderboard:   &LeaderboardSource{b: b},
	}
}

// FailNext makes the next `times` calls of op return err.
// op is "<Repository>.<Method>" (for example "Contributions.ApplyReview")
// or "Commit".
func (s *Store) FailNext(op string, err error, times int) {
	s.faults.add(op, err, times)
}

// ══════════════════════════════════════════════════════════════════════════════
// BINDING
// ══════════════════════════════════════════════════════════════════════════════

// binding routes repository calls either to a unit of work's private copy
// (tx != nil, no locking needed) or to the live tables.
type binding struct {
	store *Store
	tx    *tables
}

func (b binding) read(op string, fn func(t *tables) error) error {
	if err := b.store.faults.take(op); err != nil {
		return err
	}
	if b.tx != nil {
		return fn(b.tx)
	}
	b.store.mu.RLock()
	defer b.store.mu.RUnlock()
	return fn(b.store.t)
}

func (b binding) write(op string, fn func(t *tables) error) error {
	if err := b.store.faults.take(op); err != nil {
		return err
	}
	if b.tx != nil {
		return fn(b.tx)
	}
	b.store.txMu.Lock()
	defer b.store.txMu.Unlock()
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	return fn(b.store.t)
}

// ══════════════════════════════════════════════════════════════════════════════
// FAULT INJECTION
// ══════════════════════════════════════════════════════════════════════════════

type fault struct {
	err   error
	times int
}

type faults struct {
	mu     sync.Mutex
	byName map[string]*fault
}

func newFaults() *faults {
	return &faults{byName: make(map[string]*fault)}
}

func (f *faults) add(op string, err error, times int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byName[op] = &fault{err: err, times: times}
}

func (f *faults) take(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ft, ok := f.byName[op]
	if !ok || ft.times <= 0 {
		return nil
	}
	ft.times--
	return ft.err
}
