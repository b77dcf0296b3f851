package command

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/impact-hub/partner-portal/internal/domain/contribution"
	"github.com/impact-hub/partner-portal/internal/domain/identity"
	"github.com/impact-hub/partner-portal/internal/domain/partner"
	"github.com/impact-hub/partner-portal/internal/domain/rank"
	"github.com/impact-hub/partner-portal/internal/domain/shared"
	"github.com/impact-hub/partner-portal/internal/infrastructure/persistence/memory"
)

var fixedNow = time.Date(2026, 3, 18, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type fixture struct {
	store     *memory.Store
	ranks     *rank.Table
	publisher *recordingPublisher
	ids       atomic.Int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		store:     memory.NewStore(memory.WithClock(clock)),
		ranks:     rank.DefaultTable(),
		publisher: &recordingPublisher{},
	}
}

func (f *fixture) newID() string {
	return fmt.Sprintf("id-%d", f.ids.Add(1))
}

func (f *fixture) addUser(t *testing.T, id string, role identity.Role) identity.Principal {
	t.Helper()
	ctx := context.Background()
	email := id + "@example.com"
	require.NoError(t, f.store.Repositories().Users.Create(ctx, &identity.User{
		ID: id, Email: email, PasswordHash: "x", Role: role, CreatedAt: fixedNow,
	}))
	p, err := partner.NewPartner(id, "Partner "+id, email, f.ranks, fixedNow)
	require.NoError(t, err)
	require.NoError(t, f.store.Repositories().Partners.Create(ctx, p))
	return identity.Principal{UserID: id, Role: role}
}

func (f *fixture) addPending(t *testing.T, partnerID, amount string) *contribution.Contribution {
	t.Helper()
	c, err := contribution.New(contribution.Draft{
		ID:               f.newID(),
		PartnerID:        partnerID,
		Amount:           decimal.RequireFromString(amount),
		ContributionDate: fixedNow,
	}, fixedNow)
	require.NoError(t, err)
	require.NoError(t, f.store.Repositories().Contributions.Create(context.Background(), c))
	return c
}

func (f *fixture) partner(t *testing.T, id string) *partner.Partner {
	t.Helper()
	p, err := f.store.Repositories().Partners.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
	err    error
}

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []shared.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]shared.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

// plainHasher stores passwords with a visible prefix.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }

func (plainHasher) Compare(hash, password string) error {
	if hash != "hashed:"+password {
		return errors.New("mismatch")
	}
	return nil
}

type stubTokens struct{}

func (stubTokens) Issue(p identity.Principal) (string, time.Time, error) {
	return "token-" + p.UserID + "-" + string(p.Role), fixedNow.Add(time.Hour), nil
}

type memoryProofs struct {
	keys      []string
	err       error
	deleteErr error
}

func (m *memoryProofs) Upload(_ context.Context, key string, _ contribution.Proof) error {
	if m.err != nil {
		return m.err
	}
	m.keys = append(m.keys, key)
	return nil
}

func (m *memoryProofs) Delete(_ context.Context, key string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.keys = slices.DeleteFunc(m.keys, func(k string) bool { return k == key })
	return nil
}

func (m *memoryProofs) SignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://proofs.example.com/" + key, nil
}
