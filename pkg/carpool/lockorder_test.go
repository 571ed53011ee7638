package carpool_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/circle-rides/pkg/carpool"
	"github.com/tendant/circle-rides/pkg/domain"
	"github.com/tendant/circle-rides/pkg/repository/memory"
)

// lockRecorder wraps a store and records the row locks each transaction takes.
type lockRecorder struct {
	inner carpool.Store

	mu    sync.Mutex
	locks []string
}

func (r *lockRecorder) InTx(ctx context.Context, fn func(tx carpool.Tx) error) error {
	return r.inner.InTx(ctx, func(tx carpool.Tx) error {
		return fn(recordingTx{Tx: tx, rec: r})
	})
}

func (r *lockRecorder) record(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locks = append(r.locks, name)
}

func (r *lockRecorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locks = nil
}

func (r *lockRecorder) taken() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.locks...)
}

type recordingTx struct {
	carpool.Tx
	rec *lockRecorder
}

func (t recordingTx) LockCircle(ctx context.Context, id uuid.UUID) (*domain.Circle, error) {
	t.rec.record("circle")
	return t.Tx.LockCircle(ctx, id)
}

func (t recordingTx) LockMembership(ctx context.Context, id uuid.UUID) (*domain.Membership, error) {
	t.rec.record("membership")
	return t.Tx.LockMembership(ctx, id)
}

func (t recordingTx) LockInvitation(ctx context.Context, circleID uuid.UUID, code string) (*domain.Invitation, error) {
	t.rec.record("invitation")
	return t.Tx.LockInvitation(ctx, circleID, code)
}

func (t recordingTx) RecordInvitationUse(ctx context.Context, membershipID uuid.UUID) error {
	t.rec.record("membership")
	return t.Tx.RecordInvitationUse(ctx, membershipID)
}

func (t recordingTx) CreateInvitation(ctx context.Context, inv *domain.Invitation) error {
	// The foreign key check takes a share lock on the circle row.
	t.rec.record("circle-key")
	return t.Tx.CreateInvitation(ctx, inv)
}

// assertCircleBeforeMembership fails if a membership row is locked before the
// circle row, or the circle key is touched without the circle locked first.
func assertCircleBeforeMembership(t *testing.T, locks []string) {
	t.Helper()
	circleLocked := false
	for _, l := range locks {
		switch l {
		case "circle":
			circleLocked = true
		case "membership", "circle-key":
			assert.True(t, circleLocked, "%s taken before the circle lock in %v", l, locks)
		}
	}
}

func TestLockOrder_CircleBeforeMembership(t *testing.T) {
	rec := &lockRecorder{inner: memory.New()}
	cfg := carpool.Config{
		Logger:                slog.New(slog.NewTextHandler(io.Discard, nil)),
		MemberInvitationQuota: 3,
	}
	members := carpool.NewMembershipService(cfg, rec)
	invites := carpool.NewInvitationService(cfg, rec)
	ctx := context.Background()

	owner := uuid.New()
	circle, _, err := members.CreateCircleWithOwner(ctx, carpool.CircleSpec{Slug: "ordered", Name: "Ordered"}, owner)
	require.NoError(t, err)
	inv, err := invites.Issue(ctx, circle.ID, owner)
	require.NoError(t, err)
	member := uuid.New()
	_, err = invites.Redeem(ctx, inv.Code, circle.ID, member)
	require.NoError(t, err)

	tests := []struct {
		name string
		run  func() error
	}{
		{name: "member issue", run: func() error {
			_, err := invites.Issue(ctx, circle.ID, member)
			return err
		}},
		{name: "admin issue", run: func() error {
			_, err := invites.Issue(ctx, circle.ID, owner)
			return err
		}},
		{name: "invitation top-up", run: func() error {
			_, err := members.ListInvitations(ctx, member, circle.ID)
			return err
		}},
		{name: "redeem", run: func() error {
			code, err := invites.Issue(ctx, circle.ID, owner)
			if err != nil {
				return err
			}
			rec.reset()
			_, err = invites.Redeem(ctx, code.Code, circle.ID, uuid.New())
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec.reset()
			require.NoError(t, tt.run())
			locks := rec.taken()
			require.NotEmpty(t, locks)
			assertCircleBeforeMembership(t, locks)
		})
	}
}
