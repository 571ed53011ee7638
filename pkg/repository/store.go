package repository

import (
	"context"
	"database/sql"

	"github.com/tendant/circle-rides/pkg/carpool"
)

// Store is the Postgres-backed carpool.Store. Each InTx call runs in its own
// database transaction; row locks are taken with SELECT ... FOR UPDATE.
type Store struct {
	db *sql.DB
}

// NewStore creates a store over an open connection pool.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// InTx runs fn in a transaction, rolling back if fn or ctx fails.
func (s *Store) InTx(ctx context.Context, fn func(tx carpool.Tx) error) error {
	return Tx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(newTxStore(tx))
	})
}

type txStore struct {
	*CirclesRepository
	*MembershipsRepository
	*InvitationsRepository
	*RidesRepository
	*RatingsRepository
	*ProfilesRepository
}

func newTxStore(q Querier) *txStore {
	return &txStore{
		CirclesRepository:     NewCirclesRepository(q),
		MembershipsRepository: NewMembershipsRepository(q),
		InvitationsRepository: NewInvitationsRepository(q),
		RidesRepository:       NewRidesRepository(q),
		RatingsRepository:     NewRatingsRepository(q),
		ProfilesRepository:    NewProfilesRepository(q),
	}
}

var (
	_ carpool.Store = (*Store)(nil)
	_ carpool.Tx    = (*txStore)(nil)
)
