package persistence

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/servicehub-backend/internal/domain/repository"
)

// Store реализует repository.Store поверх Postgres. Репозитории работают
// через sqlx.ExtContext, поэтому одинаково используются с пулом и с транзакцией.
type Store struct {
	db *sqlx.DB
	q  sqlx.ExtContext
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, q: db}
}

func (s *Store) Jobs() repository.JobRepository                 { return &JobRepository{q: s.q} }
func (s *Store) Transactions() repository.TransactionRepository { return &TransactionRepository{q: s.q} }
func (s *Store) Audit() repository.AuditRepository              { return &AuditRepository{q: s.q} }
func (s *Store) Participants() repository.ParticipantRepository { return &ParticipantRepository{q: s.q} }

// Atomic открывает транзакцию. Вложенный вызов переиспользует текущую.
func (s *Store) Atomic(ctx context.Context, fn func(repository.Store) error) error {
	if s.db == nil {
		return fn(s)
	}
	return withTransaction(ctx, s.db, func(tx *sqlx.Tx) error {
		return fn(&Store{q: tx})
	})
}
