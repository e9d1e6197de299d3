package persistence

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/servicehub-backend/internal/domain/entity"
	"github.com/ignatzorin/servicehub-backend/internal/domain/valueobject"
	"github.com/ignatzorin/servicehub-backend/internal/pkg/apperror"
)

type participantRow struct {
	ID                uuid.UUID      `db:"id"`
	Name              string         `db:"name"`
	Email             string         `db:"email"`
	Role              string         `db:"role"`
	BankAccountNumber sql.NullString `db:"bank_account_number"`
	BankCode          sql.NullString `db:"bank_code"`
	BankAccountName   sql.NullString `db:"bank_account_name"`
}

// ParticipantRepository читает проекцию users, которую наполняет сервис профилей.
type ParticipantRepository struct {
	q sqlx.ExtContext
}

func NewParticipantRepository(q sqlx.ExtContext) *ParticipantRepository {
	return &ParticipantRepository{q: q}
}

func (r *ParticipantRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Participant, error) {
	row, err := getOne[participantRow](ctx, r.q, apperror.ErrUserNotFound, `
		SELECT id, name, email, role, bank_account_number, bank_code, bank_account_name
		FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}

	p := &entity.Participant{
		ID:    row.ID,
		Name:  row.Name,
		Email: row.Email,
		Role:  valueobject.Role(row.Role),
	}
	if row.BankAccountNumber.Valid || row.BankCode.Valid {
		p.Payout = &entity.PayoutAccount{
			AccountNumber: row.BankAccountNumber.String,
			BankCode:      row.BankCode.String,
			AccountName:   row.BankAccountName.String,
		}
	}
	return p, nil
}
