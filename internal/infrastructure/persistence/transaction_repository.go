package persistence

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/servicehub-backend/internal/domain/entity"
	"github.com/ignatzorin/servicehub-backend/internal/domain/valueobject"
	"github.com/ignatzorin/servicehub-backend/internal/pkg/apperror"
)

const transactionColumns = `id, job_id, amount, currency, type, status, provider_reference, provider_payload, created_at, updated_at`

type transactionRow struct {
	ID                uuid.UUID       `db:"id"`
	JobID             uuid.UUID       `db:"job_id"`
	Amount            decimal.Decimal `db:"amount"`
	Currency          string          `db:"currency"`
	Type              string          `db:"type"`
	Status            string          `db:"status"`
	ProviderReference string          `db:"provider_reference"`
	ProviderPayload   []byte          `db:"provider_payload"`
	CreatedAt         time.Time       `db:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at"`
}

func (r *transactionRow) toEntity() *entity.PaymentTransaction {
	return &entity.PaymentTransaction{
		ID:                r.ID,
		JobID:             r.JobID,
		Amount:            r.Amount,
		Currency:          strings.TrimSpace(r.Currency),
		Type:              valueobject.TransactionType(r.Type),
		Status:            valueobject.TransactionStatus(r.Status),
		ProviderReference: r.ProviderReference,
		ProviderPayload:   json.RawMessage(r.ProviderPayload),
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

type TransactionRepository struct {
	q sqlx.ExtContext
}

func NewTransactionRepository(q sqlx.ExtContext) *TransactionRepository {
	return &TransactionRepository{q: q}
}

func (r *TransactionRepository) CreateIfAbsent(ctx context.Context, tx *entity.PaymentTransaction) (*entity.PaymentTransaction, bool, error) {
	row, err := getOne[transactionRow](ctx, r.q, apperror.ErrTransactionNotFound, `
		INSERT INTO payment_transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $10)
		ON CONFLICT (provider_reference) DO NOTHING
		RETURNING `+transactionColumns,
		tx.ID,
		tx.JobID,
		tx.Amount,
		tx.Currency,
		string(tx.Type),
		string(tx.Status),
		tx.ProviderReference,
		jsonParam(tx.ProviderPayload),
		tx.CreatedAt,
		tx.UpdatedAt,
	)
	if err == nil {
		return row.toEntity(), true, nil
	}
	if !apperror.IsNotFound(err) {
		return nil, false, err
	}

	// Конфликт по reference: возвращаем существующую запись без изменений.
	existing, err := r.FindByReference(ctx, tx.ProviderReference)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *TransactionRepository) FindByReference(ctx context.Context, reference string) (*entity.PaymentTransaction, error) {
	row, err := getOne[transactionRow](ctx, r.q, apperror.ErrTransactionNotFound,
		`SELECT `+transactionColumns+` FROM payment_transactions WHERE provider_reference = $1`, reference)
	if err != nil {
		return nil, err
	}
	return row.toEntity(), nil
}

func (r *TransactionRepository) LatestSucceededDeposit(ctx context.Context, jobID uuid.UUID) (*entity.PaymentTransaction, error) {
	row, err := getOne[transactionRow](ctx, r.q, apperror.ErrTransactionNotFound, `
		SELECT `+transactionColumns+` FROM payment_transactions
		WHERE job_id = $1 AND type = $2 AND status = $3
		ORDER BY created_at DESC
		LIMIT 1`,
		jobID, string(valueobject.TransactionTypeDeposit), string(valueobject.TransactionStatusSucceeded),
	)
	if err != nil {
		return nil, err
	}
	return row.toEntity(), nil
}

func (r *TransactionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to valueobject.TransactionStatus, payload json.RawMessage) (*entity.PaymentTransaction, error) {
	conflict := apperror.New(apperror.ErrCodeConflict, "статус транзакции изменился")
	row, err := getOne[transactionRow](ctx, r.q, conflict, `
		UPDATE payment_transactions
		SET status = $3, provider_payload = COALESCE($4::jsonb, provider_payload), updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING `+transactionColumns,
		id, string(from), string(to), jsonParam(payload),
	)
	if err != nil {
		return nil, err
	}
	return row.toEntity(), nil
}

func (r *TransactionRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*entity.PaymentTransaction, error) {
	var rows []transactionRow
	if err := sqlx.SelectContext(ctx, r.q, &rows,
		`SELECT `+transactionColumns+` FROM payment_transactions WHERE job_id = $1 ORDER BY created_at`, jobID); err != nil {
		return nil, dbError(err, "не удалось получить транзакции заказа")
	}
	out := make([]*entity.PaymentTransaction, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toEntity())
	}
	return out, nil
}

func (r *TransactionRepository) HasSettlement(ctx context.Context, jobID uuid.UUID) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, r.q, &exists, `
		SELECT EXISTS(
			SELECT 1 FROM payment_transactions
			WHERE job_id = $1 AND type IN ($2, $3)
		)`,
		jobID, string(valueobject.TransactionTypeRefund), string(valueobject.TransactionTypePayout),
	)
	if err != nil {
		return false, dbError(err, "не удалось проверить расчёты по заказу")
	}
	return exists, nil
}
