package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/ignatzorin/servicehub-backend/internal/domain/entity"
	"github.com/ignatzorin/servicehub-backend/internal/domain/valueobject"
)

type TransactionRepository interface {
	// CreateIfAbsent вставляет транзакцию, если её reference ещё не встречался.
	// Если запись уже есть, она возвращается без изменений и created == false.
	CreateIfAbsent(ctx context.Context, tx *entity.PaymentTransaction) (stored *entity.PaymentTransaction, created bool, err error)
	FindByReference(ctx context.Context, reference string) (*entity.PaymentTransaction, error)
	LatestSucceededDeposit(ctx context.Context, jobID uuid.UUID) (*entity.PaymentTransaction, error)
	// UpdateStatus выполняет compare-and-swap по статусу транзакции.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to valueobject.TransactionStatus, payload json.RawMessage) (*entity.PaymentTransaction, error)
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]*entity.PaymentTransaction, error)
	// HasSettlement сообщает, есть ли у заказа возврат или выплата.
	HasSettlement(ctx context.Context, jobID uuid.UUID) (bool, error)
}
