package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/servicehub-backend/internal/domain/valueobject"
)

// PaymentTransaction: запись о движении денег по заказу. ProviderReference
// глобально уникален и служит ключом идемпотентности. Записи не удаляются.
type PaymentTransaction struct {
	ID                uuid.UUID
	JobID             uuid.UUID
	Amount            decimal.Decimal
	Currency          string
	Type              valueobject.TransactionType
	Status            valueobject.TransactionStatus
	ProviderReference string
	ProviderPayload   json.RawMessage
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func NewPaymentTransaction(
	jobID uuid.UUID,
	txType valueobject.TransactionType,
	amount decimal.Decimal,
	currency string,
	reference string,
	status valueobject.TransactionStatus,
	payload json.RawMessage,
) *PaymentTransaction {
	now := time.Now().UTC()
	return &PaymentTransaction{
		ID:                uuid.New(),
		JobID:             jobID,
		Amount:            amount,
		Currency:          currency,
		Type:              txType,
		Status:            status,
		ProviderReference: reference,
		ProviderPayload:   payload,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// IsSettlement сообщает, завершает ли транзакция денежный цикл заказа (возврат или выплата).
func (t *PaymentTransaction) IsSettlement() bool {
	return t.Type == valueobject.TransactionTypeRefund || t.Type == valueobject.TransactionTypePayout
}

func (t *PaymentTransaction) Clone() *PaymentTransaction {
	cp := *t
	cp.ProviderPayload = append(json.RawMessage(nil), t.ProviderPayload...)
	return &cp
}
