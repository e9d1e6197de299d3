package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/servicehub-backend/internal/domain/entity"
)

type TransactionResponse struct {
	ID        uuid.UUID `json:"id"`
	JobID     uuid.UUID `json:"job_id"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	Amount    string    `json:"amount"`
	Currency  string    `json:"currency"`
	Reference string    `json:"reference"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func ToTransactionResponse(tx *entity.PaymentTransaction) TransactionResponse {
	return TransactionResponse{
		ID:        tx.ID,
		JobID:     tx.JobID,
		Type:      string(tx.Type),
		Status:    string(tx.Status),
		Amount:    tx.Amount.StringFixed(2),
		Currency:  tx.Currency,
		Reference: tx.ProviderReference,
		CreatedAt: tx.CreatedAt,
		UpdatedAt: tx.UpdatedAt,
	}
}

func ToTransactionResponses(txs []*entity.PaymentTransaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, ToTransactionResponse(tx))
	}
	return out
}

type InitializePaymentResponse struct {
	AuthorizationURL string              `json:"authorization_url"`
	Reference        string              `json:"reference"`
	Transaction      TransactionResponse `json:"transaction"`
}

type VerifyPaymentResponse struct {
	Status      string              `json:"status"`
	Transaction TransactionResponse `json:"transaction"`
	Job         JobResponse         `json:"job"`
}

// PaystackEvent: тело вебхука провайдера. Нужные поля разбираются,
// остальное сохраняется в payload транзакции как есть.
type PaystackEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string          `json:"reference"`
		Metadata  json.RawMessage `json:"metadata"`
	} `json:"data"`
}
