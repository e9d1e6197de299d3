// Package gateway описывает контракт платёжного провайдера. Все суммы
// передаются в минорных единицах (кобо).
package gateway

import (
	"context"
	"encoding/json"
)

type ChargeStatus string

const (
	ChargeSuccess ChargeStatus = "success"
	ChargeFailed  ChargeStatus = "failed"
	ChargePending ChargeStatus = "pending"
)

type ChargeRequest struct {
	Email       string
	AmountMinor int64
	Currency    string
	CallbackURL string
	Metadata    map[string]any
	Reference   string
}

type Charge struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
	Raw              json.RawMessage
}

type Verification struct {
	Reference   string
	Status      ChargeStatus
	AmountMinor int64
	Raw         json.RawMessage
}

type RecipientRequest struct {
	Name          string
	AccountNumber string
	BankCode      string
	Currency      string
}

type Recipient struct {
	Code string
	Raw  json.RawMessage
}

type TransferRequest struct {
	RecipientCode string
	AmountMinor   int64
	Reason        string
	Reference     string
}

type Transfer struct {
	Reference    string
	TransferCode string
	Status       string
	Raw          json.RawMessage
}

type RefundRequest struct {
	SourceReference string
	AmountMinor     int64
}

type Refund struct {
	Reference string
	Status    string
	Raw       json.RawMessage
}

// PaymentGateway описывает операции платёжного провайдера. Ошибки провайдера
// возвращаются как apperror с кодом GATEWAY_ERROR и сырым ответом в Details,
// отсутствие ключа как CONFIG_ERROR.
type PaymentGateway interface {
	InitializeCharge(ctx context.Context, req ChargeRequest) (*Charge, error)
	VerifyCharge(ctx context.Context, reference string) (*Verification, error)
	CreatePayoutRecipient(ctx context.Context, req RecipientRequest) (*Recipient, error)
	InitiateTransfer(ctx context.Context, req TransferRequest) (*Transfer, error)
	Refund(ctx context.Context, req RefundRequest) (*Refund, error)
}
