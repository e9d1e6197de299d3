// Package gatewaytest содержит управляемую подмену PaymentGateway для тестов.
package gatewaytest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ignatzorin/servicehub-backend/internal/gateway"
)

// Stub записывает вызовы и возвращает заранее заданные ответы.
// Поля *Err позволяют сымитировать отказ конкретной операции.
type Stub struct {
	mu sync.Mutex

	VerifyStatus gateway.ChargeStatus

	InitializeErr error
	VerifyErr     error
	RecipientErr  error
	TransferErr   error
	RefundErr     error

	Charges    []gateway.ChargeRequest
	Verifies   []string
	Recipients []gateway.RecipientRequest
	Transfers  []gateway.TransferRequest
	Refunds    []gateway.RefundRequest

	// OnTransfer вызывается внутри InitiateTransfer до возврата ответа.
	OnTransfer func()
}

var _ gateway.PaymentGateway = (*Stub)(nil)

func New() *Stub {
	return &Stub{VerifyStatus: gateway.ChargeSuccess}
}

func (s *Stub) InitializeCharge(ctx context.Context, req gateway.ChargeRequest) (*gateway.Charge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Charges = append(s.Charges, req)
	if s.InitializeErr != nil {
		return nil, s.InitializeErr
	}
	charge := &gateway.Charge{
		AuthorizationURL: "https://checkout.example/" + req.Reference,
		AccessCode:       "access_" + req.Reference,
		Reference:        req.Reference,
	}
	// Та же форма, что у поля data в ответе Paystack.
	charge.Raw, _ = json.Marshal(map[string]string{
		"authorization_url": charge.AuthorizationURL,
		"access_code":       charge.AccessCode,
		"reference":         charge.Reference,
	})
	return charge, nil
}

func (s *Stub) VerifyCharge(ctx context.Context, reference string) (*gateway.Verification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Verifies = append(s.Verifies, reference)
	if s.VerifyErr != nil {
		return nil, s.VerifyErr
	}
	raw, _ := json.Marshal(map[string]any{"reference": reference, "status": string(s.VerifyStatus)})
	return &gateway.Verification{Reference: reference, Status: s.VerifyStatus, Raw: raw}, nil
}

func (s *Stub) CreatePayoutRecipient(ctx context.Context, req gateway.RecipientRequest) (*gateway.Recipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Recipients = append(s.Recipients, req)
	if s.RecipientErr != nil {
		return nil, s.RecipientErr
	}
	return &gateway.Recipient{Code: "RCP_" + req.AccountNumber, Raw: json.RawMessage(`{}`)}, nil
}

func (s *Stub) InitiateTransfer(ctx context.Context, req gateway.TransferRequest) (*gateway.Transfer, error) {
	s.mu.Lock()
	s.Transfers = append(s.Transfers, req)
	hook := s.OnTransfer
	err := s.TransferErr
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	raw, _ := json.Marshal(map[string]any{"reference": req.Reference, "amount": req.AmountMinor})
	return &gateway.Transfer{Reference: req.Reference, TransferCode: "TRF_" + req.Reference, Status: "success", Raw: raw}, nil
}

func (s *Stub) Refund(ctx context.Context, req gateway.RefundRequest) (*gateway.Refund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Refunds = append(s.Refunds, req)
	if s.RefundErr != nil {
		return nil, s.RefundErr
	}
	raw, _ := json.Marshal(map[string]any{"transaction": req.SourceReference, "amount": req.AmountMinor})
	return &gateway.Refund{Reference: fmt.Sprintf("rf_%d", len(s.Refunds)), Status: "pending", Raw: raw}, nil
}

// Calls возвращает количество денежных вызовов (возвраты и переводы).
func (s *Stub) Calls() (refunds, transfers int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Refunds), len(s.Transfers)
}
