package entity

import (
	"github.com/google/uuid"

	"github.com/ignatzorin/servicehub-backend/internal/domain/valueobject"
)

// Participant: проекция профиля пользователя из внешнего сервиса профилей.
type Participant struct {
	ID     uuid.UUID
	Name   string
	Email  string
	Role   valueobject.Role
	Payout *PayoutAccount
}

// PayoutAccount: банковские реквизиты продавца для выплат (NUBAN).
type PayoutAccount struct {
	AccountNumber string
	BankCode      string
	AccountName   string
}

// HasPayoutAccount сообщает, заполнены ли реквизиты для выплаты.
func (p *Participant) HasPayoutAccount() bool {
	return p.Payout != nil && p.Payout.AccountNumber != "" && p.Payout.BankCode != ""
}

// PayoutName возвращает имя получателя перевода.
func (p *Participant) PayoutName() string {
	if p.Payout != nil && p.Payout.AccountName != "" {
		return p.Payout.AccountName
	}
	return p.Name
}
