// Package ledger содержит денежную арифметику эскроу. Все суммы хранятся
// в основных единицах валюты и округляются до двух знаков по правилу
// half-up. В минорные единицы (кобо) суммы переводятся только на границе
// с платёжным провайдером.
package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/servicehub-backend/internal/pkg/apperror"
)

const scale = 2

var (
	depositRate    = decimal.RequireFromString("0.70")
	commissionRate = decimal.RequireFromString("0.10")
	hundred        = decimal.NewFromInt(100)
)

func round(d decimal.Decimal) decimal.Decimal {
	// Round в shopspring округляет половину от нуля, для неотрицательных сумм это half-up.
	return d.Round(scale)
}

// Deposit считает депозит, который покупатель вносит при оплате заказа (70%).
func Deposit(agreed decimal.Decimal) decimal.Decimal {
	return round(agreed.Mul(depositRate))
}

// Commission считает комиссию платформы (10%).
func Commission(agreed decimal.Decimal) decimal.Decimal {
	return round(agreed.Mul(commissionRate))
}

// Payout считает сумму, которая уходит продавцу при выпуске эскроу.
func Payout(agreed decimal.Decimal) decimal.Decimal {
	return round(agreed.Sub(Commission(agreed)))
}

// MinorUnits переводит сумму в минорные единицы для провайдера.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromMinorUnits переводит минорные единицы провайдера обратно в сумму.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -scale)
}

// RefundShare считает долю депозита для частичного возврата, percent в [1, 100].
func RefundShare(deposit decimal.Decimal, percent int) (decimal.Decimal, error) {
	if percent < 1 || percent > 100 {
		return decimal.Zero, apperror.New(apperror.ErrCodeValidation, "процент возврата должен быть от 1 до 100")
	}
	return round(deposit.Mul(decimal.NewFromInt(int64(percent))).Div(hundred)), nil
}
