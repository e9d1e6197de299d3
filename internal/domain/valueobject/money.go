package valueobject

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ignatzorin/servicehub-backend/internal/pkg/apperror"
)

// CurrencyNGN: единственная валюта платформы.
const CurrencyNGN = "NGN"

type Money struct {
	Amount   decimal.Decimal
	Currency string
}

// NewMoney проверяет, что сумма положительна и не содержит долей меньше копейки.
func NewMoney(amount decimal.Decimal, currency string) (Money, error) {
	if !amount.IsPositive() {
		return Money{}, apperror.New(apperror.ErrCodeValidation, "сумма должна быть больше нуля")
	}
	if !amount.Equal(amount.Round(2)) {
		return Money{}, apperror.New(apperror.ErrCodeValidation, "сумма может содержать не более двух знаков после запятой")
	}
	if currency == "" {
		currency = CurrencyNGN
	}
	return Money{Amount: amount, Currency: currency}, nil
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Currency, m.Amount.StringFixed(2))
}
