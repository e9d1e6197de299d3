package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/servicehub-backend/internal/domain/ledger"
	"github.com/ignatzorin/servicehub-backend/internal/domain/valueobject"
	"github.com/ignatzorin/servicehub-backend/internal/pkg/apperror"
	"github.com/ignatzorin/servicehub-backend/internal/validation"
)

const (
	// ReleaseSatisfactionThreshold: минимальный процент удовлетворённости
	// в последнем отчёте, при котором админ может выпустить эскроу.
	ReleaseSatisfactionThreshold = 50
)

type Job struct {
	ID                  uuid.UUID
	BuyerID             uuid.UUID
	SellerID            uuid.UUID
	Title               string
	Description         string
	AgreedAmount        decimal.Decimal
	DepositAmount       decimal.Decimal
	PlatformCommission  decimal.Decimal
	Currency            string
	Status              valueobject.JobStatus
	SatisfactionReports []SatisfactionReport
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type SatisfactionReport struct {
	ID         uuid.UUID `json:"id"`
	Percentage int       `json:"percentage"`
	Comments   string    `json:"comments,omitempty"`
	Photos     []string  `json:"photos,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NewJob создаёт заказ в статусе proposed. Депозит и комиссия
// вычисляются один раз и дальше не пересчитываются.
func NewJob(buyerID, sellerID uuid.UUID, title, description string, agreed decimal.Decimal) (*Job, error) {
	if buyerID == uuid.Nil || sellerID == uuid.Nil {
		return nil, apperror.New(apperror.ErrCodeValidation, "покупатель и продавец обязательны")
	}
	if buyerID == sellerID {
		return nil, apperror.New(apperror.ErrCodeValidation, "покупатель и продавец должны различаться")
	}

	title = validation.SanitizeText(title)
	description = validation.SanitizeText(description)

	if err := validation.ValidateLength("название", title, validation.MinJobTitleLength, validation.MaxJobTitleLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateLength("описание", description, validation.MinJobDescriptionLength, validation.MaxJobDescriptionLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	money, err := valueobject.NewMoney(agreed, valueobject.CurrencyNGN)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Job{
		ID:                  uuid.New(),
		BuyerID:             buyerID,
		SellerID:            sellerID,
		Title:               title,
		Description:         description,
		AgreedAmount:        money.Amount,
		DepositAmount:       ledger.Deposit(money.Amount),
		PlatformCommission:  ledger.Commission(money.Amount),
		Currency:            money.Currency,
		Status:              valueobject.JobStatusProposed,
		SatisfactionReports: []SatisfactionReport{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}, nil
}

// PartyOf определяет сторону пользователя в заказе. Участник заказа
// действует как buyer/seller даже при роли admin.
func (j *Job) PartyOf(actor Actor) valueobject.Party {
	switch {
	case actor.ID == j.BuyerID:
		return valueobject.PartyBuyer
	case actor.ID == j.SellerID:
		return valueobject.PartySeller
	case actor.Role == valueobject.RoleAdmin:
		return valueobject.PartyAdmin
	}
	return valueobject.PartyNone
}

// CanView сообщает, видит ли пользователь заказ: участники и администраторы видят.
func (j *Job) CanView(actor Actor) bool {
	return j.PartyOf(actor) != valueobject.PartyNone
}

// LastReport возвращает последний отчёт об удовлетворённости или nil.
func (j *Job) LastReport() *SatisfactionReport {
	if len(j.SatisfactionReports) == 0 {
		return nil
	}
	r := j.SatisfactionReports[len(j.SatisfactionReports)-1]
	return &r
}

// PayoutAmount возвращает сумму выплаты продавцу.
func (j *Job) PayoutAmount() decimal.Decimal {
	return ledger.Payout(j.AgreedAmount)
}

// NewSatisfactionReport проверяет и создаёт отчёт.
func NewSatisfactionReport(percentage int, comments string, photos []string) (SatisfactionReport, error) {
	if err := validation.ValidatePercent("процент удовлетворённости", percentage, 0, 100); err != nil {
		return SatisfactionReport{}, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	comments = validation.SanitizeText(comments)
	if err := validation.ValidateLength("комментарий", comments, 0, validation.MaxCommentLength); err != nil {
		return SatisfactionReport{}, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if photos == nil {
		photos = []string{}
	}
	return SatisfactionReport{
		ID:         uuid.New(),
		Percentage: percentage,
		Comments:   comments,
		Photos:     photos,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// Clone возвращает глубокую копию заказа.
func (j *Job) Clone() *Job {
	cp := *j
	cp.SatisfactionReports = make([]SatisfactionReport, len(j.SatisfactionReports))
	for i, r := range j.SatisfactionReports {
		r.Photos = append([]string(nil), r.Photos...)
		cp.SatisfactionReports[i] = r
	}
	return &cp
}
