package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/servicehub-backend/internal/domain/entity"
)

type CreateJobRequest struct {
	SellerID     string          `json:"seller_id" binding:"required"`
	Title        string          `json:"title" binding:"required"`
	Description  string          `json:"description" binding:"required"`
	AgreedAmount decimal.Decimal `json:"agreed_amount"`
}

type TransitionJobRequest struct {
	Status string `json:"status" binding:"required"`
}

type SatisfactionReportDTO struct {
	ID         uuid.UUID `json:"id"`
	Percentage int       `json:"percentage"`
	Comments   string    `json:"comments,omitempty"`
	Photos     []string  `json:"photos"`
	CreatedAt  time.Time `json:"created_at"`
}

type JobResponse struct {
	ID                  uuid.UUID               `json:"id"`
	BuyerID             uuid.UUID               `json:"buyer_id"`
	SellerID            uuid.UUID               `json:"seller_id"`
	Title               string                  `json:"title"`
	Description         string                  `json:"description"`
	AgreedAmount        string                  `json:"agreed_amount"`
	DepositAmount       string                  `json:"deposit_amount"`
	PlatformCommission  string                  `json:"platform_commission"`
	PayoutAmount        string                  `json:"payout_amount"`
	Currency            string                  `json:"currency"`
	Status              string                  `json:"status"`
	SatisfactionReports []SatisfactionReportDTO `json:"satisfaction_reports"`
	CreatedAt           time.Time               `json:"created_at"`
	UpdatedAt           time.Time               `json:"updated_at"`
}

type JobDetailsResponse struct {
	JobResponse
	Transactions []TransactionResponse `json:"transactions"`
}

func ToJobResponse(job *entity.Job) JobResponse {
	reports := make([]SatisfactionReportDTO, 0, len(job.SatisfactionReports))
	for _, r := range job.SatisfactionReports {
		photos := r.Photos
		if photos == nil {
			photos = []string{}
		}
		reports = append(reports, SatisfactionReportDTO{
			ID:         r.ID,
			Percentage: r.Percentage,
			Comments:   r.Comments,
			Photos:     photos,
			CreatedAt:  r.CreatedAt,
		})
	}

	return JobResponse{
		ID:                  job.ID,
		BuyerID:             job.BuyerID,
		SellerID:            job.SellerID,
		Title:               job.Title,
		Description:         job.Description,
		AgreedAmount:        job.AgreedAmount.StringFixed(2),
		DepositAmount:       job.DepositAmount.StringFixed(2),
		PlatformCommission:  job.PlatformCommission.StringFixed(2),
		PayoutAmount:        job.PayoutAmount().StringFixed(2),
		Currency:            job.Currency,
		Status:              string(job.Status),
		SatisfactionReports: reports,
		CreatedAt:           job.CreatedAt,
		UpdatedAt:           job.UpdatedAt,
	}
}

func ToJobResponses(jobs []*entity.Job) []JobResponse {
	out := make([]JobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, ToJobResponse(j))
	}
	return out
}

func ToJobDetailsResponse(job *entity.Job, txs []*entity.PaymentTransaction) JobDetailsResponse {
	return JobDetailsResponse{
		JobResponse:  ToJobResponse(job),
		Transactions: ToTransactionResponses(txs),
	}
}
