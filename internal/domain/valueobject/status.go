package valueobject

import "github.com/ignatzorin/servicehub-backend/internal/pkg/apperror"

type JobStatus string

const (
	JobStatusProposed         JobStatus = "proposed"
	JobStatusFunded           JobStatus = "funded"
	JobStatusInProgress       JobStatus = "in_progress"
	JobStatusPartialCompleted JobStatus = "partial_completed"
	JobStatusCompleted        JobStatus = "completed"
	JobStatusDisputed         JobStatus = "disputed"
	JobStatusCancelled        JobStatus = "cancelled"
)

// JobStatuses перечисляет все статусы в порядке жизненного цикла.
var JobStatuses = []JobStatus{
	JobStatusProposed,
	JobStatusFunded,
	JobStatusInProgress,
	JobStatusPartialCompleted,
	JobStatusCompleted,
	JobStatusDisputed,
	JobStatusCancelled,
}

func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusProposed, JobStatusFunded, JobStatusInProgress, JobStatusPartialCompleted,
		JobStatusCompleted, JobStatusDisputed, JobStatusCancelled:
		return true
	}
	return false
}

// IsTerminal сообщает, что из статуса нет переходов.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusCancelled
}

func NewJobStatus(status string) (JobStatus, error) {
	s := JobStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус заказа")
	}
	return s, nil
}

type TransactionType string

const (
	TransactionTypeDeposit TransactionType = "deposit"
	TransactionTypeRefund  TransactionType = "refund"
	TransactionTypePayout  TransactionType = "payout"
)

func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeRefund, TransactionTypePayout:
		return true
	}
	return false
}

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusSucceeded TransactionStatus = "succeeded"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusRefunded  TransactionStatus = "refunded"
)

func (s TransactionStatus) IsValid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusSucceeded, TransactionStatusFailed, TransactionStatusRefunded:
		return true
	}
	return false
}
