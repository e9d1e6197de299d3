package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/servicehub-backend/internal/domain/entity"
	"github.com/ignatzorin/servicehub-backend/internal/domain/repository"
	"github.com/ignatzorin/servicehub-backend/internal/domain/valueobject"
	"github.com/ignatzorin/servicehub-backend/internal/pkg/apperror"
)

const jobColumns = `id, buyer_id, seller_id, title, description, agreed_amount, deposit_amount,
	platform_commission, currency, status, satisfaction_reports, created_at, updated_at`

type jobRow struct {
	ID                  uuid.UUID       `db:"id"`
	BuyerID             uuid.UUID       `db:"buyer_id"`
	SellerID            uuid.UUID       `db:"seller_id"`
	Title               string          `db:"title"`
	Description         string          `db:"description"`
	AgreedAmount        decimal.Decimal `db:"agreed_amount"`
	DepositAmount       decimal.Decimal `db:"deposit_amount"`
	PlatformCommission  decimal.Decimal `db:"platform_commission"`
	Currency            string          `db:"currency"`
	Status              string          `db:"status"`
	SatisfactionReports []byte          `db:"satisfaction_reports"`
	CreatedAt           time.Time       `db:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at"`
}

func (r *jobRow) toEntity() (*entity.Job, error) {
	reports := []entity.SatisfactionReport{}
	if len(r.SatisfactionReports) > 0 {
		if err := json.Unmarshal(r.SatisfactionReports, &reports); err != nil {
			return nil, fmt.Errorf("decode satisfaction reports of job %s: %w", r.ID, err)
		}
	}
	return &entity.Job{
		ID:                  r.ID,
		BuyerID:             r.BuyerID,
		SellerID:            r.SellerID,
		Title:               r.Title,
		Description:         r.Description,
		AgreedAmount:        r.AgreedAmount,
		DepositAmount:       r.DepositAmount,
		PlatformCommission:  r.PlatformCommission,
		Currency:            strings.TrimSpace(r.Currency),
		Status:              valueobject.JobStatus(r.Status),
		SatisfactionReports: reports,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}, nil
}

type JobRepository struct {
	q sqlx.ExtContext
}

func NewJobRepository(q sqlx.ExtContext) *JobRepository {
	return &JobRepository{q: q}
}

func (r *JobRepository) Create(ctx context.Context, job *entity.Job) error {
	reports, err := json.Marshal(job.SatisfactionReports)
	if err != nil {
		return fmt.Errorf("encode satisfaction reports: %w", err)
	}

	query := `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb, $12, $13)
	`
	_, err = r.q.ExecContext(ctx, query,
		job.ID,
		job.BuyerID,
		job.SellerID,
		job.Title,
		job.Description,
		job.AgreedAmount,
		job.DepositAmount,
		job.PlatformCommission,
		job.Currency,
		string(job.Status),
		string(reports),
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return dbError(err, "не удалось создать заказ")
	}
	return nil
}

func (r *JobRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	row, err := getOne[jobRow](ctx, r.q, apperror.ErrJobNotFound,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	return row.toEntity()
}

func (r *JobRepository) List(ctx context.Context, f repository.JobFilter) ([]*entity.Job, int, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.BuyerID != nil {
		add("buyer_id = $%d", *f.BuyerID)
	}
	if f.SellerID != nil {
		add("seller_id = $%d", *f.SellerID)
	}
	if f.Status != nil {
		add("status = $%d", string(*f.Status))
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := sqlx.GetContext(ctx, r.q, &total, `SELECT COUNT(*) FROM jobs`+clause, args...); err != nil {
		return nil, 0, dbError(err, "не удалось посчитать заказы")
	}

	order := " ORDER BY created_at DESC"
	if f.OldestUpdatedFirst {
		order = " ORDER BY updated_at ASC"
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, f.Offset)
	query := fmt.Sprintf(`SELECT %s FROM jobs%s%s LIMIT $%d OFFSET $%d`, jobColumns, clause, order, len(args)-1, len(args))

	var rows []jobRow
	if err := sqlx.SelectContext(ctx, r.q, &rows, query, args...); err != nil {
		return nil, 0, dbError(err, "не удалось получить список заказов")
	}

	jobs := make([]*entity.Job, 0, len(rows))
	for i := range rows {
		job, err := rows[i].toEntity()
		if err != nil {
			return nil, 0, err
		}
		jobs = append(jobs, job)
	}
	return jobs, total, nil
}

func (r *JobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to valueobject.JobStatus) (*entity.Job, error) {
	row, err := getOne[jobRow](ctx, r.q, apperror.ErrConcurrentUpdate, `
		UPDATE jobs SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING `+jobColumns,
		id, string(from), string(to),
	)
	if err != nil {
		if apperror.IsConflict(err) {
			return nil, r.missingOrConflict(ctx, id)
		}
		return nil, err
	}
	return row.toEntity()
}

func (r *JobRepository) AppendSatisfactionReport(ctx context.Context, id uuid.UUID, report entity.SatisfactionReport) (*entity.Job, error) {
	raw, err := json.Marshal([]entity.SatisfactionReport{report})
	if err != nil {
		return nil, fmt.Errorf("encode satisfaction report: %w", err)
	}
	row, err := getOne[jobRow](ctx, r.q, apperror.ErrJobNotFound, `
		UPDATE jobs SET satisfaction_reports = satisfaction_reports || $2::jsonb, updated_at = NOW()
		WHERE id = $1
		RETURNING `+jobColumns,
		id, string(raw),
	)
	if err != nil {
		return nil, err
	}
	return row.toEntity()
}

func (r *JobRepository) missingOrConflict(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := sqlx.GetContext(ctx, r.q, &exists, `SELECT EXISTS(SELECT 1 FROM jobs WHERE id = $1)`, id); err != nil {
		return dbError(err, "не удалось проверить заказ")
	}
	if !exists {
		return apperror.ErrJobNotFound
	}
	return apperror.ErrConcurrentUpdate
}
