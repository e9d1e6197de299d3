// Package memory реализует repository.Store в памяти для тестов и
// локального запуска без Postgres.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/servicehub-backend/internal/domain/entity"
	"github.com/ignatzorin/servicehub-backend/internal/domain/repository"
	"github.com/ignatzorin/servicehub-backend/internal/domain/valueobject"
	"github.com/ignatzorin/servicehub-backend/internal/pkg/apperror"
)

type state struct {
	jobs         map[uuid.UUID]*entity.Job
	txs          map[uuid.UUID]*entity.PaymentTransaction
	refs         map[string]uuid.UUID
	audit        []*entity.AuditEntry
	participants map[uuid.UUID]*entity.Participant
}

func newState() *state {
	return &state{
		jobs:         make(map[uuid.UUID]*entity.Job),
		txs:          make(map[uuid.UUID]*entity.PaymentTransaction),
		refs:         make(map[string]uuid.UUID),
		participants: make(map[uuid.UUID]*entity.Participant),
	}
}

func (s *state) clone() *state {
	cp := newState()
	for id, j := range s.jobs {
		cp.jobs[id] = j.Clone()
	}
	for id, t := range s.txs {
		cp.txs[id] = t.Clone()
	}
	for ref, id := range s.refs {
		cp.refs[ref] = id
	}
	cp.audit = append(cp.audit, s.audit...)
	for id, p := range s.participants {
		cp.participants[id] = p
	}
	return cp
}

type noopLocker struct{}

func (noopLocker) Lock()   {}
func (noopLocker) Unlock() {}

// Store хранит данные в памяти. Atomic держит эксклюзивную блокировку
// на всё время выполнения и подменяет состояние только при успехе.
type Store struct {
	mu   sync.Locker
	data *state
	inTx bool
}

func NewStore() *Store {
	return &Store{mu: &sync.Mutex{}, data: newState()}
}

func (s *Store) Jobs() repository.JobRepository                 { return jobRepo{s} }
func (s *Store) Transactions() repository.TransactionRepository { return txRepo{s} }
func (s *Store) Audit() repository.AuditRepository              { return auditRepo{s} }
func (s *Store) Participants() repository.ParticipantRepository { return participantRepo{s} }

func (s *Store) Atomic(ctx context.Context, fn func(repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	child := &Store{mu: noopLocker{}, data: s.data.clone(), inTx: true}
	if err := fn(child); err != nil {
		return err
	}
	s.data = child.data
	return nil
}

// PutParticipant добавляет или заменяет профиль участника.
func (s *Store) PutParticipant(p *entity.Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.participants[p.ID] = p
}

// AuditEntries возвращает копию журнала.
func (s *Store) AuditEntries() []*entity.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*entity.AuditEntry(nil), s.data.audit...)
}

// AllTransactions возвращает все транзакции, отсортированные по времени создания.
func (s *Store) AllTransactions() []*entity.PaymentTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entity.PaymentTransaction, 0, len(s.data.txs))
	for _, t := range s.data.txs {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

type jobRepo struct{ s *Store }

func (r jobRepo) Create(ctx context.Context, job *entity.Job) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.jobs[job.ID]; ok {
		return apperror.New(apperror.ErrCodeConflict, "заказ уже существует")
	}
	r.s.data.jobs[job.ID] = job.Clone()
	return nil
}

func (r jobRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	j, ok := r.s.data.jobs[id]
	if !ok {
		return nil, apperror.ErrJobNotFound
	}
	return j.Clone(), nil
}

func (r jobRepo) List(ctx context.Context, f repository.JobFilter) ([]*entity.Job, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var matched []*entity.Job
	for _, j := range r.s.data.jobs {
		if f.BuyerID != nil && j.BuyerID != *f.BuyerID {
			continue
		}
		if f.SellerID != nil && j.SellerID != *f.SellerID {
			continue
		}
		if f.Status != nil && j.Status != *f.Status {
			continue
		}
		matched = append(matched, j.Clone())
	}

	sort.Slice(matched, func(a, b int) bool {
		if f.OldestUpdatedFirst {
			return matched[a].UpdatedAt.Before(matched[b].UpdatedAt)
		}
		return matched[a].CreatedAt.After(matched[b].CreatedAt)
	})

	total := len(matched)
	if f.Offset > total {
		return []*entity.Job{}, total, nil
	}
	matched = matched[f.Offset:]
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, total, nil
}

func (r jobRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to valueobject.JobStatus) (*entity.Job, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	j, ok := r.s.data.jobs[id]
	if !ok {
		return nil, apperror.ErrJobNotFound
	}
	if j.Status != from {
		return nil, apperror.ErrConcurrentUpdate
	}
	j.Status = to
	j.UpdatedAt = time.Now().UTC()
	return j.Clone(), nil
}

func (r jobRepo) AppendSatisfactionReport(ctx context.Context, id uuid.UUID, report entity.SatisfactionReport) (*entity.Job, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	j, ok := r.s.data.jobs[id]
	if !ok {
		return nil, apperror.ErrJobNotFound
	}
	j.SatisfactionReports = append(j.SatisfactionReports, report)
	j.UpdatedAt = time.Now().UTC()
	return j.Clone(), nil
}

type txRepo struct{ s *Store }

func (r txRepo) CreateIfAbsent(ctx context.Context, tx *entity.PaymentTransaction) (*entity.PaymentTransaction, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if id, ok := r.s.data.refs[tx.ProviderReference]; ok {
		return r.s.data.txs[id].Clone(), false, nil
	}
	r.s.data.txs[tx.ID] = tx.Clone()
	r.s.data.refs[tx.ProviderReference] = tx.ID
	return tx.Clone(), true, nil
}

func (r txRepo) FindByReference(ctx context.Context, reference string) (*entity.PaymentTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, ok := r.s.data.refs[reference]
	if !ok {
		return nil, apperror.ErrTransactionNotFound
	}
	return r.s.data.txs[id].Clone(), nil
}

func (r txRepo) LatestSucceededDeposit(ctx context.Context, jobID uuid.UUID) (*entity.PaymentTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest *entity.PaymentTransaction
	for _, t := range r.s.data.txs {
		if t.JobID != jobID || t.Type != valueobject.TransactionTypeDeposit || t.Status != valueobject.TransactionStatusSucceeded {
			continue
		}
		if latest == nil || t.CreatedAt.After(latest.CreatedAt) {
			latest = t
		}
	}
	if latest == nil {
		return nil, apperror.ErrTransactionNotFound
	}
	return latest.Clone(), nil
}

func (r txRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to valueobject.TransactionStatus, payload json.RawMessage) (*entity.PaymentTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.data.txs[id]
	if !ok {
		return nil, apperror.ErrTransactionNotFound
	}
	if t.Status != from {
		return nil, apperror.New(apperror.ErrCodeConflict, "статус транзакции изменился")
	}
	t.Status = to
	if payload != nil {
		t.ProviderPayload = append(json.RawMessage(nil), payload...)
	}
	t.UpdatedAt = time.Now().UTC()
	return t.Clone(), nil
}

func (r txRepo) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*entity.PaymentTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*entity.PaymentTransaction{}
	for _, t := range r.s.data.txs {
		if t.JobID == jobID {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r txRepo) HasSettlement(ctx context.Context, jobID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.data.txs {
		if t.JobID == jobID && t.IsSettlement() {
			return true, nil
		}
	}
	return false, nil
}

type auditRepo struct{ s *Store }

func (r auditRepo) Append(ctx context.Context, entry *entity.AuditEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.data.audit = append(r.s.data.audit, entry)
	return nil
}

func (r auditRepo) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*entity.AuditEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*entity.AuditEntry{}
	for _, e := range r.s.data.audit {
		if e.JobID != nil && *e.JobID == jobID {
			out = append(out, e)
		}
	}
	return out, nil
}

type participantRepo struct{ s *Store }

func (r participantRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Participant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.data.participants[id]
	if !ok {
		return nil, apperror.ErrUserNotFound
	}
	cp := *p
	return &cp, nil
}
