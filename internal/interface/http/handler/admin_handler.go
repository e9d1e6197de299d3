package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/servicehub-backend/internal/interface/http/dto"
	"github.com/ignatzorin/servicehub-backend/internal/interface/http/response"
	"github.com/ignatzorin/servicehub-backend/internal/usecase/common"
	"github.com/ignatzorin/servicehub-backend/internal/usecase/job"
	"github.com/ignatzorin/servicehub-backend/internal/usecase/settlement"
)

type AdminHandler struct {
	resolveUC     *settlement.DisputeResolver
	releaseUC     *settlement.EscrowRelease
	disputesUC    *settlement.QueueUseCase
	escrowQueueUC *settlement.QueueUseCase
	auditUC       *job.ListAuditUseCase
}

func NewAdminHandler(
	resolveUC *settlement.DisputeResolver,
	releaseUC *settlement.EscrowRelease,
	disputesUC *settlement.QueueUseCase,
	escrowQueueUC *settlement.QueueUseCase,
	auditUC *job.ListAuditUseCase,
) *AdminHandler {
	return &AdminHandler{
		resolveUC:     resolveUC,
		releaseUC:     releaseUC,
		disputesUC:    disputesUC,
		escrowQueueUC: escrowQueueUC,
		auditUC:       auditUC,
	}
}

// ResolveDispute POST /api/admin/jobs/:id/resolve
func (h *AdminHandler) ResolveDispute(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}

	var req dto.ResolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "укажите действие и комментарий")
		return
	}

	res, err := h.resolveUC.Execute(c.Request.Context(), actor, settlement.ResolveDisputeInput{
		JobID:   jobID,
		Action:  settlement.DisputeAction(req.Action),
		Notes:   req.Notes,
		Percent: req.Percent,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, toSettlementResponse(res))
}

// ReleaseEscrow POST /api/admin/jobs/:id/release
func (h *AdminHandler) ReleaseEscrow(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}

	res, err := h.releaseUC.Execute(c.Request.Context(), actor, jobID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, toSettlementResponse(res))
}

// ListDisputes GET /api/admin/disputes
func (h *AdminHandler) ListDisputes(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	limit, offset := common.Pagination(parseIntQuery(c, "limit", 20), parseIntQuery(c, "offset", 0))

	jobs, total, err := h.disputesUC.Execute(c.Request.Context(), actor, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, dto.ToJobResponses(jobs), total, limit, offset)
}

// ListEscrowQueue GET /api/admin/escrow
func (h *AdminHandler) ListEscrowQueue(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	limit, offset := common.Pagination(parseIntQuery(c, "limit", 20), parseIntQuery(c, "offset", 0))

	jobs, total, err := h.escrowQueueUC.Execute(c.Request.Context(), actor, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.EscrowQueueItem, 0, len(jobs))
	for _, j := range jobs {
		items = append(items, dto.EscrowQueueItem{
			JobResponse:     dto.ToJobResponse(j),
			ReleaseEligible: settlement.ReleaseEligible(j),
		})
	}
	response.Paginated(c, items, total, limit, offset)
}

// ListAudit GET /api/admin/jobs/:id/audit
func (h *AdminHandler) ListAudit(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}

	entries, err := h.auditUC.Execute(c.Request.Context(), actor, jobID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToAuditEntryResponses(entries))
}

func toSettlementResponse(res *settlement.SettlementResult) dto.SettlementResponse {
	return dto.SettlementResponse{
		Job:         dto.ToJobResponse(res.Job),
		Transaction: dto.ToTransactionResponse(res.Transaction),
	}
}
