package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/servicehub-backend/internal/interface/http/dto"
	"github.com/ignatzorin/servicehub-backend/internal/interface/http/response"
	"github.com/ignatzorin/servicehub-backend/internal/usecase/payment"
)

type PaymentHandler struct {
	initializeUC *payment.InitializePaymentUseCase
	verifyUC     *payment.VerifyPaymentUseCase
}

func NewPaymentHandler(initializeUC *payment.InitializePaymentUseCase, verifyUC *payment.VerifyPaymentUseCase) *PaymentHandler {
	return &PaymentHandler{initializeUC: initializeUC, verifyUC: verifyUC}
}

// InitializePayment POST /api/jobs/:id/payments
func (h *PaymentHandler) InitializePayment(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}

	res, err := h.initializeUC.Execute(c.Request.Context(), actor, jobID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.InitializePaymentResponse{
		AuthorizationURL: res.AuthorizationURL,
		Reference:        res.Reference,
		Transaction:      dto.ToTransactionResponse(res.Transaction),
	})
}

// VerifyPayment GET /api/payments/verify/:reference
func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	reference := c.Param("reference")
	if reference == "" {
		response.BadRequest(c, "reference обязателен")
		return
	}

	res, err := h.verifyUC.Execute(c.Request.Context(), actor, reference)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.VerifyPaymentResponse{
		Status:      string(res.Status),
		Transaction: dto.ToTransactionResponse(res.Transaction),
		Job:         dto.ToJobResponse(res.Job),
	})
}
