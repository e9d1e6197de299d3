package handler

import (
	"fmt"
	"io"
	"mime/multipart"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/servicehub-backend/internal/domain/valueobject"
	"github.com/ignatzorin/servicehub-backend/internal/interface/http/dto"
	"github.com/ignatzorin/servicehub-backend/internal/interface/http/response"
	"github.com/ignatzorin/servicehub-backend/internal/usecase/common"
	"github.com/ignatzorin/servicehub-backend/internal/usecase/job"
)

type JobHandler struct {
	createJobUC    *job.CreateJobUseCase
	getJobUC       *job.GetJobUseCase
	listJobsUC     *job.ListJobsUseCase
	transitionUC   *job.TransitionJobUseCase
	satisfactionUC *job.SubmitSatisfactionUseCase
	maxPhotoBytes  int64
}

func NewJobHandler(
	createJobUC *job.CreateJobUseCase,
	getJobUC *job.GetJobUseCase,
	listJobsUC *job.ListJobsUseCase,
	transitionUC *job.TransitionJobUseCase,
	satisfactionUC *job.SubmitSatisfactionUseCase,
	maxPhotoMB int64,
) *JobHandler {
	return &JobHandler{
		createJobUC:    createJobUC,
		getJobUC:       getJobUC,
		listJobsUC:     listJobsUC,
		transitionUC:   transitionUC,
		satisfactionUC: satisfactionUC,
		maxPhotoBytes:  maxPhotoMB << 20,
	}
}

// CreateJob POST /api/jobs
func (h *JobHandler) CreateJob(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}
	sellerID, err := uuid.Parse(req.SellerID)
	if err != nil {
		response.BadRequest(c, "некорректный seller_id")
		return
	}

	created, err := h.createJobUC.Execute(c.Request.Context(), actor, job.CreateJobInput{
		SellerID:     sellerID,
		Title:        req.Title,
		Description:  req.Description,
		AgreedAmount: req.AgreedAmount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToJobResponse(created))
}

// GetJob GET /api/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}

	view, err := h.getJobUC.Execute(c.Request.Context(), actor, jobID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToJobDetailsResponse(view.Job, view.Transactions))
}

// ListJobs GET /api/jobs?status=&limit=&offset=
func (h *JobHandler) ListJobs(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	input := job.ListJobsInput{
		Limit:  parseIntQuery(c, "limit", 20),
		Offset: parseIntQuery(c, "offset", 0),
	}
	if raw := c.Query("status"); raw != "" {
		status, err := valueobject.NewJobStatus(raw)
		if err != nil {
			response.Error(c, err)
			return
		}
		input.Status = &status
	}

	jobs, total, err := h.listJobsUC.Execute(c.Request.Context(), actor, input)
	if err != nil {
		response.Error(c, err)
		return
	}

	limit, offset := common.Pagination(input.Limit, input.Offset)
	response.Paginated(c, dto.ToJobResponses(jobs), total, limit, offset)
}

// TransitionJob PATCH /api/jobs/:id/status
func (h *JobHandler) TransitionJob(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}

	var req dto.TransitionJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "укажите целевой статус")
		return
	}
	target, err := valueobject.NewJobStatus(req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}

	updated, err := h.transitionUC.Execute(c.Request.Context(), actor, jobID, target)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToJobResponse(updated))
}

// SubmitSatisfaction POST /api/jobs/:id/satisfaction (multipart: percentage, comments, photos[])
func (h *JobHandler) SubmitSatisfaction(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}

	percentage, err := strconv.Atoi(c.PostForm("percentage"))
	if err != nil {
		response.BadRequest(c, "процент удовлетворённости должен быть целым числом")
		return
	}

	var files []*multipart.FileHeader
	if form, err := c.MultipartForm(); err == nil && form != nil {
		files = form.File["photos"]
	}
	if len(files) > job.MaxReportPhotos {
		response.BadRequest(c, fmt.Sprintf("не более %d фотографий в отчёте", job.MaxReportPhotos))
		return
	}

	photos := make([]io.Reader, 0, len(files))
	for _, fh := range files {
		if fh.Size > h.maxPhotoBytes {
			response.BadRequest(c, fmt.Sprintf("размер файла %s превышает лимит %d МБ", fh.Filename, h.maxPhotoBytes>>20))
			return
		}
		f, err := fh.Open()
		if err != nil {
			response.BadRequest(c, "не удалось прочитать файл "+fh.Filename)
			return
		}
		defer f.Close()
		photos = append(photos, f)
	}

	updated, err := h.satisfactionUC.Execute(c.Request.Context(), actor, jobID, job.SubmitSatisfactionInput{
		Percentage: percentage,
		Comments:   c.PostForm("comments"),
		Photos:     photos,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToJobResponse(updated))
}
