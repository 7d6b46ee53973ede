package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apimw "github.com/notifyhub/user-mail-queue/internal/api/middleware"
	"github.com/notifyhub/user-mail-queue/internal/domain"
	"github.com/notifyhub/user-mail-queue/internal/service"
)

// MailJobHandler exposes the producer side of the mail queue.
type MailJobHandler struct {
	svc    *service.MailJobService
	logger *zap.Logger
}

func NewMailJobHandler(svc *service.MailJobService, logger *zap.Logger) *MailJobHandler {
	return &MailJobHandler{svc: svc, logger: logger}
}

// Schedule handles POST /api/v1/mail-jobs
//
// @Summary  Split a bulk mail job into queue items
// @Tags     mail-jobs
// @Accept   json
// @Produce  json
// @Param    body  body      domain.MailJobRequest  true  "Mail job"
// @Success  202   {object}  domain.ScheduledJob
// @Failure  404   {object}  map[string]string
// @Failure  422   {object}  map[string]string
// @Router   /api/v1/mail-jobs [post]
func (h *MailJobHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	var req domain.MailJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	job, err := h.svc.Schedule(r.Context(), req)
	if err != nil {
		h.logger.Warn("schedule mail job failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.String("mail_id", req.MailContentID),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, job)
}

// Pending handles GET /api/v1/mail-jobs/{mailId}/pending
//
// @Summary  Count queue rows that still reference a mail content
// @Tags     mail-jobs
// @Produce  json
// @Param    mailId  path      string  true  "Mail content id"
// @Success  200     {object}  map[string]any
// @Router   /api/v1/mail-jobs/{mailId}/pending [get]
func (h *MailJobHandler) Pending(w http.ResponseWriter, r *http.Request) {
	mailID := chi.URLParam(r, "mailId")
	n, err := h.svc.Pending(r.Context(), mailID)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"mail_id": mailID,
		"pending": n,
	})
}
