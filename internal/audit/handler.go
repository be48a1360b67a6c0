package audit

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wisbric/meetplane/internal/authmw"
	"github.com/wisbric/meetplane/internal/httpserver"
	"github.com/wisbric/meetplane/internal/repository"
)

// Handler provides HTTP handlers for the audit log API.
type Handler struct {
	repo   *repository.AuditLogRepository
	logger *slog.Logger
}

// NewHandler creates an audit log Handler.
func NewHandler(repo *repository.AuditLogRepository, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// Routes returns a chi.Router with audit log routes mounted. Callers mount
// this behind org extraction and an admin-scope bearer check.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleList)
	return r
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	org, ok := authmw.OrgFromContext(r.Context())
	if !ok {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "organization not found")
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	entries, err := h.repo.List(r.Context(), org.OrgID, limit)
	if err != nil {
		h.logger.Error("listing audit log", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to list audit log")
		return
	}

	httpserver.Respond(w, http.StatusOK, entries)
}
