package keys

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wisbric/meetplane/internal/apperr"
	"github.com/wisbric/meetplane/internal/httpserver"
)

// Handler exposes the JWKS document and the (admin-scoped) rotation trigger.
type Handler struct {
	service *Service
}

// NewHandler builds a key management Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// JWKSRoutes returns the public, unauthenticated JWKS endpoint.
func (h *Handler) JWKSRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleJWKS)
	return r
}

// AdminRoutes returns the admin-scoped rotation endpoint. Callers mount this
// behind the admin-scope bearer middleware.
func (h *Handler) AdminRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/rotate-keys", h.handleRotate)
	return r
}

func (h *Handler) handleJWKS(w http.ResponseWriter, r *http.Request) {
	jwks, err := h.service.JWKSView(r.Context())
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to build key set")
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	httpserver.Respond(w, http.StatusOK, jwks)
}

type rotateBody struct {
	Force bool `json:"force"`
}

func (h *Handler) handleRotate(w http.ResponseWriter, r *http.Request) {
	var body rotateBody
	if r.ContentLength > 0 {
		if !httpserver.DecodeAndValidate(w, r, &body) {
			return
		}
	}

	if err := h.service.Rotate(r.Context(), body.Force); err != nil {
		if ae, ok := apperr.As(err); ok {
			httpserver.RespondAppError(w, httpserver.BearerRealm(r.Host), ae)
			return
		}
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "key rotation failed")
		return
	}

	httpserver.Respond(w, http.StatusOK, map[string]string{"status": "rotated"})
}
