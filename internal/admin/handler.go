// Package admin implements the admin-scoped management endpoints: service
// credential registration. Callers mount these routes behind the
// admin-scope bearer middleware.
package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wisbric/meetplane/internal/crypto"
	"github.com/wisbric/meetplane/internal/httpserver"
	"github.com/wisbric/meetplane/internal/repository"
)

// Handler exposes the admin management HTTP surface.
type Handler struct {
	credentials *repository.ServiceCredentialRepository
}

// NewHandler builds an admin Handler.
func NewHandler(credentials *repository.ServiceCredentialRepository) *Handler {
	return &Handler{credentials: credentials}
}

// Routes returns the admin-scoped router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/services/register", h.handleRegisterService)
	return r
}

type registerServiceBody struct {
	ClientID    string   `json:"client_id" validate:"required,min=1,max=255"`
	ServiceType string   `json:"service_type" validate:"required,oneof=global-controller meeting-controller media-handler"`
	Region      string   `json:"region"`
	Scopes      []string `json:"scopes" validate:"required,min=1"`
}

type registerServiceResponse struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	ServiceType  string   `json:"service_type"`
	Scopes       []string `json:"scopes"`
}

// handleRegisterService creates a new ServiceCredential and returns the
// one-time plaintext secret — it is never persisted or logged in the clear.
func (h *Handler) handleRegisterService(w http.ResponseWriter, r *http.Request) {
	var body registerServiceBody
	if !httpserver.DecodeAndValidate(w, r, &body) {
		return
	}

	plaintextSecret, err := crypto.GenerateClientSecret()
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to generate client secret")
		return
	}

	secretHash, err := crypto.HashSecret(plaintextSecret)
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to hash client secret")
		return
	}

	var region *string
	if body.Region != "" {
		region = &body.Region
	}

	cred, err := h.credentials.Create(r.Context(), body.ClientID, secretHash, repository.ServiceType(body.ServiceType), region, body.Scopes)
	if err != nil {
		httpserver.RespondError(w, http.StatusConflict, "conflict", "a service credential with this client_id already exists")
		return
	}

	httpserver.Respond(w, http.StatusCreated, registerServiceResponse{
		ClientID:     cred.ClientID,
		ClientSecret: plaintextSecret,
		ServiceType:  string(cred.ServiceType),
		Scopes:       cred.Scopes,
	})
}
