package tokenservice

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wisbric/meetplane/internal/apperr"
	"github.com/wisbric/meetplane/internal/authmw"
	"github.com/wisbric/meetplane/internal/httpserver"
)

// Handler exposes the AC's token-issuing HTTP surface.
type Handler struct {
	service *Service
	realm   string
}

// NewHandler builds a token Handler. realm is used in WWW-Authenticate on
// basic-auth decode failures.
func NewHandler(service *Service, realm string) *Handler {
	return &Handler{service: service, realm: realm}
}

// ServiceTokenRoutes mounts the organization-agnostic client-credentials
// grant endpoint. It needs no org-extraction middleware.
func (h *Handler) ServiceTokenRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/service/token", h.handleServiceToken)
	return r
}

// TenantRoutes mounts the endpoints that resolve against a tenant. Callers
// mount this behind org extraction.
func (h *Handler) TenantRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/user/token", h.handleUserToken)
	r.Post("/register", h.handleRegister)
	return r
}

// InternalRoutes mounts the server-to-server meeting/guest token mint
// endpoints the GC calls on a participant's behalf. Callers mount this
// behind the bearer + scope middleware requiring "internal:mint-tokens".
func (h *Handler) InternalRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/tokens/meeting", h.handleMeetingToken)
	r.Post("/tokens/guest", h.handleGuestToken)
	return r
}

type meetingTokenBody struct {
	UserID       string   `json:"user_id" validate:"required,uuid"`
	OrgID        string   `json:"org_id" validate:"required,uuid"`
	MeetingID    string   `json:"meeting_id" validate:"required,uuid"`
	Capabilities []string `json:"capabilities"`
}

func (h *Handler) handleMeetingToken(w http.ResponseWriter, r *http.Request) {
	var body meetingTokenBody
	if !httpserver.DecodeAndValidate(w, r, &body) {
		return
	}

	userID, err := uuid.Parse(body.UserID)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid user_id")
		return
	}
	orgID, err := uuid.Parse(body.OrgID)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid org_id")
		return
	}
	meetingID, err := uuid.Parse(body.MeetingID)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid meeting_id")
		return
	}

	result, err := h.service.IssueMeetingToken(r.Context(), MeetingTokenRequest{
		UserID: userID, OrgID: orgID, MeetingID: meetingID, Capabilities: body.Capabilities,
	})
	if err != nil {
		h.respondTokenError(w, r, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, result)
}

type guestTokenBody struct {
	ParticipantID string   `json:"participant_id" validate:"required"`
	MeetingID     string   `json:"meeting_id" validate:"required,uuid"`
	Capabilities  []string `json:"capabilities"`
}

func (h *Handler) handleGuestToken(w http.ResponseWriter, r *http.Request) {
	var body guestTokenBody
	if !httpserver.DecodeAndValidate(w, r, &body) {
		return
	}

	meetingID, err := uuid.Parse(body.MeetingID)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid meeting_id")
		return
	}

	result, err := h.service.IssueGuestToken(r.Context(), GuestTokenRequest{
		ParticipantID: body.ParticipantID, MeetingID: meetingID, Capabilities: body.Capabilities,
	})
	if err != nil {
		h.respondTokenError(w, r, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, result)
}

type serviceTokenBody struct {
	GrantType    string `json:"grant_type"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Scope        string `json:"scope"`
}

// handleServiceToken implements the client-credentials grant endpoint.
// HTTP Basic credentials take precedence over the JSON body when both are
// present.
func (h *Handler) handleServiceToken(w http.ResponseWriter, r *http.Request) {
	var body serviceTokenBody
	if err := httpserver.Decode(r, &body); err != nil && r.ContentLength != 0 {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	clientID, clientSecret, hasBasic := basicAuth(r)
	if hasBasic {
		body.ClientID = clientID
		body.ClientSecret = clientSecret
	}
	if body.GrantType == "" {
		body.GrantType = "client_credentials"
	}

	result, err := h.service.IssueServiceToken(r.Context(), ServiceTokenRequest{
		GrantType:    body.GrantType,
		ClientID:     body.ClientID,
		ClientSecret: body.ClientSecret,
		Scope:        body.Scope,
		IPAddress:    clientIP(r),
	})
	if err != nil {
		h.respondTokenError(w, r, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, result)
}

type userTokenBody struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) handleUserToken(w http.ResponseWriter, r *http.Request) {
	org, ok := authmw.OrgFromContext(r.Context())
	if !ok {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "organization not found")
		return
	}

	var body userTokenBody
	if !httpserver.DecodeAndValidate(w, r, &body) {
		return
	}

	result, err := h.service.IssueUserToken(r.Context(), UserTokenRequest{
		OrgID: org.OrgID, Email: body.Email, Password: body.Password,
	})
	if err != nil {
		h.respondTokenError(w, r, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, result)
}

type registerBody struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	DisplayName string `json:"display_name" validate:"required,min=1,max=255"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	org, ok := authmw.OrgFromContext(r.Context())
	if !ok {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "organization not found")
		return
	}

	var body registerBody
	if !httpserver.DecodeAndValidate(w, r, &body) {
		return
	}

	result, err := h.service.Register(r.Context(), RegisterRequest{
		OrgID: org.OrgID, Email: body.Email, Password: body.Password,
		DisplayName: body.DisplayName, IPAddress: clientIP(r),
	})
	if err != nil {
		h.respondTokenError(w, r, err)
		return
	}
	httpserver.Respond(w, http.StatusCreated, result)
}

func (h *Handler) respondTokenError(w http.ResponseWriter, r *http.Request, err error) {
	if ae, ok := apperr.As(err); ok {
		httpserver.RespondAppError(w, httpserver.BearerRealm(r.Host), ae)
		return
	}
	httpserver.RespondAppError(w, httpserver.BearerRealm(r.Host), apperr.Internal(err))
}

func basicAuth(r *http.Request) (clientID, clientSecret string, ok bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Basic "
	if !strings.HasPrefix(header, prefix) {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		return "", "", false
	}
	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.SplitN(xff, ",", 2)[0])
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx >= 0 {
		host = host[:idx]
	}
	return host
}
