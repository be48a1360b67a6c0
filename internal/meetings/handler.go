package meetings

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wisbric/meetplane/internal/acclient"
	"github.com/wisbric/meetplane/internal/apperr"
	"github.com/wisbric/meetplane/internal/authmw"
	"github.com/wisbric/meetplane/internal/httpserver"
	"github.com/wisbric/meetplane/internal/ratelimit"
	"github.com/wisbric/meetplane/internal/registry"
	"github.com/wisbric/meetplane/internal/repository"
)

var fullCapabilities = []string{"publish_audio", "publish_video", "screen_share", "chat", "record"}
var guestCapabilities = []string{"publish_audio", "publish_video", "chat"}

// Handler exposes the GC's meeting creation, join, and guest-token surface.
type Handler struct {
	service  *Service
	registry *registry.Service
	ac       *acclient.Client
	guestRL  *ratelimit.Limiter
}

// NewHandler builds a meetings Handler.
func NewHandler(service *Service, reg *registry.Service, ac *acclient.Client, guestRL *ratelimit.Limiter) *Handler {
	return &Handler{service: service, registry: reg, ac: ac, guestRL: guestRL}
}

// Routes mounts the full meeting surface: creation and join behind bearer,
// the guest-token endpoint public. Callers mount this behind org extraction;
// bearerMiddleware is applied only to the two identity-gated routes.
func (h *Handler) Routes(bearerMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(bearerMiddleware)
		r.Post("/", h.handleCreate)
		r.Get("/{code}", h.handleJoin)
	})
	// Deliberately outside the bearer group: guests never present a token,
	// they're gated by the IP rate limiter instead.
	r.Post("/{code}/guest-token", h.handleGuestToken)
	return r
}

type createBody struct {
	DisplayName               string `json:"display_name" validate:"required,min=1,max=255"`
	MaxParticipants           int    `json:"max_participants" validate:"required,min=1"`
	EnableE2EEncryption       bool   `json:"enable_e2e_encryption"`
	RequireAuth               bool   `json:"require_auth"`
	RecordingEnabled          bool   `json:"recording_enabled"`
	AllowGuests               bool   `json:"allow_guests"`
	AllowExternalParticipants bool   `json:"allow_external_participants"`
	WaitingRoomEnabled        bool   `json:"waiting_room_enabled"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	org, ok := authmw.OrgFromContext(r.Context())
	if !ok {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "organization not found")
		return
	}
	identity, ok := authmw.IdentityFromContext(r.Context())
	if !ok || identity.UserID == nil {
		h.respondError(w, r, apperr.InvalidToken())
		return
	}

	var body createBody
	if !httpserver.DecodeAndValidate(w, r, &body) {
		return
	}

	dto, err := h.service.Create(r.Context(), CreateRequest{
		OrgID:           org.OrgID,
		CreatedByUserID: *identity.UserID,
		DisplayName:     body.DisplayName,
		MaxParticipants: body.MaxParticipants,
		Flags: repository.MeetingFlags{
			EnableE2EEncryption:       body.EnableE2EEncryption,
			RequireAuth:               body.RequireAuth,
			RecordingEnabled:          body.RecordingEnabled,
			AllowGuests:               body.AllowGuests,
			AllowExternalParticipants: body.AllowExternalParticipants,
			WaitingRoomEnabled:        body.WaitingRoomEnabled,
		},
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpserver.Respond(w, http.StatusCreated, dto)
}

type joinResponse struct {
	Meeting      *MeetingDTO                    `json:"meeting"`
	Assignment   *repository.MeetingAssignment  `json:"mc_assignment"`
	JoinToken    string                         `json:"join_token"`
	Capabilities []string                       `json:"capabilities"`
}

func (h *Handler) handleJoin(w http.ResponseWriter, r *http.Request) {
	org, ok := authmw.OrgFromContext(r.Context())
	if !ok {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "organization not found")
		return
	}
	identity, ok := authmw.IdentityFromContext(r.Context())
	if !ok {
		h.respondError(w, r, apperr.InvalidToken())
		return
	}

	code := chi.URLParam(r, "code")
	meeting, err := h.service.GetByCode(r.Context(), org.OrgID, code)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	assignment, err := h.registry.AssignMeeting(r.Context(), meeting.MeetingID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	userID := identity.UserID
	if userID == nil {
		h.respondError(w, r, apperr.InvalidToken())
		return
	}

	tok, err := h.ac.MeetingToken(r.Context(), *userID, org.OrgID, meeting.MeetingID, fullCapabilities)
	if err != nil {
		h.respondError(w, r, apperr.Wrap(apperr.KindInternal, "failed to obtain meeting token", err))
		return
	}

	httpserver.Respond(w, http.StatusOK, joinResponse{
		Meeting:      toDTO(meeting),
		Assignment:   assignment,
		JoinToken:    tok.AccessToken,
		Capabilities: fullCapabilities,
	})
}

func (h *Handler) handleGuestToken(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	result, err := h.guestRL.Allow(r.Context(), "guest-token:"+ip)
	if err != nil {
		h.respondError(w, r, apperr.Internal(err))
		return
	}
	if !result.Allowed {
		h.respondError(w, r, apperr.TooManyRequests("too many guest token requests", result.RetryAfterSecs))
		return
	}

	code := chi.URLParam(r, "code")
	meeting, err := h.service.meetings.GetByCode(r.Context(), code)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if !meeting.Flags.AllowGuests {
		h.respondError(w, r, apperr.New(apperr.KindConflict, "this meeting does not allow guests"))
		return
	}

	assignment, err := h.registry.AssignMeeting(r.Context(), meeting.MeetingID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	participantID := "guest-" + uuid.New().String()
	tok, err := h.ac.GuestToken(r.Context(), participantID, meeting.MeetingID, guestCapabilities)
	if err != nil {
		h.respondError(w, r, apperr.Wrap(apperr.KindInternal, "failed to obtain guest token", err))
		return
	}

	httpserver.Respond(w, http.StatusOK, joinResponse{
		Meeting:      toDTO(meeting),
		Assignment:   assignment,
		JoinToken:    tok.AccessToken,
		Capabilities: guestCapabilities,
	})
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if ae, ok := apperr.As(err); ok {
		httpserver.RespondAppError(w, httpserver.BearerRealm(r.Host), ae)
		return
	}
	httpserver.RespondAppError(w, httpserver.BearerRealm(r.Host), apperr.Internal(err))
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	return r.RemoteAddr
}
