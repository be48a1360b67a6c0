package registry

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wisbric/meetplane/internal/apperr"
	"github.com/wisbric/meetplane/internal/httpserver"
	"github.com/wisbric/meetplane/internal/repository"
)

// Handler exposes the internal RPC surface that meeting controllers and
// media handlers call to register and heartbeat. Callers mount this behind
// the bearer middleware so every call carries a validated service token.
type Handler struct {
	service *Service
}

// NewHandler builds a registry Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the internal RPC router, conventionally mounted at
// /internal/rpc.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/register-mc", h.handleRegisterMC)
	r.Post("/register-mh", h.handleRegisterMH)
	r.Post("/fast-heartbeat", h.handleFastHeartbeat)
	r.Post("/comprehensive-heartbeat", h.handleComprehensiveHeartbeat)
	return r
}

type registerMCBody struct {
	ControllerID         string `json:"controller_id" validate:"required"`
	Region               string `json:"region" validate:"required"`
	GRPCEndpoint         string `json:"grpc_endpoint" validate:"required,url"`
	WebTransportEndpoint string `json:"webtransport_endpoint"`
	MaxMeetings          int    `json:"max_meetings" validate:"required,min=1"`
	MaxParticipants      int    `json:"max_participants" validate:"required,min=1"`
}

func (h *Handler) handleRegisterMC(w http.ResponseWriter, r *http.Request) {
	var body registerMCBody
	if !httpserver.DecodeAndValidate(w, r, &body) {
		return
	}

	var webTransport *string
	if body.WebTransportEndpoint != "" {
		webTransport = &body.WebTransportEndpoint
	}

	err := h.service.RegisterMC(r.Context(), &repository.MeetingController{
		ControllerID: body.ControllerID, Region: body.Region, GRPCEndpoint: body.GRPCEndpoint,
		WebTransportEndpoint: webTransport, MaxMeetings: body.MaxMeetings, MaxParticipants: body.MaxParticipants,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]string{"status": "registered"})
}

type registerMHBody struct {
	HandlerID            string `json:"handler_id" validate:"required"`
	Region               string `json:"region" validate:"required"`
	WebTransportEndpoint string `json:"webtransport_endpoint" validate:"required,url"`
	GRPCEndpoint         string `json:"grpc_endpoint" validate:"required,url"`
	MaxStreams           int    `json:"max_streams" validate:"required,min=1"`
}

func (h *Handler) handleRegisterMH(w http.ResponseWriter, r *http.Request) {
	var body registerMHBody
	if !httpserver.DecodeAndValidate(w, r, &body) {
		return
	}

	err := h.service.RegisterMH(r.Context(), &repository.MediaHandler{
		HandlerID: body.HandlerID, Region: body.Region, WebTransportEndpoint: body.WebTransportEndpoint,
		GRPCEndpoint: body.GRPCEndpoint, MaxStreams: body.MaxStreams,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]string{"status": "registered"})
}

// fastHeartbeatBody carries the lightweight counter-only heartbeat shared by
// meeting controllers and media handlers: exactly one of ControllerID or
// HandlerID is set, selecting which registry row is updated.
type fastHeartbeatBody struct {
	ControllerID        string `json:"controller_id" validate:"required_without=HandlerID"`
	HandlerID           string `json:"handler_id" validate:"required_without=ControllerID"`
	CurrentMeetings     int    `json:"current_meetings"`
	CurrentParticipants int    `json:"current_participants"`
	CurrentStreams      int    `json:"current_streams"`
}

func (h *Handler) handleFastHeartbeat(w http.ResponseWriter, r *http.Request) {
	var body fastHeartbeatBody
	if !httpserver.DecodeAndValidate(w, r, &body) {
		return
	}

	var err error
	if body.HandlerID != "" {
		err = h.service.MHFastHeartbeat(r.Context(), body.HandlerID, body.CurrentStreams)
	} else {
		err = h.service.FastHeartbeat(r.Context(), body.ControllerID, body.CurrentMeetings, body.CurrentParticipants)
	}
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

// comprehensiveHeartbeatBody carries the full health report shared by
// meeting controllers and media handlers: exactly one of ControllerID or
// HandlerID is set, selecting which registry row is updated.
type comprehensiveHeartbeatBody struct {
	ControllerID        string   `json:"controller_id" validate:"required_without=HandlerID"`
	HandlerID           string   `json:"handler_id" validate:"required_without=ControllerID"`
	CurrentMeetings     int      `json:"current_meetings"`
	CurrentParticipants int      `json:"current_participants"`
	CurrentStreams      int      `json:"current_streams"`
	CPUPercent          *float64 `json:"cpu_percent"`
	MemPercent          *float64 `json:"mem_percent"`
	BandwidthPercent    *float64 `json:"bandwidth_percent"`
	HealthStatus        string   `json:"health_status" validate:"required,oneof=healthy degraded unhealthy draining"`
}

func (h *Handler) handleComprehensiveHeartbeat(w http.ResponseWriter, r *http.Request) {
	var body comprehensiveHeartbeatBody
	if !httpserver.DecodeAndValidate(w, r, &body) {
		return
	}

	var err error
	if body.HandlerID != "" {
		err = h.service.MHHeartbeat(r.Context(), body.HandlerID, body.CurrentStreams,
			body.CPUPercent, body.MemPercent, body.BandwidthPercent, repository.HealthStatus(body.HealthStatus))
	} else {
		err = h.service.ComprehensiveHeartbeat(r.Context(), body.ControllerID, body.CurrentMeetings,
			body.CurrentParticipants, repository.HealthStatus(body.HealthStatus))
	}
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if ae, ok := apperr.As(err); ok {
		httpserver.RespondAppError(w, httpserver.BearerRealm(r.Host), ae)
		return
	}
	httpserver.RespondAppError(w, httpserver.BearerRealm(r.Host), apperr.Internal(err))
}
