package appointment

import (
	"context"
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduler/internal/middleware"
	"github.com/jwalitptl/clinic-scheduler/internal/model"
	apperrors "github.com/jwalitptl/clinic-scheduler/pkg/errors"
	"github.com/jwalitptl/clinic-scheduler/pkg/httputil"
)

type Service interface {
	ResolveActor(ctx context.Context, userID uuid.UUID, role model.Role) (model.Actor, error)
	CreateAppointment(ctx context.Context, actor model.Actor, req model.CreateAppointmentRequest) (*model.BookingResult, error)
	UpdateAppointment(ctx context.Context, actor model.Actor, id uuid.UUID, req model.UpdateAppointmentRequest) (*model.Appointment, error)
	RequestReschedule(ctx context.Context, actor model.Actor, id uuid.UUID, req model.RequestRescheduleRequest) (*model.Appointment, error)
	ConfirmReschedule(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Appointment, error)
	CancelAppointment(ctx context.Context, actor model.Actor, id uuid.UUID, reason *string) (*model.Appointment, error)
	List(ctx context.Context, actor model.Actor, status, date string) ([]*model.AppointmentDetail, error)
	Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.AppointmentDetail, error)
	ListConflicts(ctx context.Context, actor model.Actor) ([]model.ConflictGroup, error)
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes expects rg to be behind the authentication middleware.
func (h *Handler) RegisterRoutes(rg gin.IRouter) {
	appointments := rg.Group("/appointments")
	{
		appointments.GET("", h.ListAppointments)
		appointments.GET("/conflicts", middleware.RequireRoles(model.RoleDoctor), h.ListConflicts)
		appointments.POST("", middleware.RequireRoles(model.RolePatient), h.CreateAppointment)
		appointments.GET("/:id", h.GetAppointment)
		appointments.PATCH("/:id", h.UpdateAppointment)
		appointments.DELETE("/:id", h.CancelAppointment)
		appointments.POST("/:id/request-reschedule", middleware.RequireRoles(model.RoleDoctor), h.RequestReschedule)
		appointments.POST("/:id/confirm-reschedule", middleware.RequireRoles(model.RolePatient), h.ConfirmReschedule)
	}
}

func (h *Handler) actor(c *gin.Context) (model.Actor, bool) {
	userID, role, ok := middleware.Identity(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(errors.New("no identity on request")))
		return model.Actor{}, false
	}
	actor, err := h.service.ResolveActor(c.Request.Context(), userID, role)
	if err != nil {
		httputil.RespondWithError(c, err)
		return model.Actor{}, false
	}
	return actor, true
}

func appointmentID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid appointment ID", err))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) ListAppointments(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	appointments, err := h.service.List(c.Request.Context(), actor, c.Query("status"), c.Query("date"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appointments)
}

func (h *Handler) ListConflicts(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	groups, err := h.service.ListConflicts(c.Request.Context(), actor)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, groups)
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	var req model.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	result, err := h.service.CreateAppointment(c.Request.Context(), actor, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, result)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	id, ok := appointmentID(c)
	if !ok {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	appointment, err := h.service.Get(c.Request.Context(), actor, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appointment)
}

func (h *Handler) UpdateAppointment(c *gin.Context) {
	id, ok := appointmentID(c)
	if !ok {
		return
	}
	var req model.UpdateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	appointment, err := h.service.UpdateAppointment(c.Request.Context(), actor, id, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appointment)
}

// CancelAppointment accepts an optional {"reason": ...} body.
func (h *Handler) CancelAppointment(c *gin.Context) {
	id, ok := appointmentID(c)
	if !ok {
		return
	}
	var req model.CancelAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		httputil.RespondWithBindError(c, err)
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	appointment, err := h.service.CancelAppointment(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appointment)
}

func (h *Handler) RequestReschedule(c *gin.Context) {
	id, ok := appointmentID(c)
	if !ok {
		return
	}
	var req model.RequestRescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	appointment, err := h.service.RequestReschedule(c.Request.Context(), actor, id, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appointment)
}

func (h *Handler) ConfirmReschedule(c *gin.Context) {
	id, ok := appointmentID(c)
	if !ok {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	appointment, err := h.service.ConfirmReschedule(c.Request.Context(), actor, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appointment)
}
