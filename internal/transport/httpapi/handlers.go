package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Rauan19/agendoai-sub000/internal/domain"
	"github.com/Rauan19/agendoai-sub000/internal/service/bookings"
	"github.com/Rauan19/agendoai-sub000/internal/service/slots"
)

type slotResponse struct {
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Available  bool   `json:"available"`
	OccupiedBy string `json:"occupied_by,omitempty"`
	Period     string `json:"period"`
}

type availabilityResponse struct {
	ProviderID string         `json:"provider_id"`
	Date       string         `json:"date"`
	Slots      []slotResponse `json:"slots"`
}

type appointmentResponse struct {
	ID           string     `json:"id"`
	ProviderID   string     `json:"provider_id"`
	ClientID     string     `json:"client_id"`
	ServiceID    string     `json:"service_id"`
	Date         string     `json:"date"`
	StartTime    string     `json:"start_time"`
	EndTime      string     `json:"end_time"`
	Status       string     `json:"status"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CancelledBy  string     `json:"cancelled_by,omitempty"`
	CancelReason string     `json:"cancel_reason,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func toAppointment(a domain.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:           a.ID.String(),
		ProviderID:   a.ProviderID,
		ClientID:     a.ClientID,
		ServiceID:    a.ServiceID,
		Date:         domain.FormatDate(a.Date),
		StartTime:    a.StartMinute.String(),
		EndTime:      a.EndMinute.String(),
		Status:       string(a.Status),
		CancelledAt:  a.CancelledAt,
		CancelledBy:  a.CancelledBy,
		CancelReason: a.CancelReason,
		CreatedAt:    a.CreatedAt,
	}
}

type ruleDTO struct {
	DayOfWeek          *int16 `json:"day_of_week" validate:"required,gte=0,lte=6"`
	StartTime          string `json:"start_time" validate:"required,hhmm"`
	EndTime            string `json:"end_time" validate:"required,hhmm"`
	GranularityMinutes int    `json:"granularity_minutes" validate:"required,gte=1,lte=1440"`
	IsAvailable        *bool  `json:"is_available"`
}

type weeklyScheduleRequest struct {
	Rules []ruleDTO `json:"rules" validate:"max=7,dive"`
}

type weeklyScheduleResponse struct {
	ProviderID string    `json:"provider_id"`
	Rules      []ruleDTO `json:"rules"`
}

type overrideRequest struct {
	Date               string `json:"date" validate:"required,ymd"`
	StartTime          string `json:"start_time" validate:"omitempty,hhmm"`
	EndTime            string `json:"end_time" validate:"omitempty,hhmm"`
	GranularityMinutes int    `json:"granularity_minutes" validate:"omitempty,gte=1,lte=1440"`
	IsAvailable        *bool  `json:"is_available" validate:"required"`
}

type overrideResponse struct {
	ProviderID         string `json:"provider_id"`
	Date               string `json:"date"`
	StartTime          string `json:"start_time"`
	EndTime            string `json:"end_time"`
	GranularityMinutes int    `json:"granularity_minutes"`
	IsAvailable        bool   `json:"is_available"`
}

type blockRequest struct {
	Date      string `json:"date" validate:"required,ymd"`
	StartTime string `json:"start_time" validate:"required,hhmm"`
	EndTime   string `json:"end_time" validate:"required,hhmm"`
	Reason    string `json:"reason" validate:"max=500"`
}

type blockResponse struct {
	ID         string `json:"id"`
	ProviderID string `json:"provider_id"`
	Date       string `json:"date"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Reason     string `json:"reason,omitempty"`
}

func toBlock(b domain.BlockedInterval) blockResponse {
	return blockResponse{
		ID:         b.ID.String(),
		ProviderID: b.ProviderID,
		Date:       domain.FormatDate(b.Date),
		StartTime:  b.StartMinute.String(),
		EndTime:    b.EndMinute.String(),
		Reason:     b.Reason,
	}
}

type bookRequest struct {
	ProviderID string `json:"provider_id" validate:"required,max=128"`
	ClientID   string `json:"client_id" validate:"required,max=128"`
	ServiceID  string `json:"service_id" validate:"required,max=128"`
	Date       string `json:"date" validate:"required,ymd"`
	StartTime  string `json:"start_time" validate:"required,hhmm"`
	EndTime    string `json:"end_time" validate:"required,hhmm"`
}

type cancelRequest struct {
	ActorID string `json:"actor_id" validate:"required,max=128"`
	Reason  string `json:"reason" validate:"max=500"`
}

func (h *Handler) availability(c *gin.Context) {
	date, err := queryDate(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	q := slots.Query{
		ProviderID: c.Param("id"),
		Date:       date,
		ServiceID:  strings.TrimSpace(c.Query("service_id")),
	}
	if raw := strings.TrimSpace(c.Query("duration")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(c, h.logger, domain.Invalid("duration", "duration must be a positive number of minutes"))
			return
		}
		q.DurationMinutes = n
	}

	list, err := h.slots.Generate(c.Request.Context(), q)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	out := availabilityResponse{ProviderID: q.ProviderID, Date: domain.FormatDate(date), Slots: make([]slotResponse, 0, len(list))}
	for _, s := range list {
		out.Slots = append(out.Slots, slotResponse{
			StartTime:  s.Start.String(),
			EndTime:    s.End.String(),
			Available:  s.Available,
			OccupiedBy: s.OccupiedBy,
			Period:     string(s.Period()),
		})
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) listAppointments(c *gin.Context) {
	date, err := queryDate(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	list, err := h.bookings.ListDay(c.Request.Context(), c.Param("id"), date)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	out := make([]appointmentResponse, 0, len(list))
	for _, a := range list {
		out = append(out, toAppointment(a))
	}
	c.JSON(http.StatusOK, gin.H{"appointments": out})
}

func (h *Handler) getWeeklySchedule(c *gin.Context) {
	rules, err := h.schedule.GetWeeklySchedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toWeekly(c.Param("id"), rules))
}

func (h *Handler) replaceWeeklySchedule(c *gin.Context) {
	var req weeklyScheduleRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, h.logger, err)
		return
	}
	rules := make([]domain.WeeklyRule, 0, len(req.Rules))
	for _, r := range req.Rules {
		available := true
		if r.IsAvailable != nil {
			available = *r.IsAvailable
		}
		rules = append(rules, domain.WeeklyRule{
			DayOfWeek:          *r.DayOfWeek,
			StartMinute:        clock(r.StartTime),
			EndMinute:          clock(r.EndTime),
			GranularityMinutes: r.GranularityMinutes,
			IsAvailable:        available,
		})
	}

	out, err := h.schedule.ReplaceWeeklySchedule(c.Request.Context(), c.Param("id"), rules)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toWeekly(c.Param("id"), out))
}

func toWeekly(providerID string, rules []domain.WeeklyRule) weeklyScheduleResponse {
	out := weeklyScheduleResponse{ProviderID: providerID, Rules: make([]ruleDTO, 0, len(rules))}
	for _, r := range rules {
		dow, available := r.DayOfWeek, r.IsAvailable
		out.Rules = append(out.Rules, ruleDTO{
			DayOfWeek:          &dow,
			StartTime:          r.StartMinute.String(),
			EndTime:            r.EndMinute.String(),
			GranularityMinutes: r.GranularityMinutes,
			IsAvailable:        &available,
		})
	}
	return out
}

func (h *Handler) setOverride(c *gin.Context) {
	var req overrideRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, h.logger, err)
		return
	}
	o := domain.DateOverride{
		ProviderID:         c.Param("id"),
		Date:               day(req.Date),
		GranularityMinutes: req.GranularityMinutes,
		IsAvailable:        *req.IsAvailable,
	}
	if req.StartTime != "" {
		o.StartMinute = clock(req.StartTime)
	}
	if req.EndTime != "" {
		o.EndMinute = clock(req.EndTime)
	}

	out, err := h.schedule.SetOverride(c.Request.Context(), o)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, overrideResponse{
		ProviderID:         out.ProviderID,
		Date:               domain.FormatDate(out.Date),
		StartTime:          out.StartMinute.String(),
		EndTime:            out.EndMinute.String(),
		GranularityMinutes: out.GranularityMinutes,
		IsAvailable:        out.IsAvailable,
	})
}

func (h *Handler) clearOverride(c *gin.Context) {
	date, err := domain.ParseDate(c.Param("date"))
	if err != nil {
		writeError(c, h.logger, domain.Invalid("date", err.Error()))
		return
	}
	if err := h.schedule.ClearOverride(c.Request.Context(), c.Param("id"), date); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listBlocks(c *gin.Context) {
	date, err := queryDate(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	list, err := h.schedule.ListBlocks(c.Request.Context(), c.Param("id"), date)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	out := make([]blockResponse, 0, len(list))
	for _, b := range list {
		out = append(out, toBlock(b))
	}
	c.JSON(http.StatusOK, gin.H{"blocks": out})
}

func (h *Handler) createBlock(c *gin.Context) {
	var req blockRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, h.logger, err)
		return
	}
	out, err := h.schedule.CreateBlock(c.Request.Context(), domain.BlockedInterval{
		ProviderID:  c.Param("id"),
		Date:        day(req.Date),
		StartMinute: clock(req.StartTime),
		EndMinute:   clock(req.EndTime),
		Reason:      req.Reason,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, toBlock(out))
}

func (h *Handler) deleteBlock(c *gin.Context) {
	id, err := uuid.Parse(c.Param("blockId"))
	if err != nil {
		writeError(c, h.logger, domain.Invalid("block_id", "block_id must be a UUID"))
		return
	}
	if err := h.schedule.DeleteBlock(c.Request.Context(), c.Param("id"), id); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) book(c *gin.Context) {
	var req bookRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, h.logger, err)
		return
	}
	out, err := h.bookings.BookSlot(c.Request.Context(), bookings.BookInput{
		ProviderID:     req.ProviderID,
		ClientID:       req.ClientID,
		ServiceID:      req.ServiceID,
		Date:           day(req.Date),
		StartTime:      clock(req.StartTime),
		EndTime:        clock(req.EndTime),
		IdempotencyKey: c.GetHeader("Idempotency-Key"),
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, toAppointment(out))
}

func (h *Handler) getBooking(c *gin.Context) {
	id, ok := h.appointmentID(c)
	if !ok {
		return
	}
	out, err := h.bookings.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toAppointment(out))
}

func (h *Handler) cancel(c *gin.Context) {
	id, ok := h.appointmentID(c)
	if !ok {
		return
	}
	var req cancelRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, h.logger, err)
		return
	}
	out, err := h.bookings.Cancel(c.Request.Context(), bookings.CancelInput{AppointmentID: id, ActorID: req.ActorID, Reason: req.Reason})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toAppointment(out))
}

func (h *Handler) confirm(c *gin.Context) {
	id, ok := h.appointmentID(c)
	if !ok {
		return
	}
	out, err := h.bookings.Confirm(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toAppointment(out))
}

func (h *Handler) complete(c *gin.Context) {
	id, ok := h.appointmentID(c)
	if !ok {
		return
	}
	out, err := h.bookings.Complete(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toAppointment(out))
}

func (h *Handler) appointmentID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeError(c, h.logger, domain.Invalid("appointment_id", "appointment id must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

func queryDate(c *gin.Context) (time.Time, error) {
	raw := c.Query("date")
	if raw == "" {
		return time.Time{}, domain.Invalid("date", "date is required")
	}
	d, err := domain.ParseDate(raw)
	if err != nil {
		return time.Time{}, domain.Invalid("date", err.Error())
	}
	return d, nil
}
