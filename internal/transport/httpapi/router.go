package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Rauan19/agendoai-sub000/internal/domain"
	"github.com/Rauan19/agendoai-sub000/internal/health"
	"github.com/Rauan19/agendoai-sub000/internal/service/bookings"
	"github.com/Rauan19/agendoai-sub000/internal/service/slots"
)

type SlotService interface {
	Generate(ctx context.Context, q slots.Query) ([]domain.CandidateSlot, error)
}

type BookingService interface {
	BookSlot(ctx context.Context, in bookings.BookInput) (domain.Appointment, error)
	Cancel(ctx context.Context, in bookings.CancelInput) (domain.Appointment, error)
	Confirm(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	Complete(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	ListDay(ctx context.Context, providerID string, date time.Time) ([]domain.Appointment, error)
}

type ScheduleService interface {
	ReplaceWeeklySchedule(ctx context.Context, providerID string, rules []domain.WeeklyRule) ([]domain.WeeklyRule, error)
	GetWeeklySchedule(ctx context.Context, providerID string) ([]domain.WeeklyRule, error)
	SetOverride(ctx context.Context, o domain.DateOverride) (domain.DateOverride, error)
	ClearOverride(ctx context.Context, providerID string, date time.Time) error
	CreateBlock(ctx context.Context, b domain.BlockedInterval) (domain.BlockedInterval, error)
	ListBlocks(ctx context.Context, providerID string, date time.Time) ([]domain.BlockedInterval, error)
	DeleteBlock(ctx context.Context, providerID string, blockID uuid.UUID) error
}

type Readiness interface {
	Run(ctx context.Context) health.Report
}

type Options struct {
	BodyLimitBytes int64
	RequestTimeout time.Duration
	// AllowedOrigins enables CORS for the listed origins; empty disables it.
	AllowedOrigins []string
	// Limiter throttles /api routes per client; nil disables it.
	Limiter Limiter
	// TrustedProxies lists the proxy IPs or CIDRs whose X-Forwarded-For is
	// believed; empty means the peer address is the client.
	TrustedProxies []string
}

type Handler struct {
	slots    SlotService
	bookings BookingService
	schedule ScheduleService
	ready    Readiness
	logger   *slog.Logger
}

func NewHandler(slotSvc SlotService, bookingSvc BookingService, scheduleSvc ScheduleService, ready Readiness, logger *slog.Logger) *Handler {
	return &Handler{
		slots:    slotSvc,
		bookings: bookingSvc,
		schedule: scheduleSvc,
		ready:    ready,
		logger:   logger.With(slog.String("component", "http")),
	}
}

// Router builds the gin engine with the middleware chain and every route.
func (h *Handler) Router(opts Options) *gin.Engine {
	r := gin.New()
	if err := r.SetTrustedProxies(opts.TrustedProxies); err != nil {
		h.logger.Error("invalid trusted proxies; ignoring forwarding headers", slog.Any("err", err))
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Recovery(), requestID(), accessLog(h.logger))
	if len(opts.AllowedOrigins) > 0 {
		cfg := cors.DefaultConfig()
		cfg.AllowOrigins = opts.AllowedOrigins
		cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}
		cfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Idempotency-Key", RequestIDHeader}
		cfg.ExposeHeaders = []string{RequestIDHeader}
		r.Use(cors.New(cfg))
	}

	r.GET("/healthz", h.healthz)
	r.GET("/readyz", h.readyz)

	api := r.Group("/api/v1")
	api.Use(bodyLimit(opts.BodyLimitBytes), timeout(opts.RequestTimeout))
	if opts.Limiter != nil {
		api.Use(rateLimit(opts.Limiter, h.logger))
	}

	providers := api.Group("/providers/:id")
	{
		providers.GET("/availability", h.availability)
		providers.GET("/appointments", h.listAppointments)

		providers.GET("/weekly-schedule", h.getWeeklySchedule)
		providers.POST("/weekly-schedule", h.replaceWeeklySchedule)

		providers.POST("/overrides", h.setOverride)
		providers.DELETE("/overrides/:date", h.clearOverride)

		providers.GET("/blocks", h.listBlocks)
		providers.POST("/blocks", h.createBlock)
		providers.DELETE("/blocks/:blockId", h.deleteBlock)
	}

	bookingRoutes := api.Group("/bookings")
	{
		bookingRoutes.POST("", h.book)
		bookingRoutes.GET("/:id", h.getBooking)
		bookingRoutes.POST("/:id/cancel", h.cancel)
		bookingRoutes.POST("/:id/confirm", h.confirm)
		bookingRoutes.POST("/:id/complete", h.complete)
	}

	return r
}

func (h *Handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) readyz(c *gin.Context) {
	rep := h.ready.Run(c.Request.Context())
	status := http.StatusOK
	if !rep.OK {
		status = http.StatusServiceUnavailable
		h.logger.WarnContext(c.Request.Context(), "readiness check failed", slog.Any("checks", rep.Checks))
	}
	c.JSON(status, rep)
}
