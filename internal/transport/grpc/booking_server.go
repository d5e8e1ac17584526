package grpc

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Rauan19/agendoai-sub000/internal/domain"
	"github.com/Rauan19/agendoai-sub000/internal/service/bookings"
	"github.com/Rauan19/agendoai-sub000/internal/service/slots"
)

// BookingServiceName is the full gRPC service name. Requests and responses
// are google.protobuf.Struct messages shaped like the HTTP JSON bodies.
const BookingServiceName = "agendoai.booking.v1.BookingService"

type slotService interface {
	Generate(ctx context.Context, q slots.Query) ([]domain.CandidateSlot, error)
}

type bookingService interface {
	BookSlot(ctx context.Context, in bookings.BookInput) (domain.Appointment, error)
	Cancel(ctx context.Context, in bookings.CancelInput) (domain.Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
}

// BookingRPC is the server side of BookingServiceName.
type BookingRPC interface {
	GetAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	BookSlot(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CancelAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// BookingServiceDesc registers a BookingRPC. Domain errors returned by the
// handlers are turned into status codes by UnaryServerErrorInterceptor.
var BookingServiceDesc = grpc.ServiceDesc{
	ServiceName: BookingServiceName,
	HandlerType: (*BookingRPC)(nil),
	Methods: []grpc.MethodDesc{
		structMethod("GetAvailability", BookingRPC.GetAvailability),
		structMethod("BookSlot", BookingRPC.BookSlot),
		structMethod("GetAppointment", BookingRPC.GetAppointment),
		structMethod("CancelAppointment", BookingRPC.CancelAppointment),
	},
	Streams: []grpc.StreamDesc{},
}

func structMethod(name string, call func(BookingRPC, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	fullMethod := "/" + BookingServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(BookingRPC), ctx, req.(*structpb.Struct))
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}, handler)
		},
	}
}

type BookingServer struct {
	slots    slotService
	bookings bookingService
	log      *slog.Logger
}

var _ BookingRPC = (*BookingServer)(nil)

func NewBookingServer(slotSvc slotService, bookingSvc bookingService, log *slog.Logger) *BookingServer {
	if log == nil {
		log = slog.Default()
	}
	return &BookingServer{
		slots:    slotSvc,
		bookings: bookingSvc,
		log:      log.With(slog.String("component", "grpc.bookings")),
	}
}

func (s *BookingServer) GetAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	date, err := dateField(req, "date")
	if err != nil {
		return nil, err
	}
	q := slots.Query{
		ProviderID: stringField(req, "provider_id"),
		Date:       date,
		ServiceID:  stringField(req, "service_id"),
	}
	if v, ok := req.GetFields()["duration"]; ok {
		n := v.GetNumberValue()
		if n <= 0 || n != math.Trunc(n) {
			return nil, domain.Invalid("duration", "duration must be a positive number of minutes")
		}
		q.DurationMinutes = int(n)
	}

	list, err := s.slots.Generate(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(list))
	for _, c := range list {
		slot := map[string]any{
			"start_time": c.Start.String(),
			"end_time":   c.End.String(),
			"available":  c.Available,
			"period":     string(c.Period()),
		}
		if c.OccupiedBy != "" {
			slot["occupied_by"] = c.OccupiedBy
		}
		out = append(out, slot)
	}
	return structpb.NewStruct(map[string]any{
		"provider_id": q.ProviderID,
		"date":        domain.FormatDate(date),
		"slots":       out,
	})
}

func (s *BookingServer) BookSlot(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	date, err := dateField(req, "date")
	if err != nil {
		return nil, err
	}
	start, err := clockField(req, "start_time")
	if err != nil {
		return nil, err
	}
	end, err := clockField(req, "end_time")
	if err != nil {
		return nil, err
	}

	appt, err := s.bookings.BookSlot(ctx, bookings.BookInput{
		ProviderID:     stringField(req, "provider_id"),
		ClientID:       stringField(req, "client_id"),
		ServiceID:      stringField(req, "service_id"),
		Date:           date,
		StartTime:      start,
		EndTime:        end,
		IdempotencyKey: idempotencyKey(ctx),
	})
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "appointment booked", slog.String("rpc", "BookSlot"), slog.String("appointment_id", appt.ID.String()))
	return appointmentStruct(appt)
}

func (s *BookingServer) GetAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := idField(req, "appointment_id")
	if err != nil {
		return nil, err
	}
	appt, err := s.bookings.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return appointmentStruct(appt)
}

func (s *BookingServer) CancelAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := idField(req, "appointment_id")
	if err != nil {
		return nil, err
	}
	appt, err := s.bookings.Cancel(ctx, bookings.CancelInput{
		AppointmentID: id,
		ActorID:       stringField(req, "actor_id"),
		Reason:        stringField(req, "reason"),
	})
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "appointment cancelled", slog.String("rpc", "CancelAppointment"), slog.String("appointment_id", appt.ID.String()))
	return appointmentStruct(appt)
}

func appointmentStruct(a domain.Appointment) (*structpb.Struct, error) {
	fields := map[string]any{
		"id":          a.ID.String(),
		"provider_id": a.ProviderID,
		"client_id":   a.ClientID,
		"service_id":  a.ServiceID,
		"date":        domain.FormatDate(a.Date),
		"start_time":  a.StartMinute.String(),
		"end_time":    a.EndMinute.String(),
		"status":      string(a.Status),
		"created_at":  a.CreatedAt.UTC().Format(time.RFC3339),
	}
	if a.CancelledAt != nil {
		fields["cancelled_at"] = a.CancelledAt.UTC().Format(time.RFC3339)
		fields["cancelled_by"] = a.CancelledBy
		fields["cancel_reason"] = a.CancelReason
	}
	return structpb.NewStruct(map[string]any{"appointment": fields})
}

func idempotencyKey(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("idempotency-key")
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func stringField(req *structpb.Struct, name string) string {
	return strings.TrimSpace(req.GetFields()[name].GetStringValue())
}

func dateField(req *structpb.Struct, name string) (time.Time, error) {
	raw := stringField(req, name)
	if raw == "" {
		return time.Time{}, domain.Invalid(name, name+" is required")
	}
	d, err := domain.ParseDate(raw)
	if err != nil {
		return time.Time{}, domain.Invalid(name, name+" "+err.Error())
	}
	return d, nil
}

func clockField(req *structpb.Struct, name string) (domain.Minute, error) {
	raw := stringField(req, name)
	if raw == "" {
		return 0, domain.Invalid(name, name+" is required")
	}
	m, err := domain.ParseClock(raw)
	if err != nil {
		return 0, domain.Invalid(name, name+" must be HH:MM")
	}
	return m, nil
}

func idField(req *structpb.Struct, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(stringField(req, name))
	if err != nil {
		return uuid.Nil, domain.Invalid(name, name+" must be a UUID")
	}
	return id, nil
}
