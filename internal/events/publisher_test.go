package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/Rauan19/agendoai-sub000/internal/domain"
)

type fakeOutbox struct {
	drainFn func(ctx context.Context, limit int, fn func(ctx context.Context, batch []Event) error) error
}

func (f *fakeOutbox) Drain(ctx context.Context, limit int, fn func(ctx context.Context, batch []Event) error) error {
	if f.drainFn == nil {
		panic("unexpected Drain call")
	}
	return f.drainFn(ctx, limit, fn)
}

type fakeWriter struct {
	writeFn func(ctx context.Context, msgs ...kafka.Message) error
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.writeFn == nil {
		panic("unexpected WriteMessages call")
	}
	return f.writeFn(ctx, msgs...)
}

func (f *fakeWriter) Close() error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestPublishOnce_SendsBatchKeyedByAggregate(t *testing.T) {
	e1 := Event{ID: uuid.New(), Type: TypeAppointmentBooked, AggregateID: "a1", Payload: []byte(`{}`)}
	e2 := Event{ID: uuid.New(), Type: TypeAppointmentCancelled, AggregateID: "a1", Payload: []byte(`{}`)}

	var committed bool
	outbox := &fakeOutbox{drainFn: func(ctx context.Context, limit int, fn func(ctx context.Context, batch []Event) error) error {
		if limit != 10 {
			t.Fatalf("limit = %d, want 10", limit)
		}
		if err := fn(ctx, []Event{e1, e2}); err != nil {
			return err
		}
		committed = true
		return nil
	}}

	var got []kafka.Message
	writer := &fakeWriter{writeFn: func(ctx context.Context, msgs ...kafka.Message) error {
		got = msgs
		return nil
	}}

	p := NewPublisher(outbox, testLogger(), PublisherConfig{Brokers: "k1:9092", BatchSize: 10})
	n, err := p.PublishOnce(context.Background(), writer)
	if err != nil {
		t.Fatalf("PublishOnce error: %v", err)
	}
	if n != 2 || !committed {
		t.Fatalf("n = %d committed = %v, want 2 true", n, committed)
	}
	if got[0].Topic != TypeAppointmentBooked || got[1].Topic != TypeAppointmentCancelled {
		t.Fatalf("topics = %s, %s", got[0].Topic, got[1].Topic)
	}
	if string(got[0].Key) != "a1" {
		t.Fatalf("key = %q, want a1", got[0].Key)
	}
	if h := header(got[0], "event_id"); h != e1.ID.String() {
		t.Fatalf("event_id header = %q, want %q", h, e1.ID)
	}
}

func TestPublishOnce_WriterFailureLeavesBatchUnpublished(t *testing.T) {
	var committed bool
	outbox := &fakeOutbox{drainFn: func(ctx context.Context, limit int, fn func(ctx context.Context, batch []Event) error) error {
		if err := fn(ctx, []Event{{ID: uuid.New(), Type: TypeAppointmentBooked}}); err != nil {
			return err
		}
		committed = true
		return nil
	}}
	boom := errors.New("broker down")
	writer := &fakeWriter{writeFn: func(ctx context.Context, msgs ...kafka.Message) error { return boom }}

	p := NewPublisher(outbox, testLogger(), PublisherConfig{Brokers: "k1:9092"})
	if _, err := p.PublishOnce(context.Background(), writer); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if committed {
		t.Fatalf("batch marked published after writer failure")
	}
}

func TestRunDisabledWithoutBrokers(t *testing.T) {
	p := NewPublisher(&fakeOutbox{}, testLogger(), PublisherConfig{Brokers: " , "})
	if p.Enabled() {
		t.Fatalf("publisher enabled without brokers")
	}
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if err := p.Ping(context.Background()); err != nil {
		t.Fatalf("Ping on disabled publisher: %v", err)
	}
}

func TestMessageCarriesTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	appt := domain.Appointment{
		ID:          uuid.New(),
		ProviderID:  "p1",
		ClientID:    "c1",
		ServiceID:   "s1",
		Date:        time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		StartMinute: 600,
		EndMinute:   630,
		Status:      domain.StatusPending,
	}
	e, err := NewAppointmentEvent(ctx, TypeAppointmentBooked, appt, time.Now())
	if err != nil {
		t.Fatalf("NewAppointmentEvent error: %v", err)
	}
	want := "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
	if e.Traceparent != want {
		t.Fatalf("traceparent = %q, want %q", e.Traceparent, want)
	}

	msg := Message(context.Background(), e)
	if h := header(msg, "traceparent"); h != want {
		t.Fatalf("traceparent header = %q, want %q", h, want)
	}

	var payload AppointmentPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		t.Fatalf("payload decode: %v", err)
	}
	wantPayload := AppointmentPayload{
		AppointmentID: appt.ID.String(),
		ProviderID:    "p1",
		ClientID:      "c1",
		ServiceID:     "s1",
		Date:          "2026-01-05",
		StartTime:     "10:00",
		EndTime:       "10:30",
		Status:        "pending",
	}
	if !reflect.DeepEqual(payload, wantPayload) {
		t.Fatalf("payload = %+v, want %+v", payload, wantPayload)
	}
}

func TestTypeForStatus(t *testing.T) {
	if TypeForStatus(domain.StatusCancelled) != TypeAppointmentCancelled {
		t.Fatalf("cancelled maps to %s", TypeForStatus(domain.StatusCancelled))
	}
	if TypeForStatus(domain.StatusPending) != TypeAppointmentBooked {
		t.Fatalf("pending maps to %s", TypeForStatus(domain.StatusPending))
	}
}

func header(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
