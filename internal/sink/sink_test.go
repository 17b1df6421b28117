package sink

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/wello-store/internal/domain/notify"
)

var event = notify.OrderPlaced{
	OrderID:    "#ORD-123456",
	UserName:   "Asha",
	UserEmail:  "asha@example.com",
	Items:      "Electric Vegetable Cutter, Silicone Oil Brush",
	Amount:     1448,
	PaymentRef: "TESTUTR1234",
	PlacedAt:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
}

func testClient() *http.Client {
	return NewClient(tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
}

func capture(t *testing.T, status int) (*httptest.Server, <-chan map[string]any) {
	t.Helper()
	got := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var m map[string]any
		assert.NoError(t, json.Unmarshal(body, &m))
		got <- m
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestRecorder_Send(t *testing.T) {
	srv, got := capture(t, http.StatusOK)

	r := NewRecorder(testClient(), srv.URL)
	require.Equal(t, "recorder", r.Name())
	require.NoError(t, r.Send(context.Background(), event))

	assert.Equal(t, map[string]any{
		"order_id": "#ORD-123456",
		"name":     "Asha",
		"email":    "asha@example.com",
		"items":    "Electric Vegetable Cutter, Silicone Oil Brush",
		"amount":   float64(1448),
		"utr":      "TESTUTR1234",
	}, <-got)
}

func TestMailer_Send(t *testing.T) {
	srv, got := capture(t, http.StatusAccepted)

	m := NewMailer(testClient(), srv.URL)
	require.NoError(t, m.Send(context.Background(), event))

	assert.Equal(t, map[string]any{
		"email":   "asha@example.com",
		"message": "New Order: #ORD-123456. UTR: TESTUTR1234. Total: ₹1448",
	}, <-got)
}

func TestWebhook_Failures(t *testing.T) {
	srv, _ := capture(t, http.StatusBadGateway)
	err := NewRecorder(testClient(), srv.URL).Send(context.Background(), event)
	require.ErrorContains(t, err, "unexpected status 502")

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(slow.Close)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, NewMailer(testClient(), slow.URL).Send(ctx, event))
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error { return nil }

func TestKafka_Send(t *testing.T) {
	w := &fakeWriter{}
	k := &Kafka{w: w}
	require.NoError(t, k.Send(context.Background(), event))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "#ORD-123456", string(msg.Key))
	assert.Equal(t, event.PlacedAt, msg.Time)

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, "order_placed", body["type"])
	assert.Equal(t, float64(1448), body["amount"])
	assert.Equal(t, "2026-03-01T10:00:00Z", body["placed_at"])

	w.err = errors.New("leader not available")
	require.ErrorContains(t, k.Send(context.Background(), event), "leader not available")
}

func TestParseBrokers(t *testing.T) {
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, ParseBrokers(" kafka-1:9092, ,kafka-2:9092 "))
	assert.Empty(t, ParseBrokers(""))
}
