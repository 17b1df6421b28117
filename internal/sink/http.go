package sink

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/hashicorp/go-cleanhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/wello-store/internal/domain/notify"
)

var (
	_ notify.Sink = (*Webhook)(nil)
)

// NewClient returns a pooled HTTP client with outbound tracing.
func NewClient(tp trace.TracerProvider, mp metric.MeterProvider) *http.Client {
	c := cleanhttp.DefaultPooledClient()
	c.Transport = otelhttp.NewTransport(c.Transport,
		otelhttp.WithTracerProvider(tp),
		otelhttp.WithMeterProvider(mp),
	)
	return c
}

// Webhook posts a JSON body built from the event to a fixed URL. The
// response body is drained and ignored; any non-2xx status is an error.
type Webhook struct {
	name    string
	url     string
	client  *http.Client
	payload func(notify.OrderPlaced) []byte
}

// NewRecorder posts {order_id, name, email, items, amount, utr} to url.
func NewRecorder(client *http.Client, url string) *Webhook {
	return &Webhook{name: "recorder", url: url, client: client, payload: recordPayload}
}

// NewMailer posts {email, message} to url.
func NewMailer(client *http.Client, url string) *Webhook {
	return &Webhook{name: "mailer", url: url, client: client, payload: mailPayload}
}

func (w *Webhook) Name() string { return w.name }

func (w *Webhook) Send(ctx context.Context, e notify.OrderPlaced) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(w.payload(e)))
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "post")
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
