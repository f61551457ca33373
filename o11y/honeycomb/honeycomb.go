// Package honeycomb implements o11y tracing on top of the honeycomb beeline. Events are
// written locally as text, colour or json and can optionally be sent to honeycomb.
package honeycomb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/honeycombio/beeline-go"
	"github.com/honeycombio/beeline-go/client"
	"github.com/honeycombio/beeline-go/trace"
	"github.com/honeycombio/libhoney-go"
	"github.com/honeycombio/libhoney-go/transmission"

	"github.com/circleci/daprit/o11y"
)

type Config struct {
	Host        string
	Dataset     string
	Key         string
	Format      string
	SendTraces  bool // Should we actually send the traces to the honeycomb server?
	Sender      transmission.Sender
	Writer      io.Writer
	Metrics     o11y.ClosableMetricsProvider
	ServiceName string

	Debug bool
}

func (c *Config) Validate() error {
	// The key is only needed when sending traces is on and when using the default Sender
	if c.SendTraces && c.Key == "" && c.Sender == nil {
		return errors.New("honeycomb_key key required for honeycomb")
	}
	switch c.Format {
	case "", "text", "colour", "color", "json", "none":
	default:
		return fmt.Errorf("unknown o11y format %q", c.Format)
	}
	return nil
}

// sender returns the transmission.Sender to handle events based on Format and SendTraces.
func (c *Config) sender() transmission.Sender {
	writer := c.Writer
	if writer == nil {
		writer = os.Stderr
	}

	s := &MultiSender{}

	if c.SendTraces {
		if c.Sender == nil {
			s.Senders = append(s.Senders, &transmission.Honeycomb{
				MaxBatchSize:         libhoney.DefaultMaxBatchSize,
				BatchTimeout:         libhoney.DefaultBatchTimeout,
				MaxConcurrentBatches: libhoney.DefaultMaxConcurrentBatches,
				PendingWorkCapacity:  libhoney.DefaultPendingWorkCapacity,
				UserAgentAddition:    c.ServiceName,
			})
		} else {
			s.Senders = append(s.Senders, c.Sender)
		}
	}

	switch c.Format {
	case "text":
		s.Senders = append(s.Senders, &TextSender{w: writer})
	case "colour", "color":
		s.Senders = append(s.Senders, &TextSender{w: writer, colour: true})
	case "none":
	default:
		s.Senders = append(s.Senders, &transmission.WriterSender{W: writer})
	}

	return s
}

type honeycomb struct {
	metrics o11y.ClosableMetricsProvider
}

// New creates a new honeycomb o11y provider, which writes events locally
// and optionally also sends them to a honeycomb server
func New(conf Config) o11y.Provider {
	// error is ignored in default constructor in beeline, so we do the same here.
	c, _ := libhoney.NewClient(libhoney.ClientConfig{
		APIKey:       conf.Key,
		Dataset:      conf.Dataset,
		APIHost:      conf.Host,
		Transmission: conf.sender(),
	})

	beeline.Init(beeline.Config{
		Client:      c,
		Debug:       conf.Debug,
		WriteKey:    conf.Key,
		ServiceName: conf.ServiceName,
	})

	metrics := conf.Metrics
	if metrics == nil {
		metrics = &statsd.NoOpClient{}
	}
	return &honeycomb{metrics: metrics}
}

func (h *honeycomb) AddGlobalField(key string, val interface{}) {
	mustValidateKey(key)
	client.AddField(key, val)
}

func (h *honeycomb) StartSpan(ctx context.Context, name string) (context.Context, o11y.Span) {
	var newSpan *trace.Span
	if parent := trace.GetSpanFromContext(ctx); parent != nil {
		ctx, newSpan = parent.CreateChild(ctx)
	} else {
		// no active trace; use the new root span as the span itself
		ctx, _ = trace.NewTrace(ctx, nil)
		newSpan = trace.GetSpanFromContext(ctx)
	}
	newSpan.AddField("name", name)

	return ctx, wrapSpan(newSpan)
}

func (h *honeycomb) GetSpan(ctx context.Context) o11y.Span {
	s := trace.GetSpanFromContext(ctx)
	if s == nil {
		return nil
	}
	return wrapSpan(s)
}

func (h *honeycomb) AddField(ctx context.Context, key string, val interface{}) {
	mustValidateKey(key)
	beeline.AddField(ctx, key, fieldValue(val))
}

func (h *honeycomb) AddFieldToTrace(ctx context.Context, key string, val interface{}) {
	mustValidateKey(key)
	beeline.AddFieldToTrace(ctx, key, fieldValue(val))
}

func (h *honeycomb) Log(ctx context.Context, name string, fields ...o11y.Pair) {
	_, s := h.StartSpan(ctx, name)
	for _, field := range fields {
		s.AddField(field.Key, field.Value)
	}
	s.End()
}

func (h *honeycomb) Close(_ context.Context) {
	beeline.Close()
	_ = h.metrics.Close()
}

func (h *honeycomb) MetricsProvider() o11y.MetricsProvider {
	return h.metrics
}

func wrapSpan(s *trace.Span) o11y.Span {
	return &span{span: s}
}

type span struct {
	span *trace.Span
}

func (s *span) AddField(key string, val interface{}) {
	mustValidateKey(key)
	s.span.AddField("app."+key, fieldValue(val))
}

func (s *span) AddRawField(key string, val interface{}) {
	mustValidateKey(key)
	s.span.AddField(key, fieldValue(val))
}

func (s *span) SerializeHeaders() string {
	return s.span.SerializeHeaders()
}

func (s *span) End() {
	s.span.Send()
}

func fieldValue(val interface{}) interface{} {
	if err, ok := val.(error); ok {
		return err.Error()
	}
	return val
}

func mustValidateKey(key string) {
	if strings.Contains(key, "-") {
		panic(fmt.Errorf("key %q cannot contain '-'", key))
	}
}
