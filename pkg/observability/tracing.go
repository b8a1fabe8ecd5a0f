package observability

import (
	"context"
	"net/http"

	"github.com/aws/aws-xray-sdk-go/xray"
)

// Tracer provides distributed tracing capabilities. A nil or disabled Tracer
// runs traced functions without recording anything
type Tracer struct {
	serviceName string
	enabled     bool
}

// NewTracer creates a new tracer instance
func NewTracer(serviceName string, enabled bool) *Tracer {
	return &Tracer{
		serviceName: serviceName,
		enabled:     enabled,
	}
}

// Middleware opens a segment per request. Lambda already provides one, so
// only the long running server needs it
func (t *Tracer) Middleware(next http.Handler) http.Handler {
	if t == nil || !t.enabled {
		return next
	}
	return xray.Handler(xray.NewFixedSegmentNamer(t.serviceName), next)
}

// TraceFunction runs fn inside a subsegment, annotated with the chat id
// when one is given. Without a parent segment in ctx fn runs untraced
func (t *Tracer) TraceFunction(ctx context.Context, name, chatID string, fn func(context.Context) error) error {
	if t == nil || !t.enabled || xray.GetSegment(ctx) == nil {
		return fn(ctx)
	}

	ctx, seg := xray.BeginSubsegment(ctx, name)
	if chatID != "" {
		_ = seg.AddAnnotation("chat_id", chatID)
	}

	err := fn(ctx)
	if err != nil {
		_ = seg.AddError(err)
	}
	seg.Close(err)
	return err
}

// AddMetadata adds metadata to the current segment
func (t *Tracer) AddMetadata(ctx context.Context, key string, value interface{}) {
	if t == nil || !t.enabled {
		return
	}
	if seg := xray.GetSegment(ctx); seg != nil {
		_ = seg.AddMetadata(key, value)
	}
}
