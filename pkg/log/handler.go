package log

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
)

// stackHandler copies the stack recorded by cockroachdb/errors on an
// ErrAttr value into a separate stacktrace attribute.
type stackHandler struct {
	next slog.Handler
}

func withStacktraces(next slog.Handler) slog.Handler {
	return &stackHandler{next: next}
}

func (h *stackHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.next.Enabled(ctx, l)
}

func (h *stackHandler) Handle(ctx context.Context, r slog.Record) error {
	var trace string
	r.Attrs(func(a slog.Attr) bool {
		if a.Key != ErrAttrKey {
			return true
		}
		if err, ok := a.Value.Any().(error); ok {
			trace = stackOf(err)
		}
		return false
	})
	if trace != "" {
		r.AddAttrs(slog.String(StacktraceAttrKey, trace))
	}
	return h.next.Handle(ctx, r)
}

func (h *stackHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &stackHandler{next: h.next.WithAttrs(attrs)}
}

func (h *stackHandler) WithGroup(g string) slog.Handler {
	return &stackHandler{next: h.next.WithGroup(g)}
}

// stackOf walks the chain for the first error carrying safe details, which
// is where WithStack stores the trace.
func stackOf(err error) string {
	for e := err; e != nil; e = errors.UnwrapOnce(e) {
		if d := errors.GetSafeDetails(e).SafeDetails; len(d) > 0 {
			return d[0]
		}
	}
	return ""
}
