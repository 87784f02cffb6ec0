package audit

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"bankmesh.org/internal/auth"
	"bankmesh.org/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// LogEvent writes an audit entry enriched with the request id and the
// acting principal. State-changing engine operations call it on success.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	entry := obs.Logger().WithFields(logrus.Fields{
		"type":  "audit",
		"event": event,
	})
	if rid := requestIDFromContext(ctx); rid != "" {
		entry = entry.WithField("request_id", rid)
	}
	if p, ok := auth.PrincipalFromContext(ctx); ok {
		entry = entry.WithFields(logrus.Fields{"login": p.Login, "role": string(p.Role)})
	}
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	entry.WithField("fields", copied).Info("audit")
	return nil
}
