package logger

import (
	"log/slog"
	"strconv"
	"time"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Errors groups multiple non-nil errors under the key "errors".
// If all errors are nil, it returns an empty Attr.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// TenantID records the tenant identifier under the key "tenant_id".
// If id is nil, it returns an empty Attr.
func TenantID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("tenant_id", id)
}

// UserID records the user identifier under the key "user_id".
// If id is nil, it returns an empty Attr.
func UserID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("user_id", id)
}

// Feature records a licensed feature code under the key "feature".
func Feature(code string) slog.Attr {
	return slog.String("feature", code)
}

// Surface records a UI surface identifier under the key "surface".
func Surface(id string) slog.Attr {
	return slog.String("surface", id)
}

// Permission records a permission code under the key "permission".
func Permission(code string) slog.Attr {
	return slog.String("permission", code)
}

// Role records a role key under the key "role".
// If role is nil, it returns an empty Attr.
func Role(role any) slog.Attr {
	if role == nil {
		return slog.Attr{}
	}
	return slog.Any("role", role)
}

// Decision records a gate outcome under the key "allowed".
func Decision(allowed bool) slog.Attr {
	return slog.Bool("allowed", allowed)
}

// Reason records a denial reason under the key "reason".
func Reason(reason string) slog.Attr {
	return slog.String("reason", reason)
}

// RequestID records the request identifier under the key "request_id".
// If id is nil, it returns an empty Attr.
func RequestID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("request_id", id)
}

// Duration records a duration under the key "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}
