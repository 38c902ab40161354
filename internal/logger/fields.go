package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldMethod is the structured log field key for the HTTP method.
	FieldMethod = "method"
	// FieldPath is the structured log field key for the request path.
	FieldPath = "path"
	// FieldRequestID is the structured log field key for the correlation id.
	FieldRequestID = "request_id"
	// FieldJobID is the structured log field key for a job identifier.
	FieldJobID = "job_id"
	// FieldCompany is the structured log field key for a company name.
	FieldCompany = "company"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields attaches fields to logger, defaulting to a no-op logger when nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// RequestFields describes an outbound API request.
func RequestFields(method, path, requestID string) []zap.Field {
	return StringFields(
		StringField{Key: FieldMethod, Value: method},
		StringField{Key: FieldPath, Value: path},
		StringField{Key: FieldRequestID, Value: requestID},
	)
}

// MatchFields describes a single job match.
func MatchFields(jobID, company string) []zap.Field {
	return StringFields(
		StringField{Key: FieldJobID, Value: jobID},
		StringField{Key: FieldCompany, Value: company},
	)
}
