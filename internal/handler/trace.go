package handler

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ParseOrGenerateTraceID keeps a valid UUID supplied by the caller and
// generates a time-ordered one otherwise.
func ParseOrGenerateTraceID(traceID string) string {
	if traceID != "" {
		parsed, err := uuid.Parse(traceID)
		if err == nil {
			return parsed.String()
		}
		logrus.WithFields(logrus.Fields{
			"error":            err,
			"invalid_trace_id": traceID,
		}).Debug("generating a new trace_id")
	}
	generated, err := uuid.NewV7()
	if err != nil {
		logrus.Error(err)
		return "unknown"
	}
	return generated.String()
}
