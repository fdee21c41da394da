package api

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "jobhunt-api"

	applicationsSpanName    = "applications.request"
	applicationsEventName   = "applications.request.metrics"
	applicationsEventDomain = "jobhunt.api"
	applicationsRoute       = "/api/applications"
	applicationsAttrPrefix  = "jobhunt.applications."

	observabilityEventMessage = "observability.event"
)

type applicationRequestMetrics struct {
	logger                *log.Logger
	span                  trace.Span
	start                 time.Time
	authDuration          time.Duration
	fetchDuration         time.Duration
	encodeDuration        time.Duration
	pageTokenProvided     bool
	applicationsReturned  int
	hasNextPage           bool
	errorStage            string
}

// newApplicationRequestMetrics starts a span for the request and returns the
// span context to propagate downstream.
func newApplicationRequestMetrics(ctx context.Context, logger *log.Logger) (*applicationRequestMetrics, context.Context) {
	m := &applicationRequestMetrics{
		logger: logger,
		start:  time.Now(),
	}
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, applicationsSpanName)
	m.span = span
	return m, spanCtx
}

func (m *applicationRequestMetrics) ObserveAuth(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.authDuration = duration
}

func (m *applicationRequestMetrics) ObserveFetch(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.fetchDuration = duration
}

func (m *applicationRequestMetrics) ObserveEncode(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.encodeDuration = duration
}

func (m *applicationRequestMetrics) SetPageTokenProvided(provided bool) {
	m.pageTokenProvided = provided
}

func (m *applicationRequestMetrics) SetApplicationsReturned(count int) {
	if count < 0 {
		count = 0
	}
	m.applicationsReturned = count
}

func (m *applicationRequestMetrics) SetHasNextPage(hasNext bool) {
	m.hasNextPage = hasNext
}

func (m *applicationRequestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

// Log emits the request metrics as a structured log entry and closes the
// request span with a matching observability event.
func (m *applicationRequestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}

	total := time.Since(m.start)
	severityText, severityNumber := severityForStatus(status, err)

	attrs := map[string]any{
		"http.route":                                   applicationsRoute,
		"http.status_code":                             status,
		applicationsAttrPrefix + "page_token_provided":  m.pageTokenProvided,
		applicationsAttrPrefix + "applications_returned": m.applicationsReturned,
		applicationsAttrPrefix + "has_next_page":         m.hasNextPage,
		applicationsAttrPrefix + "total_ms":              durationToMillis(total),
	}
	if m.authDuration > 0 {
		attrs[applicationsAttrPrefix+"auth_ms"] = durationToMillis(m.authDuration)
	}
	if m.fetchDuration > 0 {
		attrs[applicationsAttrPrefix+"fetch_ms"] = durationToMillis(m.fetchDuration)
	}
	if m.encodeDuration > 0 {
		attrs[applicationsAttrPrefix+"encode_ms"] = durationToMillis(m.encodeDuration)
	}
	if m.errorStage != "" {
		attrs[applicationsAttrPrefix+"error_stage"] = m.errorStage
	}
	if err != nil {
		attrs["error.message"] = err.Error()
	}

	if m.span != nil {
		m.finishSpan(status, err, severityText, severityNumber, total)
	}

	if m.logger == nil {
		return
	}

	fields := log.Fields{
		"event.name":      applicationsEventName,
		"event.domain":    applicationsEventDomain,
		"severity_text":   severityText,
		"severity_number": severityNumber,
		"attributes":      attrs,
	}
	if m.span != nil {
		if sc := m.span.SpanContext(); sc.HasTraceID() {
			fields["trace_id"] = sc.TraceID().String()
		}
	}

	entry := m.logger.WithFields(fields)
	switch severityText {
	case "ERROR":
		entry.Error(observabilityEventMessage)
	case "WARN":
		entry.Warn(observabilityEventMessage)
	default:
		entry.Info(observabilityEventMessage)
	}
}

func (m *applicationRequestMetrics) finishSpan(status int, err error, severityText string, severityNumber int, total time.Duration) {
	spanAttrs := []attribute.KeyValue{
		attribute.String("http.route", applicationsRoute),
		attribute.Int("http.status_code", status),
	}
	if m.errorStage != "" {
		spanAttrs = append(spanAttrs, attribute.String(applicationsAttrPrefix+"error_stage", m.errorStage))
	}
	m.span.SetAttributes(spanAttrs...)

	eventAttrs := []attribute.KeyValue{
		attribute.String("event.name", applicationsEventName),
		attribute.String("event.domain", applicationsEventDomain),
		attribute.String("severity_text", severityText),
		attribute.Int("severity_number", severityNumber),
		attribute.Float64(applicationsAttrPrefix+"total_ms", durationToMillis(total)),
		attribute.Bool(applicationsAttrPrefix+"page_token_provided", m.pageTokenProvided),
		attribute.Int(applicationsAttrPrefix+"applications_returned", m.applicationsReturned),
		attribute.Bool(applicationsAttrPrefix+"has_next_page", m.hasNextPage),
	}
	if m.errorStage != "" {
		eventAttrs = append(eventAttrs, attribute.String(applicationsAttrPrefix+"error_stage", m.errorStage))
	}
	if err != nil {
		eventAttrs = append(eventAttrs, attribute.String("error.message", err.Error()))
	}
	m.span.AddEvent(observabilityEventMessage, trace.WithAttributes(eventAttrs...))

	if err != nil {
		m.span.SetStatus(codes.Error, err.Error())
	} else if status >= http.StatusInternalServerError {
		m.span.SetStatus(codes.Error, http.StatusText(status))
	} else {
		m.span.SetStatus(codes.Ok, "")
	}
	m.span.End()
}

func severityForStatus(status int, err error) (string, int) {
	if err != nil || status >= http.StatusInternalServerError {
		return "ERROR", 17
	}
	if status >= http.StatusBadRequest {
		return "WARN", 13
	}
	return "INFO", 9
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
