package middleware

import (
	"fmt"
	"net/http"

	"github.com/cloo-solutions/docqa/internal/api"
	"github.com/getsentry/sentry-go"
)

// SentryMiddleware runs each request in its own hub and transaction. The
// transaction is renamed to the matched route once the router has run, so
// session ids in paths do not split it. 5xx responses are captured with
// their error code. Without an initialised client this is a cheap no-op.
func SentryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub := sentry.GetHubFromContext(r.Context())
		if hub == nil {
			hub = sentry.CurrentHub().Clone()
		}

		options := []sentry.SpanOption{
			sentry.WithOpName("http.server"),
			sentry.WithTransactionSource(sentry.SourceURL),
		}
		if trace := r.Header.Get(sentry.SentryTraceHeader); trace != "" {
			options = append(options, sentry.ContinueFromHeaders(trace, r.Header.Get(sentry.SentryBaggageHeader)))
		}

		transaction := sentry.StartTransaction(r.Context(), r.Method+" "+r.URL.Path, options...)
		defer transaction.Finish()

		r = r.WithContext(sentry.SetHubOnContext(transaction.Context(), hub))
		hub.Scope().SetRequest(r)
		if requestID := GetRequestID(r.Context()); requestID != "" {
			hub.Scope().SetTag("request_id", requestID)
			transaction.SetTag("request_id", requestID)
		}

		defer func() {
			if err := recover(); err != nil {
				transaction.Status = sentry.SpanStatusInternalError
				hub.RecoverWithContext(r.Context(), err)
				panic(err)
			}
		}()

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		status := rec.Status()
		transaction.Name = r.Method + " " + routePattern(r)
		transaction.Source = sentry.SourceRoute
		transaction.Status = spanStatus(status)
		transaction.SetData("http.response.status_code", status)

		if sessionID := GetSessionID(r.Context()); sessionID != "" {
			hub.Scope().SetTag("session_id", sessionID)
			transaction.SetTag("session_id", sessionID)
		}

		if status >= http.StatusInternalServerError {
			code := rec.Header().Get(api.ErrorCodeHeader)
			hub.Scope().SetTag("error_code", code)
			hub.CaptureMessage(fmt.Sprintf("%s %s: HTTP %d %s", r.Method, routePattern(r), status, code))
		}
	})
}

// spanStatus maps the statuses this API answers with
func spanStatus(status int) sentry.SpanStatus {
	switch status {
	case http.StatusBadRequest:
		return sentry.SpanStatusInvalidArgument
	case http.StatusNotFound:
		return sentry.SpanStatusNotFound
	case http.StatusMethodNotAllowed:
		return sentry.SpanStatusUnimplemented
	case http.StatusRequestEntityTooLarge:
		return sentry.SpanStatusResourceExhausted
	case http.StatusBadGateway:
		// the embedding or generation provider failed
		return sentry.SpanStatusUnavailable
	case http.StatusGatewayTimeout:
		return sentry.SpanStatusDeadlineExceeded
	}
	switch {
	case status < http.StatusBadRequest:
		return sentry.SpanStatusOK
	case status < http.StatusInternalServerError:
		return sentry.SpanStatusInvalidArgument
	default:
		return sentry.SpanStatusInternalError
	}
}
