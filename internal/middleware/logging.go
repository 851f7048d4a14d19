package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/lithammer/shortuuid/v3"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticketing/internal/logging"
	"github.com/iliyamo/event-ticketing/internal/monitoring"
)

// CorrelationIDHeader carries the request correlation id in both
// directions.
const CorrelationIDHeader = "Correlation-ID"

// CorrelationID reuses the caller's Correlation-ID header or generates a
// new one, stores it with a tagged logger in the request context and
// echoes it back.
func CorrelationID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id := req.Header.Get(CorrelationIDHeader)
			if id == "" {
				id = shortuuid.New()
			}
			ctx := logging.ToContext(req.Context(), logrus.WithFields(logrus.Fields{"correlation_id": id}))
			ctx = logging.ContextWithCorrelationID(ctx, id)
			c.SetRequest(req.WithContext(ctx))
			c.Response().Header().Set(CorrelationIDHeader, id)
			return next(c)
		}
	}
}

// RequestLogger logs one line per request and records its latency.
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			elapsed := time.Since(start)
			req := c.Request()
			status := c.Response().Status
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			monitoring.ObserveHTTP(req.Method, route, status, elapsed)

			entry := logging.FromContext(req.Context()).WithFields(logrus.Fields{
				"method":  req.Method,
				"path":    req.URL.Path,
				"status":  status,
				"latency": elapsed.String(),
				"ip":      c.RealIP(),
			})
			if err != nil {
				entry = entry.WithError(err)
			}
			switch {
			case status >= 500:
				entry.Error("request failed")
			case status >= 400:
				entry.Warn("request rejected")
			default:
				entry.Info("request handled")
			}
			return nil
		}
	}
}
