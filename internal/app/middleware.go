package app

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/tonkeeper/geocode-bot/internal/utils"
)

// LogrusLoggerMiddleware creates a middleware that logs HTTP requests using logrus
func LogrusLoggerMiddleware(extractor *utils.RealIPExtractor) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			req := c.Request()
			res := c.Response()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			stop := time.Now()

			remoteIP := c.RealIP()
			if extractor != nil {
				remoteIP = extractor.Extract(req)
			}

			fields := logrus.Fields{
				"remote_ip":  remoteIP,
				"method":     req.Method,
				"uri":        c.Path(),
				"status":     res.Status,
				"latency":    stop.Sub(start).String(),
				"latency_ms": stop.Sub(start).Milliseconds(),
				"bytes_in":   req.Header.Get("Content-Length"),
				"bytes_out":  res.Size,
			}

			if ua := req.UserAgent(); ua != "" {
				fields["user_agent"] = ua
			}

			if id := res.Header().Get(echo.HeaderXRequestID); id != "" {
				fields["request_id"] = id
			}

			logrus.WithFields(fields).Info()

			return nil
		}
	}
}
