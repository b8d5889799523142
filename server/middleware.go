package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/YuminosukeSato/loanml/pkg/errors"
	"github.com/YuminosukeSato/loanml/pkg/log"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

const (
	requestIDKey = "request_id"
	loggerKey    = "logger"
)

// RequestID takes the caller's X-Request-ID or assigns a fresh UUID, and
// echoes it on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Writer.Header().Set(RequestIDHeader, id)
		c.Next()
	}
}

func requestIDFrom(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// RequestLogger logs one record per request, at a level chosen by status.
// Handlers get the request-scoped logger through loggerFrom.
func RequestLogger(logger log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqLogger := logger.With(
			log.RequestIDKey, requestIDFrom(c),
			"http.method", c.Request.Method,
			"http.path", c.Request.URL.Path,
		)
		c.Set(loggerKey, reqLogger)

		c.Next()

		status := c.Writer.Status()
		fields := []any{
			log.StatusKey, status,
			log.RouteKey, c.FullPath(),
			log.DurationMsKey, time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, log.ErrorKey, c.Errors.String())
		}

		const msg = "HTTP request"
		switch {
		case status >= 500:
			reqLogger.Error(msg, fields...)
		case status >= 400:
			reqLogger.Warn(msg, fields...)
		default:
			reqLogger.Info(msg, fields...)
		}
	}
}

func loggerFrom(c *gin.Context) log.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if l, ok := v.(log.Logger); ok {
			return l
		}
	}
	return log.GetLoggerWithName("server")
}

// Recovery turns a handler panic into a 500 error response.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		err := errors.NewPanicError(c.FullPath(), recovered)
		loggerFrom(c).Error("Handler panicked", err)
		abortWithError(c, http.StatusInternalServerError, CodeInternal, "internal server error")
	})
}

// CORS allows the listed browser origins ("*" for any) to call the API.
// Preflight requests are answered with 204 whether or not the origin is allowed.
func CORS(origins []string) gin.HandlerFunc {
	allowAny := false
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAny = true
		}
		allowed[o] = struct{}{}
	}
	const (
		methods = "GET, POST, OPTIONS"
		headers = "Content-Type, Accept, Origin, " + RequestIDHeader
		maxAge  = 12 * time.Hour
	)

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		allow := ""
		if allowAny {
			allow = "*"
		} else if _, ok := allowed[origin]; ok && origin != "" {
			allow = origin
		}
		if allow != "" {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", allow)
			h.Set("Access-Control-Allow-Methods", methods)
			h.Set("Access-Control-Allow-Headers", headers)
			h.Set("Access-Control-Expose-Headers", RequestIDHeader)
			h.Set("Access-Control-Max-Age", strconv.Itoa(int(maxAge.Seconds())))
			if allow != "*" {
				h.Add("Vary", "Origin")
			}
		}
		if strings.EqualFold(c.Request.Method, http.MethodOptions) {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
