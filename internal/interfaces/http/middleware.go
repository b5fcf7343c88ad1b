package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/purchase-approval/internal/application/port"
	"github.com/garyjia/purchase-approval/internal/domain/entity"
	"github.com/garyjia/purchase-approval/internal/domain/event"
	"github.com/garyjia/purchase-approval/pkg/jwt"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	currentUserKey  = "current_user"

	// external IDs longer than this are replaced to keep log lines sane
	requestIDMaxLen = 64
)

// RequestID reads X-Request-ID or generates one, echoes it on the response
// and stores it as the correlation ID of the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" || len(rid) > requestIDMaxLen {
			rid = uuid.New().String()
		}

		c.Set(requestIDKey, rid)
		c.Header(requestIDHeader, rid)
		c.Request = c.Request.WithContext(event.WithCorrelationID(c.Request.Context(), rid))

		c.Next()
	}
}

// Logging writes one structured line per request
func Logging(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.ByType(gin.ErrorTypePrivate).String()))
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("HTTP request failed", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("HTTP request rejected", fields...)
		default:
			logger.Info("HTTP request", fields...)
		}
	}
}

// Metrics records every request under its route template
func Metrics(m HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		m.ObserveHTTP(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

// Auth verifies the bearer token and loads the acting user
func Auth(tokens TokenParser, users port.UserRepository, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			abortUnauthorized(c, "missing bearer token")
			return
		}

		claims, err := tokens.Parse(parts[1])
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				abortUnauthorized(c, "token expired")
				return
			}
			abortUnauthorized(c, "invalid token")
			return
		}

		userID, err := claims.UserID()
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}

		user, err := users.GetByID(c.Request.Context(), userID)
		if err != nil {
			logger.Error("Failed to load user", zap.Int64("user_id", userID), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, Response{Error: "internal error"})
			return
		}
		if user == nil {
			abortUnauthorized(c, "unknown user")
			return
		}

		c.Set(currentUserKey, user)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, Response{Error: msg})
}

// currentUser returns the user loaded by Auth
func currentUser(c *gin.Context) *entity.User {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*entity.User)
	return user
}

// CORS adds permissive CORS headers and answers preflight requests
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, Content-Disposition")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
