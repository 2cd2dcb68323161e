package server

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/smallbiznis/tenancy/internal/orgcontext"
	"go.uber.org/zap"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderOrg       = "X-Org-ID"
	HeaderTenant    = "X-Tenant-ID"

	contextOrgIDKey = "org_id"
)

// RequestID propagates the caller's request id or mints one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(HeaderRequestID, id)
		c.Set("request_id", id)
		c.Next()
	}
}

// RequestLogger emits one structured line per request.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", c.GetString("request_id")),
		}
		if last := c.Errors.Last(); last != nil {
			fields = append(fields, zap.Error(last.Err))
			log.Warn("request failed", fields...)
			return
		}
		log.Info("request", fields...)
	}
}

// OrgContext resolves the caller's organization from the X-Org-ID header set
// by the upstream session layer. Authentication itself happens upstream; the
// billing core only scopes data to the resolved org.
func (s *Server) OrgContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderOrg))
		if raw == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		orgID, err := snowflake.ParseString(raw)
		if err != nil || orgID == 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := orgcontext.WithOrgID(c.Request.Context(), orgID)
		if rawTenant := strings.TrimSpace(c.GetHeader(HeaderTenant)); rawTenant != "" {
			tenantID, err := snowflake.ParseString(rawTenant)
			if err != nil || tenantID == 0 {
				AbortWithError(c, ErrUnauthorized)
				return
			}
			ctx = orgcontext.WithTenantID(ctx, tenantID)
		}

		c.Set(contextOrgIDKey, orgID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func orgIDFrom(c *gin.Context) (snowflake.ID, bool) {
	return orgcontext.OrgIDFromContext(c.Request.Context())
}
