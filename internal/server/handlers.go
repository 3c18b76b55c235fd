package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rapfii/NEXUS-Terminal-sub001/internal/adapter"
	"github.com/rapfii/NEXUS-Terminal-sub001/internal/aggregator"
	"github.com/rapfii/NEXUS-Terminal-sub001/internal/analytics"
	"github.com/rapfii/NEXUS-Terminal-sub001/logger"
	"github.com/rapfii/NEXUS-Terminal-sub001/models"
)

const (
	requestIDHeader = "X-Request-ID"

	// statusClientClosedRequest is reported when the caller went away before
	// the response was ready.
	statusClientClosedRequest = 499
)

var errBadRequest = errors.New("bad request")

// requestContext assigns a request id, bounds the request by the configured
// timeout and logs the outcome.
func (s *Server) requestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)

		ctx := aggregator.WithRequestID(c.Request.Context(), id)
		if s.cfg.RequestTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
			defer cancel()
		}
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()

		logger.LogPerformanceEntry(s.log.WithComponent("server"), "server", "http_request", time.Since(start), logger.Fields{
			"request_id": id,
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
		})
	}
}

// statusCode maps gateway errors onto HTTP status codes.
func statusCode(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, models.ErrInvalidInstrument),
		errors.Is(err, analytics.ErrInvalidSize):
		return http.StatusBadRequest
	case errors.Is(err, adapter.ErrUnknownSource):
		return http.StatusNotFound
	case errors.Is(err, adapter.ErrUnsupported):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	case errors.Is(err, aggregator.ErrAllSourcesFailed):
		return http.StatusBadGateway
	}
	return http.StatusBadGateway
}

// fail writes an error response. A partial result, if any, is included so
// callers still see per-source statuses.
func (s *Server) fail(c *gin.Context, err error, partial any) {
	code := statusCode(err)
	body := gin.H{
		"error":     err.Error(),
		"requestId": c.Writer.Header().Get(requestIDHeader),
	}
	if partial != nil {
		body["data"] = partial
	}

	entry := s.log.WithComponent("server").WithError(err).WithFields(logger.Fields{
		"path":   c.FullPath(),
		"status": code,
	})
	switch {
	case code == statusClientClosedRequest:
		entry.Debug("client cancelled request")
	case code >= http.StatusInternalServerError:
		entry.Warn("request failed")
	default:
		entry.Debug("request rejected")
	}
	c.JSON(code, body)
}

// partialOf drops nil composites so they are not encoded as "data": null.
func partialOf[T any](v *T) any {
	if v == nil {
		return nil
	}
	return v
}

func instrumentParam(c *gin.Context) (models.Instrument, error) {
	return models.ParseInstrument(c.Param("instrument"))
}

func (s *Server) aggregate(c *gin.Context) {
	inst, err := instrumentParam(c)
	if err != nil {
		s.fail(c, err, nil)
		return
	}
	agg, err := s.svc.Aggregate(c.Request.Context(), inst)
	if err != nil {
		s.fail(c, err, partialOf(agg))
		return
	}
	c.JSON(http.StatusOK, agg)
}

func (s *Server) funding(c *gin.Context) {
	inst, err := instrumentParam(c)
	if err != nil {
		s.fail(c, err, nil)
		return
	}
	agg, err := s.svc.AggregateFunding(c.Request.Context(), inst)
	if err != nil {
		s.fail(c, err, partialOf(agg))
		return
	}
	c.JSON(http.StatusOK, agg)
}

func (s *Server) execution(c *gin.Context) {
	inst, err := instrumentParam(c)
	if err != nil {
		s.fail(c, err, nil)
		return
	}
	rawSize := c.Query("size")
	if rawSize == "" {
		s.fail(c, fmt.Errorf("%w: size is required", errBadRequest), nil)
		return
	}
	size, err := strconv.ParseFloat(rawSize, 64)
	if err != nil {
		s.fail(c, fmt.Errorf("%w: size %q is not a number", errBadRequest, rawSize), nil)
		return
	}
	side, err := models.ParseSide(c.Query("side"))
	if err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err), nil)
		return
	}

	cmp, err := s.svc.CompareExecution(c.Request.Context(), inst, size, side)
	if err != nil {
		s.fail(c, err, partialOf(cmp))
		return
	}
	c.JSON(http.StatusOK, cmp)
}

func (s *Server) fetchOne(c *gin.Context) {
	inst, err := instrumentParam(c)
	if err != nil {
		s.fail(c, err, nil)
		return
	}
	kind, err := models.ParseDataKind(c.Param("kind"))
	if err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err), nil)
		return
	}

	payload, err := s.svc.FetchOne(c.Request.Context(), c.Param("source"), kind, inst)
	if err != nil {
		s.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, payload)
}
