package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/poiesic/portfolioqa/core"
	"github.com/poiesic/portfolioqa/ingestion"
	"github.com/poiesic/portfolioqa/orchestrator"
	"github.com/poiesic/portfolioqa/storage"
)

var (
	// ErrQuerierRequired is returned when no query service is provided.
	ErrQuerierRequired = errors.New("querier required")

	// ErrBadRequestBody is returned for bodies that cannot be decoded.
	ErrBadRequestBody = errors.New("malformed request body")

	// ErrIngestionDisabled is returned by ingestion routes when the server has no Ingester.
	ErrIngestionDisabled = errors.New("ingestion disabled")
)

// statusClientClosedRequest is reported when the caller went away mid-query.
const statusClientClosedRequest = 499

// ErrorInfo is the body of every error response.
type ErrorInfo struct {
	Kind    core.ErrorKind `json:"kind"`
	Message string         `json:"message"`
}

type errorResponse struct {
	Error ErrorInfo `json:"error"`
}

// statusFor maps an error onto an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, orchestrator.ErrUnknownResult):
		return http.StatusNotFound
	case errors.Is(err, ErrBadRequestBody):
		return http.StatusBadRequest
	case errors.Is(err, ErrIngestionDisabled),
		errors.Is(err, ingestion.ErrJobUnavailable),
		errors.Is(err, ingestion.ErrJobStoreRequired):
		return http.StatusNotImplemented
	case errors.Is(err, ingestion.ErrClosed):
		return http.StatusServiceUnavailable
	}

	switch core.KindOf(err) {
	case core.KindValidation:
		return http.StatusBadRequest
	case core.KindQueryTimeout, core.KindClassificationTimeout:
		return http.StatusGatewayTimeout
	case core.KindUpstreamUnavailable, core.KindRetrievalFailure:
		return http.StatusBadGateway
	case core.KindCancellationRequested:
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// errorInfo builds the caller-facing description of err. Internal errors
// are reported without detail.
func errorInfo(err error) ErrorInfo {
	var qe *core.QueryError
	if errors.As(err, &qe) {
		msg := qe.Message
		if msg == "" {
			msg = string(qe.Kind)
		}
		if qe.Kind == core.KindValidation && qe.Err != nil {
			msg = qe.Err.Error()
		}
		return ErrorInfo{Kind: qe.Kind, Message: msg}
	}

	status := statusFor(err)
	kind := core.KindOf(err)
	switch {
	case status == http.StatusNotFound:
		return ErrorInfo{Kind: "not_found", Message: err.Error()}
	case status == http.StatusBadRequest && kind != core.KindValidation:
		return ErrorInfo{Kind: "bad_request", Message: err.Error()}
	case status == http.StatusNotImplemented, status == http.StatusServiceUnavailable:
		return ErrorInfo{Kind: "unavailable", Message: err.Error()}
	case kind == core.KindInternal:
		return ErrorInfo{Kind: kind, Message: "internal error"}
	}
	return ErrorInfo{Kind: kind, Message: err.Error()}
}

func (s *Server) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.FullPath(), "status", status, "err", err)
	} else {
		s.logger.Debug("request rejected", "path", c.FullPath(), "status", status, "err", err)
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: errorInfo(err)})
}
