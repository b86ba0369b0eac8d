// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/poiesic/portfolioqa/core"
	"github.com/poiesic/portfolioqa/orchestrator"
)

const maxBodyBytes = 4 << 20

type feedbackRequest struct {
	Key      string `json:"key"`
	Accurate *bool  `json:"accurate"`
}

type jobRequest struct {
	Kind core.JobKind `json:"kind"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// query answers synchronously, or streams events when the caller asks for
// text/event-stream and the connection can flush.
func (s *Server) query(c *gin.Context) {
	var q core.Query
	if err := decodeBody(c, &q); err != nil {
		s.respondError(c, err)
		return
	}

	if wantsEventStream(c.Request) {
		if flusher, ok := c.Writer.(http.Flusher); ok {
			s.streamQuery(c, flusher, q)
			return
		}
	}

	result, err := s.querier.Query(c.Request.Context(), q)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// streamQuery writes one SSE frame per event. A client disconnect cancels
// the request context, which aborts the query.
func (s *Server) streamQuery(c *gin.Context, flusher http.Flusher, q core.Query) {
	events, err := s.querier.Stream(c.Request.Context(), q)
	if err != nil {
		s.respondError(c, err)
		return
	}

	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	flusher.Flush()

	for ev := range events {
		if err := writeEvent(c.Writer, ev); err != nil {
			s.logger.Debug("event stream closed", "err", err)
			// Drain so the run is not left blocked on a full buffer
			for range events {
			}
			return
		}
		flusher.Flush()
	}
}

func writeEvent(w io.Writer, ev orchestrator.Event) error {
	data, err := json.Marshal(ev.Payload())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	return err
}

func (s *Server) feedback(c *gin.Context) {
	var req feedbackRequest
	if err := decodeBody(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	if req.Key == "" || req.Accurate == nil {
		s.respondError(c, fmt.Errorf("%w: key and accurate are required", core.ErrValidation))
		return
	}
	if err := s.querier.Feedback(req.Key, *req.Accurate); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// updates accepts a single update object or an array of them. Every update
// is validated before any is queued.
func (s *Server) updates(c *gin.Context) {
	if s.ingester == nil {
		s.respondError(c, ErrIngestionDisabled)
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		s.respondError(c, fmt.Errorf("%w: %w", ErrBadRequestBody, err))
		return
	}

	var updates []core.EntityUpdate
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &updates)
	} else {
		var update core.EntityUpdate
		err = json.Unmarshal(trimmed, &update)
		updates = []core.EntityUpdate{update}
	}
	if err != nil {
		s.respondError(c, fmt.Errorf("%w: %w", ErrBadRequestBody, err))
		return
	}

	for i := range updates {
		if err := core.ValidateUpdate(&updates[i]); err != nil {
			s.respondError(c, fmt.Errorf("update %d: %w", i, err))
			return
		}
	}
	for _, update := range updates {
		if err := s.ingester.Notify(update); err != nil {
			s.respondError(c, err)
			return
		}
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": len(updates)})
}

func (s *Server) startJob(c *gin.Context) {
	if s.ingester == nil {
		s.respondError(c, ErrIngestionDisabled)
		return
	}
	var req jobRequest
	if err := decodeBody(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	id, err := s.ingester.StartJob(c.Request.Context(), req.Kind)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.Header("Location", "/v1/jobs/"+id)
	c.JSON(http.StatusAccepted, gin.H{"id": id})
}

func (s *Server) listJobs(c *gin.Context) {
	if s.ingester == nil {
		s.respondError(c, ErrIngestionDisabled)
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.respondError(c, fmt.Errorf("%w: limit must be a non-negative integer", core.ErrValidation))
			return
		}
		limit = n
	}
	jobs, err := s.ingester.ListJobs(c.Request.Context(), limit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

func (s *Server) jobStatus(c *gin.Context) {
	if s.ingester == nil {
		s.respondError(c, ErrIngestionDisabled)
		return
	}
	job, err := s.ingester.JobStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func decodeBody(c *gin.Context, v any) error {
	dec := json.NewDecoder(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequestBody, err)
	}
	return nil
}

func wantsEventStream(r *http.Request) bool {
	for _, accept := range r.Header.Values("Accept") {
		for _, part := range strings.Split(accept, ",") {
			mediaType, _, _ := strings.Cut(strings.TrimSpace(part), ";")
			if strings.EqualFold(strings.TrimSpace(mediaType), "text/event-stream") {
				return true
			}
		}
	}
	return false
}
