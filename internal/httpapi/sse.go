package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"burger-house/internal/fanout"
)

// streamSSE bridges a fanout streamer onto a Server-Sent Events response.
// The handler blocks for the life of the subscription; disconnect is seen as
// a write error or context cancellation and releases the streamer.
func (s *Server) streamSSE(streamer *fanout.Streamer) gin.HandlerFunc {
	return func(c *gin.Context) {
		flusher, ok := c.Writer.(http.Flusher)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
			return
		}
		h := c.Writer.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		c.Writer.WriteHeader(http.StatusOK)
		flusher.Flush()

		err := streamer.Stream(c.Request.Context(), func(ev fanout.Event) error {
			data, err := json.Marshal(ev.Data)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", ev.Name, data); err != nil {
				return err
			}
			flusher.Flush()
			return nil
		})
		if err != nil {
			s.log.Debug("stream_closed", map[string]any{"reason": err.Error()})
		}
	}
}
