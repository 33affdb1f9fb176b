package cache

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Middleware serves cached copies of the routes it is attached to and
// stores successful HTML responses.
func (s *Store) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.Enabled() || c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		uri := c.Request.URL.RequestURI()

		if cached, found := s.Read(uri); found {
			c.Header("X-Cache", "HIT")
			c.Data(http.StatusOK, "text/html; charset=utf-8", cached)
			c.Abort()
			return
		}

		c.Header("X-Cache", "MISS")

		writer := &responseWriter{
			ResponseWriter: c.Writer,
			body:           bytes.NewBuffer(nil),
		}
		c.Writer = writer

		c.Next()

		if writer.Status() == http.StatusOK &&
			writer.Header().Get("Content-Type") == "text/html; charset=utf-8" {
			if err := s.Write(uri, writer.body.Bytes()); err != nil {
				log.Warn().Err(err).Str("uri", uri).Msg("error writing page cache")
			}
		}
	}
}
