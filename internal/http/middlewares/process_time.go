package middlewares

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const processTimeHeader = "X-Process-Time"

// processTimeWriter stamps the elapsed time right before the status line goes out.
type processTimeWriter struct {
	gin.ResponseWriter
	start   time.Time
	stamped bool
}

func (w *processTimeWriter) stamp() {
	if w.stamped || w.ResponseWriter.Written() {
		return
	}
	w.stamped = true
	w.Header().Set(processTimeHeader, formatSeconds(time.Since(w.start)))
}

func (w *processTimeWriter) WriteHeaderNow() {
	w.stamp()
	w.ResponseWriter.WriteHeaderNow()
}

func (w *processTimeWriter) Write(b []byte) (int, error) {
	w.stamp()
	return w.ResponseWriter.Write(b)
}

func (w *processTimeWriter) WriteString(s string) (int, error) {
	w.stamp()
	return w.ResponseWriter.WriteString(s)
}

func (w *processTimeWriter) Flush() {
	w.stamp()
	w.ResponseWriter.Flush()
}

// ProcessTime reports handler time in seconds in the X-Process-Time header.
func ProcessTime() gin.HandlerFunc {
	return func(c *gin.Context) {
		w := &processTimeWriter{ResponseWriter: c.Writer, start: time.Now()}
		c.Writer = w

		c.Next()

		// bodiless responses are flushed by gin after the chain returns
		w.stamp()
	}
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 6, 64)
}
