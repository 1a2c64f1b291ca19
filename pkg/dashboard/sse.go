package dashboard

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
)

// sseInterval is how often status/worker snapshots are pushed to
// connected dashboard clients.
const sseInterval = 2 * time.Second

// statusSSE streams orchestrator status updates via Server-Sent Events.
func (d *Dashboard) statusSSE(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Access-Control-Allow-Origin", "*")

	clientGone := c.Request.Context().Done()
	ticker := time.NewTicker(sseInterval)
	defer ticker.Stop()

	for {
		select {
		case <-clientGone:
			return
		case <-ticker.C:
			status := d.getStatusData()

			statusJSON, err := json.Marshal(status)
			if err != nil {
				continue
			}

			fmt.Fprintf(c.Writer, "event: status\n")
			fmt.Fprintf(c.Writer, "data: %s\n\n", statusJSON)
			c.Writer.Flush()
		}
	}
}

// workersSSE streams worker bookkeeping snapshots via Server-Sent Events.
func (d *Dashboard) workersSSE(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Access-Control-Allow-Origin", "*")

	clientGone := c.Request.Context().Done()
	ticker := time.NewTicker(sseInterval)
	defer ticker.Stop()

	for {
		select {
		case <-clientGone:
			return
		case <-ticker.C:
			workers := d.orchestrator.Workers(latencyWindow)

			workersJSON, err := json.Marshal(workers)
			if err != nil {
				continue
			}

			fmt.Fprintf(c.Writer, "event: workers\n")
			fmt.Fprintf(c.Writer, "data: %s\n\n", workersJSON)
			c.Writer.Flush()
		}
	}
}
