// Package dashboard serves the operator-facing HTML+SSE view of a
// running Data Flow Orchestrator: lifecycle state, per-worker slot
// bookkeeping, and the metrics counters, rendered the way the teacher's
// dashboard renders jobs/workers (html/template + HTMX partials + SSE).
package dashboard

import (
	"fmt"
	"html/template"
	"time"

	"github.com/athulya-anil/axon-dfo/pkg/models"
	"github.com/athulya-anil/axon-dfo/pkg/scheduler"
	"github.com/gin-gonic/gin"
)

// latencyWindow bounds the AverageLatencyMs computed for each worker
// view shown on the dashboard.
const latencyWindow = 5 * time.Minute

// Dashboard provides HTTP handlers for the operator web UI.
type Dashboard struct {
	orchestrator *scheduler.Orchestrator
	templates    *template.Template
}

// NewDashboard creates a dashboard instance bound to orchestrator,
// parsing every template under pkg/dashboard/templates.
func NewDashboard(o *scheduler.Orchestrator) (*Dashboard, error) {
	tmpl, err := template.ParseGlob("pkg/dashboard/templates/*.html")
	if err != nil {
		return nil, err
	}

	return &Dashboard{
		orchestrator: o,
		templates:    tmpl,
	}, nil
}

// SetupRoutes configures dashboard routes.
func (d *Dashboard) SetupRoutes(router *gin.Engine) {
	router.GET("/", d.overview)
	router.GET("/dashboard", d.overview)
	router.GET("/dashboard/workers", d.workersPage)

	router.GET("/api/dashboard/status", d.statusPartial)
	router.GET("/api/dashboard/workers", d.workersPartial)

	router.GET("/api/events/status", d.statusSSE)
	router.GET("/api/events/workers", d.workersSSE)
}

// overview renders the main dashboard page.
func (d *Dashboard) overview(c *gin.Context) {
	data := d.getStatusData()
	c.Header("Content-Type", "text/html; charset=utf-8")
	d.templates.ExecuteTemplate(c.Writer, "overview.html", data)
}

// workersPage renders the workers page.
func (d *Dashboard) workersPage(c *gin.Context) {
	data := d.getWorkersData()
	c.Header("Content-Type", "text/html; charset=utf-8")
	d.templates.ExecuteTemplate(c.Writer, "workers.html", data)
}

// statusPartial returns an HTML fragment for status updates (used by HTMX).
func (d *Dashboard) statusPartial(c *gin.Context) {
	data := d.getStatusData()
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Writer.Write([]byte(renderStatus(data)))
}

// workersPartial returns an HTML fragment for the worker list (used by HTMX).
func (d *Dashboard) workersPartial(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Writer.Write([]byte(renderWorkers(d.orchestrator.Workers(latencyWindow))))
}

func renderStatus(data map[string]any) string {
	stateBadge := fmt.Sprintf(`<span class="inline-flex items-center px-3 py-1 rounded-full text-sm font-medium bg-gray-100 text-gray-800">%s</span>`, data["state"])
	if data["state"] == "RUNNING" {
		stateBadge = fmt.Sprintf(`<span class="inline-flex items-center px-3 py-1 rounded-full text-sm font-medium bg-green-100 text-green-800">%s</span>`, data["state"])
	}

	return fmt.Sprintf(`
	<div id="status-panel" class="grid grid-cols-1 md:grid-cols-4 gap-4">
		<div class="bg-white rounded-lg shadow p-6">
			<div class="text-sm font-medium text-gray-500">State</div>
			<div class="mt-2">%s</div>
		</div>
		<div class="bg-white rounded-lg shadow p-6">
			<div class="text-sm font-medium text-gray-500">Run Number</div>
			<div class="mt-2 text-xl font-semibold text-gray-900">%d</div>
		</div>
		<div class="bg-white rounded-lg shadow p-6">
			<div class="text-sm font-medium text-gray-500">Decisions Sent</div>
			<div class="mt-2 text-3xl font-bold text-blue-600">%d</div>
		</div>
		<div class="bg-white rounded-lg shadow p-6">
			<div class="text-sm font-medium text-gray-500">Tokens Received</div>
			<div class="mt-2 text-3xl font-bold text-green-600">%d</div>
		</div>
	</div>
	`, stateBadge, data["run_number"], data["decisions_sent"], data["tokens_received"])
}

func renderWorkers(workers []models.WorkerView) string {
	html := `<div id="workers-list" class="grid grid-cols-1 md:grid-cols-2 lg:grid-cols-3 gap-4">`

	if len(workers) == 0 {
		html += `<div class="col-span-full text-center py-12 text-gray-500">No workers registered</div>`
	} else {
		for _, w := range workers {
			statusColor, statusText := "green", "Free"
			switch {
			case w.InError:
				statusColor, statusText = "red", "Quarantined"
			case w.IsBusy:
				statusColor, statusText = "yellow", "Busy"
			}

			html += fmt.Sprintf(`
			<div class="bg-white rounded-lg shadow p-4">
				<div class="flex items-center justify-between mb-3">
					<span class="text-sm font-medium text-gray-900">%s</span>
					<span class="inline-flex items-center px-2.5 py-0.5 rounded-full text-xs font-medium bg-%s-100 text-%s-800">
						%s
					</span>
				</div>
				<div class="space-y-2 text-sm text-gray-600">
					<div class="flex justify-between">
						<span>Outstanding:</span>
						<span class="font-semibold">%d/%d</span>
					</div>
					<div class="flex justify-between">
						<span>Free threshold:</span>
						<span>%d</span>
					</div>
					<div class="flex justify-between">
						<span>Avg latency:</span>
						<span class="text-xs">%.1f ms</span>
					</div>
				</div>
			</div>
			`, w.ConnectionName, statusColor, statusColor, statusText,
				w.Outstanding, w.BusyThreshold, w.FreeThreshold, w.AverageLatencyMs)
		}
	}

	html += `</div>`
	return html
}

func (d *Dashboard) getStatusData() map[string]any {
	snap := d.orchestrator.PeekMetrics()
	return map[string]any{
		"state":            d.orchestrator.State().String(),
		"run_number":       d.orchestrator.RunNumber(),
		"decisions_sent":   snap.DecisionsSent,
		"tokens_received":  snap.TokensReceived,
		"timestamp":        time.Now().Format("15:04:05"),
	}
}

func (d *Dashboard) getWorkersData() map[string]any {
	workers := d.orchestrator.Workers(latencyWindow)
	return map[string]any{
		"workers": workers,
		"count":   len(workers),
	}
}
