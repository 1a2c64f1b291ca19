// Package api exposes the orchestrator's lifecycle commands and status
// over REST, the host-framework surface spec.md treats as external.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/athulya-anil/axon-dfo/pkg/models"
	"github.com/athulya-anil/axon-dfo/pkg/scheduler"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// API wraps an Orchestrator and provides HTTP handlers for its
// lifecycle commands, decision submission, and status.
type API struct {
	orchestrator *scheduler.Orchestrator
}

// NewAPI creates an API instance bound to orchestrator.
func NewAPI(o *scheduler.Orchestrator) *API {
	return &API{orchestrator: o}
}

// SetupRoutes configures all API routes. Every request is stamped with a
// per-request correlation ID; the lifecycle, decision and status
// handlers return it in their success responses. It is not logged.
func (a *API) SetupRoutes(router *gin.Engine) {
	router.Use(correlationID())

	router.POST("/lifecycle/start", a.start)
	router.POST("/lifecycle/stop", a.stop)
	router.POST("/lifecycle/scrap", a.scrap)

	router.POST("/decisions", a.submitDecision)

	router.GET("/status", a.getStatus)
	router.GET("/workers", a.listWorkers)
	router.GET("/metrics", a.getMetrics)
	router.GET("/health", a.healthCheck)
}

func correlationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("correlation_id", uuid.New().String())
		c.Next()
	}
}

// StartRequest is the payload for POST /lifecycle/start.
type StartRequest struct {
	RunNumber uint64 `json:"run_number" binding:"required"`
}

// DecisionRequest is the payload for POST /decisions.
type DecisionRequest struct {
	TriggerNumber uint64            `json:"trigger_number" binding:"required"`
	RunNumber     uint64            `json:"run_number" binding:"required"`
	Metadata      map[string]string `json:"metadata"`
}

func (a *API) start(c *gin.Context) {
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := a.orchestrator.Start(context.Background(), req.RunNumber); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"correlation_id": c.GetString("correlation_id"),
		"state":          a.orchestrator.State().String(),
		"run_number":     req.RunNumber,
	})
}

func (a *API) stop(c *gin.Context) {
	if err := a.orchestrator.Stop(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"correlation_id": c.GetString("correlation_id"),
		"state":          a.orchestrator.State().String(),
	})
}

func (a *API) scrap(c *gin.Context) {
	if err := a.orchestrator.Scrap(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"correlation_id": c.GetString("correlation_id"),
		"state":          a.orchestrator.State().String(),
	})
}

func (a *API) submitDecision(c *gin.Context) {
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	decision := models.TriggerDecision{
		TriggerNumber: req.TriggerNumber,
		RunNumber:     req.RunNumber,
		Metadata:      req.Metadata,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.orchestrator.Submit(ctx, decision); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"correlation_id": c.GetString("correlation_id"),
		"trigger_number": req.TriggerNumber,
	})
}

func (a *API) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"correlation_id": c.GetString("correlation_id"),
		"state":          a.orchestrator.State().String(),
		"run_number":     a.orchestrator.RunNumber(),
		"timestamp":      time.Now(),
	})
}

func (a *API) listWorkers(c *gin.Context) {
	workers := a.orchestrator.Workers(5 * time.Minute)
	c.JSON(http.StatusOK, gin.H{
		"count":   len(workers),
		"workers": workers,
	})
}

func (a *API) getMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, a.orchestrator.Metrics())
}

func (a *API) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
