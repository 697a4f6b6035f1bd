// Package httpapi exposes research.Workflow over HTTP, per section 6's
// Research HTTP surface ("specified for callers, not the core itself").
// Grounded in codeready-toolchain-tarsy's pkg/api.Server: a thin Server
// struct wrapping the domain collaborator, with one handler method per
// route, registered onto a caller-supplied *gin.Engine.
package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/opencode-ai/orchestrator/research"
)

// Server adapts a research.Workflow to HTTP handlers.
type Server struct {
	workflow *research.Workflow
}

// NewServer constructs a Server over workflow.
func NewServer(workflow *research.Workflow) *Server {
	return &Server{workflow: workflow}
}

// Register attaches the research routes to engine.
func (s *Server) Register(engine *gin.Engine) {
	engine.POST("/research/start", s.StartResearch)
	engine.GET("/research/:id", s.GetTask)
	engine.GET("/research", s.ListTasks)
	engine.POST("/research/deep/stream", s.StreamDeepResearch)
}

type startRequest struct {
	Topic     string              `json:"topic" binding:"required"`
	Documents map[string][]string `json:"documents"`
}

// StartResearch handles POST /research/start.
func (s *Server) StartResearch(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id := s.workflow.StartResearch(c.Request.Context(), req.Topic, req.Documents)
	c.JSON(http.StatusOK, gin.H{"task_id": id, "status": "started"})
}

// GetTask handles GET /research/:id.
func (s *Server) GetTask(c *gin.Context) {
	task, ok := s.workflow.GetTask(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "research task not found"})
		return
	}
	c.JSON(http.StatusOK, task)
}

// ListTasks handles GET /research.
func (s *Server) ListTasks(c *gin.Context) {
	c.JSON(http.StatusOK, s.workflow.ListTasks())
}

type streamRequest struct {
	Query        string   `json:"query" binding:"required"`
	Depth        string   `json:"depth"`
	SelectedDocs []string `json:"selected_docs"`
}

// StreamDeepResearch handles POST /research/deep/stream: it starts a
// research run and streams its step-by-step progress as Server-Sent
// Events (`data: <json>\n\n`) until the task reaches a terminal state.
func (s *Server) StreamDeepResearch(c *gin.Context) {
	var req streamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var filter map[string][]string
	if len(req.SelectedDocs) > 0 {
		filter = map[string][]string{"document_id": req.SelectedDocs}
	}
	id := s.workflow.StartResearch(c.Request.Context(), req.Query, filter)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	lastStepCount := 0
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
			task, ok := s.workflow.GetTask(id)
			if !ok {
				return
			}
			for _, step := range task.Steps[lastStepCount:] {
				fmt.Fprintf(c.Writer, "data: %s\n\n", stepJSON(step))
				c.Writer.Flush()
			}
			lastStepCount = len(task.Steps)
			if task.Status == research.StatusCompleted || task.Status == research.StatusFailed {
				fmt.Fprintf(c.Writer, "data: %s\n\n", taskJSON(task))
				c.Writer.Flush()
				return
			}
		}
	}
}
