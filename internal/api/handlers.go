package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"assetlink/internal/domain"
)

type createTaskRequest struct {
	ProducerID      string          `json:"producer_id" binding:"required"`
	BindingID       string          `json:"binding_id" binding:"required"`
	AssetID         string          `json:"asset_id" binding:"required"`
	ContractID      string          `json:"contract_id" binding:"required"`
	Interval        string          `json:"interval" binding:"required"`
	Expiry          time.Time       `json:"expiry" binding:"required"`
	DataType        json.RawMessage `json:"data_type,omitempty"`
	AssetProperties json.RawMessage `json:"asset_properties,omitempty"`
}

type taskResponse struct {
	ID         string    `json:"id"`
	ProducerID string    `json:"producer_id"`
	BindingID  string    `json:"binding_id"`
	AssetID    string    `json:"asset_id"`
	ContractID string    `json:"contract_id"`
	Interval   string    `json:"interval"`
	Expiry     time.Time `json:"expiry"`
	CreatedAt  time.Time `json:"created_at"`
	Degraded   bool      `json:"degraded,omitempty"`
}

// POST /api/v1/tasks
func (s *Server) createTask(c *gin.Context) {
	if !s.createLimiter.Allow() {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "create rate exceeded"})
		return
	}

	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "detail": err.Error()})
		return
	}
	interval, err := time.ParseDuration(req.Interval)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid interval", "detail": err.Error()})
		return
	}

	task := domain.PersistentTask{
		ProducerID:      req.ProducerID,
		BindingID:       req.BindingID,
		AssetID:         req.AssetID,
		ContractID:      req.ContractID,
		Interval:        interval,
		Expiry:          req.Expiry,
		DataType:        req.DataType,
		AssetProperties: req.AssetProperties,
	}
	id, err := s.reg.Register(c.Request.Context(), &task)
	if err != nil {
		var ve *domain.ValidationError
		switch {
		case errors.As(err, &ve):
			c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error()})
		case errors.Is(err, domain.ErrDuplicateBinding):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "create task failed", "detail": err.Error()})
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"task_id": id})
}

// GET /api/v1/tasks
func (s *Server) listTasks(c *gin.Context) {
	degraded := map[string]bool{}
	for _, id := range s.reg.Degraded() {
		degraded[id] = true
	}
	summaries := s.reg.Tasks()
	out := make([]taskResponse, 0, len(summaries))
	for _, t := range summaries {
		out = append(out, taskResponse{
			ID:         t.ID,
			ProducerID: t.ProducerID,
			BindingID:  t.BindingID,
			AssetID:    t.AssetID,
			ContractID: t.ContractID,
			Interval:   t.Interval.String(),
			Expiry:     t.Expiry,
			CreatedAt:  t.CreatedAt,
			Degraded:   degraded[t.ID],
		})
	}
	c.JSON(http.StatusOK, gin.H{"tasks": out})
}

// GET /api/v1/tasks/:id
func (s *Server) getTask(c *gin.Context) {
	t, err := s.st.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "get task failed", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":               t.ID,
		"producer_id":      t.ProducerID,
		"binding_id":       t.BindingID,
		"asset_id":         t.AssetID,
		"contract_id":      t.ContractID,
		"interval":         t.Interval.String(),
		"expiry":           t.Expiry,
		"data_type":        t.DataType,
		"asset_properties": t.AssetProperties,
		"created_at":       t.CreatedAt,
		"updated_at":       t.UpdatedAt,
	})
}

// DELETE /api/v1/tasks/:id
func (s *Server) deleteTask(c *gin.Context) {
	if err := s.reg.Unregister(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "delete task failed", "detail": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) readyz(c *gin.Context) {
	// Ready when the store answers. Collaborator transports are best-effort
	// and don't gate readiness.
	if _, err := s.st.Get(c.Request.Context(), "readyz-probe"); err != nil && !errors.Is(err, domain.ErrTaskNotFound) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false, "error": "store probe failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ready": true, "active_tasks": len(s.reg.ListActive()), "timestamp": time.Now().UTC()})
}
