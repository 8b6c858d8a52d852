package workflow

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pdcgo/procurement_service/procurement_core"
)

func (s *WorkflowService) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/workflows", s.handleSave)
	rg.GET("/workflows/:id", s.handleByID)
}

func (s *WorkflowService) handleSave(c *gin.Context) {
	var wf procurement_core.ApprovalWorkflow
	if err := c.ShouldBindJSON(&wf); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor, _ := strconv.ParseUint(c.GetHeader("X-User-ID"), 10, 64)

	saved, err := s.Save(c.Request.Context(), &wf, uint(actor))
	if err != nil {
		c.AbortWithStatusJSON(procurement_core.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, saved)
}

func (s *WorkflowService) handleByID(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid workflow id"})
		return
	}

	wf, err := s.ByID(c.Request.Context(), uint(id))
	if err != nil {
		c.AbortWithStatusJSON(procurement_core.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, wf)
}
