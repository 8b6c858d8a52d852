package requisition

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pdcgo/procurement_service/procurement_core"
)

// RegisterRoutes mounts the requisition surface. Actor identity comes from the
// X-User-ID header set by the gateway.
func (s *RequisitionService) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/requisitions", s.handleCreate)
	rg.GET("/requisitions", s.handleList)
	rg.GET("/requisitions/:id", s.handleDetail)
	rg.GET("/requisitions/:id/workflow", s.handleWorkflow)
	rg.PATCH("/requisitions/:id", s.handleUpdate)
	rg.POST("/requisitions/:id/submit", s.handleSubmit)
	rg.POST("/requisitions/:id/cancel", s.handleCancel)
	rg.POST("/requisitions/:id/fulfill", s.handleFulfill)
	rg.POST("/approval_requests/:id/decide", s.handleDecide)
	rg.GET("/approval_requests/pending", s.handlePending)
}

func actorID(c *gin.Context) uint {
	raw := c.GetHeader("X-User-ID")
	id, _ := strconv.ParseUint(raw, 10, 64)
	return uint(id)
}

func abortErr(c *gin.Context, err error) {
	c.AbortWithStatusJSON(procurement_core.HTTPStatus(err), gin.H{"error": err.Error()})
}

func paramID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

func (s *RequisitionService) handleCreate(c *gin.Context) {
	var pay CreatePayload
	if err := c.ShouldBindJSON(&pay); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req, err := s.Create(c.Request.Context(), &pay, actorID(c))
	if err != nil {
		abortErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, req)
}

func (s *RequisitionService) handleList(c *gin.Context) {
	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reqs, err := s.List(c.Request.Context(), &q)
	if err != nil {
		abortErr(c, err)
		return
	}

	c.JSON(http.StatusOK, reqs)
}

func (s *RequisitionService) handleDetail(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	detail, err := s.Detail(c.Request.Context(), id)
	if err != nil {
		abortErr(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

func (s *RequisitionService) handleWorkflow(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	wf, err := s.GetWorkflow(c.Request.Context(), id)
	if err != nil {
		abortErr(c, err)
		return
	}

	c.JSON(http.StatusOK, wf)
}

func (s *RequisitionService) handleUpdate(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	var pay UpdatePayload
	if err := c.ShouldBindJSON(&pay); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req, err := s.Update(c.Request.Context(), id, &pay, actorID(c))
	if err != nil {
		abortErr(c, err)
		return
	}

	c.JSON(http.StatusOK, req)
}

func (s *RequisitionService) handleSubmit(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	req, err := s.Submit(c.Request.Context(), id, actorID(c))
	if err != nil {
		abortErr(c, err)
		return
	}

	c.JSON(http.StatusOK, req)
}

func (s *RequisitionService) handleCancel(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	var pay CancelPayload
	if err := c.ShouldBindJSON(&pay); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req, err := s.Cancel(c.Request.Context(), id, &pay, actorID(c))
	if err != nil {
		abortErr(c, err)
		return
	}

	c.JSON(http.StatusOK, req)
}

func (s *RequisitionService) handleFulfill(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	var pay FulfillPayload
	if err := c.ShouldBindJSON(&pay); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req, err := s.RecordFulfillment(c.Request.Context(), id, &pay, actorID(c))
	if err != nil {
		abortErr(c, err)
		return
	}

	c.JSON(http.StatusOK, req)
}

func (s *RequisitionService) handleDecide(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	var pay DecidePayload
	if err := c.ShouldBindJSON(&pay); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	data, err := s.Decide(c.Request.Context(), id, &pay, actorID(c))
	if err != nil {
		abortErr(c, err)
		return
	}

	c.JSON(http.StatusOK, data)
}

func (s *RequisitionService) handlePending(c *gin.Context) {
	requests, err := s.PendingForApprover(c.Request.Context(), actorID(c))
	if err != nil {
		abortErr(c, err)
		return
	}

	c.JSON(http.StatusOK, requests)
}
