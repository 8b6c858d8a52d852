package budget

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pdcgo/procurement_service/procurement_core"
)

// RegisterRoutes mounts the budget surface. Actor identity comes from the
// X-User-ID header set by the gateway, authentication itself is out of scope.
func (s *BudgetService) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/budgets", s.handleCreateBudget)
	rg.POST("/allocations", s.handleCreateAllocation)
	rg.GET("/budgets/:id/status", s.handleStatus)
	rg.GET("/budgets/:id/reconcile", s.handleReconcile)
}

func actorID(c *gin.Context) uint {
	raw := c.GetHeader("X-User-ID")
	id, _ := strconv.ParseUint(raw, 10, 64)
	return uint(id)
}

func abortErr(c *gin.Context, err error) {
	c.AbortWithStatusJSON(procurement_core.HTTPStatus(err), gin.H{"error": err.Error()})
}

func (s *BudgetService) handleCreateBudget(c *gin.Context) {
	var pay BudgetCreatePayload
	if err := c.ShouldBindJSON(&pay); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bud, err := s.CreateBudget(c.Request.Context(), &pay, actorID(c))
	if err != nil {
		abortErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, bud)
}

func (s *BudgetService) handleCreateAllocation(c *gin.Context) {
	var pay AllocationCreatePayload
	if err := c.ShouldBindJSON(&pay); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	alloc, err := s.CreateAllocation(c.Request.Context(), &pay, actorID(c))
	if err != nil {
		abortErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, alloc)
}

func (s *BudgetService) handleStatus(c *gin.Context) {
	budgetID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid budget id"})
		return
	}

	var allocationID *uint
	if raw := c.Query("allocation_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid allocation id"})
			return
		}
		uid := uint(id)
		allocationID = &uid
	}

	status, err := s.Status(c.Request.Context(), uint(budgetID), allocationID)
	if err != nil {
		abortErr(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

func (s *BudgetService) handleReconcile(c *gin.Context) {
	budgetID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid budget id"})
		return
	}

	data, err := s.Reconcile(c.Request.Context(), uint(budgetID))
	if err != nil {
		abortErr(c, err)
		return
	}

	c.JSON(http.StatusOK, data)
}
