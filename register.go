package procurement_service

import (
	"github.com/gin-gonic/gin"
	"github.com/pdcgo/procurement_service/budget"
	"github.com/pdcgo/procurement_service/common"
	"github.com/pdcgo/procurement_service/requisition"
	"github.com/pdcgo/procurement_service/workflow"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type RegisterHandler func()

func NewRegister(
	db *gorm.DB,
	engine *gin.Engine,
	log *zap.Logger,
) RegisterHandler {
	return func() {
		units := common.NewUnitService(db)
		resolver := workflow.NewResolver(units)

		api := engine.Group("/api/v1")

		budget.NewBudgetService(db, log).RegisterRoutes(api)
		workflow.NewWorkflowService(db, log).RegisterRoutes(api)
		requisition.NewRequisitionService(db, resolver, units, log).RegisterRoutes(api)
	}
}
