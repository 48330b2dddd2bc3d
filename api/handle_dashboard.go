package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/checkmarble/agent-eval-backend/dto"
	"github.com/checkmarble/agent-eval-backend/usecases"
)

func handleGetDashboardSummary(uc usecases.Usecases) func(c *gin.Context) {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var params SuiteFilterInput
		if err := c.ShouldBindQuery(&params); err != nil {
			presentBindingError(ctx, c, err)
			return
		}

		usecase := uc.NewDashboardUsecase()
		summary, err := usecase.GetSummary(ctx, params.suiteId())
		if presentError(ctx, c, err) {
			return
		}

		c.JSON(http.StatusOK, dto.AdaptDashboardSummaryDto(summary))
	}
}
