package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/checkmarble/agent-eval-backend/usecases"
)

func handleLivenessProbe(uc usecases.Usecases) func(c *gin.Context) {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		report, err := uc.NewLivenessUsecase().Liveness(ctx)
		if presentError(ctx, c, err) {
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":             "ok",
			"agent_configured":   report.AgentConfigured,
			"generation_enabled": report.GenerationEnabled,
		})
	}
}
