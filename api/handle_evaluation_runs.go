package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/checkmarble/agent-eval-backend/dto"
	"github.com/checkmarble/agent-eval-backend/models"
	"github.com/checkmarble/agent-eval-backend/pure_utils"
	"github.com/checkmarble/agent-eval-backend/usecases"
)

const (
	defaultRunListLimit = 50
	maxRunListLimit     = 200
)

type EvaluationRunUriInput struct {
	RunId string `uri:"run_id" binding:"required,uuid"`
}

func handleStartEvaluationRun(uc usecases.Usecases) func(c *gin.Context) {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var body dto.StartRunBody
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&body); err != nil {
				presentBindingError(ctx, c, err)
				return
			}
		}
		suiteId, err := requiredSuiteId(c, body.TestSuiteId)
		if presentError(ctx, c, err) {
			return
		}

		usecase := uc.NewEvaluationRunUsecase()
		run, err := usecase.StartRun(ctx, suiteId, body.EvaluationType)
		if presentError(ctx, c, err) {
			return
		}

		c.JSON(http.StatusCreated, dto.AdaptEvaluationRunDto(run))
	}
}

func handleListEvaluationRuns(uc usecases.Usecases) func(c *gin.Context) {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		params := struct {
			SuiteFilterInput
			Limit int `form:"limit" binding:"omitempty,min=1"`
		}{}
		if err := c.ShouldBindQuery(&params); err != nil {
			presentBindingError(ctx, c, err)
			return
		}

		filters := models.EvaluationRunFilters{Limit: defaultRunListLimit, SuiteId: params.suiteId()}
		if params.Limit > 0 {
			filters.Limit = min(params.Limit, maxRunListLimit)
		}

		usecase := uc.NewEvaluationRunUsecase()
		runs, err := usecase.ListRuns(ctx, filters)
		if presentError(ctx, c, err) {
			return
		}

		c.JSON(http.StatusOK, pure_utils.Map(runs, dto.AdaptEvaluationRunDto))
	}
}

func handleGetEvaluationRun(uc usecases.Usecases) func(c *gin.Context) {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var uri EvaluationRunUriInput
		if err := c.ShouldBindUri(&uri); err != nil {
			presentBindingError(ctx, c, err)
			return
		}

		usecase := uc.NewEvaluationRunUsecase()
		run, err := usecase.GetRun(ctx, uuid.MustParse(uri.RunId))
		if presentError(ctx, c, err) {
			return
		}

		c.JSON(http.StatusOK, dto.AdaptEvaluationRunDto(run))
	}
}

func handleListEvaluationRunResults(uc usecases.Usecases) func(c *gin.Context) {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var uri EvaluationRunUriInput
		if err := c.ShouldBindUri(&uri); err != nil {
			presentBindingError(ctx, c, err)
			return
		}

		usecase := uc.NewEvaluationRunUsecase()
		outcomes, err := usecase.ListRunResults(ctx, uuid.MustParse(uri.RunId))
		if presentError(ctx, c, err) {
			return
		}

		c.JSON(http.StatusOK, pure_utils.Map(outcomes, dto.AdaptTestCaseOutcomeDto))
	}
}

func handleCancelEvaluationRun(uc usecases.Usecases) func(c *gin.Context) {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var uri EvaluationRunUriInput
		if err := c.ShouldBindUri(&uri); err != nil {
			presentBindingError(ctx, c, err)
			return
		}

		usecase := uc.NewEvaluationRunUsecase()
		run, err := usecase.CancelRun(ctx, uuid.MustParse(uri.RunId))
		if presentError(ctx, c, err) {
			return
		}

		c.JSON(http.StatusAccepted, dto.AdaptEvaluationRunDto(run))
	}
}

func handleAnalyzeEvaluationRun(uc usecases.Usecases) func(c *gin.Context) {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var uri EvaluationRunUriInput
		if err := c.ShouldBindUri(&uri); err != nil {
			presentBindingError(ctx, c, err)
			return
		}
		var body dto.AnalyzeRunBody
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&body); err != nil {
				presentBindingError(ctx, c, err)
				return
			}
		}

		usecase := uc.NewEvaluationRunUsecase()
		analysis, err := usecase.AnalyzeRun(ctx, uuid.MustParse(uri.RunId), body.Question)
		if presentError(ctx, c, err) {
			return
		}

		c.JSON(http.StatusOK, gin.H{"analysis": analysis, "run_id": uri.RunId})
	}
}

func handleDeleteEvaluationRun(uc usecases.Usecases) func(c *gin.Context) {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var uri EvaluationRunUriInput
		if err := c.ShouldBindUri(&uri); err != nil {
			presentBindingError(ctx, c, err)
			return
		}

		usecase := uc.NewEvaluationRunUsecase()
		err := usecase.DeleteRun(ctx, uuid.MustParse(uri.RunId))
		if presentError(ctx, c, err) {
			return
		}

		c.Status(http.StatusNoContent)
	}
}
