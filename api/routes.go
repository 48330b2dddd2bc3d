package api

import (
	"net/http"
	"time"

	limits "github.com/gin-contrib/size"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	timeout "github.com/vearne/gin-timeout"

	"github.com/checkmarble/agent-eval-backend/infra"
	"github.com/checkmarble/agent-eval-backend/usecases"
)

func timeoutMiddleware(duration time.Duration) gin.HandlerFunc {
	return timeout.Timeout(
		timeout.WithTimeout(duration),
		timeout.WithErrorHttpCode(http.StatusRequestTimeout),
		timeout.WithDefaultMsg(`{"message":"request timeout"}`),
	)
}

func addRoutes(r *gin.Engine, conf Configuration, uc usecases.Usecases) {
	tom := timeoutMiddleware(conf.DefaultTimeout)
	generationTom := timeoutMiddleware(conf.GenerationTimeout)

	r.GET("/liveness", tom, handleLivenessProbe(uc))
	if conf.EnablePrometheus {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
	if conf.ProfilingHandler != nil {
		r.GET("/debug/pprof/*profile", gin.WrapH(conf.ProfilingHandler))
	}

	r.GET("/test-cases", tom, handleListTestCases(uc))
	r.POST("/test-cases/generate", generationTom, handleGenerateTestCase(uc))
	r.POST("/test-cases/from-docx", limits.RequestSizeLimiter(conf.MaxUploadSize), generationTom,
		handleGenerateFromDocument(uc, conf.MaxUploadSize))
	r.POST("/test-cases/from-text", generationTom, handleGenerateFromText(uc))
	r.GET("/test-cases/:test_case_id", tom, handleGetTestCase(uc))
	r.GET("/test-cases/:test_case_id/versions", tom, handleListTestCaseVersions(uc))
	r.GET("/test-cases/:test_case_id/approvals", tom, handleListApprovalRecords(uc))
	r.POST("/test-cases/:test_case_id/approve", tom, handleApproveTestCase(uc))
	r.POST("/test-cases/:test_case_id/request-review", tom, handleRequestReview(uc))
	r.POST("/test-cases/:test_case_id/submit", tom, handleSubmitTestCase(uc))
	r.DELETE("/test-cases/:test_case_id", tom, handleDeleteTestCase(uc))

	r.POST("/evaluations/run", tom, handleStartEvaluationRun(uc))
	r.GET("/evaluations/runs", tom, handleListEvaluationRuns(uc))
	r.GET("/evaluations/runs/:run_id", tom, handleGetEvaluationRun(uc))
	r.GET("/evaluations/runs/:run_id/results", tom, handleListEvaluationRunResults(uc))
	r.POST("/evaluations/runs/:run_id/cancel", tom, handleCancelEvaluationRun(uc))
	infra.RouteWithFeatureFlag(r, infra.FEATURE_RUN_ANALYSIS, func(sub gin.IRoutes) {
		sub.POST("/evaluations/runs/:run_id/analyze", generationTom, handleAnalyzeEvaluationRun(uc))
	})
	r.DELETE("/evaluations/runs/:run_id", tom, handleDeleteEvaluationRun(uc))

	r.GET("/dashboard/summary", tom, handleGetDashboardSummary(uc))
}
