package cmd

import (
	"context"

	"github.com/checkmarble/agent-eval-backend/repositories"
	"github.com/checkmarble/agent-eval-backend/utils"
)

func RunMigrations() error {
	pgConfig := pgConfigFromEnv()

	logger := utils.NewLogger(utils.GetEnv("LOGGING_FORMAT", "text"), utils.GetEnv("LOGGING_LEVEL", ""))
	ctx := utils.StoreLoggerInContext(context.Background(), logger)

	if err := repositories.RunMigrations(ctx, pgConfig.GetConnectionString(), logger); err != nil {
		logger.ErrorContext(ctx, "error running migrations", "error", err.Error())
		return err
	}
	return nil
}
