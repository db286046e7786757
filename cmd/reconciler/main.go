package main

import (
	"go-leave-ledger/internal/app"
	"go-leave-ledger/internal/shared/apperror"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	apperror.Init()

	if err := app.RunReconciler(); err != nil {
		logger.Fatal("run reconciler failed", zap.Error(err))
	}
}
