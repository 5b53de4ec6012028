package worker

import (
	"os"
	"strings"

	"orientachat/internal/logger"

	"go.uber.org/zap"
)

var workerDebugEnabled = strings.EqualFold(os.Getenv("ORIENTACHAT_WORKER_DEBUG"), "1")

func debugLog(msg string, fields ...zap.Field) {
	if workerDebugEnabled {
		logger.Get().Info(msg, fields...)
	}
}
