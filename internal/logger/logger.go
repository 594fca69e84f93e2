package logger

import "go.uber.org/zap"

// New builds the process logger. Production uses JSON output at info level.
func New(env string) *zap.Logger {
	if env == "production" {
		return zap.Must(zap.NewProduction())
	}
	return zap.Must(zap.NewDevelopment())
}
