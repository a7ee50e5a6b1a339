package integration

import (
	"time"

	"pulse/internal/config"
	"pulse/internal/logger"
)

func createTestLogger() logger.Logger {
	return logger.NopLogger()
}

func createTestQueueConfig(stream string) config.QueueConfig {
	return config.QueueConfig{
		Stream:       stream,
		Group:        "test-consumers",
		Consumer:     "test-consumer-1",
		LeaseTimeout: 30 * time.Second,
		BlockTimeout: 100 * time.Millisecond,
	}
}
