package config

import (
	"fmt"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errors []error

	if err := validateServer(cfg.Server); err != nil {
		errors = append(errors, err)
	}

	if err := validateQueue(cfg.Queue); err != nil {
		errors = append(errors, err)
	}

	if err := validatePipeline(cfg.Pipeline); err != nil {
		errors = append(errors, err)
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	return nil
}

func validateQueue(cfg QueueConfig) error {
	if cfg.Stream == "" {
		return &ValidationError{
			Field:   "queue.stream",
			Message: "stream name is required",
		}
	}

	if cfg.Group == "" {
		return &ValidationError{
			Field:   "queue.group",
			Message: "consumer group name is required",
		}
	}

	if cfg.LeaseTimeout <= 0 {
		return &ValidationError{
			Field:   "queue.lease_timeout",
			Message: "lease timeout must be positive",
		}
	}

	return nil
}

func validatePipeline(cfg PipelineConfig) error {
	if cfg.Workers < 1 {
		return &ValidationError{
			Field:   "pipeline.workers",
			Message: fmt.Sprintf("worker count must be at least 1, got %d", cfg.Workers),
		}
	}

	if cfg.BatchSize < 1 {
		return &ValidationError{
			Field:   "pipeline.batch_size",
			Message: fmt.Sprintf("batch size must be at least 1, got %d", cfg.BatchSize),
		}
	}

	if cfg.Backoff.Multiplier != 0 && cfg.Backoff.Multiplier <= 1 {
		return &ValidationError{
			Field:   "pipeline.backoff.multiplier",
			Message: "backoff multiplier must be greater than 1",
		}
	}

	return nil
}
