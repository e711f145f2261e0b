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
	var errs []error

	if err := validateServer(cfg.Server); err != nil {
		errs = append(errs, err)
	}

	if err := validateBroker(cfg.Broker); err != nil {
		errs = append(errs, err)
	}

	if err := validateScheduler(cfg.Scheduler); err != nil {
		errs = append(errs, err)
	}

	if err := validateExecutor(cfg.Executor); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
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

func validateBroker(cfg BrokerConfig) error {
	if cfg.Type != "kafka" {
		return &ValidationError{
			Field:   "broker.type",
			Message: fmt.Sprintf("unsupported broker type %q", cfg.Type),
		}
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return &ValidationError{
			Field:   "broker.kafka.brokers",
			Message: "at least one broker address is required",
		}
	}
	if cfg.Kafka.Retry.Multiplier != 0 && cfg.Kafka.Retry.Multiplier < 1 {
		return &ValidationError{
			Field:   "broker.kafka.retry.multiplier",
			Message: "multiplier must be >= 1",
		}
	}
	return nil
}

func validateScheduler(cfg SchedulerConfig) error {
	if cfg.BatchSize < 0 {
		return &ValidationError{
			Field:   "scheduler.batch_size",
			Message: "batch size must not be negative",
		}
	}
	if cfg.MaxAttempts < 0 {
		return &ValidationError{
			Field:   "scheduler.max_attempts",
			Message: "max attempts must not be negative",
		}
	}
	return nil
}

func validateExecutor(cfg ExecutorConfig) error {
	if cfg.Idempotency.Enabled && cfg.Idempotency.TTLSeconds < 0 {
		return &ValidationError{
			Field:   "executor.idempotency.ttl_seconds",
			Message: "ttl must not be negative",
		}
	}
	return nil
}
