// Package config holds run and worker options.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/protocolqc/protocolqc/internal/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Options configures one protocol QC run.
type Options struct {
	// Template file or directory of templates.
	TemplatePath string `json:"template_path" validate:"required"`

	// Directory of decoded header records, or a manifest file.
	DataPath string `json:"data_path" validate:"required"`

	// Directory for logs and tags files; the working directory when empty.
	LogsDir string `json:"logs_dir"`

	FindFirst     bool    `json:"find_first"`
	MinMatchScore float64 `json:"min_match_score" validate:"gte=0,lte=1"`
	SubLabel      string  `json:"sub_label"`
	WhichTags     string  `json:"which_tags"      validate:"oneof=none highest all"`
	DebugLevel    string  `json:"debug_level"     validate:"oneof=INFO DEBUG"`

	// Event publication; disabled when RedisAddr is empty.
	RedisAddr   string `json:"redis_addr"   validate:"omitempty,hostname_port"`
	RedisStream string `json:"redis_stream" validate:"required_with=RedisAddr"`
}

// Validate checks the options.
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidOptions, err)
	}
	return nil
}

// WorkerOptions configures the Temporal worker binary.
type WorkerOptions struct {
	TemporalHostPort string `json:"temporal_host_port" validate:"required,hostname_port"`
	Namespace        string `json:"namespace"          validate:"required"`
	TaskQueue        string `json:"task_queue"         validate:"required"`
	RedisAddr        string `json:"redis_addr"         validate:"omitempty,hostname_port"`
	RedisStream      string `json:"redis_stream"       validate:"required_with=RedisAddr"`
	DebugLevel       string `json:"debug_level"        validate:"oneof=INFO DEBUG"`
}

// Validate checks the worker options.
func (o WorkerOptions) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidOptions, err)
	}
	return nil
}
