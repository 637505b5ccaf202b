// Package config loads the action catalog: which action ids exist, what
// runs them and how their failures are treated.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dukex/planflow/pkg/actions/httprequest"
	logaction "github.com/dukex/planflow/pkg/actions/log"
	"github.com/dukex/planflow/pkg/actions/review"
	"github.com/dukex/planflow/pkg/protocol"
	"github.com/dukex/planflow/pkg/registry"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed default_actions.yaml
var defaultCatalog []byte

// Action kinds.
const (
	KindHTTP   = "http"
	KindLog    = "log"
	KindReview = "review"
)

var ErrInvalidCatalog = errors.New("invalid action catalog")

// RetryConfig mirrors the http action retry settings.
type RetryConfig struct {
	Attempts int           `yaml:"attempts" validate:"gte=0,lte=10"`
	Delay    time.Duration `yaml:"delay"`
}

// ActionConfig is one catalog entry.
type ActionConfig struct {
	ID                string            `yaml:"id"                 validate:"required,max=100"`
	Kind              string            `yaml:"kind"               validate:"required,oneof=http log review"`
	Description       string            `yaml:"description"`
	EstimatedDuration time.Duration     `yaml:"estimated_duration" validate:"gte=0"`
	Critical          bool              `yaml:"critical"`
	Timeout           time.Duration     `yaml:"timeout"            validate:"gte=0"`
	URL               string            `yaml:"url"                validate:"required_if=Kind http"`
	Method            string            `yaml:"method"             validate:"omitempty,oneof=GET POST PUT PATCH DELETE"`
	Headers           map[string]string `yaml:"headers"`
	Retry             *RetryConfig      `yaml:"retry"`
	Level             string            `yaml:"level"              validate:"omitempty,oneof=debug info warn error"`
}

// Catalog is the parsed action catalog file.
type Catalog struct {
	Actions []ActionConfig `yaml:"actions" validate:"required,min=1,dive"`
}

// Load reads a catalog from path, or the built-in catalog when path is empty.
func Load(path string, validate *validator.Validate) (*Catalog, error) {
	data := defaultCatalog

	if path != "" {
		var err error

		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read action catalog %s: %w", path, err)
		}
	}

	return Parse(data, validate)
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte, validate *validator.Validate) (*Catalog, error) {
	var catalog Catalog

	err := yaml.Unmarshal(data, &catalog)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}

	err = validate.Struct(catalog)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}

	seen := make(map[string]bool, len(catalog.Actions))
	for _, action := range catalog.Actions {
		if seen[action.ID] {
			return nil, fmt.Errorf("%w: action '%s' listed twice", ErrInvalidCatalog, action.ID)
		}

		seen[action.ID] = true
	}

	return &catalog, nil
}

// Register adds every catalog action to reg.
func (c *Catalog) Register(reg *registry.Registry) error {
	for _, action := range c.Actions {
		handler, err := action.handler()
		if err != nil {
			return fmt.Errorf("action '%s': %w", action.ID, err)
		}

		opts := []registry.Option{
			registry.WithDescription(action.Description),
			registry.WithEstimatedDuration(action.EstimatedDuration),
			registry.WithTimeout(action.Timeout),
		}

		if action.Critical {
			opts = append(opts, registry.WithCritical())
		}

		err = reg.Register(action.ID, handler, opts...)
		if err != nil {
			return err
		}
	}

	return nil
}

func (a ActionConfig) handler() (protocol.ActionHandler, error) {
	switch a.Kind {
	case KindReview:
		return review.Handle, nil
	case KindLog:
		level := slog.LevelInfo
		if a.Level != "" {
			err := level.UnmarshalText([]byte(a.Level))
			if err != nil {
				return nil, err
			}
		}

		return logaction.New(level), nil
	case KindHTTP:
		opts := []httprequest.Option{httprequest.WithHeaders(a.Headers)}

		if a.Method != "" {
			opts = append(opts, httprequest.WithMethod(a.Method))
		}

		if a.Retry != nil {
			opts = append(opts, httprequest.WithRetry(a.Retry.Attempts, a.Retry.Delay))
		}

		action, err := httprequest.NewAction(a.ID, a.URL, opts...)
		if err != nil {
			return nil, err
		}

		return action.Handle, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind '%s'", ErrInvalidCatalog, a.Kind)
	}
}
