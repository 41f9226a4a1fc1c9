package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/unimarket/matchmaker/internal/sellers"
)

// Filter represents a single eligibility step applied to matching candidates.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate() error
	Apply(ctx context.Context, s *sellers.Sellers) (*sellers.Sellers, Step, error)
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Filtering executes a chain of filters sequentially.
type Filtering struct {
	steps  []Filter
	logger *zap.Logger
}

func New(steps []Filter, logger *zap.Logger) *Filtering {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filtering{steps: steps, logger: logger}
}

// RunFilters validates every enabled step, then applies them in order.
func (f *Filtering) RunFilters(ctx context.Context, s *sellers.Sellers) (*sellers.Sellers, error) {
	for _, step := range f.steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	for _, step := range f.steps {
		if !step.IsEnabled() {
			f.logger.Info("filter disabled", zap.String("name", step.Name()))
			continue
		}

		next, info, err := step.Apply(ctx, s)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		f.logger.Info("filter step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)

		s = next
	}

	return s, nil
}
