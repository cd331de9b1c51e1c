package core

import (
	"context"

	"github.com/drand/stepout/common/key"
)

// StepOutSource provides the latest published step-out list.
type StepOutSource interface {
	LoadStepOut(ctx context.Context) (*key.StepOutList, error)
}

type fileSource string

// FileStepOutSource reads the step-out list from a TOML file on every reload.
func FileStepOutSource(path string) StepOutSource {
	return fileSource(path)
}

func (f fileSource) LoadStepOut(context.Context) (*key.StepOutList, error) {
	return key.LoadStepOutList(string(f))
}

// StepOutSourceFunc adapts a function to a StepOutSource.
type StepOutSourceFunc func(ctx context.Context) (*key.StepOutList, error)

// LoadStepOut implements StepOutSource.
func (f StepOutSourceFunc) LoadStepOut(ctx context.Context) (*key.StepOutList, error) {
	return f(ctx)
}
