// Written by hand in the shape of a Wire-generated injector.

//go:generate go run github.com/google/wire/cmd/wire
//go:build !wireinject
// +build !wireinject

package worker

import (
	"context"
)

// Injectors:

// NewRuntime constructs a runtime from a validated configuration and
// a per-worker build function.
func NewRuntime(ctx context.Context, config *Config, build BuildFn) (*Runtime, func(), error) {
	stopperContext := ProvideStopper(ctx)
	runtime, cleanup, err := ProvideRuntime(stopperContext, config, build)
	if err != nil {
		return nil, nil, err
	}
	return runtime, func() {
		cleanup()
	}, nil
}
