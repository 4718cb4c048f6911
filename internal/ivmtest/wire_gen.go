// Written by hand in the shape of a Wire-generated injector.

//go:generate go run github.com/google/wire/cmd/wire
//go:build !wireinject
// +build !wireinject

package ivmtest

import (
	"context"

	"github.com/cockroachdb/ivm/internal/worker"
)

// Injectors:

// NewFixture constructs a self-contained test fixture.
func NewFixture() (*Fixture, func(), error) {
	contextContext := context.Background()
	stopperContext := worker.ProvideStopper(contextContext)
	config := ProvideConfig()
	runtime, cleanup, err := ProvideRuntime(stopperContext, config)
	if err != nil {
		return nil, nil, err
	}
	fixture, err := ProvideFixture(stopperContext, config, runtime)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return fixture, func() {
		cleanup()
	}, nil
}
