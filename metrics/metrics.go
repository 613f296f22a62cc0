// Package metrics builds the tally scope the adapter reports into.
package metrics

import (
	"fmt"
	"io"

	"github.com/uber-go/tally"
)

var _scopeFactories = map[string]scopeFactory{
	"statsd":   newStatsdScope,
	"disabled": newDisabledScope,
}

type scopeFactory func(config Config) (tally.Scope, io.Closer, error)

// New creates a new metrics Scope from config. If no backend is configured,
// metrics are disabled.
func New(config Config) (tally.Scope, io.Closer, error) {
	if config.Backend == "" {
		config.Backend = "disabled"
	}
	f, ok := _scopeFactories[config.Backend]
	if !ok {
		return nil, nil, fmt.Errorf("metrics backend %q not registered", config.Backend)
	}
	return f(config)
}
