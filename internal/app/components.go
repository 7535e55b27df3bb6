package app

import "go.pactly.app/datakit/internal/core/ports"

// Components contains the initialized application components the interface
// layer needs.
type Components struct {
	App    *App
	Logger ports.Logger
}

// NewComponents creates a Components struct from dependencies.
func NewComponents(app *App, logger ports.Logger) *Components {
	return &Components{
		App:    app,
		Logger: logger,
	}
}
