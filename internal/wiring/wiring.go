// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.pactly.app/datakit/internal/adapters/api"
	_ "go.pactly.app/datakit/internal/adapters/config"
	_ "go.pactly.app/datakit/internal/adapters/logger"
	_ "go.pactly.app/datakit/internal/adapters/store"
	_ "go.pactly.app/datakit/internal/adapters/telemetry"
	// Register app nodes.
	_ "go.pactly.app/datakit/internal/app"
)
