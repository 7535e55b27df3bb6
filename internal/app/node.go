package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.pactly.app/datakit/internal/adapters/api"       //nolint:depguard // Wired in app layer
	"go.pactly.app/datakit/internal/adapters/config"    //nolint:depguard // Wired in app layer
	"go.pactly.app/datakit/internal/adapters/logger"    //nolint:depguard // Wired in app layer
	"go.pactly.app/datakit/internal/adapters/store"     //nolint:depguard // Wired in app layer
	"go.pactly.app/datakit/internal/adapters/telemetry" //nolint:depguard // Wired in app layer
	"go.pactly.app/datakit/internal/core/ports"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

func init() {
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			api.NodeID,
			store.NodeID,
			logger.NodeID,
			telemetry.NodeID,
		},
		Run: runAppNode,
	})

	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
		},
		Run: runComponentsNode,
	})
}

func runAppNode(ctx context.Context) (*App, error) {
	cfg, err := graft.Dep[*config.Config](ctx)
	if err != nil {
		return nil, err
	}

	client, err := graft.Dep[*api.Client](ctx)
	if err != nil {
		return nil, err
	}

	entryStore, err := graft.Dep[ports.EntryStore](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	tracer, err := graft.Dep[ports.Tracer](ctx)
	if err != nil {
		return nil, err
	}

	return New(cfg, client, entryStore, log, tracer, nil), nil
}

func runComponentsNode(ctx context.Context) (*Components, error) {
	application, err := graft.Dep[*App](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	return NewComponents(application, log), nil
}
