package api

import (
	"context"

	"github.com/grindlemire/graft"
	"go.pactly.app/datakit/internal/adapters/config"
)

// NodeID is the unique identifier for the API client Graft node.
const NodeID graft.ID = "adapter.api_client"

func init() {
	graft.Register(graft.Node[*Client]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID},
		Run: func(ctx context.Context) (*Client, error) {
			cfg, err := graft.Dep[*config.Config](ctx)
			if err != nil {
				return nil, err
			}
			return NewClient(cfg.APIBaseURL), nil
		},
	})
}
