package store

import (
	"context"

	"github.com/grindlemire/graft"
	"go.pactly.app/datakit/internal/adapters/config"
	"go.pactly.app/datakit/internal/core/ports"
)

// NodeID is the unique identifier for the entry store Graft node.
const NodeID graft.ID = "adapter.entry_store"

func init() {
	graft.Register(graft.Node[ports.EntryStore]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID},
		Run: func(ctx context.Context) (ports.EntryStore, error) {
			cfg, err := graft.Dep[*config.Config](ctx)
			if err != nil {
				return nil, err
			}
			return NewStore(cfg.StorageDir)
		},
	})
}
