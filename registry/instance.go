package registry

import (
	"context"
	"log/slog"

	"github.com/scenewire/imaging-host-sdk/registry/ports"
)

// instanceAdapter is the fixed built-in prim adapter behind
// InstanceAdapterKey. It handles natively instanced prims and is constructed
// directly, never through the plugin tables.
type instanceAdapter struct {
	logger *slog.Logger
}

func newInstanceAdapter(logger *slog.Logger) ports.PrimAdapter {
	return &instanceAdapter{logger: logger}
}

func (a *instanceAdapter) Populate(ctx context.Context, primPath string) error {
	a.logger.DebugContext(ctx, "populating native instance", "prim", primPath)
	return nil
}
