package plugin

import (
	"context"

	"github.com/scenewire/imaging-host-sdk/registry/ports"
	"github.com/scenewire/imaging-host-sdk/wasmhost"
)

// ModuleHost loads plugin binaries into an execution runtime.
type ModuleHost interface {
	Load(ctx context.Context, wasmBytes []byte) (Module, error)
}

// Module is one activated plugin able to construct adapters for the types
// its manifest declares.
type Module interface {
	NewPrimAdapter(typeName string) (ports.PrimAdapter, error)
	NewAPISchemaAdapter(typeName string) (ports.APISchemaAdapter, error)
	Close(ctx context.Context) error
}

// wasmModuleHost adapts a wasmhost.Executor to the ModuleHost interface.
type wasmModuleHost struct {
	executor *wasmhost.Executor
}

// NewWasmModuleHost wraps a wasm executor as a ModuleHost.
func NewWasmModuleHost(executor *wasmhost.Executor) ModuleHost {
	return &wasmModuleHost{executor: executor}
}

func (h *wasmModuleHost) Load(ctx context.Context, wasmBytes []byte) (Module, error) {
	instance, err := h.executor.Load(ctx, wasmBytes)
	if err != nil {
		return nil, err
	}
	return instance, nil
}
