package wasmhost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tetratelabs/wazero/api"

	"github.com/scenewire/imaging-host-sdk/registry/ports"
	"github.com/scenewire/imaging-host-sdk/registry/values"
)

// Guest exports every adapter plugin must provide besides "allocate".
const (
	exportNewAdapter = "new_adapter"
	exportPopulate   = "populate"
	exportApply      = "apply"
)

// Adapter families passed to the new_adapter export.
const (
	familyPrim      = "prim"
	familyAPISchema = "apiSchema"
)

// Instance is one instantiated plugin module. All guest calls are
// serialized; wasm linear memory is not safe for concurrent access.
type Instance struct {
	mu     sync.Mutex
	module api.Module
	logger *slog.Logger
}

// Close releases the module.
func (i *Instance) Close(ctx context.Context) error {
	return i.module.Close(ctx)
}

type newAdapterRequest struct {
	Type   string `json:"type"`
	Family string `json:"family"`
}

type newAdapterResponse struct {
	ID    uint32 `json:"id"`
	Error string `json:"error,omitempty"`
}

type invokeRequest struct {
	ID       uint32 `json:"id"`
	PrimPath string `json:"primPath"`
	Schema   string `json:"schema,omitempty"`
}

type invokeResponse struct {
	Error string `json:"error,omitempty"`
}

// NewPrimAdapter asks the guest to construct a prim adapter for the given
// registered type name.
func (i *Instance) NewPrimAdapter(typeName string) (ports.PrimAdapter, error) {
	id, err := i.construct(typeName, familyPrim)
	if err != nil {
		return nil, err
	}
	return &guestPrimAdapter{instance: i, id: id}, nil
}

// NewAPISchemaAdapter asks the guest to construct an API schema adapter for
// the given registered type name.
func (i *Instance) NewAPISchemaAdapter(typeName string) (ports.APISchemaAdapter, error) {
	id, err := i.construct(typeName, familyAPISchema)
	if err != nil {
		return nil, err
	}
	return &guestAPISchemaAdapter{instance: i, id: id}, nil
}

func (i *Instance) construct(typeName, family string) (uint32, error) {
	var resp newAdapterResponse
	req := newAdapterRequest{Type: typeName, Family: family}
	if err := i.call(context.Background(), exportNewAdapter, req, &resp); err != nil {
		return 0, err
	}
	if resp.Error != "" {
		return 0, fmt.Errorf("guest refused adapter %q: %s", typeName, resp.Error)
	}
	return resp.ID, nil
}

func (i *Instance) invoke(ctx context.Context, export string, req invokeRequest) error {
	var resp invokeResponse
	if err := i.call(ctx, export, req, &resp); err != nil {
		return err
	}
	if resp.Error != "" {
		return errors.New(resp.Error)
	}
	return nil
}

// call marshals req, invokes the named export, and unmarshals the response
// into out.
func (i *Instance) call(ctx context.Context, name string, req, out any) error {
	input, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", name, err)
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	packed, err := i.callRaw(ctx, name, input)
	if err != nil {
		return err
	}
	return i.unmarshalPacked(packed, out)
}

// callRaw invokes a guest function with raw bytes, copying them into guest
// memory through the "allocate" export.
func (i *Instance) callRaw(ctx context.Context, name string, input []byte) (uint64, error) {
	fn := i.module.ExportedFunction(name)
	if fn == nil {
		return 0, fmt.Errorf("function %q not exported by plugin", name)
	}

	var ptr, length uint64
	if len(input) > 0 {
		allocate := i.module.ExportedFunction("allocate")
		if allocate == nil {
			return 0, fmt.Errorf("function %q not exported by plugin", "allocate")
		}
		res, err := allocate.Call(ctx, uint64(len(input)))
		if err != nil {
			return 0, fmt.Errorf("allocate failed: %w", err)
		}
		ptr = res[0]
		length = uint64(len(input))

		if !i.module.Memory().Write(uint32(ptr), input) {
			return 0, fmt.Errorf("failed to write input to guest memory")
		}
	}

	res, err := fn.Call(ctx, (ptr<<32)|length)
	if err != nil {
		return 0, fmt.Errorf("call %s failed: %w", name, err)
	}
	return res[0], nil
}

// unmarshalPacked reads JSON from a packed ptr+len and unmarshals it.
func (i *Instance) unmarshalPacked(packed uint64, v any) error {
	ptr, length := unpackPtrLen(packed)
	if length == 0 {
		return nil
	}

	data, ok := i.module.Memory().Read(ptr, length)
	if !ok {
		return fmt.Errorf("failed to read result from guest memory")
	}
	return json.Unmarshal(data, v)
}

// unpackPtrLen splits a packed uint64 into a 32-bit pointer and length.
func unpackPtrLen(packed uint64) (uint32, uint32) {
	//nolint:gosec // WASM pointers and lengths are 32-bit
	return uint32(packed >> 32), uint32(packed)
}

// guestPrimAdapter proxies PrimAdapter calls to a guest-side adapter
// identified by its handle id.
type guestPrimAdapter struct {
	instance *Instance
	id       uint32
}

func (a *guestPrimAdapter) Populate(ctx context.Context, primPath string) error {
	return a.instance.invoke(ctx, exportPopulate, invokeRequest{ID: a.id, PrimPath: primPath})
}

// guestAPISchemaAdapter proxies APISchemaAdapter calls to a guest-side
// adapter identified by its handle id.
type guestAPISchemaAdapter struct {
	instance *Instance
	id       uint32
}

func (a *guestAPISchemaAdapter) Apply(ctx context.Context, primPath string, schema values.TypeName) error {
	return a.instance.invoke(ctx, exportApply, invokeRequest{
		ID:       a.id,
		PrimPath: primPath,
		Schema:   schema.String(),
	})
}
