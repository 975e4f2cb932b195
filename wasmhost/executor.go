// Package wasmhost runs adapter plugins compiled to WASM and exposes their
// exports behind the host adapter interfaces.
package wasmhost

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// hostModuleName is the module guests import host functions from.
const hostModuleName = "imaging_host"

// Executor owns a wazero runtime and loads plugin modules into it. The
// runtime is created on first load, so constructing an Executor is free and
// never fails.
type Executor struct {
	mu      sync.Mutex
	runtime wazero.Runtime
	logger  *slog.Logger
	cache   wazero.CompilationCache
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger guest log messages are forwarded to.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithCompilationCache configures the executor with a compilation cache.
func WithCompilationCache(cache wazero.CompilationCache) Option {
	return func(e *Executor) { e.cache = cache }
}

// NewLazyExecutor returns an executor whose runtime is created at first
// Load.
func NewLazyExecutor(opts ...Option) *Executor {
	e := &Executor{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) ensureRuntime(ctx context.Context) (wazero.Runtime, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.runtime != nil {
		return e.runtime, nil
	}

	cfg := wazero.NewRuntimeConfig()
	if e.cache != nil {
		cfg = cfg.WithCompilationCache(e.cache)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, cfg)
	wasi_snapshot_preview1.MustInstantiate(ctx, rt)

	if err := e.registerHostFunctions(ctx, rt); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("register host functions: %w", err)
	}

	e.runtime = rt
	return rt, nil
}

// registerHostFunctions exports the host functions guests may import.
func (e *Executor) registerHostFunctions(ctx context.Context, rt wazero.Runtime) error {
	_, err := rt.NewHostModuleBuilder(hostModuleName).
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(e.logMessage),
			[]api.ValueType{api.ValueTypeI64}, nil).
		Export("log_message").
		Instantiate(ctx)
	return err
}

// Load instantiates a wasm module and wraps it as an Instance.
func (e *Executor) Load(ctx context.Context, wasmBytes []byte) (*Instance, error) {
	rt, err := e.ensureRuntime(ctx)
	if err != nil {
		return nil, err
	}

	mod, err := rt.Instantiate(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("instantiate module: %w", err)
	}

	if initFn := mod.ExportedFunction("_initialize"); initFn != nil {
		if _, err := initFn.Call(ctx); err != nil {
			_ = mod.Close(ctx)
			return nil, fmt.Errorf("call _initialize: %w", err)
		}
	}

	return &Instance{module: mod, logger: e.logger}, nil
}

// Close releases the runtime and every module loaded through it.
func (e *Executor) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.runtime == nil {
		return nil
	}
	err := e.runtime.Close(ctx)
	e.runtime = nil
	return err
}
