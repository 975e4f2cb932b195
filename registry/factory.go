package registry

import (
	"context"
	"log/slog"

	"github.com/scenewire/imaging-host-sdk/registry/ports"
	"github.com/scenewire/imaging-host-sdk/registry/values"
)

// factory is the shape shared by both adapter factory families.
type factory[T any] interface {
	New() (T, error)
}

// constructByName resolves key through tm and manufactures an instance of
// the mapped adapter type. An unknown key is an expected miss, not an
// error: it yields the zero result and false.
//
// The routine is generic over the adapter capability interface and its
// factory so that both adapter families share one construction path.
func constructByName[T any, F factory[T]](
	ctx context.Context,
	logger *slog.Logger,
	provider ports.MetadataProvider,
	lookup func(values.TypeRef) (F, bool),
	tm map[values.TypeName]values.TypeRef,
	key values.TypeName,
) (T, bool) {
	var zero T

	t, ok := tm[key]
	if !ok {
		logger.Debug("no adapter registered for type name", "key", key)
		return zero, false
	}
	return constructByType[T, F](ctx, logger, provider, lookup, key, t)
}

// constructByType activates the backing plugin for an already-resolved
// adapter type and asks its factory for one instance. Every failure here is
// a caller-fixable misconfiguration: it is reported loudly and yields the
// zero result, leaving the registry itself usable.
func constructByType[T any, F factory[T]](
	ctx context.Context,
	logger *slog.Logger,
	provider ports.MetadataProvider,
	lookup func(values.TypeRef) (F, bool),
	key values.TypeName,
	t values.TypeRef,
) (T, bool) {
	var zero T

	handle, ok := provider.ResolveBackingImplementation(t)
	if !ok {
		logger.Error("no backing plugin for adapter type", "type", t, "key", key)
		return zero, false
	}

	if err := provider.Activate(ctx, handle); err != nil {
		logger.Error("failed to activate plugin",
			"plugin", handle.Name(), "type", t, "key", key, "error", err)
		return zero, false
	}

	f, ok := lookup(t)
	if !ok {
		logger.Error("no factory registered for adapter type", "type", t, "key", key)
		return zero, false
	}

	instance, err := f.New()
	if err != nil {
		logger.Error("factory failed to manufacture adapter",
			"type", t, "key", key, "error", err)
		return zero, false
	}

	logger.Debug("constructed adapter", "type", t, "key", key)
	return instance, true
}
