//go:build !nogpu

package gpu

import "errors"

// Construction errors. All of them are fatal: there is no software fallback.
var (
	// ErrNoBackend is returned when the requested hal backend is not registered.
	ErrNoBackend = errors.New("gpu: backend not available")

	// ErrNoAdapter is returned when the instance exposes no adapters.
	ErrNoAdapter = errors.New("gpu: no GPU adapters found")

	// ErrNilProvider is returned by OpenShared for a nil provider.
	ErrNilProvider = errors.New("gpu: device provider is nil")

	// ErrProviderNotHAL is returned when a provider does not expose hal types.
	ErrProviderNotHAL = errors.New("gpu: provider does not expose HAL device and queue")

	// ErrShaderCompile is returned when WGSL fails validation or module creation.
	ErrShaderCompile = errors.New("gpu: shader compile failed")

	// ErrTargetAllocation is returned when a render target cannot be created.
	ErrTargetAllocation = errors.New("gpu: render target allocation failed")

	// ErrInvalidSize is returned for non-positive dimensions.
	ErrInvalidSize = errors.New("gpu: invalid size")
)

// Runtime errors.
var (
	// ErrGraphDestroyed is returned by Render and Resize after Destroy.
	ErrGraphDestroyed = errors.New("gpu: render graph destroyed")

	// ErrGraphStale is returned by Render after a failed Resize, until a
	// Resize succeeds.
	ErrGraphStale = errors.New("gpu: render graph stale after failed resize")

	// ErrPoolDestroyed is returned by Acquire after the pool was destroyed.
	ErrPoolDestroyed = errors.New("gpu: pool destroyed")

	// ErrForeignTarget is returned when a target is handed to a pool that did
	// not create it.
	ErrForeignTarget = errors.New("gpu: target not owned by this pool")
)
