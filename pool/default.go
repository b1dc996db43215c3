package pool

import "sync"

// DefaultBufferSize is the read buffer length used when none is configured.
const DefaultBufferSize = 4096

var (
	defaultOnce sync.Once
	defaultPool *BytePool
)

// Default returns the process-wide pool of DefaultBufferSize buffers.
func Default() *BytePool {
	defaultOnce.Do(func() {
		defaultPool = NewBytePool(DefaultBufferSize)
	})
	return defaultPool
}
