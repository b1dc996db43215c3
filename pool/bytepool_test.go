package pool_test

import (
	"testing"

	"github.com/momentics/hioload-gps/pool"
)

func TestBytePoolReuse(t *testing.T) {
	bp := pool.NewBytePool(128)
	b1 := bp.GetBuffer()
	if len(b1) != 128 {
		t.Fatalf("Expected 128 byte buffer, got %d", len(b1))
	}
	bp.PutBuffer(b1[:10])
	b2 := bp.GetBuffer()
	// a resliced buffer must come back at full length
	if len(b2) != 128 {
		t.Errorf("Expected 128 byte buffer after reuse, got %d", len(b2))
	}
}

func TestBytePoolDropsForeignBuffers(t *testing.T) {
	bp := pool.NewBytePool(64)
	bp.PutBuffer(make([]byte, 32))
	for i := 0; i < 4; i++ {
		if b := bp.GetBuffer(); len(b) != 64 || cap(b) != 64 {
			t.Fatalf("Expected 64 byte buffer, got len %d cap %d", len(b), cap(b))
		}
	}
}

func TestBytePoolDefaults(t *testing.T) {
	if got := pool.NewBytePool(0).Size(); got != pool.DefaultBufferSize {
		t.Errorf("Expected default size %d, got %d", pool.DefaultBufferSize, got)
	}
	if pool.Default() != pool.Default() {
		t.Error("Expected Default to return a shared pool")
	}
}
