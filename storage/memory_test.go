package storage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/momentics/hioload-gps/api"
	"github.com/momentics/hioload-gps/storage"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := storage.NewMemoryStore()
	rec := api.Record{DeviceID: 1, Timestamp: 1681593747, Lat: 1.5, Lon: -2.5}

	if err := m.StoreRecord(ctx, rec); err != nil {
		t.Fatal(err)
	}
	boom := errors.New("boom")
	m.FailWith(boom)
	if err := m.StoreRecord(ctx, rec); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	m.FailWith(nil)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := m.StoreRecord(cancelled, rec); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}

	recs := m.Records()
	if len(recs) != 1 || recs[0] != rec {
		t.Fatalf("records = %+v", recs)
	}
	recs[0].DeviceID = 99
	if m.Records()[0].DeviceID != 1 {
		t.Error("Records exposes internal slice")
	}
}
