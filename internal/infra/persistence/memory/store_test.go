package memory

import (
	"context"
	"testing"
	"time"

	"medicopro/pkg/domain"
)

func TestBackendIsolatesCallers(t *testing.T) {
	ctx := context.Background()
	seed := domain.PatientRecord{FirstName: "Ana", IDNumber: "1", RegisteredAt: time.Unix(0, 0).UTC()}
	b := NewBackend(seed)

	got, err := b.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got[0].FirstName = "changed"
	again, _ := b.Load(ctx)
	if again[0].FirstName != "Ana" {
		t.Fatalf("load must return a copy")
	}

	if err := b.Persist(ctx, append(again, domain.PatientRecord{FirstName: "Luis", IDNumber: "2"})); err != nil {
		t.Fatalf("persist: %v", err)
	}
	final, _ := b.Load(ctx)
	if len(final) != 2 || b.Persists() != 1 {
		t.Fatalf("expected 2 records after 1 persist, got %d/%d", len(final), b.Persists())
	}
	if b.Driver() != domain.DriverMemory {
		t.Fatalf("unexpected driver %s", b.Driver())
	}
}

func TestEmptyBackendLoadsEmptyCollection(t *testing.T) {
	got, err := NewBackend().Load(context.Background())
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil collection, got %v %v", got, err)
	}
}
