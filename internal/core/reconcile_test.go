package core

import (
	"context"
	"testing"
	"time"
)

func TestReconcileOrphans(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	kept := uploadFixture(t, env)
	if _, err := env.service.SeedTemplates(ctx); err != nil {
		t.Fatalf("SeedTemplates error: %v", err)
	}
	orphan := ownerID + "/" + env.project.ID + "/orphan.png"
	if _, err := env.store.Put(ctx, orphan, []byte("lost"), "image/png"); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	fresh := ownerID + "/" + env.project.ID + "/in-flight.png"
	if _, err := env.store.Put(ctx, fresh, []byte("new"), "image/png"); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	env.store.modified[fresh] = time.Now()

	report, err := env.service.ReconcileOrphans(ctx, ReconcileOptions{DryRun: true})
	if err != nil {
		t.Fatalf("dry run error: %v", err)
	}
	if len(report.Orphaned) != 1 || report.Orphaned[0] != orphan || report.Deleted != 0 {
		t.Fatalf("unexpected dry run report %+v", report)
	}
	if _, ok := env.store.object(orphan); !ok {
		t.Fatal("dry run must not delete")
	}

	report, err = env.service.ReconcileOrphans(ctx, ReconcileOptions{Concurrency: 2})
	if err != nil {
		t.Fatalf("ReconcileOrphans error: %v", err)
	}
	if report.Deleted != 1 || report.Referenced != 2 {
		t.Errorf("unexpected report %+v", report)
	}
	if _, ok := env.store.object(orphan); ok {
		t.Error("orphan still stored")
	}
	for _, key := range []string{kept.File.StoragePath, kept.File.ThumbnailPath, fresh, "templates/minimal.png"} {
		if _, ok := env.store.object(key); !ok {
			t.Errorf("%s should have been kept", key)
		}
	}
}
