package nameservice

import "testing"

func TestResolverResolvesLeaderFromRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.SetLeader("10.0.0.1:9000")

	r := NewResolver(reg, []string{"10.0.0.9:9000"})

	addr, err := r.Resolve("leader")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if addr != "10.0.0.1:9000" {
		t.Errorf("Resolve() = %q, want %q", addr, "10.0.0.1:9000")
	}
}

func TestResolverFallsBackToSeedBeforeLeaderKnown(t *testing.T) {
	reg := NewRegistry()
	r := NewResolver(reg, []string{"10.0.0.9:9000"})

	addr, err := r.Resolve("leader")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if addr != "10.0.0.9:9000" {
		t.Errorf("Resolve() = %q, want seed %q", addr, "10.0.0.9:9000")
	}
}

func TestResolverErrorsWithNoLeaderAndNoSeeds(t *testing.T) {
	reg := NewRegistry()
	r := NewResolver(reg, nil)

	if _, err := r.Resolve("leader"); err == nil {
		t.Fatal("Resolve() expected error with no leader and no seeds")
	}
}

func TestResolverResolvesWorkerFromRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.UpsertWorker("worker-1", "10.0.0.5:7000")

	r := NewResolver(reg, nil)

	addr, err := r.Resolve("worker-1")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if addr != "10.0.0.5:7000" {
		t.Errorf("Resolve() = %q, want %q", addr, "10.0.0.5:7000")
	}
}

func TestResolverErrorsOnUnknownName(t *testing.T) {
	reg := NewRegistry()
	r := NewResolver(reg, nil)

	if _, err := r.Resolve("worker-unknown"); err == nil {
		t.Fatal("Resolve() expected error for unknown name")
	}
}

func TestRegistryRemoveWorker(t *testing.T) {
	reg := NewRegistry()
	reg.UpsertWorker("worker-1", "10.0.0.5:7000")
	reg.RemoveWorker("worker-1")

	if _, ok := reg.ResolveWorker("worker-1"); ok {
		t.Fatal("ResolveWorker() found worker after RemoveWorker()")
	}
}

func TestRegistryWorkersSnapshotIsCopy(t *testing.T) {
	reg := NewRegistry()
	reg.UpsertWorker("worker-1", "10.0.0.5:7000")

	snap := reg.Workers()
	snap["worker-2"] = "10.0.0.6:7000"

	if _, ok := reg.ResolveWorker("worker-2"); ok {
		t.Fatal("mutating Workers() snapshot leaked into registry")
	}
}

func TestResolverSeedsReturnsCopy(t *testing.T) {
	reg := NewRegistry()
	r := NewResolver(reg, []string{"10.0.0.9:9000"})

	seeds := r.Seeds()
	seeds[0] = "mutated"

	if r.Seeds()[0] != "10.0.0.9:9000" {
		t.Fatal("mutating Seeds() result leaked into resolver")
	}
}
