package partition

import (
	"context"
	"errors"
	"testing"
	"time"

	"voxelbend.ai/internal/sim/abilities"
	"voxelbend.ai/internal/sim/ability"
	"voxelbend.ai/internal/sim/geom"
	"voxelbend.ai/internal/sim/memworld"
	"voxelbend.ai/internal/sim/tuning"
)

func testConfig() Config {
	return Config{
		DefaultPartitionID: "a",
		Partitions: []Spec{
			{ID: "a", TickRateHz: 200},
			{ID: "b", TickRateHz: 200, Abilities: []string{abilities.NameEarthWall}},
		},
	}
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	cfg := testConfig()
	rts, err := Build(cfg, Options{Tuning: tuning.Defaults()})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	m, err := NewManager(cfg, rts, nil)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	t.Cleanup(m.Close)
	return m
}

func TestBuild_RegistersPerPartitionAbilities(t *testing.T) {
	m := newTestManager(t)
	if got := m.PartitionIDs(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("partitions: %v", got)
	}
	if n := len(m.Runtime("a").Engine.Abilities().Names()); n != 5 {
		t.Fatalf("partition a abilities: %d", n)
	}
	if names := m.Runtime("b").Engine.Abilities().Names(); len(names) != 1 || names[0] != abilities.NameEarthWall {
		t.Fatalf("partition b abilities: %v", names)
	}
	if m.Runtime("a").Engine.TickRateHz() != 200 {
		t.Fatalf("tick rate not taken from spec")
	}
}

func TestBuild_UnknownAbilityFails(t *testing.T) {
	cfg := Config{DefaultPartitionID: "a", Partitions: []Spec{{ID: "a", Abilities: []string{"Lightning"}}}}
	if _, err := Build(cfg, Options{Tuning: tuning.Defaults()}); !errors.Is(err, abilities.ErrUnknownAbility) {
		t.Fatalf("expected ErrUnknownAbility, got %v", err)
	}
}

func TestNewManager_MissingRuntime(t *testing.T) {
	cfg := testConfig()
	rt, err := NewRuntime(cfg.Partitions[0], Options{Tuning: tuning.Defaults()})
	if err != nil {
		t.Fatalf("runtime: %v", err)
	}
	defer rt.Engine.Close()
	if _, err := NewManager(cfg, map[string]*Runtime{"a": rt}, nil); err == nil {
		t.Fatalf("expected missing runtime error")
	}
}

func TestRoute(t *testing.T) {
	m := newTestManager(t)
	rt, err := m.Route("")
	if err != nil || rt.Spec.ID != "a" {
		t.Fatalf("default route: %v %v", rt, err)
	}
	if _, err := m.Route("nope"); !errors.Is(err, ErrUnknownPartition) {
		t.Fatalf("expected ErrUnknownPartition, got %v", err)
	}
}

func TestManager_PartitionsRunIndependently(t *testing.T) {
	m := newTestManager(t)
	m.Start(context.Background())

	ana := memworld.NewPlayer("ana", geom.V(0.5, 64, 0.5))
	ana.Look(geom.V(1, 0, 0))
	ana.Bind(0, abilities.NameEarthWall)
	if err := m.Input("b", ana, ability.Attack); err != nil {
		t.Fatalf("input: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for m.Runtime("b").World.BlockCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("wall never raised: %+v", m.Stats())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if n := m.Runtime("a").World.BlockCount(); n != 0 {
		t.Fatalf("partition a world touched: %d blocks", n)
	}

	m.Close()
	if n := m.Runtime("b").World.BlockCount(); n != 0 {
		t.Fatalf("close left %d blocks", n)
	}
	stats := m.Stats()
	if len(stats) != 2 || stats[1].Partition != "b" || stats[1].Activated != 1 {
		t.Fatalf("stats: %+v", stats)
	}
}
