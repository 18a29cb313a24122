package dag

import (
	"testing"

	"github.com/harrison/conductor/internal/models"
)

func TestCalculateLayers_Diamond(t *testing.T) {
	tasks := []models.Task{newTask("a"), newTask("b", "a"), newTask("c", "a"), newTask("d", "b", "c")}

	plan := CalculateLayers(tasks)

	if len(plan.Layers) != 3 {
		t.Fatalf("expected 3 layers, got %d: %+v", len(plan.Layers), plan.Layers)
	}
	if got := plan.Layers[0].Tasks; len(got) != 1 || got[0] != "a" {
		t.Errorf("layer 0 = %v, want [a]", got)
	}
	if got := plan.Layers[1].Tasks; len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Errorf("layer 1 = %v, want [b c]", got)
	}
	if got := plan.Layers[2].Tasks; len(got) != 1 || got[0] != "d" {
		t.Errorf("layer 2 = %v, want [d]", got)
	}
	if plan.MaxParallelism != 2 {
		t.Errorf("MaxParallelism = %d, want 2", plan.MaxParallelism)
	}
	if plan.CriticalPathLength != 3 {
		t.Errorf("CriticalPathLength = %d, want 3", plan.CriticalPathLength)
	}
}

func TestCalculateLayers_FullyParallel(t *testing.T) {
	tasks := []models.Task{newTask("a"), newTask("b"), newTask("c")}

	plan := CalculateLayers(tasks)

	if len(plan.Layers) != 1 {
		t.Fatalf("expected 1 layer, got %d", len(plan.Layers))
	}
	if plan.MaxParallelism != 3 {
		t.Errorf("MaxParallelism = %d, want 3", plan.MaxParallelism)
	}
}

func TestCalculateLayers_SequentialChain(t *testing.T) {
	tasks := []models.Task{newTask("a"), newTask("b", "a"), newTask("c", "b")}

	plan := CalculateLayers(tasks)

	if len(plan.Layers) != 3 {
		t.Fatalf("expected 3 layers, got %d", len(plan.Layers))
	}
	if plan.MaxParallelism != 1 {
		t.Errorf("MaxParallelism = %d, want 1", plan.MaxParallelism)
	}
	for i, l := range plan.Layers {
		if len(l.Tasks) != 1 {
			t.Errorf("layer %d has %d tasks, want 1", i, len(l.Tasks))
		}
	}
}

func TestCalculateLayers_SkipsCyclicTasks(t *testing.T) {
	a := newTask("a", "b")
	b := newTask("b", "a")
	standalone := newTask("standalone")

	plan := CalculateLayers([]models.Task{a, b, standalone})

	if plan.LayerOf("standalone") != 0 {
		t.Errorf("expected standalone task to be scheduled in layer 0, got %d", plan.LayerOf("standalone"))
	}
	if plan.LayerOf("a") != -1 || plan.LayerOf("b") != -1 {
		t.Error("cyclic tasks should never be scheduled into a layer")
	}
}

func TestLayerOf_Unscheduled(t *testing.T) {
	plan := CalculateLayers(nil)
	if plan.LayerOf("missing") != -1 {
		t.Error("LayerOf on empty plan should return -1")
	}
}
