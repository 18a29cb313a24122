package vcsengine

import (
	"strings"
	"testing"
)

func TestResolveConflictAuto_WhitespaceOnlyDifference(t *testing.T) {
	resolved, rule, ok := resolveConflictAuto("const x = 1;", "  const x = 1;  ", true)
	if !ok || resolved != "const x = 1;" {
		t.Fatalf("expected whitespace-only resolution, got resolved=%q ok=%v", resolved, ok)
	}
	if rule != "whitespace-only difference" {
		t.Fatalf("unexpected rule: %s", rule)
	}
}

func TestResolveConflictAuto_ImportExportUnion(t *testing.T) {
	trunk := "import a from 'a'\nimport b from 'b'"
	incoming := "import b from 'b'\nimport c from 'c'"

	resolved, rule, ok := resolveConflictAuto(trunk, incoming, true)
	if !ok {
		t.Fatal("expected import/export union to resolve")
	}
	if rule != "import/export block union" {
		t.Fatalf("unexpected rule: %s", rule)
	}
	for _, want := range []string{"import a from 'a'", "import b from 'b'", "import c from 'c'"} {
		if !strings.Contains(resolved, want) {
			t.Fatalf("expected union %q to contain %q", resolved, want)
		}
	}
}

func TestResolveConflictAuto_JSONDependencyMapMerge(t *testing.T) {
	trunk := `"lodash": "^4.17.0",
"react": "^18.0.0"`
	incoming := `"react": "^18.2.0",
"zod": "^3.0.0"`

	resolved, rule, ok := resolveConflictAuto(trunk, incoming, true)
	if !ok {
		t.Fatal("expected JSON fragment merge to resolve")
	}
	if rule != "JSON dependency map key merge" {
		t.Fatalf("unexpected rule: %s", rule)
	}
	if !strings.Contains(resolved, `"react": "^18.2.0"`) {
		t.Fatalf("expected incoming value to win on collision, got %q", resolved)
	}
	if !strings.Contains(resolved, `"lodash"`) || !strings.Contains(resolved, `"zod"`) {
		t.Fatalf("expected both unique keys to survive, got %q", resolved)
	}
}

func TestResolveConflictAuto_EmptySideTakesOther(t *testing.T) {
	resolved, rule, ok := resolveConflictAuto("", "  some code  ", true)
	if !ok || resolved != "  some code  " {
		t.Fatalf("expected trunk-empty to take incoming, got resolved=%q ok=%v", resolved, ok)
	}
	if rule != "trunk side empty, took incoming" {
		t.Fatalf("unexpected rule: %s", rule)
	}

	resolved, rule, ok = resolveConflictAuto("some code", "", true)
	if !ok || resolved != "some code" {
		t.Fatalf("expected incoming-empty to take trunk, got resolved=%q ok=%v", resolved, ok)
	}
	if rule != "incoming side empty, took trunk" {
		t.Fatalf("unexpected rule: %s", rule)
	}
}

func TestResolveConflictAuto_ChopstackNamespacePreference(t *testing.T) {
	resolved, _, ok := resolveConflictAuto("func Trunk() {}", "func Incoming() {}", true)
	if !ok || resolved != "func Incoming() {}" {
		t.Fatalf("expected incoming chopstack side to win, got resolved=%q ok=%v", resolved, ok)
	}

	resolved, _, ok = resolveConflictAuto("func Trunk() {}", "func Incoming() {}", false)
	if !ok || resolved != "func Trunk() {}" {
		t.Fatalf("expected trunk side to win when incoming is not chopstack, got resolved=%q ok=%v", resolved, ok)
	}
}
