package vcsengine

import (
	"regexp"
	"strings"
)

// ConflictStrategy is the three-mode policy spec.md §4.5 describes.
type ConflictStrategy string

const (
	ConflictAuto   ConflictStrategy = "auto"
	ConflictManual ConflictStrategy = "manual"
	ConflictFail   ConflictStrategy = "fail"
)

// ConflictRecord describes one unresolved or auto-resolved conflict,
// returned on StackBuildResult.Conflicts.
type ConflictRecord struct {
	File       string
	Resolved   bool
	Resolution string // human-readable description of the rule applied
}

// resolveConflictAuto attempts the fixed five-rule precedence from
// spec.md §4.5's auto mode against the two sides of one conflicted hunk.
// incomingIsChopstack indicates whether the incoming (task) side belongs
// to chopstack's own branch namespace, used by rule (e). Returns the
// resolved text and a description of which rule fired, or ok=false if no
// rule applies (falls back to manual semantics).
func resolveConflictAuto(trunkSide, incomingSide string, incomingIsChopstack bool) (resolved string, rule string, ok bool) {
	trunkTrim := strings.TrimSpace(trunkSide)
	incomingTrim := strings.TrimSpace(incomingSide)

	// (a) differ only in whitespace: keep the non-empty trimmed side.
	if trunkTrim == incomingTrim {
		if trunkTrim != "" {
			return trunkTrim, "whitespace-only difference", true
		}
	}

	// (b) both sides are import/export blocks: take the union of lines.
	if isImportExportBlock(trunkSide) && isImportExportBlock(incomingSide) {
		return unionLines(trunkSide, incomingSide), "import/export block union", true
	}

	// (c) both sides are JSON object fragments for dependency maps: merge keys.
	if looksLikeJSONFragment(trunkSide) && looksLikeJSONFragment(incomingSide) {
		if merged, merr := mergeJSONFragments(trunkSide, incomingSide); merr == nil {
			return merged, "JSON dependency map key merge", true
		}
	}

	// (d) if one side is empty, take the other.
	if trunkTrim == "" && incomingTrim != "" {
		return incomingSide, "trunk side empty, took incoming", true
	}
	if incomingTrim == "" && trunkTrim != "" {
		return trunkSide, "incoming side empty, took trunk", true
	}

	// (e) otherwise prefer the incoming task's side if it belongs to the
	// chopstack namespace; else keep the trunk side.
	if incomingIsChopstack {
		return incomingSide, "no structural rule matched; preferred chopstack-namespace incoming side", true
	}
	return trunkSide, "no structural rule matched; kept trunk side", true
}

var importExportLineRe = regexp.MustCompile(`^\s*(import|export)\b`)

func isImportExportBlock(side string) bool {
	lines := nonEmptyLines(side)
	if len(lines) == 0 {
		return false
	}
	for _, l := range lines {
		if !importExportLineRe.MatchString(l) {
			return false
		}
	}
	return true
}

func unionLines(a, b string) string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range append(nonEmptyLines(a), nonEmptyLines(b)...) {
		trimmed := strings.TrimSpace(l)
		if seen[trimmed] {
			continue
		}
		seen[trimmed] = true
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}

func looksLikeJSONFragment(side string) bool {
	trimmed := strings.TrimSpace(side)
	return strings.HasPrefix(trimmed, "\"") && strings.Contains(trimmed, ":")
}

// mergeJSONFragments merges two comma-separated "key": value dependency
// fragments by key, the incoming side winning on duplicate keys. This
// operates on the fragment text directly (not a full JSON document, since
// conflicted hunks are partial by nature) rather than requiring the
// caller to supply balanced JSON.
func mergeJSONFragments(trunkSide, incomingSide string) (string, error) {
	entries := make(map[string]string)
	var order []string

	parse := func(side string) {
		for _, line := range nonEmptyLines(side) {
			line = strings.TrimRight(strings.TrimSpace(line), ",")
			colonIdx := strings.Index(line, ":")
			if colonIdx < 0 {
				continue
			}
			key := strings.TrimSpace(line[:colonIdx])
			if _, exists := entries[key]; !exists {
				order = append(order, key)
			}
			entries[key] = line
		}
	}

	parse(trunkSide)
	parse(incomingSide) // incoming parsed second, so its values win on key collision

	lines := make([]string, 0, len(order))
	for _, k := range order {
		lines = append(lines, entries[k])
	}
	return strings.Join(lines, ",\n"), nil
}
