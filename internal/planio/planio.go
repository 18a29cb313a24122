// Package planio parses plan documents — YAML, JSON, or Markdown — into
// models.Plan, and merges a directory of numbered split-plan files into one.
// Grounded on the teacher's internal/parser/parser.go: format detection by
// extension, a small Parser interface every format implements, and a
// directory-of-numbered-files merge convention, retargeted from
// conductor's Number/DependsOn task shape onto chopstack's id/Dependencies
// shape.
package planio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/harrison/conductor/internal/fileutil"
	"github.com/harrison/conductor/internal/models"
)

// Format identifies the on-disk encoding of a plan document.
type Format int

const (
	FormatUnknown Format = iota
	FormatYAML
	FormatJSON
	FormatMarkdown
)

func (f Format) String() string {
	switch f {
	case FormatYAML:
		return "yaml"
	case FormatJSON:
		return "json"
	case FormatMarkdown:
		return "markdown"
	default:
		return "unknown"
	}
}

// Parser parses a single plan document from r.
type Parser interface {
	Parse(r io.Reader) (*models.Plan, error)
}

// DetectFormat maps a filename's extension onto a Format.
func DetectFormat(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	case ".md", ".markdown":
		return FormatMarkdown
	default:
		return FormatUnknown
	}
}

// NewParser returns the Parser for format, or an error if format is
// FormatUnknown.
func NewParser(format Format) (Parser, error) {
	switch format {
	case FormatYAML:
		return NewYAMLParser(), nil
	case FormatJSON:
		return NewJSONParser(), nil
	case FormatMarkdown:
		return NewMarkdownParser(), nil
	default:
		return nil, fmt.Errorf("unsupported plan format: %v", format)
	}
}

// ParseFile parses a single plan file or, when path is a directory, merges
// every numbered plan file inside it (see ParseDirectory). Either way the
// returned plan's FilePath is set to path's absolute form.
func ParseFile(path string) (*models.Plan, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("access plan path: %w", err)
	}

	if info.IsDir() {
		return ParseDirectory(path)
	}

	plan, err := parseSingleFile(path)
	if err != nil {
		return nil, err
	}

	plan.FilePath = absOrOriginal(path)
	return plan, nil
}

func parseSingleFile(path string) (*models.Plan, error) {
	format := DetectFormat(path)
	if format == FormatUnknown {
		return nil, fmt.Errorf("unknown plan format: %s (supported: .yaml, .yml, .json, .md, .markdown)", path)
	}

	parser, err := NewParser(format)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open plan file: %w", err)
	}
	defer f.Close()

	plan, err := parser.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse plan %s: %w", path, err)
	}
	return plan, nil
}

func absOrOriginal(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

var splitPlanPrefix = regexp.MustCompile(`^(\d+)-`)

// planFileExtensions lists every extension DetectFormat recognizes, for
// handing to fileutil.ScanDirectory's Extensions filter.
var planFileExtensions = []string{".yaml", ".yml", ".json", ".md", ".markdown"}

// IsSplitPlan reports whether dirname contains at least one numbered plan
// file (e.g. "1-setup.yaml").
func IsSplitPlan(dirname string) bool {
	result, err := fileutil.ScanDirectory(dirname, fileutil.ScanOptions{
		Pattern:    splitPlanPrefix.String(),
		Extensions: planFileExtensions,
	})
	if err != nil {
		return false
	}
	return len(result.Files) > 0
}

// ParseDirectory loads every numbered plan file in dirname, in numeric
// order, and merges them into a single plan via MergePlans. File discovery
// is delegated to fileutil.ScanDirectory (non-recursive, filtered by the
// numbered-prefix pattern and plan extensions); only the numeric-index
// extraction and ordering stay local, since ScanDirectory's own output is
// sorted alphabetically rather than numerically.
func ParseDirectory(dirname string) (*models.Plan, error) {
	info, err := os.Stat(dirname)
	if err != nil {
		return nil, fmt.Errorf("access plan directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dirname)
	}

	scanned, err := fileutil.ScanDirectory(dirname, fileutil.ScanOptions{
		Pattern:    splitPlanPrefix.String(),
		Extensions: planFileExtensions,
	})
	if err != nil {
		return nil, fmt.Errorf("scan plan directory: %w", err)
	}

	type indexedFile struct {
		index int
		path  string
		name  string
	}

	var files []indexedFile
	for _, path := range scanned.Files {
		name := filepath.Base(path)
		match := splitPlanPrefix.FindStringSubmatch(name)
		if match == nil {
			continue
		}
		index, _ := strconv.Atoi(match[1])
		files = append(files, indexedFile{index, path, name})
	}

	if len(files) == 0 {
		return &models.Plan{Name: filepath.Base(dirname), Tasks: []models.Task{}}, nil
	}

	sort.Slice(files, func(i, j int) bool { return files[i].index < files[j].index })

	plans := make([]*models.Plan, 0, len(files))
	for _, f := range files {
		plan, err := parseSingleFile(f.path)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", f.name, err)
		}
		plans = append(plans, plan)
	}

	merged, err := MergePlans(plans...)
	if err != nil {
		return nil, err
	}
	merged.Name = filepath.Base(dirname)
	merged.FilePath = absOrOriginal(dirname)
	return merged, nil
}

// MergePlans combines plans' tasks and phases into one plan, taking the
// first non-nil plan's name, strategy, and success metrics. A task id
// repeated across plans is an error — split-plan files are expected to
// partition the task set, not overlap it.
func MergePlans(plans ...*models.Plan) (*models.Plan, error) {
	merged := &models.Plan{Tasks: []models.Task{}}

	seen := make(map[string]bool)
	haveHeader := false

	for _, plan := range plans {
		if plan == nil {
			continue
		}
		if !haveHeader {
			merged.Name = plan.Name
			merged.Strategy = plan.Strategy
			merged.SuccessMetrics = plan.SuccessMetrics
			merged.MaxParallelization = plan.MaxParallelization
			haveHeader = true
		}
		for _, task := range plan.Tasks {
			if seen[task.ID] {
				return nil, fmt.Errorf("duplicate task id across plan files: %s", task.ID)
			}
			seen[task.ID] = true
			merged.Tasks = append(merged.Tasks, task)
		}
		merged.Phases = append(merged.Phases, plan.Phases...)
	}

	return merged, nil
}
