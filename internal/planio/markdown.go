package planio

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/harrison/conductor/internal/models"
)

// MarkdownParser parses a plan authored as a Markdown task list: an
// optional YAML frontmatter block for plan-level fields, then one level-2
// heading per task ("## <task-id>: <Name>"), each followed by free-form
// description text and an optional fenced ```yaml metadata block carrying
// the task's structured fields (complexity, files, dependencies,
// acceptance criteria). Grounded on the teacher's MarkdownParser in
// markdown.go: a goldmark AST walk over level-2 headings paired with a
// frontmatter extractor, retargeted from conductor's "## Task N: Name"
// numeric-id convention and per-task "conductor config" block onto
// chopstack's kebab-case task ids and plain task-metadata block.
type MarkdownParser struct {
	markdown goldmark.Markdown
}

// NewMarkdownParser constructs a MarkdownParser.
func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{markdown: goldmark.New()}
}

var taskHeadingRe = regexp.MustCompile(`^([a-zA-Z0-9][a-zA-Z0-9_-]*):\s*(.+)$`)

// taskMeta is the fenced-block schema for one task's structured fields.
type taskMeta struct {
	Complexity         string   `yaml:"complexity"`
	AcceptanceCriteria []string `yaml:"acceptance_criteria"`
	Files              []string `yaml:"files"`
	Dependencies       []string `yaml:"dependencies"`
	Phase              string   `yaml:"phase"`
	MaxRetries         int      `yaml:"max_retries"`
}

func (p *MarkdownParser) Parse(r io.Reader) (*models.Plan, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read markdown plan: %w", err)
	}

	body, frontmatter := extractFrontmatter(content)

	plan := &models.Plan{}
	if frontmatter != nil {
		var header struct {
			Name               string   `yaml:"name"`
			Strategy           string   `yaml:"strategy"`
			SuccessMetrics     []string `yaml:"success_metrics"`
			MaxParallelization int      `yaml:"max_parallelization"`
		}
		if err := yaml.Unmarshal(frontmatter, &header); err != nil {
			return nil, fmt.Errorf("parse plan frontmatter: %w", err)
		}
		plan.Name = header.Name
		plan.Strategy = models.PlanStrategy(header.Strategy)
		plan.SuccessMetrics = header.SuccessMetrics
		plan.MaxParallelization = header.MaxParallelization
	}

	doc := p.markdown.Parser().Parse(text.NewReader(body))
	tasks, err := extractTasks(doc, body)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("markdown plan: no level-2 task headings found")
	}
	plan.Tasks = tasks

	return plan, nil
}

// extractTasks walks the AST to find level-2 headings, in document order,
// and builds one task stub per matching heading ("<id>: <name>"). Section
// bodies (description text and fenced metadata) are filled in afterward by
// attachSectionBodies, since the AST gives heading boundaries but not a
// ready "everything until the next heading" span.
func extractTasks(doc ast.Node, source []byte) ([]models.Task, error) {
	var tasks []models.Task

	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		heading, ok := n.(*ast.Heading)
		if !ok || heading.Level != 2 {
			return ast.WalkContinue, nil
		}

		headingText := extractText(heading, source)
		matches := taskHeadingRe.FindStringSubmatch(headingText)
		if matches == nil {
			return ast.WalkContinue, nil
		}

		tasks = append(tasks, models.NewTask(matches[1], strings.TrimSpace(matches[2]), ""))
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}

	return attachSectionBodies(tasks, source)
}

var headingSplitRe = regexp.MustCompile(`(?m)^##\s+`)

// attachSectionBodies splits source on its level-2 headings and fills in
// each task's description and metadata from the corresponding section.
func attachSectionBodies(tasks []models.Task, source []byte) ([]models.Task, error) {
	sections := headingSplitRe.Split(string(source), -1)
	if len(sections) <= 1 {
		return tasks, nil
	}
	bodies := sections[1:] // sections[0] is content before the first heading

	for i := range tasks {
		if i >= len(bodies) {
			break
		}
		_, rest, _ := strings.Cut(bodies[i], "\n")

		description, meta := splitMetaBlock(rest)
		tasks[i].Description = strings.TrimSpace(description)
		if meta == nil {
			continue
		}

		var m taskMeta
		if err := yaml.Unmarshal(meta, &m); err != nil {
			return nil, fmt.Errorf("task %s: parse metadata block: %w", tasks[i].ID, err)
		}
		tasks[i].Complexity = models.Complexity(m.Complexity)
		tasks[i].AcceptanceCriteria = m.AcceptanceCriteria
		tasks[i].Files = m.Files
		tasks[i].Phase = m.Phase
		tasks[i].MaxRetries = m.MaxRetries
		for _, dep := range m.Dependencies {
			tasks[i].AddDependency(dep)
		}
	}
	return tasks, nil
}

var metaFenceRe = regexp.MustCompile("(?s)```yaml\\s*\\n(.*?)\\n```")

// splitMetaBlock separates a task section's free-form description from its
// fenced ```yaml metadata block, if present.
func splitMetaBlock(section string) (description string, meta []byte) {
	loc := metaFenceRe.FindStringSubmatchIndex(section)
	if loc == nil {
		return section, nil
	}
	description = section[:loc[0]] + section[loc[1]:]
	meta = []byte(section[loc[2]:loc[3]])
	return description, meta
}

// extractText returns the literal text of an inline-content node, the way
// the teacher's markdown.go pulls heading text out of the AST.
func extractText(n ast.Node, source []byte) string {
	var sb strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			sb.Write(t.Segment.Value(source))
		}
	}
	return strings.TrimSpace(sb.String())
}

var frontmatterRe = regexp.MustCompile(`(?s)^---\s*\n(.*?)\n---\s*\n?`)

// extractFrontmatter splits a leading "---\n...\n---" YAML block off of
// content, returning the remaining body and the frontmatter bytes (nil if
// none was present).
func extractFrontmatter(content []byte) (body []byte, frontmatter []byte) {
	loc := frontmatterRe.FindSubmatchIndex(content)
	if loc == nil {
		return content, nil
	}
	frontmatter = content[loc[2]:loc[3]]
	body = content[loc[1]:]
	return body, frontmatter
}
