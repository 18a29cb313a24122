package planio

import "github.com/harrison/conductor/internal/models"

// wirePlan is the on-disk shape of a plan document, shared by the YAML and
// JSON parsers (both formats carry identical fields, so one struct with
// both tags serves both encoders). Grounded on the teacher's yaml_test.go
// fixtures, trimmed and renamed onto chopstack's own Plan/Task shape
// (kebab-case task ids instead of numeric Number, a Dependencies set
// instead of a DependsOn slice, no agent/quality-control sections since
// chopstack carries neither).
type wirePlan struct {
	Name               string        `yaml:"name" json:"name"`
	Strategy           string        `yaml:"strategy" json:"strategy"`
	SuccessMetrics     []string      `yaml:"success_metrics" json:"success_metrics"`
	MaxParallelization int           `yaml:"max_parallelization" json:"max_parallelization"`
	Phases             []wirePhase   `yaml:"phases" json:"phases"`
	Tasks              []wireTask    `yaml:"tasks" json:"tasks"`
}

type wirePhase struct {
	ID       string   `yaml:"id" json:"id"`
	Name     string   `yaml:"name" json:"name"`
	Strategy string   `yaml:"strategy" json:"strategy"`
	Tasks    []string `yaml:"tasks" json:"tasks"`
	Requires []string `yaml:"requires" json:"requires"`
}

type wireTask struct {
	ID                 string   `yaml:"id" json:"id"`
	Name               string   `yaml:"name" json:"name"`
	Description        string   `yaml:"description" json:"description"`
	Complexity         string   `yaml:"complexity" json:"complexity"`
	AcceptanceCriteria []string `yaml:"acceptance_criteria" json:"acceptance_criteria"`
	Files              []string `yaml:"files" json:"files"`
	Dependencies       []string `yaml:"dependencies" json:"dependencies"`
	Phase              string   `yaml:"phase" json:"phase"`
	MaxRetries         int      `yaml:"max_retries" json:"max_retries"`
}

// toPlan converts the wire document into a models.Plan, the shape every
// parser (YAML, JSON, Markdown) converges on.
func (w *wirePlan) toPlan() *models.Plan {
	plan := &models.Plan{
		Name:               w.Name,
		Strategy:           models.PlanStrategy(w.Strategy),
		SuccessMetrics:      w.SuccessMetrics,
		MaxParallelization: w.MaxParallelization,
	}

	for _, wt := range w.Tasks {
		task := models.NewTask(wt.ID, wt.Name, wt.Description)
		task.Complexity = models.Complexity(wt.Complexity)
		task.AcceptanceCriteria = wt.AcceptanceCriteria
		task.Files = wt.Files
		task.Phase = wt.Phase
		task.MaxRetries = wt.MaxRetries
		for _, dep := range wt.Dependencies {
			task.AddDependency(dep)
		}
		plan.Tasks = append(plan.Tasks, task)
	}

	for _, wp := range w.Phases {
		phase := models.Phase{
			ID:       wp.ID,
			Name:     wp.Name,
			Strategy: models.PhaseStrategy(wp.Strategy),
			Tasks:    wp.Tasks,
		}
		if len(wp.Requires) > 0 {
			phase.Requires = make(map[string]struct{}, len(wp.Requires))
			for _, req := range wp.Requires {
				phase.Requires[req] = struct{}{}
			}
		}
		plan.Phases = append(plan.Phases, phase)
	}

	return plan
}
