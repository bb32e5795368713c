package competition

import "fmt"

// Template is the immutable description of one competition: its teams, task
// groups, task templates and the media collection the tasks refer to. Runs
// reference a template and never mutate it.
type Template struct {
	ID          string         `yaml:"id" json:"id"`
	Name        string         `yaml:"name" json:"name"`
	Teams       []Team         `yaml:"teams" json:"teams"`
	TaskGroups  []TaskGroup    `yaml:"task_groups" json:"task_groups"`
	Tasks       []TaskTemplate `yaml:"tasks" json:"tasks"`
	Description string         `yaml:"-" json:"description"`
	BasePath    string         `yaml:"-" json:"-"`
	Media       []MediaItem    `yaml:"-" json:"-"` // loaded from media.yaml
}

type Team struct {
	ID      string   `yaml:"id" json:"id"`
	Name    string   `yaml:"name" json:"name"`
	Color   string   `yaml:"color" json:"color"`
	Members []string `yaml:"members" json:"members"`
}

type TaskGroup struct {
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type" json:"type"`
}

// TaskTemplate declares one timed challenge: its duration, target, hint and
// the scoring/validation/filter policies instantiated at task preparation.
type TaskTemplate struct {
	Name            string         `yaml:"name" json:"name"`
	Group           string         `yaml:"group" json:"group"`
	DurationSeconds int            `yaml:"duration_seconds" json:"duration_seconds"`
	Scoring         ScoringSpec    `yaml:"scoring" json:"scoring"`
	Validation      ValidationSpec `yaml:"validation" json:"validation"`
	Filters         []FilterSpec   `yaml:"filters" json:"filters"`
	Targets         []TargetSpec   `yaml:"targets" json:"targets"`
	Hint            HintSpec       `yaml:"hint" json:"hint"`
	Rules           RulesSpec      `yaml:"rules" json:"rules"`
}

// RulesSpec configures the rule-driven task updatables: auto-ending a task
// once every team reached its correct-submission quota, and granting extra
// time when a correct submission lands close to the deadline.
type RulesSpec struct {
	EndOnCorrectQuota      int `yaml:"end_on_correct_quota" json:"end_on_correct_quota"`
	TimeBonusSeconds       int `yaml:"time_bonus_seconds" json:"time_bonus_seconds"`
	TimeBonusWindowSeconds int `yaml:"time_bonus_window_seconds" json:"time_bonus_window_seconds"`
}

type ScoringSpec struct {
	Name   string             `yaml:"name" json:"name"`
	Params map[string]float64 `yaml:"params" json:"params"`
}

// ValidationSpec selects a validator strategy. A non-empty Then chains a
// second validator that only runs when the first verdict is in ContinueOn.
type ValidationSpec struct {
	Name       string          `yaml:"name" json:"name"`
	ContinueOn []string        `yaml:"continue_on" json:"continue_on"`
	Then       *ValidationSpec `yaml:"then" json:"then"`
}

type FilterSpec struct {
	Name   string             `yaml:"name" json:"name"`
	Params map[string]float64 `yaml:"params" json:"params"`
}

// TargetSpec names either a media item (optionally a temporal segment of it)
// or a textual target.
type TargetSpec struct {
	Item    string `yaml:"item" json:"item"`
	StartMS *int64 `yaml:"start_ms" json:"start_ms"`
	EndMS   *int64 `yaml:"end_ms" json:"end_ms"`
	Text    string `yaml:"text" json:"text"`
}

type HintSpec struct {
	Text    string `yaml:"text" json:"text"`
	Item    string `yaml:"item" json:"item"`
	StartMS *int64 `yaml:"start_ms" json:"start_ms"`
	EndMS   *int64 `yaml:"end_ms" json:"end_ms"`
}

type MediaItem struct {
	Name       string  `yaml:"name" json:"name"`
	Path       string  `yaml:"path" json:"path"`
	DurationMS int64   `yaml:"duration_ms" json:"duration_ms"`
	FPS        float64 `yaml:"fps" json:"fps"`
}

func (t *Template) TeamByID(id string) (*Team, bool) {
	for i := range t.Teams {
		if t.Teams[i].ID == id {
			return &t.Teams[i], true
		}
	}
	return nil, false
}

func (t *Template) TeamIDs() []string {
	ids := make([]string, 0, len(t.Teams))
	for _, team := range t.Teams {
		ids = append(ids, team.ID)
	}
	return ids
}

func (t *Template) GroupByName(name string) (*TaskGroup, bool) {
	for i := range t.TaskGroups {
		if t.TaskGroups[i].Name == name {
			return &t.TaskGroups[i], true
		}
	}
	return nil, false
}

func (t *Template) MediaItemByName(name string) (*MediaItem, bool) {
	for i := range t.Media {
		if t.Media[i].Name == name {
			return &t.Media[i], true
		}
	}
	return nil, false
}

// Validate checks structural integrity: every task belongs to a declared
// group, every media target resolves, and segments are well-formed. It runs
// once at load; target references are re-checked at task preparation.
func (t *Template) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("template has no id")
	}
	if len(t.Teams) == 0 {
		return fmt.Errorf("template %s declares no teams", t.ID)
	}
	seen := make(map[string]bool)
	for _, team := range t.Teams {
		if seen[team.ID] {
			return fmt.Errorf("template %s: duplicate team id %s", t.ID, team.ID)
		}
		seen[team.ID] = true
	}
	if len(t.Tasks) == 0 {
		return fmt.Errorf("template %s declares no tasks", t.ID)
	}
	for i := range t.Tasks {
		if err := t.ValidateTask(&t.Tasks[i]); err != nil {
			return err
		}
	}
	return nil
}

// ValidateTask checks one task template against the media collection. Called
// at load and again at task preparation so that a task with a broken target
// never starts.
func (t *Template) ValidateTask(task *TaskTemplate) error {
	if task.Name == "" {
		return fmt.Errorf("template %s: task with empty name", t.ID)
	}
	if _, ok := t.GroupByName(task.Group); !ok {
		return fmt.Errorf("task %s references unknown group %q", task.Name, task.Group)
	}
	if task.DurationSeconds <= 0 {
		return fmt.Errorf("task %s has non-positive duration", task.Name)
	}
	if task.Scoring.Name == "" {
		return fmt.Errorf("task %s has no scoring policy", task.Name)
	}
	if task.Validation.Name == "" {
		return fmt.Errorf("task %s has no validation policy", task.Name)
	}
	if len(task.Targets) == 0 {
		return fmt.Errorf("task %s declares no targets", task.Name)
	}
	for _, target := range task.Targets {
		if target.Item == "" && target.Text == "" {
			return fmt.Errorf("task %s: target with neither item nor text", task.Name)
		}
		if target.Item != "" {
			if _, ok := t.MediaItemByName(target.Item); !ok {
				return fmt.Errorf("task %s: target references unknown media item %q", task.Name, target.Item)
			}
		}
		if target.StartMS != nil && target.EndMS != nil && *target.StartMS > *target.EndMS {
			return fmt.Errorf("task %s: target segment start after end", task.Name)
		}
	}
	if task.Hint.Item != "" {
		if _, ok := t.MediaItemByName(task.Hint.Item); !ok {
			return fmt.Errorf("task %s: hint references unknown media item %q", task.Name, task.Hint.Item)
		}
	}
	return nil
}
