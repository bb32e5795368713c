package run

import (
	"fmt"
	"regexp"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/openvbs/arena/internal/competition"
	"github.com/openvbs/arena/internal/database/models"
	"golang.org/x/text/unicode/norm"
)

// Validator derives the status of an answer set. Implementations are pure
// except for the deferring judge validator, which enqueues the set for human
// judgement and leaves it INDETERMINATE.
type Validator interface {
	Validate(as *AnswerSet, sub *Submission, task *TaskRun)
}

// NewValidator instantiates the validator declared by a template spec. Specs
// chain through Then: the second validator only runs when the first verdict
// is in ContinueOn.
func NewValidator(spec competition.ValidationSpec, tmpl *competition.Template, task *competition.TaskTemplate, judge *JudgementQueue) (Validator, error) {
	first, err := newLeafValidator(spec.Name, task, judge)
	if err != nil {
		return nil, err
	}
	if spec.Then == nil {
		return first, nil
	}

	second, err := NewValidator(*spec.Then, tmpl, task, judge)
	if err != nil {
		return nil, err
	}
	continueOn := mapset.NewThreadUnsafeSet[models.VerdictStatus]()
	for _, s := range spec.ContinueOn {
		switch models.VerdictStatus(s) {
		case models.VerdictCorrect, models.VerdictWrong, models.VerdictIndeterminate, models.VerdictUndecidable:
			continueOn.Add(models.VerdictStatus(s))
		default:
			return nil, fmt.Errorf("unknown continuation status %q", s)
		}
	}
	return &chainedValidator{first: first, second: second, continueOn: continueOn}, nil
}

func newLeafValidator(name string, task *competition.TaskTemplate, judge *JudgementQueue) (Validator, error) {
	switch name {
	case "media-item":
		items := mapset.NewThreadUnsafeSet[string]()
		for _, t := range task.Targets {
			if t.Item != "" {
				items.Add(t.Item)
			}
		}
		if items.IsEmpty() {
			return nil, fmt.Errorf("media-item validator requires item targets")
		}
		return &mediaItemValidator{items: items}, nil
	case "temporal-overlap", "temporal-containment":
		segments := targetSegments(task)
		if len(segments) == 0 {
			return nil, fmt.Errorf("%s validator requires segment targets", name)
		}
		return &temporalValidator{segments: segments, containment: name == "temporal-containment"}, nil
	case "text":
		matchers, err := textMatchers(task)
		if err != nil {
			return nil, err
		}
		return &textValidator{matchers: matchers}, nil
	case "judge":
		if judge == nil {
			return nil, fmt.Errorf("judge validator requires a judgement queue")
		}
		return &judgedValidator{queue: judge}, nil
	default:
		return nil, fmt.Errorf("unknown validator %q", name)
	}
}

type segment struct {
	item  string
	start int64
	end   int64
}

func targetSegments(task *competition.TaskTemplate) []segment {
	var segments []segment
	for _, t := range task.Targets {
		if t.Item != "" && t.StartMS != nil && t.EndMS != nil {
			segments = append(segments, segment{item: t.Item, start: *t.StartMS, end: *t.EndMS})
		}
	}
	return segments
}

// mediaItemValidator accepts an answer set iff every answer names an item of
// the task's allowed target set.
type mediaItemValidator struct {
	items mapset.Set[string]
}

func (v *mediaItemValidator) Validate(as *AnswerSet, sub *Submission, task *TaskRun) {
	for i := range as.Answers {
		a := &as.Answers[i]
		if a.ItemName == "" || !v.items.Contains(a.ItemName) {
			as.Status = models.VerdictWrong
			return
		}
	}
	as.Status = models.VerdictCorrect
}

// temporalValidator accepts an answer set iff every answer's segment overlaps
// (or, in containment mode, lies fully within) a target segment of the same
// item. Boundary touches count as overlap.
type temporalValidator struct {
	segments    []segment
	containment bool
}

func (v *temporalValidator) Validate(as *AnswerSet, sub *Submission, task *TaskRun) {
	for i := range as.Answers {
		a := &as.Answers[i]
		if !a.HasSegment() || *a.StartMS > *a.EndMS {
			as.Status = models.VerdictWrong
			return
		}
		if !v.matches(a) {
			as.Status = models.VerdictWrong
			return
		}
	}
	as.Status = models.VerdictCorrect
}

func (v *temporalValidator) matches(a *Answer) bool {
	for _, seg := range v.segments {
		if a.ItemName != seg.item {
			continue
		}
		if v.containment {
			if *a.StartMS >= seg.start && *a.EndMS <= seg.end {
				return true
			}
		} else if segmentsOverlap(*a.StartMS, *a.EndMS, seg.start, seg.end) {
			return true
		}
	}
	return false
}

type textMatcher func(string) bool

// textMatchers compiles the task's textual targets. A target wrapped in
// backslashes is a regular expression, with an optional trailing `\i` for
// case insensitivity; anything else compares literally under NFC canonical
// equivalence.
func textMatchers(task *competition.TaskTemplate) ([]textMatcher, error) {
	var matchers []textMatcher
	for _, t := range task.Targets {
		if t.Text == "" {
			continue
		}
		target := t.Text
		// `\expr\` is a regex target, `\expr\i` a case-insensitive one
		if len(target) >= 2 && strings.HasPrefix(target, `\`) && strings.Count(target, `\`) >= 2 {
			last := strings.LastIndex(target, `\`)
			expr, flags := target[1:last], target[last+1:]
			if flags != "" && flags != "i" {
				return nil, fmt.Errorf("invalid text target %q: unknown flag %q", t.Text, flags)
			}
			if flags == "i" {
				expr = "(?i)" + expr
			}
			re, err := regexp.Compile("^(?:" + expr + ")$")
			if err != nil {
				return nil, fmt.Errorf("invalid text target %q: %w", t.Text, err)
			}
			matchers = append(matchers, re.MatchString)
		} else {
			canonical := norm.NFC.String(t.Text)
			matchers = append(matchers, func(s string) bool {
				return norm.NFC.String(s) == canonical
			})
		}
	}
	if len(matchers) == 0 {
		return nil, fmt.Errorf("text validator requires text targets")
	}
	return matchers, nil
}

// textValidator accepts an answer set iff every answer's text matches at
// least one target.
type textValidator struct {
	matchers []textMatcher
}

func (v *textValidator) Validate(as *AnswerSet, sub *Submission, task *TaskRun) {
	for i := range as.Answers {
		a := &as.Answers[i]
		if a.Text == "" || !v.anyMatch(a.Text) {
			as.Status = models.VerdictWrong
			return
		}
	}
	as.Status = models.VerdictCorrect
}

func (v *textValidator) anyMatch(text string) bool {
	for _, m := range v.matchers {
		if m(text) {
			return true
		}
	}
	return false
}

// judgedValidator defers the verdict to a human judge. The answer set stays
// INDETERMINATE until the judgement is resolved out-of-band.
type judgedValidator struct {
	queue *JudgementQueue
}

func (v *judgedValidator) Validate(as *AnswerSet, sub *Submission, task *TaskRun) {
	for i := range as.Answers {
		a := &as.Answers[i]
		if a.HasSegment() && *a.StartMS > *a.EndMS {
			as.Status = models.VerdictWrong
			return
		}
	}
	as.Status = models.VerdictIndeterminate
	v.queue.Enqueue(as, sub, task)
}

// chainedValidator runs the first validator, then the second only when the
// first verdict is in the declared continuation set.
type chainedValidator struct {
	first      Validator
	second     Validator
	continueOn mapset.Set[models.VerdictStatus]
}

func (v *chainedValidator) Validate(as *AnswerSet, sub *Submission, task *TaskRun) {
	v.first.Validate(as, sub, task)
	if v.continueOn.Contains(as.Status) {
		v.second.Validate(as, sub, task)
	}
}
