package run

import (
	"fmt"

	"github.com/openvbs/arena/internal/competition"
	"github.com/openvbs/arena/internal/database/models"
)

// Filter is a predicate over an incoming submission. Test returns true to
// let the submission pass; Reason is surfaced to the caller when it does not.
type Filter interface {
	Test(sub *Submission, task *TaskRun) bool
	Reason() string
}

// FilterChain ANDs its filters in declared order and short-circuits on the
// first failure. A rejected submission is never partially filtered.
type FilterChain []Filter

func (c FilterChain) Check(sub *Submission, task *TaskRun) error {
	for _, f := range c {
		if !f.Test(sub, task) {
			return &RejectedError{Reason: f.Reason()}
		}
	}
	return nil
}

// NewFilterChain instantiates a chain from template specs, preserving their
// declared order. An unknown filter name or invalid parameter is a
// configuration error.
func NewFilterChain(specs []competition.FilterSpec) (FilterChain, error) {
	chain := make(FilterChain, 0, len(specs))
	for _, spec := range specs {
		f, err := newFilter(spec)
		if err != nil {
			return nil, err
		}
		chain = append(chain, f)
	}
	return chain, nil
}

func newFilter(spec competition.FilterSpec) (Filter, error) {
	limit := func(key string) (int, error) {
		v, ok := spec.Params[key]
		if !ok || v < 1 {
			return 0, fmt.Errorf("filter %s requires positive parameter %q", spec.Name, key)
		}
		return int(v), nil
	}

	switch spec.Name {
	case "no-duplicates":
		return &duplicateFilter{}, nil
	case "max-correct-per-team":
		n, err := limit("limit")
		if err != nil {
			return nil, err
		}
		return &statusCountFilter{limit: n, status: models.VerdictCorrect, perMember: false,
			reason: fmt.Sprintf("team already has %d correct submissions", n)}, nil
	case "max-correct-per-member":
		n, err := limit("limit")
		if err != nil {
			return nil, err
		}
		return &statusCountFilter{limit: n, status: models.VerdictCorrect, perMember: true,
			reason: fmt.Sprintf("member already has %d correct submissions", n)}, nil
	case "max-wrong-per-team":
		n, err := limit("limit")
		if err != nil {
			return nil, err
		}
		return &statusCountFilter{limit: n, status: models.VerdictWrong, perMember: false,
			reason: fmt.Sprintf("team already has %d wrong submissions", n)}, nil
	case "max-submissions-per-team":
		n, err := limit("limit")
		if err != nil {
			return nil, err
		}
		return &totalCountFilter{limit: n}, nil
	case "temporal-only":
		return &shapeFilter{temporal: true, require: true}, nil
	case "no-temporal":
		return &shapeFilter{temporal: true, require: false}, nil
	case "text-only":
		return &shapeFilter{temporal: false, require: true}, nil
	case "no-text":
		return &shapeFilter{temporal: false, require: false}, nil
	default:
		return nil, fmt.Errorf("unknown filter %q", spec.Name)
	}
}

// duplicateFilter rejects a submission whose answers were all seen before on
// this task: same text, or same item with an overlapping temporal range.
type duplicateFilter struct{}

func (f *duplicateFilter) Reason() string { return "duplicate submission" }

func (f *duplicateFilter) Test(sub *Submission, task *TaskRun) bool {
	for _, as := range sub.AnswerSets {
		for i := range as.Answers {
			if !seenBefore(&as.Answers[i], task.Submissions) {
				return true
			}
		}
	}
	return false
}

func seenBefore(a *Answer, history []*Submission) bool {
	for _, prev := range history {
		for _, as := range prev.AnswerSets {
			for i := range as.Answers {
				if answersEquivalent(a, &as.Answers[i]) {
					return true
				}
			}
		}
	}
	return false
}

func answersEquivalent(a, b *Answer) bool {
	if a.Text != "" || b.Text != "" {
		return a.Text == b.Text && a.ItemName == b.ItemName
	}
	if a.ItemName != b.ItemName {
		return false
	}
	if a.HasSegment() != b.HasSegment() {
		return false
	}
	if !a.HasSegment() {
		return true
	}
	return segmentsOverlap(*a.StartMS, *a.EndMS, *b.StartMS, *b.EndMS)
}

func segmentsOverlap(aStart, aEnd, bStart, bEnd int64) bool {
	return aStart <= bEnd && bStart <= aEnd
}

// statusCountFilter caps, per team or per member, the number of prior
// submissions that reached a given verdict.
type statusCountFilter struct {
	limit     int
	status    models.VerdictStatus
	perMember bool
	reason    string
}

func (f *statusCountFilter) Reason() string { return f.reason }

func (f *statusCountFilter) Test(sub *Submission, task *TaskRun) bool {
	count := 0
	for _, prev := range task.Submissions {
		if prev.TeamID != sub.TeamID {
			continue
		}
		if f.perMember && prev.MemberID != sub.MemberID {
			continue
		}
		if prev.hasStatus(f.status) {
			count++
		}
	}
	return count < f.limit
}

// totalCountFilter caps the total number of submissions per team.
type totalCountFilter struct {
	limit int
}

func (f *totalCountFilter) Reason() string {
	return fmt.Sprintf("team reached the limit of %d submissions", f.limit)
}

func (f *totalCountFilter) Test(sub *Submission, task *TaskRun) bool {
	count := 0
	for _, prev := range task.Submissions {
		if prev.TeamID == sub.TeamID {
			count++
		}
	}
	return count < f.limit
}

// shapeFilter requires or forbids a submission shape: temporal ranges or
// free text.
type shapeFilter struct {
	temporal bool
	require  bool
}

func (f *shapeFilter) Reason() string {
	kind := "textual"
	if f.temporal {
		kind = "temporal"
	}
	if f.require {
		return fmt.Sprintf("task only accepts %s submissions", kind)
	}
	return fmt.Sprintf("task does not accept %s submissions", kind)
}

func (f *shapeFilter) Test(sub *Submission, task *TaskRun) bool {
	for _, as := range sub.AnswerSets {
		for i := range as.Answers {
			a := &as.Answers[i]
			var matches bool
			if f.temporal {
				matches = a.HasSegment()
			} else {
				matches = a.Text != ""
			}
			if matches != f.require {
				return false
			}
		}
	}
	return true
}
