package run

import (
	"fmt"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/openvbs/arena/internal/competition"
	"github.com/openvbs/arena/internal/database/models"
)

// Scorer computes per-team scores from the full submission history of a
// task. Implementations are pure functions: re-scoring is always a complete
// recomputation so scores stay reproducible from persisted submissions alone.
// Every team of the context appears in the result, defaulting to 0.
type Scorer interface {
	ComputeScores(history []*Submission, ctx TaskContext) map[string]float64
}

// NewScorer instantiates the scoring policy declared by a template spec.
func NewScorer(spec competition.ScoringSpec) (Scorer, error) {
	param := func(key string, fallback float64) float64 {
		if v, ok := spec.Params[key]; ok {
			return v
		}
		return fallback
	}

	switch spec.Name {
	case "kis":
		s := &KisTimeDecayScorer{
			MaxPoints:      param("max_points", 100),
			MaxPointsAtEnd: param("max_points_at_end", 50),
			WrongPenalty:   param("wrong_penalty", 10),
		}
		if s.MaxPointsAtEnd > s.MaxPoints {
			return nil, fmt.Errorf("kis scorer: max_points_at_end exceeds max_points")
		}
		return s, nil
	case "avs":
		return &AvsItemCoverageScorer{
			MaxPoints:    param("max_points", 1000),
			WrongPenalty: param("wrong_penalty", 0.2),
		}, nil
	case "avs-item-floor":
		return &AvsItemCoverageScorer{
			MaxPoints:    param("max_points", 1000),
			WrongPenalty: param("wrong_penalty", 0.2),
			FloorPerItem: true,
		}, nil
	default:
		return nil, fmt.Errorf("unknown scoring policy %q", spec.Name)
	}
}

// KisTimeDecayScorer rewards the first correct submission of each team,
// decaying linearly from MaxPoints at task start to MaxPointsAtEnd at the
// (possibly extended) task end, minus a penalty per wrong submission posted
// before the first correct one. Teams without a correct submission score 0.
type KisTimeDecayScorer struct {
	MaxPoints      float64
	MaxPointsAtEnd float64
	WrongPenalty   float64
}

func (s *KisTimeDecayScorer) ComputeScores(history []*Submission, ctx TaskContext) map[string]float64 {
	scores := zeroScores(ctx.TeamIDs)

	byTeam := submissionsByTeam(history)
	for team, subs := range byTeam {
		if _, eligible := scores[team]; !eligible {
			continue
		}
		wrongBefore := 0
		for _, sub := range subs {
			if sub.Correct() {
				fraction := 0.0
				if ctx.Duration > 0 {
					fraction = float64(sub.PostedAt.Sub(ctx.StartedAt)) / float64(ctx.Duration)
				}
				if fraction < 0 {
					fraction = 0
				} else if fraction > 1 {
					fraction = 1
				}
				score := s.MaxPointsAtEnd +
					(s.MaxPoints-s.MaxPointsAtEnd)*(1-fraction) -
					float64(wrongBefore)*s.WrongPenalty
				if score < 0 {
					score = 0
				}
				scores[team] = score
				break
			}
			if sub.Wrong() {
				wrongBefore++
			}
		}
	}
	return scores
}

// AvsItemCoverageScorer scores each distinct submitted item independently: a
// correct submission on an item contributes 1 minus a penalty per wrong
// submission posted on that item before it. With FloorPerItem, negative item
// contributions are clamped to 0 individually; otherwise only the team total
// is clamped. Totals are normalized by the number of distinct items any team
// found correct, scaled to MaxPoints.
type AvsItemCoverageScorer struct {
	MaxPoints    float64
	WrongPenalty float64
	FloorPerItem bool
}

func (s *AvsItemCoverageScorer) ComputeScores(history []*Submission, ctx TaskContext) map[string]float64 {
	scores := zeroScores(ctx.TeamIDs)

	correctItems := mapset.NewThreadUnsafeSet[string]()
	for _, sub := range history {
		for _, as := range sub.AnswerSets {
			if as.Status != models.VerdictCorrect {
				continue
			}
			for i := range as.Answers {
				if as.Answers[i].ItemName != "" {
					correctItems.Add(as.Answers[i].ItemName)
				}
			}
		}
	}
	totalCorrect := correctItems.Cardinality()
	if totalCorrect == 0 {
		return scores
	}

	for team, subs := range submissionsByTeam(history) {
		if _, eligible := scores[team]; !eligible {
			continue
		}

		type itemTally struct {
			wrongBefore int
			correct     bool
		}
		items := make(map[string]*itemTally)
		order := make([]string, 0)
		for _, sub := range subs {
			for _, as := range sub.AnswerSets {
				for i := range as.Answers {
					item := as.Answers[i].ItemName
					if item == "" {
						continue
					}
					tally, ok := items[item]
					if !ok {
						tally = &itemTally{}
						items[item] = tally
						order = append(order, item)
					}
					if tally.correct {
						continue
					}
					switch as.Status {
					case models.VerdictCorrect:
						tally.correct = true
					case models.VerdictWrong:
						tally.wrongBefore++
					}
				}
			}
		}

		sort.Strings(order)
		total := 0.0
		anyCorrect := false
		for _, item := range order {
			tally := items[item]
			var contribution float64
			if tally.correct {
				anyCorrect = true
				contribution = 1 - s.WrongPenalty*float64(tally.wrongBefore)
			} else {
				contribution = -s.WrongPenalty * float64(tally.wrongBefore)
			}
			if s.FloorPerItem && contribution < 0 {
				contribution = 0
			}
			total += contribution
		}
		if !anyCorrect || total < 0 {
			total = 0
		}
		scores[team] = total / float64(totalCorrect) * s.MaxPoints
	}
	return scores
}

func zeroScores(teamIDs []string) map[string]float64 {
	scores := make(map[string]float64, len(teamIDs))
	for _, id := range teamIDs {
		scores[id] = 0
	}
	return scores
}

// submissionsByTeam groups the history preserving chronological order. The
// caller passes history already ordered by posting time.
func submissionsByTeam(history []*Submission) map[string][]*Submission {
	byTeam := make(map[string][]*Submission)
	for _, sub := range history {
		byTeam[sub.TeamID] = append(byTeam[sub.TeamID], sub)
	}
	return byTeam
}
