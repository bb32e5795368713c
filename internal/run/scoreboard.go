package run

import (
	"sort"
	"time"
)

// ScoreEntry is the unit of scoreboard output.
type ScoreEntry struct {
	TeamID    string  `json:"team_id"`
	GroupName string  `json:"group_name,omitempty"`
	Score     float64 `json:"score"`
}

// SeriesPoint is one appended element of a board's history.
type SeriesPoint struct {
	Timestamp time.Time    `json:"timestamp"`
	Entries   []ScoreEntry `json:"entries"`
}

// ScoredTask pairs a task with its latest scorer output for board
// composition.
type ScoredTask struct {
	Task     *TaskRun
	Scores   map[string]float64
	MaxScore float64
}

// Scoreboard composes per-task scores into a named board and records an
// append-only time series.
type Scoreboard interface {
	Name() string
	Recompute(tasks []ScoredTask, teamIDs []string, now time.Time)
	Entries() []ScoreEntry
	History() []SeriesPoint
}

type board struct {
	name    string
	entries []ScoreEntry
	history []SeriesPoint
}

func (b *board) Name() string { return b.name }

func (b *board) Entries() []ScoreEntry {
	out := make([]ScoreEntry, len(b.entries))
	copy(out, b.entries)
	return out
}

func (b *board) History() []SeriesPoint {
	out := make([]SeriesPoint, len(b.history))
	copy(out, b.history)
	return out
}

func (b *board) record(entries []ScoreEntry, now time.Time) {
	b.entries = entries
	b.history = append(b.history, SeriesPoint{Timestamp: now, Entries: entries})
}

// MaxNormalizingBoard takes, per team, the maximum score across the tasks of
// one task group, normalized to a common scale.
type MaxNormalizingBoard struct {
	board
	Group string
	Scale float64
}

func NewMaxNormalizingBoard(name, group string, scale float64) *MaxNormalizingBoard {
	if scale <= 0 {
		scale = 1000
	}
	return &MaxNormalizingBoard{board: board{name: name}, Group: group, Scale: scale}
}

func (b *MaxNormalizingBoard) Recompute(tasks []ScoredTask, teamIDs []string, now time.Time) {
	best := make(map[string]float64, len(teamIDs))
	for _, team := range teamIDs {
		best[team] = 0
	}
	for _, st := range tasks {
		if st.Task.Template.Group != b.Group || st.MaxScore <= 0 {
			continue
		}
		for team, score := range st.Scores {
			normalized := score / st.MaxScore * b.Scale
			if _, ok := best[team]; ok && normalized > best[team] {
				best[team] = normalized
			}
		}
	}

	entries := make([]ScoreEntry, 0, len(best))
	for _, team := range sortedTeams(teamIDs) {
		entries = append(entries, ScoreEntry{TeamID: team, GroupName: b.Group, Score: best[team]})
	}
	b.record(entries, now)
}

// SumAggregateBoard sums the outputs of several named source boards.
type SumAggregateBoard struct {
	board
	Sources []Scoreboard
}

func NewSumAggregateBoard(name string, sources []Scoreboard) *SumAggregateBoard {
	return &SumAggregateBoard{board: board{name: name}, Sources: sources}
}

func (b *SumAggregateBoard) Recompute(tasks []ScoredTask, teamIDs []string, now time.Time) {
	totals := make(map[string]float64, len(teamIDs))
	for _, team := range teamIDs {
		totals[team] = 0
	}
	for _, src := range b.Sources {
		for _, entry := range src.Entries() {
			if _, ok := totals[entry.TeamID]; ok {
				totals[entry.TeamID] += entry.Score
			}
		}
	}

	entries := make([]ScoreEntry, 0, len(totals))
	for _, team := range sortedTeams(teamIDs) {
		entries = append(entries, ScoreEntry{TeamID: team, Score: totals[team]})
	}
	b.record(entries, now)
}

func sortedTeams(teamIDs []string) []string {
	out := make([]string, len(teamIDs))
	copy(out, teamIDs)
	sort.Strings(out)
	return out
}
