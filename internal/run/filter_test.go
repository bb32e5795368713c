package run

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvbs/arena/internal/competition"
	"github.com/openvbs/arena/internal/database/models"
)

func ms(v int64) *int64 { return &v }

func textSub(team, member, text string) *Submission {
	return &Submission{
		TeamID:   team,
		MemberID: member,
		AnswerSets: []*AnswerSet{
			{Answers: []Answer{{Text: text}}},
		},
	}
}

func segmentSub(team, item string, start, end int64) *Submission {
	return &Submission{
		TeamID: team,
		AnswerSets: []*AnswerSet{
			{Answers: []Answer{{ItemName: item, StartMS: ms(start), EndMS: ms(end)}}},
		},
	}
}

func withStatus(sub *Submission, status models.VerdictStatus) *Submission {
	for _, as := range sub.AnswerSets {
		as.Status = status
	}
	return sub
}

func TestFilterChainShortCircuits(t *testing.T) {
	chain, err := NewFilterChain([]competition.FilterSpec{
		{Name: "text-only"},
		{Name: "max-submissions-per-team", Params: map[string]float64{"limit": 1}},
	})
	require.NoError(t, err)

	task := &TaskRun{}
	// fails the first filter; the second must not be the reported reason
	err = chain.Check(segmentSub("red", "v1", 0, 10), task)
	require.Error(t, err)
	rj, ok := err.(*RejectedError)
	require.True(t, ok)
	assert.Contains(t, rj.Reason, "textual")
}

func TestFilterUnknownName(t *testing.T) {
	_, err := NewFilterChain([]competition.FilterSpec{{Name: "nope"}})
	require.Error(t, err)
}

func TestFilterLimitParameterRequired(t *testing.T) {
	_, err := NewFilterChain([]competition.FilterSpec{{Name: "max-correct-per-team"}})
	require.Error(t, err)

	_, err = NewFilterChain([]competition.FilterSpec{
		{Name: "max-correct-per-team", Params: map[string]float64{"limit": 0}},
	})
	require.Error(t, err)
}

func TestDuplicateFilterText(t *testing.T) {
	chain, err := NewFilterChain([]competition.FilterSpec{{Name: "no-duplicates"}})
	require.NoError(t, err)

	task := &TaskRun{Submissions: []*Submission{textSub("red", "alice", "otter")}}

	require.Error(t, chain.Check(textSub("blue", "carol", "otter"), task))
	require.NoError(t, chain.Check(textSub("blue", "carol", "beaver"), task))
}

func TestDuplicateFilterOverlappingSegment(t *testing.T) {
	chain, err := NewFilterChain([]competition.FilterSpec{{Name: "no-duplicates"}})
	require.NoError(t, err)

	task := &TaskRun{Submissions: []*Submission{segmentSub("red", "v1", 1000, 2000)}}

	// overlapping range on the same item is a duplicate
	require.Error(t, chain.Check(segmentSub("red", "v1", 1500, 2500), task))
	// boundary touch counts as overlap
	require.Error(t, chain.Check(segmentSub("red", "v1", 2000, 3000), task))
	// disjoint range is fine
	require.NoError(t, chain.Check(segmentSub("red", "v1", 3000, 4000), task))
	// same range on another item is fine
	require.NoError(t, chain.Check(segmentSub("red", "v2", 1000, 2000), task))
}

func TestDuplicateFilterPartialNovelty(t *testing.T) {
	chain, err := NewFilterChain([]competition.FilterSpec{{Name: "no-duplicates"}})
	require.NoError(t, err)

	task := &TaskRun{Submissions: []*Submission{textSub("red", "alice", "otter")}}

	// one novel answer among seen ones lets the submission pass
	sub := &Submission{
		TeamID: "red",
		AnswerSets: []*AnswerSet{
			{Answers: []Answer{{Text: "otter"}, {Text: "heron"}}},
		},
	}
	require.NoError(t, chain.Check(sub, task))
}

func TestStatusCountFilters(t *testing.T) {
	task := &TaskRun{Submissions: []*Submission{
		withStatus(textSub("red", "alice", "a"), models.VerdictCorrect),
		withStatus(textSub("red", "bob", "b"), models.VerdictWrong),
		withStatus(textSub("blue", "carol", "c"), models.VerdictCorrect),
	}}

	perTeam, err := NewFilterChain([]competition.FilterSpec{
		{Name: "max-correct-per-team", Params: map[string]float64{"limit": 1}},
	})
	require.NoError(t, err)
	require.Error(t, perTeam.Check(textSub("red", "bob", "d"), task))
	require.NoError(t, perTeam.Check(textSub("green", "dave", "d"), task))

	perMember, err := NewFilterChain([]competition.FilterSpec{
		{Name: "max-correct-per-member", Params: map[string]float64{"limit": 1}},
	})
	require.NoError(t, err)
	require.Error(t, perMember.Check(textSub("red", "alice", "d"), task))
	require.NoError(t, perMember.Check(textSub("red", "bob", "d"), task))

	wrong, err := NewFilterChain([]competition.FilterSpec{
		{Name: "max-wrong-per-team", Params: map[string]float64{"limit": 1}},
	})
	require.NoError(t, err)
	require.Error(t, wrong.Check(textSub("red", "alice", "d"), task))
	require.NoError(t, wrong.Check(textSub("blue", "carol", "d"), task))
}

func TestTotalCountFilter(t *testing.T) {
	chain, err := NewFilterChain([]competition.FilterSpec{
		{Name: "max-submissions-per-team", Params: map[string]float64{"limit": 2}},
	})
	require.NoError(t, err)

	task := &TaskRun{Submissions: []*Submission{
		textSub("red", "alice", "a"),
		textSub("red", "bob", "b"),
	}}
	require.Error(t, chain.Check(textSub("red", "alice", "c"), task))
	require.NoError(t, chain.Check(textSub("blue", "carol", "c"), task))
}

func TestShapeFilters(t *testing.T) {
	task := &TaskRun{}
	cases := []struct {
		name     string
		sub      *Submission
		rejected bool
	}{
		{"temporal-only", segmentSub("red", "v1", 0, 10), false},
		{"temporal-only", textSub("red", "alice", "otter"), true},
		{"no-temporal", segmentSub("red", "v1", 0, 10), true},
		{"text-only", textSub("red", "alice", "otter"), false},
		{"text-only", segmentSub("red", "v1", 0, 10), true},
		{"no-text", textSub("red", "alice", "otter"), true},
		{"no-text", segmentSub("red", "v1", 0, 10), false},
	}
	for _, tc := range cases {
		chain, err := NewFilterChain([]competition.FilterSpec{{Name: tc.name}})
		require.NoError(t, err)
		err = chain.Check(tc.sub, task)
		if tc.rejected {
			assert.Error(t, err, tc.name)
		} else {
			assert.NoError(t, err, tc.name)
		}
	}
}
