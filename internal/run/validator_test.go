package run

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvbs/arena/internal/competition"
	"github.com/openvbs/arena/internal/database/models"
)

func textTask(targets ...string) *competition.TaskTemplate {
	tt := &competition.TaskTemplate{Name: "t"}
	for _, target := range targets {
		tt.Targets = append(tt.Targets, competition.TargetSpec{Text: target})
	}
	return tt
}

func validate(t *testing.T, v Validator, sub *Submission) models.VerdictStatus {
	t.Helper()
	require.Len(t, sub.AnswerSets, 1)
	v.Validate(sub.AnswerSets[0], sub, &TaskRun{})
	return sub.AnswerSets[0].Status
}

func TestTemporalOverlapValidator(t *testing.T) {
	tt := &competition.TaskTemplate{
		Name: "t",
		Targets: []competition.TargetSpec{
			{Item: "v1", StartMS: ms(1000), EndMS: ms(2000)},
		},
	}
	v, err := NewValidator(competition.ValidationSpec{Name: "temporal-overlap"}, nil, tt, nil)
	require.NoError(t, err)

	assert.Equal(t, models.VerdictCorrect, validate(t, v, segmentSub("red", "v1", 1500, 2500)))
	assert.Equal(t, models.VerdictCorrect, validate(t, v, segmentSub("red", "v1", 2000, 3000)))
	assert.Equal(t, models.VerdictWrong, validate(t, v, segmentSub("red", "v1", 3000, 4000)))
	assert.Equal(t, models.VerdictWrong, validate(t, v, segmentSub("red", "v2", 1500, 2500)))
	// inverted segment is wrong, not an error
	assert.Equal(t, models.VerdictWrong, validate(t, v, segmentSub("red", "v1", 2500, 1500)))
}

func TestTemporalContainmentValidator(t *testing.T) {
	tt := &competition.TaskTemplate{
		Name: "t",
		Targets: []competition.TargetSpec{
			{Item: "v1", StartMS: ms(1000), EndMS: ms(2000)},
		},
	}
	v, err := NewValidator(competition.ValidationSpec{Name: "temporal-containment"}, nil, tt, nil)
	require.NoError(t, err)

	assert.Equal(t, models.VerdictCorrect, validate(t, v, segmentSub("red", "v1", 1000, 2000)))
	assert.Equal(t, models.VerdictCorrect, validate(t, v, segmentSub("red", "v1", 1200, 1800)))
	// overlap without containment is wrong in this mode
	assert.Equal(t, models.VerdictWrong, validate(t, v, segmentSub("red", "v1", 1500, 2500)))
}

func TestMediaItemValidator(t *testing.T) {
	tt := &competition.TaskTemplate{
		Name:    "t",
		Targets: []competition.TargetSpec{{Item: "v1"}, {Item: "v2"}},
	}
	v, err := NewValidator(competition.ValidationSpec{Name: "media-item"}, nil, tt, nil)
	require.NoError(t, err)

	assert.Equal(t, models.VerdictCorrect, validate(t, v, segmentSub("red", "v2", 0, 10)))
	assert.Equal(t, models.VerdictWrong, validate(t, v, segmentSub("red", "v3", 0, 10)))
}

func TestTextValidatorLiteral(t *testing.T) {
	v, err := NewValidator(competition.ValidationSpec{Name: "text"}, nil, textTask("otter"), nil)
	require.NoError(t, err)

	assert.Equal(t, models.VerdictCorrect, validate(t, v, textSub("red", "alice", "otter")))
	assert.Equal(t, models.VerdictWrong, validate(t, v, textSub("red", "alice", "Otter")))
	assert.Equal(t, models.VerdictWrong, validate(t, v, textSub("red", "alice", "")))
}

func TestTextValidatorUnicodeCanonical(t *testing.T) {
	// "é" precomposed vs combining accent
	v, err := NewValidator(competition.ValidationSpec{Name: "text"}, nil, textTask("café"), nil)
	require.NoError(t, err)
	assert.Equal(t, models.VerdictCorrect, validate(t, v, textSub("red", "alice", "café")))
}

func TestTextValidatorRegex(t *testing.T) {
	v, err := NewValidator(competition.ValidationSpec{Name: "text"}, nil, textTask(`\foo.*\`), nil)
	require.NoError(t, err)

	assert.Equal(t, models.VerdictCorrect, validate(t, v, textSub("red", "alice", "foobar")))
	assert.Equal(t, models.VerdictWrong, validate(t, v, textSub("red", "alice", "FOOBAR")))
	// anchored: the pattern must cover the whole answer
	assert.Equal(t, models.VerdictWrong, validate(t, v, textSub("red", "alice", "xfoobar")))
}

func TestTextValidatorRegexCaseInsensitive(t *testing.T) {
	v, err := NewValidator(competition.ValidationSpec{Name: "text"}, nil, textTask(`\foo.*\i`), nil)
	require.NoError(t, err)

	assert.Equal(t, models.VerdictCorrect, validate(t, v, textSub("red", "alice", "FOOBAR")))
	assert.Equal(t, models.VerdictWrong, validate(t, v, textSub("red", "alice", "barfoo")))
}

func TestTextValidatorBadTargets(t *testing.T) {
	_, err := NewValidator(competition.ValidationSpec{Name: "text"}, nil, textTask(`\foo(\`), nil)
	require.Error(t, err)

	_, err = NewValidator(competition.ValidationSpec{Name: "text"}, nil, textTask(`\foo\x`), nil)
	require.Error(t, err)

	_, err = NewValidator(competition.ValidationSpec{Name: "text"}, nil, &competition.TaskTemplate{Name: "t"}, nil)
	require.Error(t, err)
}

func TestJudgeValidatorDefers(t *testing.T) {
	queue := NewJudgementQueue()
	v, err := NewValidator(competition.ValidationSpec{Name: "judge"}, nil, textTask("x"), queue)
	require.NoError(t, err)

	sub := textSub("red", "alice", "maybe")
	sub.AnswerSets[0].ID = "as-1"
	v.Validate(sub.AnswerSets[0], sub, &TaskRun{ID: "task-1"})

	assert.Equal(t, models.VerdictIndeterminate, sub.AnswerSets[0].Status)
	assert.Equal(t, 1, queue.Pending())

	j := queue.Next("judge-1")
	require.NotNil(t, j)
	assert.Equal(t, "as-1", j.AnswerSetID)
	assert.Equal(t, "judge-1", j.OpenedBy)

	// opened but unresolved items are not handed out twice
	assert.Nil(t, queue.Next("judge-2"))
	assert.True(t, queue.Take("as-1"))
	assert.False(t, queue.Take("as-1"))
	assert.Equal(t, 0, queue.Pending())
}

func TestChainedValidator(t *testing.T) {
	queue := NewJudgementQueue()
	spec := competition.ValidationSpec{
		Name:       "text",
		ContinueOn: []string{"Wrong"},
		Then:       &competition.ValidationSpec{Name: "judge"},
	}
	v, err := NewValidator(spec, nil, textTask("otter"), queue)
	require.NoError(t, err)

	// a literal match is final, the judge never sees it
	assert.Equal(t, models.VerdictCorrect, validate(t, v, textSub("red", "alice", "otter")))
	assert.Equal(t, 0, queue.Pending())

	// a mismatch falls through to the judge
	sub := textSub("red", "alice", "ottter")
	v.Validate(sub.AnswerSets[0], sub, &TaskRun{})
	assert.Equal(t, models.VerdictIndeterminate, sub.AnswerSets[0].Status)
	assert.Equal(t, 1, queue.Pending())
}

func TestChainedValidatorUnknownStatus(t *testing.T) {
	spec := competition.ValidationSpec{
		Name:       "text",
		ContinueOn: []string{"Maybe"},
		Then:       &competition.ValidationSpec{Name: "text"},
	}
	_, err := NewValidator(spec, nil, textTask("otter"), nil)
	require.Error(t, err)
}
