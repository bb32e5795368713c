package competition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTemplate() *Template {
	start := int64(1000)
	end := int64(2000)
	return &Template{
		ID:   "vbs",
		Name: "VBS",
		Teams: []Team{
			{ID: "red", Name: "Red", Members: []string{"alice"}},
			{ID: "blue", Name: "Blue", Members: []string{"bob"}},
		},
		TaskGroups: []TaskGroup{{Name: "kis", Type: "kis"}},
		Tasks: []TaskTemplate{
			{
				Name:            "kis-1",
				Group:           "kis",
				DurationSeconds: 300,
				Scoring:         ScoringSpec{Name: "kis"},
				Validation:      ValidationSpec{Name: "temporal-overlap"},
				Targets:         []TargetSpec{{Item: "v001", StartMS: &start, EndMS: &end}},
			},
		},
		Media: []MediaItem{{Name: "v001", Path: "v001.mp4", DurationMS: 60000}},
	}
}

func TestTemplateValidate(t *testing.T) {
	require.NoError(t, validTemplate().Validate())
}

func TestTemplateValidateRejectsBrokenTemplates(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(tmpl *Template)
		want   string
	}{
		{"no id", func(tmpl *Template) { tmpl.ID = "" }, "no id"},
		{"no teams", func(tmpl *Template) { tmpl.Teams = nil }, "no teams"},
		{"duplicate team", func(tmpl *Template) { tmpl.Teams[1].ID = "red" }, "duplicate team"},
		{"no tasks", func(tmpl *Template) { tmpl.Tasks = nil }, "no tasks"},
		{"unknown group", func(tmpl *Template) { tmpl.Tasks[0].Group = "avs" }, "unknown group"},
		{"zero duration", func(tmpl *Template) { tmpl.Tasks[0].DurationSeconds = 0 }, "non-positive duration"},
		{"no scoring", func(tmpl *Template) { tmpl.Tasks[0].Scoring.Name = "" }, "no scoring policy"},
		{"no validation", func(tmpl *Template) { tmpl.Tasks[0].Validation.Name = "" }, "no validation policy"},
		{"no targets", func(tmpl *Template) { tmpl.Tasks[0].Targets = nil }, "no targets"},
		{"empty target", func(tmpl *Template) { tmpl.Tasks[0].Targets[0] = TargetSpec{} }, "neither item nor text"},
		{"unknown media", func(tmpl *Template) { tmpl.Tasks[0].Targets[0].Item = "v999" }, "unknown media item"},
		{"inverted segment", func(tmpl *Template) {
			s, e := int64(2000), int64(1000)
			tmpl.Tasks[0].Targets[0].StartMS = &s
			tmpl.Tasks[0].Targets[0].EndMS = &e
		}, "start after end"},
		{"unknown hint media", func(tmpl *Template) { tmpl.Tasks[0].Hint.Item = "v999" }, "hint references unknown media"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl := validTemplate()
			tt.mutate(tmpl)
			err := tmpl.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestTemplateLookups(t *testing.T) {
	tmpl := validTemplate()

	team, ok := tmpl.TeamByID("red")
	require.True(t, ok)
	assert.Equal(t, "Red", team.Name)
	_, ok = tmpl.TeamByID("green")
	assert.False(t, ok)

	assert.Equal(t, []string{"red", "blue"}, tmpl.TeamIDs())

	item, ok := tmpl.MediaItemByName("v001")
	require.True(t, ok)
	assert.Equal(t, "v001.mp4", item.Path)
	_, ok = tmpl.MediaItemByName("v999")
	assert.False(t, ok)
}
