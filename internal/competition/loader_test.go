package competition

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const competitionYAML = `id: vbs
name: VBS
teams:
  - id: red
    name: Red
    members: [alice]
task_groups:
  - name: kis
    type: kis
tasks:
  - name: kis-1
    group: kis
    duration_seconds: 300
    scoring:
      name: kis
    validation:
      name: temporal-overlap
    targets:
      - item: v001
        start_ms: 1000
        end_ms: 2000
`

const mediaYAML = `- name: v001
  path: v001.mp4
  duration_ms: 60000
  fps: 25
`

func writeTemplateDir(t *testing.T, root, name string, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for filename, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(content), 0o644))
	}
	return dir
}

func TestFindTemplateDirs(t *testing.T) {
	root := t.TempDir()
	a := writeTemplateDir(t, root, "a", nil)
	b := writeTemplateDir(t, root, "b", nil)
	require.NoError(t, os.WriteFile(filepath.Join(root, "stray.txt"), []byte("x"), 0o644))

	dirs, err := FindTemplateDirs(root)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a, b}, dirs)
}

func TestFindTemplateDirsEmptyRoot(t *testing.T) {
	dirs, err := FindTemplateDirs("")
	require.NoError(t, err)
	assert.Empty(t, dirs)
}

func TestLoadAll(t *testing.T) {
	root := t.TempDir()
	dir := writeTemplateDir(t, root, "vbs", map[string]string{
		"competition.yaml": competitionYAML,
		"media.yaml":       mediaYAML,
		"index.md":         "# VBS\n",
	})

	templates, err := LoadAll([]string{dir})
	require.NoError(t, err)
	require.Len(t, templates, 1)

	tmpl := templates["vbs"]
	require.NotNil(t, tmpl)
	assert.Equal(t, "VBS", tmpl.Name)
	assert.Equal(t, dir, tmpl.BasePath)
	assert.Equal(t, "# VBS\n", tmpl.Description)
	require.Len(t, tmpl.Media, 1)
	assert.Equal(t, int64(60000), tmpl.Media[0].DurationMS)
	require.Len(t, tmpl.Tasks, 1)
	require.NotNil(t, tmpl.Tasks[0].Targets[0].StartMS)
	assert.Equal(t, int64(1000), *tmpl.Tasks[0].Targets[0].StartMS)
}

func TestLoadAllSkipsBrokenDirs(t *testing.T) {
	root := t.TempDir()
	good := writeTemplateDir(t, root, "good", map[string]string{
		"competition.yaml": competitionYAML,
		"media.yaml":       mediaYAML,
	})
	empty := writeTemplateDir(t, root, "empty", nil)
	invalid := writeTemplateDir(t, root, "invalid", map[string]string{
		// references a media item that is never declared
		"competition.yaml": competitionYAML,
	})

	templates, err := LoadAll([]string{good, empty, invalid})
	require.NoError(t, err)
	assert.Len(t, templates, 1)
	assert.Contains(t, templates, "vbs")
}

func TestLoadAllSkipsDuplicateIDs(t *testing.T) {
	root := t.TempDir()
	first := writeTemplateDir(t, root, "first", map[string]string{
		"competition.yaml": competitionYAML,
		"media.yaml":       mediaYAML,
	})
	second := writeTemplateDir(t, root, "second", map[string]string{
		"competition.yaml": competitionYAML,
		"media.yaml":       mediaYAML,
	})

	templates, err := LoadAll([]string{first, second})
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, first, templates["vbs"].BasePath)
}
