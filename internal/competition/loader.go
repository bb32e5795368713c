package competition

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// FindTemplateDirs scans a root directory and returns all of its immediate
// subdirectories.
func FindTemplateDirs(rootPath string) ([]string, error) {
	if rootPath == "" {
		zap.S().Warn("competition root is not configured, no templates will be loaded")
		return []string{}, nil
	}

	entries, err := os.ReadDir(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read competition root '%s': %w", rootPath, err)
	}

	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, filepath.Join(rootPath, entry.Name()))
		}
	}
	return dirs, nil
}

// LoadAll loads every competition template found under the given directories.
// A directory that fails to load is skipped with a warning; a duplicate
// template ID is skipped too.
func LoadAll(templateDirs []string) (map[string]*Template, error) {
	templates := make(map[string]*Template)

	for _, dir := range templateDirs {
		tmpl, err := loadTemplate(dir)
		if err != nil {
			zap.S().Warnf("failed to load competition template from %s: %v", dir, err)
			continue
		}
		if _, exists := templates[tmpl.ID]; exists {
			zap.S().Warnf("duplicate competition template ID %s found, skipping %s", tmpl.ID, dir)
			continue
		}
		templates[tmpl.ID] = tmpl
	}
	return templates, nil
}

func loadTemplate(dir string) (*Template, error) {
	data, err := os.ReadFile(filepath.Join(dir, "competition.yaml"))
	if err != nil {
		return nil, err
	}
	var tmpl Template
	if err := yaml.Unmarshal(data, &tmpl); err != nil {
		return nil, err
	}
	tmpl.BasePath = dir

	desc, _ := os.ReadFile(filepath.Join(dir, "index.md"))
	tmpl.Description = string(desc)

	// media.yaml is optional; text-only competitions have no media collection
	if mediaData, err := os.ReadFile(filepath.Join(dir, "media.yaml")); err == nil {
		if err := yaml.Unmarshal(mediaData, &tmpl.Media); err != nil {
			return nil, fmt.Errorf("failed to parse media.yaml: %w", err)
		}
	}

	if err := tmpl.Validate(); err != nil {
		return nil, err
	}
	return &tmpl, nil
}
