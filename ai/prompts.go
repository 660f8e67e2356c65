package ai

import (
	"embed"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"abstkit/internal"
	"abstkit/internal/errors"
)

// Built-in prompt names
const (
	PromptTermExtraction     = "term_extraction"
	PromptRewritePlain       = "rewrite_plain"
	PromptRewriteImprove     = "rewrite_improve"
	PromptRewriteChecklist   = "rewrite_checklist"
	PromptPatientExpression  = "patient_expression"
	PromptSyntheticAbstract  = "synthetic_abstract"
	PromptRelationshipLabels = "relationship_labels"
)

//go:embed prompts/*.txt
var builtin embed.FS

// Global map to track initialized prompt directories (to avoid duplicate logs)
var (
	initializedDirs   = make(map[string]bool)
	initializedDirsMu sync.Mutex
)

// PromptManager loads prompt templates from a directory, falling back to the
// built-in set for names the directory does not override
type PromptManager struct {
	PromptsDir string
}

// NewPromptManager creates a prompt manager; an empty dir uses only built-ins
func NewPromptManager(promptsDir string) *PromptManager {
	if promptsDir != "" {
		initializedDirsMu.Lock()
		if !initializedDirs[promptsDir] {
			initializedDirs[promptsDir] = true
			internal.DefaultLogger.Debug("[PromptManager] Initialized for directory: %s", promptsDir)
		}
		initializedDirsMu.Unlock()
	}

	return &PromptManager{PromptsDir: promptsDir}
}

// LoadPrompt loads a prompt template by name
func (pm *PromptManager) LoadPrompt(name string) (string, error) {
	if pm.PromptsDir != "" {
		content, err := os.ReadFile(filepath.Join(pm.PromptsDir, name+".txt"))
		if err == nil {
			return strings.TrimSpace(string(content)), nil
		}
		if !os.IsNotExist(err) {
			return "", errors.Wrapf(err, "failed to load prompt %s", name)
		}
	}

	content, err := builtin.ReadFile("prompts/" + name + ".txt")
	if err != nil {
		return "", errors.NotFound("prompt template " + name)
	}
	return strings.TrimSpace(string(content)), nil
}

// RenderPrompt replaces {PLACEHOLDER} with values
func (pm *PromptManager) RenderPrompt(name string, replacements map[string]string) (string, error) {
	template, err := pm.LoadPrompt(name)
	if err != nil {
		return "", err
	}
	return Render(template, replacements), nil
}

// Render replaces {PLACEHOLDER} in an inline template
func Render(template string, replacements map[string]string) string {
	result := template
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, "{"+placeholder+"}", value)
	}
	return result
}

// Names lists the available prompt names, built-in and overridden
func (pm *PromptManager) Names() []string {
	set := make(map[string]struct{})
	entries, _ := fs.ReadDir(builtin, "prompts")
	for _, e := range entries {
		set[strings.TrimSuffix(e.Name(), ".txt")] = struct{}{}
	}
	if pm.PromptsDir != "" {
		if matches, err := filepath.Glob(filepath.Join(pm.PromptsDir, "*.txt")); err == nil {
			for _, m := range matches {
				set[strings.TrimSuffix(filepath.Base(m), ".txt")] = struct{}{}
			}
		}
	}
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
