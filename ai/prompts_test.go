package ai

import (
	"os"
	"path/filepath"
	"testing"

	"abstkit/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptManager_Builtin(t *testing.T) {
	pm := NewPromptManager("")

	prompt, err := pm.LoadPrompt(PromptTermExtraction)
	require.NoError(t, err)
	assert.Equal(t, "次のテキストから用語を抽出してください。出力は抽出した用語のみ、空白区切りで記述してください。", prompt)

	for _, name := range []string{PromptRewritePlain, PromptRewriteImprove, PromptRewriteChecklist, PromptPatientExpression, PromptSyntheticAbstract, PromptRelationshipLabels} {
		_, err := pm.LoadPrompt(name)
		assert.NoError(t, err, name)
	}

	_, err = pm.LoadPrompt("nope")
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
}

func TestPromptManager_RenderPrompt(t *testing.T) {
	pm := NewPromptManager("")

	out, err := pm.RenderPrompt(PromptPatientExpression, map[string]string{"SURFACE": "しこり", "NORMALIZED": "腫瘤"})
	require.NoError(t, err)
	assert.Contains(t, out, "出現形: しこり")
	assert.Contains(t, out, "正規形: 腫瘤")
	assert.NotContains(t, out, "{SURFACE}")
}

func TestPromptManager_DirectoryOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, PromptRewritePlain+".txt"), []byte("custom {X}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "extra.txt"), []byte("extra"), 0o644))

	pm := NewPromptManager(dir)

	out, err := pm.RenderPrompt(PromptRewritePlain, map[string]string{"X": "value"})
	require.NoError(t, err)
	assert.Equal(t, "custom value", out)

	// names not in the directory still resolve to built-ins
	_, err = pm.LoadPrompt(PromptRewriteChecklist)
	assert.NoError(t, err)

	assert.Contains(t, pm.Names(), "extra")
	assert.Contains(t, pm.Names(), PromptTermExtraction)
}
