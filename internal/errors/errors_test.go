package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap_KeepsCodeOfAppError(t *testing.T) {
	base := MissingColumn("input.csv", "研究年度")
	wrapped := Wrap(base, "split failed")

	assert.Equal(t, CodeMissingColumn, GetCode(wrapped))
	assert.Contains(t, wrapped.Error(), "split failed")
	assert.Contains(t, wrapped.Error(), "研究年度")
	assert.True(t, Is(wrapped, CodeMissingColumn))
}

func TestWrap_PlainErrorBecomesInternal(t *testing.T) {
	wrapped := Wrapf(stderrors.New("boom"), "step %d", 3)

	assert.Equal(t, CodeInternalError, GetCode(wrapped))
	assert.Equal(t, "step 3: boom", wrapped.Error())
	assert.Nil(t, Wrap(nil, "ignored"))
}

func TestGetCode_ThroughFmtWrapping(t *testing.T) {
	err := fmt.Errorf("outer: %w", BatchFailed("batch_1", "expired"))

	assert.True(t, IsAppError(err))
	assert.Equal(t, CodeBatchFailed, GetCode(err))
	assert.Equal(t, "UNKNOWN", GetCode(stderrors.New("x")))
}

func TestWithCode(t *testing.T) {
	err := WithCode(CodeInvalidInput, stderrors.New("bad flag"))

	assert.Equal(t, CodeInvalidInput, GetCode(err))
	assert.Contains(t, err.Error(), "bad flag")
}
