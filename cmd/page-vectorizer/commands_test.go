package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/Lllllllleong/bookpagevectors/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteResult(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeResult(&buf, models.RunResult{Status: models.StatusSuccess}))
	assert.JSONEq(t, `{"status":"success"}`, buf.String())

	buf.Reset()
	err := writeResult(&buf, models.RunResult{Status: models.StatusFailed, Message: "File not found"})
	assert.ErrorIs(t, err, errRunFailed)

	var decoded models.RunResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "File not found", decoded.Message)
}

func TestRunRequiresOneArgument(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"run"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	assert.Error(t, root.Execute())
}

func TestRootRegistersCommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "run")
	assert.Contains(t, names, "migrate")
}
