package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/roach88/idemproxy/internal/engine"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := formatter.Success(ObjectResult{Op: "create", Key: "PORT:0x1", ID: "0x1", Status: "SUCCESS"})
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   ObjectResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "PORT:0x1", resp.Data.Key)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := formatter.Error("ITEM_NOT_FOUND", "fingerprint does not resolve", nil)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "ITEM_NOT_FOUND", resp.Error.Code)
	assert.Equal(t, "fingerprint does not resolve", resp.Error.Message)
}

func TestOutputFormatter_YAMLSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "yaml", Writer: buf}

	err := formatter.Success(VerifyResult{Objects: 3})
	require.NoError(t, err)

	var resp struct {
		Status string       `yaml:"status"`
		Data   VerifyResult `yaml:"data"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 3, resp.Data.Objects)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success(ObjectResult{Op: "create", ID: "0x1000000000001"}))
	assert.Equal(t, "0x1000000000001\n", buf.String())
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: true}

	err := formatter.Error("INVALID_PARAMETER", "owner mismatch", map[string]string{"key": "VLAN:0x1"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [INVALID_PARAMETER]: owner mismatch")
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			errBuf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "json", Writer: buf, ErrWriter: errBuf, Verbose: tt.verbose}

			formatter.VerboseLog("Processing %s", "warm.yaml")

			assert.Empty(t, buf.String())
			if tt.wantLog {
				assert.Contains(t, errBuf.String(), "Processing warm.yaml")
			} else {
				assert.Empty(t, errBuf.String())
			}
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad")))
	assert.Equal(t, ExitFailure, GetExitCode(fmt.Errorf("wrapped: %w", NewExitError(ExitFailure, "x"))))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}

func TestLifecycleError(t *testing.T) {
	invalid := &engine.StatusError{Code: engine.StatusInvalidParameter, Op: "set", Message: "invalid parameter"}
	notFound := &engine.StatusError{Code: engine.StatusItemNotFound, Op: "remove", Message: "missing"}

	e := lifecycleError("set", invalid)
	assert.Equal(t, ExitCommandError, e.Code)
	assert.Contains(t, e.Error(), "set failed [INVALID_PARAMETER]")
	assert.ErrorIs(t, e, invalid)

	e = lifecycleError("remove", notFound)
	assert.Equal(t, ExitFailure, e.Code)
	assert.Contains(t, e.Error(), "[ITEM_NOT_FOUND]")
}
