package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_StructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("info", &buf)

	log.Info().Str("key", "value").Msg("test message")

	var output map[string]interface{}
	err := json.Unmarshal(buf.Bytes(), &output)
	require.NoError(t, err, "logger output should be valid JSON")

	assert.Equal(t, "test message", output["message"])
	assert.Equal(t, "value", output["key"])
	assert.Equal(t, "info", output["level"])
	assert.Contains(t, output, "time")
}

func TestLevels(t *testing.T) {
	tests := []struct {
		level       string
		debugLogged bool
		infoLogged  bool
	}{
		{"trace", true, true},
		{"debug", true, true},
		{"info", false, true},
		{"warn", false, false},
		{"error", false, false},
		{"bogus", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var debugBuf, infoBuf bytes.Buffer
			debugLog := NewWithWriter(tt.level, &debugBuf)
			infoLog := NewWithWriter(tt.level, &infoBuf)
			debugLog.Debug().Msg("d")
			infoLog.Info().Msg("i")

			assert.Equal(t, tt.debugLogged, debugBuf.Len() > 0)
			assert.Equal(t, tt.infoLogged, infoBuf.Len() > 0)
		})
	}
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	log := Component(NewWithWriter("info", &buf), "maturity_sweep")

	log.Info().Msg("tick")

	var output map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &output))
	assert.Equal(t, "maturity_sweep", output["component"])
}

func TestCritical_DoesNotExit(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("error", &buf)

	Critical(log).Str("withdrawal_id", "w-1").Msg("ledger entry missing")

	var output map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &output))
	assert.Equal(t, "fatal", output["level"])
	assert.Equal(t, true, output["reconciliation_required"])
	assert.Equal(t, "w-1", output["withdrawal_id"])
}

func TestNew_PrettyMode(t *testing.T) {
	log := New("info", true)
	log.Info().Msg("pretty mode test")
}
