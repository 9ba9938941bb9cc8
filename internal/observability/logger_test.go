package observability

import (
	"bytes"
	"testing"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "info", "json")

	logger.Debug("hidden")
	logger.Info("sweep complete", "cities", 6)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "sweep complete", entry["msg"])
	assert.Equal(t, float64(6), entry["cities"])
}

func TestNewLogger_TextAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "WARN", "text")

	logger.Info("hidden")
	logger.Warn("provider slow")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=\"provider slow\"")
}

func TestParseLevel_Default(t *testing.T) {
	assert.Equal(t, "INFO", parseLevel("verbose").String())
}

func TestMetricsForTesting(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.AlertsFired.WithLabelValues("High Temperature").Inc()
	a.SamplesIngested.Add(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.AlertsFired.WithLabelValues("High Temperature")))
	assert.Equal(t, 3.0, testutil.ToFloat64(a.SamplesIngested))
	assert.Zero(t, testutil.ToFloat64(b.SamplesIngested))
}
