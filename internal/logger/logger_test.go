package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetVerbose(false)
		SetQuiet(false)
		SetOutput(os.Stderr)
	})
	return &buf
}

func TestDebugOnlyWhenVerbose(t *testing.T) {
	buf := capture(t)

	Debug("hidden %d", 1)
	Info("hidden too")
	assert.Empty(t, buf.String())

	SetVerbose(true)
	assert.True(t, IsVerbose())
	Debug("embedding batch %d/%d", 2, 5)
	Info("indexed %d chunks", 42)
	assert.Equal(t, "[DEBUG] embedding batch 2/5\n[INFO] indexed 42 chunks\n", buf.String())
}

func TestWarnAlwaysPrintsUnlessQuiet(t *testing.T) {
	buf := capture(t)

	Warn("batch %d failed", 3)
	assert.Equal(t, "[WARN] batch 3 failed\n", buf.String())

	buf.Reset()
	SetQuiet(true)
	Warn("suppressed")
	assert.Empty(t, buf.String())
}

func TestSection(t *testing.T) {
	buf := capture(t)

	Section("Ingest")
	assert.Empty(t, buf.String())

	SetVerbose(true)
	Section("Ingest")
	assert.Equal(t, "\n=== Ingest ===\n", buf.String())
}
