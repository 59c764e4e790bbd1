package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"weekshift/internal/settings"
)

func fixturePage() string {
	days := []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
	var sb strings.Builder
	sb.WriteString(`<!DOCTYPE html><html><head><title>profile</title></head><body>`)
	sb.WriteString(`<div class="js-yearly-contributions">`)
	sb.WriteString(`<table class="ContributionCalendar-grid js-calendar-graph-table"><tbody>`)
	for i, day := range days {
		style := ""
		if i == 0 {
			style = ` style="clip-path: circle(0)"`
		}
		fmt.Fprintf(&sb, `<tr><td class="ContributionCalendar-label"><span aria-hidden="true"%s>%s</span></td>`, style, day)
		sb.WriteString(`<td class="ContributionCalendar-day"></td><td class="ContributionCalendar-day"></td></tr>`)
	}
	sb.WriteString(`</tbody></table></div></body></html>`)
	return sb.String()
}

func TestRealignDocument(t *testing.T) {
	var out bytes.Buffer
	changed, err := realignDocument(strings.NewReader(fixturePage()), &out)
	require.NoError(t, err)
	assert.True(t, changed)

	markup := out.String()
	assert.Contains(t, markup, `data-week-start="monday"`)
	assert.NotContains(t, markup, "circle(0)")

	// Labels must read Mon..Sun in document order.
	last := -1
	for _, day := range []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"} {
		idx := strings.Index(markup, ">"+day+"<")
		require.GreaterOrEqual(t, idx, 0, "label %s missing", day)
		assert.Greater(t, idx, last, "label %s out of order", day)
		last = idx
	}
}

func TestRealignDocumentIdempotentThroughPipeline(t *testing.T) {
	var once bytes.Buffer
	changed, err := realignDocument(strings.NewReader(fixturePage()), &once)
	require.NoError(t, err)
	require.True(t, changed)

	var twice bytes.Buffer
	changed, err = realignDocument(strings.NewReader(once.String()), &twice)
	require.NoError(t, err)
	assert.False(t, changed, "a corrected document passes through unchanged")
	assert.Equal(t, once.String(), twice.String())
}

func TestWatchRefusesWhenDisabled(t *testing.T) {
	prevPath, prevLogger := settingsPath, logger
	defer func() { settingsPath, logger = prevPath, prevLogger }()

	settingsPath = filepath.Join(t.TempDir(), "settings.json")
	logger = zap.NewNop()

	store := settings.Open(settingsPath)
	require.NoError(t, store.SetBool(settings.KeyEnableRealignment, false))

	// Returns before any browser work: no session manager, no watcher.
	assert.NoError(t, runWatch(watchCmd, []string{"https://example.com/u"}))
}

func TestWatchRequiresURLOrTarget(t *testing.T) {
	prevLogger := logger
	defer func() { logger = prevLogger }()
	logger = zap.NewNop()

	assert.Error(t, runWatch(watchCmd, nil))
}

func TestSessionsCommandListsStore(t *testing.T) {
	prevPath, prevLogger := settingsPath, logger
	defer func() { settingsPath, logger = prevPath, prevLogger }()

	settingsPath = filepath.Join(t.TempDir(), "settings.json")
	logger = zap.NewNop()

	data := `[{"id":"abc","target_id":"target-1","url":"https://example.com/u","status":"active"}]`
	require.NoError(t, os.WriteFile(filepath.Join(stateDir(), "sessions.json"), []byte(data), 0o644))

	var out bytes.Buffer
	sessionsCmd.SetOut(&out)
	defer sessionsCmd.SetOut(nil)

	require.NoError(t, runSessions(sessionsCmd, nil))
	assert.Contains(t, out.String(), "abc")
	assert.Contains(t, out.String(), "[detached]")
	assert.Contains(t, out.String(), "target=target-1")
}

func TestRealignDocumentWithoutGrid(t *testing.T) {
	var out bytes.Buffer
	changed, err := realignDocument(strings.NewReader(`<html><body><p>no calendar here</p></body></html>`), &out)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Contains(t, out.String(), "no calendar here")
}
