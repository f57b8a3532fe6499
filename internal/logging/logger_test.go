// Crowdaa Sync - Bidirectional WordPress / Crowdaa Content Synchronization
// Copyright 2026 Crowdaa (crowdaa.com)
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/common-repository/crowdaa-sync

package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitRejectsUnknownLevel(t *testing.T) {
	require.Error(t, Init(Config{Level: "loud"}))
	require.NoError(t, Init(DefaultConfig()))
}

func TestGlobalLevelHelpers(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Level = "trace"
	cfg.Output = &buf
	require.NoError(t, Init(cfg))
	t.Cleanup(func() { _ = Init(DefaultConfig()) })

	Trace().Msg("trace line")
	Debug().Msg("debug line")
	Info().Msg("info line")
	Warn().Msg("warn line")
	Error().Msg("error line")

	out := buf.String()
	for _, want := range []string{"trace line", "debug line", "info line", "warn line", "error line"} {
		assert.Contains(t, out, want)
	}
}

func TestTailReturnsNewestFirst(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output = &bytes.Buffer{}
	cfg.RecorderSize = 3
	require.NoError(t, Init(cfg))
	t.Cleanup(func() { _ = Init(DefaultConfig()) })

	Info().Msg("one")
	Info().Msg("two")
	Info().Msg("three")
	Info().Msg("four")

	lines := Tail(10)
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "four")
	assert.Contains(t, lines[1], "three")
	assert.Contains(t, lines[2], "two")
}

func TestComponentTagsEvents(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Output = &buf
	require.NoError(t, Init(cfg))
	t.Cleanup(func() { _ = Init(DefaultConfig()) })

	logger := Component("syncer")
	logger.Info().Msg("tagged")
	assert.Contains(t, buf.String(), `"component":"syncer"`)
}
