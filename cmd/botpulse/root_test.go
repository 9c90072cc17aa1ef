package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botpulse/internal/collector"
	"botpulse/internal/config"
)

func TestProfiles_KeysByBotID(t *testing.T) {
	got := profiles(map[string]config.Profile{
		"1":     {Name: "Alpha", Handle: "@alpha"},
		"42":    {Name: "Answer"},
		"bogus": {Name: "ignored"},
	})
	assert.Len(t, got, 2)
	assert.Equal(t, "Alpha", got[1].Name)
	assert.Equal(t, "Answer", got[42].Name)
}

func TestNewSink_Selection(t *testing.T) {
	t.Cleanup(func() { backfillOut = "" })

	backfillOut = ""
	s, err := newSink("", "topic")
	require.NoError(t, err)
	assert.IsType(t, &collector.WriterSink{}, s)

	s, err = newSink("localhost:9092", "topic")
	require.NoError(t, err)
	assert.IsType(t, &collector.KafkaSink{}, s)

	backfillOut = filepath.Join(t.TempDir(), "events.jsonl")
	s, err = newSink("localhost:9092", "topic")
	require.NoError(t, err)
	assert.IsType(t, &fileSink{}, s)
	require.NoError(t, s.Close())
}
