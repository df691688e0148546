package settings

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := Default()
	s.HashDigestType = "SHA256"
	require.NoError(t, Save(dir, s))

	got, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, s.HashDigestType, got.HashDigestType)
	require.Equal(t, s.NumberOfIndexBits, got.NumberOfIndexBits)
	require.Equal(t, s.Bloom1, got.Bloom1)
}

func TestValidateRejectsBadIndexBits(t *testing.T) {
	s := Default()
	s.NumberOfIndexBits = 50
	require.Error(t, s.Validate())
}

func TestAppendHistoryOnMissingFile(t *testing.T) {
	dir := t.TempDir()
	entry := HistoryEntry{
		CommandLine:     "hashdb create /tmp/db",
		DurationSeconds: 0.01,
		Counters:        []CounterField{{Name: "hashes_inserted", Value: 0}},
	}
	require.NoError(t, AppendHistory(dir, entry))

	h := loadHistory(dir)
	require.Len(t, h.Entries, 1)
	require.Equal(t, "hashdb create /tmp/db", h.Entries[0].CommandLine)
}

func TestAppendHistoryAccumulates(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, AppendHistory(dir, HistoryEntry{CommandLine: "first"}))
	require.NoError(t, AppendHistory(dir, HistoryEntry{CommandLine: "second"}))

	h := loadHistory(dir)
	require.Len(t, h.Entries, 2)
	require.Equal(t, "first", h.Entries[0].CommandLine)
	require.Equal(t, "second", h.Entries[1].CommandLine)
}
