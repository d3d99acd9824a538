package fitlog

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord(id string, success bool) Record {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return Record{
		ID:            id,
		InitialisedAt: start,
		FinishedAt:    start.Add(1500 * time.Millisecond),
		Solver:        "nelder-mead",
		Guess:         map[string]float64{"A": 1, "cr": 0.5},
		Traces:        []TraceInfo{{Name: "t1", Samples: 10, Weight: 1, Binding: []string{"A", "cr", "rad", "off"}}},
		Params:        map[string]float64{"A": 1.2, "cr": 0.4},
		Uncertainties: map[string]UncertaintyInfo{"A": {Uncertainty: 0.1, Factor: 0.08, Converged: true, Reason: "converged"}},
		Success:       success,
		Message:       "done",
		WRSS:          0.25,
		Evaluations:   42,
	}
}

func TestIsValidLevel(t *testing.T) {
	for _, l := range []string{"", "none", "summary", "full"} {
		assert.True(t, IsValidLevel(l), l)
	}
	assert.False(t, IsValidLevel("verbose"))
}

func TestLog_Record_AppendsInOrder(t *testing.T) {
	// GIVEN an empty log
	l := NewLog()

	// WHEN two records are recorded
	require.NoError(t, l.Record(sampleRecord("first", true)))
	require.NoError(t, l.Record(sampleRecord("second", false)))

	// THEN they come back in arrival order, and the copy is independent
	got := l.Records()
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].ID)
	assert.Equal(t, "second", got[1].ID)
	got[0].ID = "mutated"
	assert.Equal(t, "first", l.Records()[0].ID)
}

func TestRecord_Duration(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, sampleRecord("x", true).Duration())
}

func TestJSONFileSink_AppendsOneLinePerRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fits.jsonl")
	sink := NewJSONFileSink(path)

	require.NoError(t, sink.Record(sampleRecord("a", true)))
	require.NoError(t, sink.Record(sampleRecord("b", false)))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var ids []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r Record
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		ids = append(ids, r.ID)
	}
	require.NoError(t, sc.Err())
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestReadJSONLines_ReadsBackSinkOutput(t *testing.T) {
	// GIVEN two records appended by the sink and a trailing blank line
	path := filepath.Join(t.TempDir(), "fits.jsonl")
	sink := NewJSONFileSink(path)
	require.NoError(t, sink.Record(sampleRecord("a", true)))
	require.NoError(t, sink.Record(sampleRecord("b", false)))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	// WHEN read back
	records, err := ReadJSONLines(path)

	// THEN both come back in order with their data
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].ID)
	assert.Equal(t, "b", records[1].ID)
	assert.False(t, records[1].Success)
	assert.Equal(t, 0.25, records[0].WRSS)
	assert.Equal(t, 1500*time.Millisecond, records[0].Duration())
}

func TestReadJSONLines_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := ReadJSONLines(filepath.Join(dir, "missing.jsonl"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.jsonl")
	require.NoError(t, os.WriteFile(bad, []byte(`{"id":"a"}`+"\n{broken\n"), 0o644))
	_, err = ReadJSONLines(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ":2:")
}

func TestJSONFileSink_UnwritablePath_Errors(t *testing.T) {
	sink := NewJSONFileSink(filepath.Join(t.TempDir(), "missing", "fits.jsonl"))
	assert.Error(t, sink.Record(sampleRecord("a", true)))
}

func TestLogrusSink_LevelsAndFields(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	// GIVEN a successful fit at summary level
	require.NoError(t, NewLogrusSink(logger, LevelSummary).Record(sampleRecord("ok", true)))

	// THEN one outcome line plus one line per parameter
	entries := hook.AllEntries()
	require.Len(t, entries, 3)
	assert.Equal(t, logrus.InfoLevel, entries[0].Level)
	assert.Equal(t, "ok", entries[0].Data["fit"])
	assert.Equal(t, "A", entries[1].Data["param"])
	assert.Equal(t, 0.1, entries[1].Data["uncertainty"])
	assert.NotContains(t, entries[1].Data, "reason")
	hook.Reset()

	// GIVEN a failed fit at full level
	require.NoError(t, NewLogrusSink(logger, LevelFull).Record(sampleRecord("bad", false)))
	entries = hook.AllEntries()
	require.Len(t, entries, 3)
	assert.Equal(t, logrus.WarnLevel, entries[0].Level)
	assert.Equal(t, "converged", entries[1].Data["reason"])
	hook.Reset()

	// GIVEN level none
	require.NoError(t, NewLogrusSink(logger, LevelNone).Record(sampleRecord("quiet", true)))
	assert.Empty(t, hook.AllEntries())
}

type failingSink struct{ calls int }

func (f *failingSink) Record(Record) error {
	f.calls++
	return errors.New("sink down")
}

func TestMulti_TriesEverySink(t *testing.T) {
	bad := &failingSink{}
	l := NewLog()

	err := Multi{bad, l}.Record(sampleRecord("a", true))

	assert.EqualError(t, err, "sink down")
	assert.Equal(t, 1, bad.calls)
	assert.Len(t, l.Records(), 1)
}
