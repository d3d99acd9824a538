package fitlog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Level controls how much of each fit is reported by LogrusSink.
type Level string

const (
	// LevelNone disables reporting.
	LevelNone Level = "none"
	// LevelSummary reports the outcome and fitted parameters.
	LevelSummary Level = "summary"
	// LevelFull also reports per-parameter uncertainty details.
	LevelFull Level = "full"
)

// validLevels maps accepted level strings.
var validLevels = map[Level]bool{
	LevelNone:    true,
	LevelSummary: true,
	LevelFull:    true,
	"":           true, // empty defaults to summary
}

// IsValidLevel returns true if the given level string is recognized.
func IsValidLevel(level string) bool {
	return validLevels[Level(level)]
}

// Sink receives one Record per completed fit.
type Sink interface {
	Record(r Record) error
}

// Log collects records in memory. Safe for concurrent use.
type Log struct {
	mu      sync.Mutex
	records []Record
}

// NewLog creates an empty Log.
func NewLog() *Log {
	return &Log{records: make([]Record, 0)}
}

// Record appends r.
func (l *Log) Record(r Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, r)
	return nil
}

// Records returns a copy of everything recorded, in arrival order.
func (l *Log) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Record(nil), l.records...)
}

// JSONFileSink appends each record as one JSON line to a file.
type JSONFileSink struct {
	mu   sync.Mutex
	path string
}

// NewJSONFileSink writes to path, creating it on first use.
func NewJSONFileSink(path string) *JSONFileSink {
	return &JSONFileSink{path: path}
}

// Record appends r to the file.
func (s *JSONFileSink) Record(r Record) error {
	line, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding fit record %s: %w", r.ID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening fit log: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing fit log: %w", err)
	}
	return f.Close()
}

// maxLineBytes bounds one JSON line when reading a fit log back.
const maxLineBytes = 16 << 20

// ReadJSONLines loads every record written by JSONFileSink to path, in file
// order. Blank lines are skipped; a malformed line is an error naming its
// line number.
func ReadJSONLines(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening fit log: %w", err)
	}
	defer f.Close()

	var records []Record
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for sc.Scan() {
		line++
		if len(bytes.TrimSpace(sc.Bytes())) == 0 {
			continue
		}
		var r Record
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			return nil, fmt.Errorf("%s:%d: decoding fit record: %w", path, line, err)
		}
		records = append(records, r)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading fit log: %w", err)
	}
	return records, nil
}

// LogrusSink reports each record through a logrus logger.
type LogrusSink struct {
	Logger logrus.FieldLogger
	Level  Level
}

// NewLogrusSink uses the standard logger when logger is nil.
func NewLogrusSink(logger logrus.FieldLogger, level Level) *LogrusSink {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogrusSink{Logger: logger, Level: level}
}

// Record logs r at info level, or warn level when the solver did not succeed.
func (s *LogrusSink) Record(r Record) error {
	if s.Level == LevelNone {
		return nil
	}
	fields := logrus.Fields{
		"fit":         r.ID,
		"solver":      r.Solver,
		"success":     r.Success,
		"wrss":        r.WRSS,
		"evaluations": r.Evaluations,
		"duration":    r.Duration().String(),
	}
	entry := s.Logger.WithFields(fields)
	if r.Success {
		entry.Infof("fit finished: %s", r.Message)
	} else {
		entry.Warnf("fit finished: %s", r.Message)
	}

	names := make([]string, 0, len(r.Params))
	for n := range r.Params {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		pe := s.Logger.WithFields(logrus.Fields{"fit": r.ID, "param": n, "value": r.Params[n]})
		u, ok := r.Uncertainties[n]
		if ok {
			pe = pe.WithField("uncertainty", u.Uncertainty)
		}
		if s.Level == LevelFull && ok {
			pe = pe.WithFields(logrus.Fields{"factor": u.Factor, "rel_change": u.RelChange, "reason": u.Reason})
		}
		pe.Info("fitted parameter")
	}
	return nil
}

// Multi fans a record out to several sinks, returning the first error after
// trying all of them.
type Multi []Sink

// Record implements Sink.
func (m Multi) Record(r Record) error {
	var first error
	for _, s := range m {
		if err := s.Record(r); err != nil && first == nil {
			first = err
		}
	}
	return first
}
