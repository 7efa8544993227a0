// Package logger provides the terminal node that keeps the signals of a run.
// Each logged tag has its own decimation. The record stays readable after
// an aborted run, and Complete tells whether the run reached its end.
package logger

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/dosflow/dosflow/datarecording"
	"github.com/dosflow/dosflow/internal/logging"
	"github.com/dosflow/dosflow/sim/payload"
)

// Sample is one value of a logged signal as exported.
type Sample struct {
	Step    int
	Channel int
	Value   float64
}

// Meta is one metadata entry as exported.
type Meta struct {
	Key   string
	Value string
}

type entry struct {
	tag        *payload.Tag
	decimation int
	seen       int
	steps      []int
	samples    [][]float64
}

// Option configures a Logger.
type Option func(*Logger)

// WithDecimation keeps one sample out of n for tags logged without their
// own decimation.
func WithDecimation(n int) Option {
	return func(l *Logger) {
		l.decimation = max(n, 1)
	}
}

// WithMetadata attaches a key value pair to the record.
func WithMetadata(key, value string) Option {
	return func(l *Logger) {
		l.metadata[key] = value
	}
}

// WithFilename names the exported file.
func WithFilename(name string) Option {
	return func(l *Logger) {
		l.filename = name
	}
}

// Logger is the logging node.
type Logger struct {
	lock       sync.RWMutex
	name       string
	filename   string
	decimation int
	entries    []*entry
	byTag      map[*payload.Tag]*entry
	metadata   map[string]string
	finished   bool
	complete   bool
}

// New creates a logger.
func New(name string, opts ...Option) *Logger {
	l := &Logger{
		name:       name,
		decimation: 1,
		byTag:      make(map[*payload.Tag]*entry),
		metadata:   make(map[string]string),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Log adds a tag to the record with the default decimation.
func (l *Logger) Log(tag *payload.Tag) error {
	return l.add(tag, l.decimation)
}

// LogN adds a tag whose payloads must hold size values.
func (l *Logger) LogN(tag *payload.Tag, size int) error {
	if tag.Len() != size {
		return fmt.Errorf("%w: %s logged with size %d",
			payload.ErrLengthMismatch, tag, size)
	}

	return l.add(tag, l.decimation)
}

// LogDecimated adds a tag keeping one sample out of n.
func (l *Logger) LogDecimated(tag *payload.Tag, n int) error {
	if n < 1 {
		return fmt.Errorf("decimation of %s must be positive, got %d", tag, n)
	}

	return l.add(tag, n)
}

func (l *Logger) add(tag *payload.Tag, decimation int) error {
	l.lock.Lock()
	defer l.lock.Unlock()

	if _, dup := l.byTag[tag]; dup {
		return fmt.Errorf("%w: %s is already logged", payload.ErrInvalidTag, tag)
	}

	e := &entry{tag: tag, decimation: decimation}
	l.entries = append(l.entries, e)
	l.byTag[tag] = e

	return nil
}

// Name returns the name of the logger.
func (l *Logger) Name() string { return l.name }

// Filename returns the name of the exported file.
func (l *Logger) Filename() string { return l.filename }

// Inputs lists the logged tags in the order they were added.
func (l *Logger) Inputs() []*payload.Tag {
	l.lock.RLock()
	defer l.lock.RUnlock()

	tags := make([]*payload.Tag, len(l.entries))
	for i, e := range l.entries {
		tags[i] = e.tag
	}

	return tags
}

func (l *Logger) Outputs() []*payload.Tag { return nil }

// Read keeps every n-th payload of a tag, starting with the first one.
func (l *Logger) Read(p *payload.Payload) {
	l.lock.Lock()
	defer l.lock.Unlock()

	e, ok := l.byTag[p.Tag()]
	if !ok {
		return
	}

	if e.seen%e.decimation == 0 {
		e.steps = append(e.steps, e.seen)
		e.samples = append(e.samples, p.Values())
	}

	e.seen++
}

func (l *Logger) Update() error { return nil }

func (l *Logger) Write(*payload.Tag) (*payload.Payload, error) { return nil, nil }

// Finish marks the record as final.
func (l *Logger) Finish(complete bool) {
	l.lock.Lock()
	defer l.lock.Unlock()

	l.finished = true
	l.complete = complete

	logging.Component("logger").Info().
		Str("logger", l.name).
		Bool("complete", complete).
		Int("signals", len(l.entries)).
		Msg("record closed")
}

// Finished reports whether the run is over.
func (l *Logger) Finished() bool {
	l.lock.RLock()
	defer l.lock.RUnlock()

	return l.finished
}

// Complete reports whether the run reached its last tick.
func (l *Logger) Complete() bool {
	l.lock.RLock()
	defer l.lock.RUnlock()

	return l.complete
}

// Len returns how many samples of the tag are kept.
func (l *Logger) Len(tag *payload.Tag) int {
	l.lock.RLock()
	defer l.lock.RUnlock()

	if e, ok := l.byTag[tag]; ok {
		return len(e.samples)
	}

	return 0
}

// Record returns the kept samples of the tag and the arrival index of each.
func (l *Logger) Record(tag *payload.Tag) (steps []int, samples [][]float64, ok bool) {
	l.lock.RLock()
	defer l.lock.RUnlock()

	e, ok := l.byTag[tag]
	if !ok {
		return nil, nil, false
	}

	samples = make([][]float64, len(e.samples))
	for i, s := range e.samples {
		samples[i] = slices.Clone(s)
	}

	return slices.Clone(e.steps), samples, true
}

// Metadata returns a copy of the metadata, including the completeness flag
// once the run is over.
func (l *Logger) Metadata() map[string]string {
	l.lock.RLock()
	defer l.lock.RUnlock()

	return l.metadataLocked()
}

func (l *Logger) metadataLocked() map[string]string {
	m := maps.Clone(l.metadata)
	if l.finished {
		m["complete"] = fmt.Sprint(l.complete)
	}

	return m
}

// TableName is the table that holds the samples of the tag.
func TableName(tag *payload.Tag) string {
	return "signal_" + sanitize(tag.Name())
}

// MetadataTable is the table that holds the metadata.
const MetadataTable = "metadata"

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, name)
}

// Export writes the metadata and every logged signal into the recorder.
func (l *Logger) Export(rec datarecording.DataRecorder) {
	l.lock.RLock()
	defer l.lock.RUnlock()

	meta := l.metadataLocked()

	rec.CreateTable(MetadataTable, Meta{})
	for _, k := range slices.Sorted(maps.Keys(meta)) {
		rec.InsertData(MetadataTable, Meta{Key: k, Value: meta[k]})
	}

	for _, e := range l.entries {
		table := TableName(e.tag)
		rec.CreateTable(table, Sample{})

		for i, s := range e.samples {
			for ch, v := range s {
				rec.InsertData(table, Sample{Step: e.steps[i], Channel: ch, Value: v})
			}
		}
	}

	rec.Flush()

	logging.Component("logger").Info().
		Str("logger", l.name).
		Strs("tables", rec.ListTables()).
		Msg("record exported")
}
