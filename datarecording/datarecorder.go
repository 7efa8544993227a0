// Package datarecording writes run artifacts, such as logged signals and
// run information, into SQLite tables whose columns follow the fields of a
// sample struct.
package datarecording

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/fatih/structs"
	"github.com/rs/zerolog"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"github.com/dosflow/dosflow/internal/logging"
)

// ErrInvalidEntry is raised for a sample entry with a field that cannot be
// stored in a column.
var ErrInvalidEntry = errors.New("entry is invalid")

// DataRecorder is a backend that can record and store data
type DataRecorder interface {
	// CreateTable creates a new table whose columns are the fields of the
	// sample entry.
	CreateTable(tableName string, sampleEntry any)

	// InsertData buffers an entry of a table that already exists.
	InsertData(tableName string, entry any)

	// ListTables returns the names of the tables, in creation order.
	ListTables() []string

	// Flush writes all the buffered entries into the database.
	Flush()

	// Close flushes and closes the database.
	Close() error
}

// Option configures a recorder.
type Option func(*writer)

// WithBatchSize sets how many entries are buffered before a flush.
func WithBatchSize(n int) Option {
	return func(w *writer) {
		w.batchSize = n
	}
}

// New creates a recorder writing into path.sqlite3. An empty path picks a
// unique name. The file must not exist yet.
func New(path string, opts ...Option) DataRecorder {
	w := newWriter(opts)
	w.open(path)

	atexit.Register(func() { w.Flush() })

	return w
}

// NewWithDB creates a recorder on an open database.
func NewWithDB(db *sql.DB, opts ...Option) DataRecorder {
	w := newWriter(opts)
	w.db = db

	atexit.Register(func() { w.Flush() })

	return w
}

func newWriter(opts []Option) *writer {
	w := &writer{
		batchSize: 100000,
		tables:    make(map[string]*table),
		logger:    logging.Component("datarecording"),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// table buffers the entries of one table until the next flush.
type table struct {
	name    string
	shape   reflect.Type
	insert  string
	pending [][]any
}

type writer struct {
	db     *sql.DB
	logger *zerolog.Logger

	lock      sync.Mutex
	tables    map[string]*table
	order     []*table
	batchSize int
	pending   int
}

func (w *writer) open(path string) {
	if path == "" {
		path = "dosflow_" + xid.New().String()
	}

	filename := path + ".sqlite3"

	if _, err := os.Stat(filename); err == nil {
		panic(fmt.Errorf("file %s already exists", filename))
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		panic(err)
	}

	w.logger.Info().Str("file", filename).Msg("database created for recording")

	w.db = db
}

// columnType maps a field kind to its SQLite column type. Kinds without a
// column type cannot be recorded.
func columnType(kind reflect.Kind) (string, bool) {
	switch kind {
	case reflect.Bool:
		return "BOOLEAN", true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "INTEGER", true
	case reflect.Float32, reflect.Float64:
		return "REAL", true
	case reflect.String:
		return "TEXT", true
	default:
		return "", false
	}
}

func columns(entry any) ([]string, error) {
	t := reflect.TypeOf(entry)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %T is not a struct", ErrInvalidEntry, entry)
	}

	cols := make([]string, 0, t.NumField())

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)

		sqlType, ok := columnType(f.Type.Kind())
		if !f.IsExported() || !ok {
			return nil, fmt.Errorf("%w: field %s", ErrInvalidEntry, f.Name)
		}

		cols = append(cols, f.Name+" "+sqlType)
	}

	return cols, nil
}

func (w *writer) CreateTable(tableName string, sampleEntry any) {
	cols, err := columns(sampleEntry)
	if err != nil {
		panic(err)
	}

	w.lock.Lock()
	defer w.lock.Unlock()

	if _, exists := w.tables[tableName]; exists {
		panic(fmt.Sprintf("table %s already exists", tableName))
	}

	w.mustExecute(fmt.Sprintf("CREATE TABLE %s (\n\t%s\n);",
		tableName, strings.Join(cols, ",\n\t")))

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")

	t := &table{
		name:   tableName,
		shape:  reflect.TypeOf(sampleEntry),
		insert: "INSERT INTO " + tableName + " VALUES (" + placeholders + ")",
	}
	w.tables[tableName] = t
	w.order = append(w.order, t)
}

func (w *writer) InsertData(tableName string, entry any) {
	w.lock.Lock()

	t, exists := w.tables[tableName]
	if !exists {
		w.lock.Unlock()
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	if reflect.TypeOf(entry) != t.shape {
		w.lock.Unlock()
		panic(fmt.Sprintf("entry of type %T does not fit table %s",
			entry, tableName))
	}

	t.pending = append(t.pending, structs.Values(entry))
	w.pending++
	full := w.pending >= w.batchSize

	w.lock.Unlock()

	if full {
		w.Flush()
	}
}

func (w *writer) ListTables() []string {
	w.lock.Lock()
	defer w.lock.Unlock()

	names := make([]string, len(w.order))
	for i, t := range w.order {
		names[i] = t.name
	}

	return names
}

// Flush writes the pending entries of all the tables in one transaction.
func (w *writer) Flush() {
	w.lock.Lock()
	defer w.lock.Unlock()

	if w.pending == 0 {
		return
	}

	tx, err := w.db.Begin()
	if err != nil {
		panic(err)
	}

	for _, t := range w.order {
		if err := w.flushTable(tx, t); err != nil {
			_ = tx.Rollback()
			w.logger.Error().Err(err).Str("table", t.name).Msg("flush failed")
			panic(err)
		}
	}

	if err := tx.Commit(); err != nil {
		panic(err)
	}

	w.logger.Debug().Int("entries", w.pending).Msg("flushed")
	w.pending = 0
}

func (w *writer) flushTable(tx *sql.Tx, t *table) error {
	if len(t.pending) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(t.insert)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, values := range t.pending {
		if _, err := stmt.Exec(values...); err != nil {
			return err
		}
	}

	t.pending = nil

	return nil
}

func (w *writer) Close() error {
	w.Flush()
	return w.db.Close()
}

func (w *writer) mustExecute(query string) {
	if _, err := w.db.Exec(query); err != nil {
		w.logger.Error().Err(err).Str("query", query).Msg("failed to execute")
		panic(err)
	}
}
