package datarecording

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// QueryParams narrows and orders the rows of a query.
type QueryParams struct {
	// Where is a condition without the WHERE keyword, e.g. "Step > ?".
	Where string

	// Args fill the placeholders of Where.
	Args []any

	// Limit caps the returned rows. Zero returns every row.
	Limit int

	// Offset skips rows. It only applies together with Limit.
	Offset int

	// OrderBy is a sort clause without the ORDER BY keywords.
	OrderBy string
}

func (p QueryParams) where() string {
	if p.Where == "" {
		return ""
	}

	return " WHERE " + p.Where
}

func (p QueryParams) selectSQL(table string) string {
	var b strings.Builder

	b.WriteString("SELECT * FROM ")
	b.WriteString(table)
	b.WriteString(p.where())

	if p.OrderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(p.OrderBy)
	}

	if p.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", p.Limit)

		if p.Offset > 0 {
			fmt.Fprintf(&b, " OFFSET %d", p.Offset)
		}
	}

	return b.String()
}

func (p QueryParams) countSQL(table string) string {
	return "SELECT COUNT(*) FROM " + table + p.where()
}

// DataReader reads back the tables written by a DataRecorder.
type DataReader interface {
	// MapTable binds a table to the struct type its rows are decoded into.
	// A table must be mapped before it is queried.
	MapTable(tableName string, sampleEntry any)

	// ListTables returns the mapped tables, sorted by name.
	ListTables() []string

	// StoredTables returns the tables present in the database file.
	StoredTables(ctx context.Context) ([]string, error)

	// Query returns the matching rows as pointers to the mapped struct type,
	// together with the number of rows matching the condition regardless of
	// Limit and Offset.
	Query(ctx context.Context, tableName string, params QueryParams) (
		results []any,
		totalCount int,
		err error,
	)

	// Close closes the database.
	Close() error
}

type reader struct {
	db     *sql.DB
	shapes map[string]reflect.Type
}

// NewReader opens a SQLite file for reading.
func NewReader(dbFilename string) DataReader {
	db, err := sql.Open("sqlite3", dbFilename)
	if err != nil {
		panic(err)
	}

	return NewReaderWithDB(db)
}

// NewReaderWithDB reads from an open database.
func NewReaderWithDB(db *sql.DB) DataReader {
	return &reader{
		db:     db,
		shapes: make(map[string]reflect.Type),
	}
}

func (r *reader) MapTable(tableName string, sampleEntry any) {
	r.shapes[tableName] = reflect.TypeOf(sampleEntry)
}

func (r *reader) ListTables() []string {
	names := make([]string, 0, len(r.shapes))
	for name := range r.shapes {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

func (r *reader) StoredTables(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}

		names = append(names, name)
	}

	return names, rows.Err()
}

func (r *reader) Query(
	ctx context.Context,
	tableName string,
	params QueryParams,
) ([]any, int, error) {
	shape, ok := r.shapes[tableName]
	if !ok {
		return nil, 0, fmt.Errorf("table %s is not mapped", tableName)
	}

	var total int

	err := r.db.QueryRowContext(ctx, params.countSQL(tableName),
		params.Args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx, params.selectSQL(tableName),
		params.Args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	results, err := decodeRows(rows, shape)
	if err != nil {
		return nil, 0, err
	}

	return results, total, nil
}

func (r *reader) Close() error {
	return r.db.Close()
}

// decodeRows fills one new struct per row. Columns without a field of the
// same name are read and dropped.
func decodeRows(rows *sql.Rows, shape reflect.Type) ([]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []any

	for rows.Next() {
		entry := reflect.New(shape)
		targets := bindColumns(entry.Elem(), columns)

		if err := rows.Scan(targets...); err != nil {
			return nil, err
		}

		results = append(results, entry.Interface())
	}

	return results, rows.Err()
}

func bindColumns(v reflect.Value, columns []string) []any {
	targets := make([]any, len(columns))

	for i, column := range columns {
		field := v.FieldByName(column)
		if !field.IsValid() || !field.CanSet() {
			var discard any

			targets[i] = &discard

			continue
		}

		targets[i] = field.Addr().Interface()
	}

	return targets
}
