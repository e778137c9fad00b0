package output

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
)

// TableFormatter renders structs, slices of structs and maps as aligned
// columns. Fields tagged `table:"wide"` appear only when Wide is set;
// fields tagged `table:"-"` never appear.
type TableFormatter struct {
	Wide      bool
	NoHeaders bool
}

// Format writes data as a table. Values that have no tabular shape are
// written as indented JSON instead.
func (f *TableFormatter) Format(w io.Writer, data any) error {
	if data == nil {
		return nil
	}

	switch t := data.(type) {
	case *Table:
		return t.RenderWithOptions(w, f.NoHeaders)
	case Table:
		return t.RenderWithOptions(w, f.NoHeaders)
	}

	table, err := toTable(data, f.Wide)
	if err != nil {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
	return table.RenderWithOptions(w, f.NoHeaders)
}

// column is one displayable struct field.
type column struct {
	index int
	name  string
}

var (
	timeType     = reflect.TypeOf(time.Time{})
	durationType = reflect.TypeOf(time.Duration(0))
	stringerType = reflect.TypeOf((*fmt.Stringer)(nil)).Elem()
)

// columnsOf lists the exported fields of t that are visible in the given
// mode, named after their json tag when there is one.
func columnsOf(t reflect.Type, wide bool) []column {
	var cols []column
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := field.Tag.Get("table")
		if tag == "-" || (strings.Contains(tag, "wide") && !wide) {
			continue
		}
		name := field.Name
		if jsonName, _, _ := strings.Cut(field.Tag.Get("json"), ","); jsonName != "" && jsonName != "-" {
			name = jsonName
		}
		cols = append(cols, column{index: i, name: name})
	}
	return cols
}

func indirect(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func toTable(data any, wide bool) (*Table, error) {
	v := indirect(reflect.ValueOf(data))

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		return sliceToTable(v, wide), nil
	case reflect.Map:
		return mapToTable(v), nil
	case reflect.Struct:
		return structToTable(v, wide), nil
	default:
		return nil, fmt.Errorf("unsupported type: %s", v.Kind())
	}
}

// sliceToTable renders one row per element. The first element decides
// the columns.
func sliceToTable(v reflect.Value, wide bool) *Table {
	table := &Table{}
	if v.Len() == 0 {
		return table
	}

	first := indirect(v.Index(0))
	switch first.Kind() {
	case reflect.Struct:
		cols := columnsOf(first.Type(), wide)
		for _, c := range cols {
			table.Headers = append(table.Headers, strings.ToUpper(toSnakeCase(c.name)))
		}
		for i := 0; i < v.Len(); i++ {
			elem := indirect(v.Index(i))
			row := make([]string, len(cols))
			if elem.IsValid() {
				for j, c := range cols {
					row[j] = formatValue(elem.Field(c.index))
				}
			}
			table.Rows = append(table.Rows, row)
		}
	case reflect.Map:
		table.Headers = []string{"KEY", "VALUE"}
		for i := 0; i < v.Len(); i++ {
			table.Rows = append(table.Rows, mapRows(indirect(v.Index(i)))...)
		}
	default:
		table.Headers = []string{"VALUE"}
		for i := 0; i < v.Len(); i++ {
			table.Rows = append(table.Rows, []string{formatValue(v.Index(i))})
		}
	}
	return table
}

func mapToTable(v reflect.Value) *Table {
	return &Table{Headers: []string{"KEY", "VALUE"}, Rows: mapRows(v)}
}

func mapRows(v reflect.Value) [][]string {
	if !v.IsValid() {
		return nil
	}
	var rows [][]string
	iter := v.MapRange()
	for iter.Next() {
		rows = append(rows, []string{formatValue(iter.Key()), formatValue(iter.Value())})
	}
	return rows
}

// structToTable renders a single struct as FIELD/VALUE pairs.
func structToTable(v reflect.Value, wide bool) *Table {
	table := &Table{Headers: []string{"FIELD", "VALUE"}}
	for _, c := range columnsOf(v.Type(), wide) {
		table.Rows = append(table.Rows, []string{c.name, formatValue(v.Field(c.index))})
	}
	return table
}

// formatValue renders one cell. Empty strings, zero times and empty
// collections render as "-"; nil pointers render as nothing.
func formatValue(v reflect.Value) string {
	v = indirect(v)
	if !v.IsValid() {
		return ""
	}

	switch v.Type() {
	case timeType:
		t := v.Interface().(time.Time)
		if t.IsZero() {
			return "-"
		}
		return t.Local().Format("2006-01-02 15:04:05") + " (" + humanize.Time(t) + ")"
	case durationType:
		return v.Interface().(time.Duration).String()
	}

	// Named domain types such as TanStatus render through their String method.
	if v.Type().PkgPath() != "" && v.Type().Implements(stringerType) && v.CanInterface() {
		if s := v.Interface().(fmt.Stringer).String(); s != "" {
			return s
		}
		return "-"
	}

	switch v.Kind() {
	case reflect.String:
		if v.Len() == 0 {
			return "-"
		}
		return v.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return humanize.Comma(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return humanize.Comma(int64(v.Uint()))
	case reflect.Float32, reflect.Float64:
		return fmt.Sprintf("%.2f", v.Float())
	case reflect.Bool:
		return fmt.Sprint(v.Bool())
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			return "-"
		}
		return fmt.Sprintf("[%d items]", v.Len())
	case reflect.Map:
		if v.Len() == 0 {
			return "-"
		}
		return fmt.Sprintf("{%d keys}", v.Len())
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}

// toSnakeCase inserts an underscore before every inner upper-case letter.
func toSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Table is a pre-built grid of cells.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Render writes the table with its headers.
func (t *Table) Render(w io.Writer) error {
	return t.RenderWithOptions(w, false)
}

// RenderWithOptions writes the table, optionally without the header row.
func (t *Table) RenderWithOptions(w io.Writer, noHeaders bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if !noHeaders && len(t.Headers) > 0 {
		fmt.Fprintln(tw, strings.Join(t.Headers, "\t"))
	}
	for _, row := range t.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// AddRow appends a row.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// SetHeaders replaces the header row.
func (t *Table) SetHeaders(headers ...string) {
	t.Headers = headers
}
