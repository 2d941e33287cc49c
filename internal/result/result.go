// Package result decodes query result envelopes and renders result sets.
package result

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

var (
	rightAlignTypes = regexp.MustCompile(`(?i)^(DECIMAL|DEC|NUMERIC|DECFLOAT|ZONED|INT|INTEGER|SMALLINT|BIGINT|TINYINT|FLOAT|REAL|DOUBLE|DATE|TIME|TIMESTAMP)$`)
	decimalTypes    = regexp.MustCompile(`(?i)^(DECIMAL|DEC|NUMERIC|DECFLOAT|ZONED)$`)
	integerTypes    = regexp.MustCompile(`(?i)^(INT|INTEGER|SMALLINT|BIGINT|TINYINT)$`)
	charTypes       = regexp.MustCompile(`(?i)^(CHAR|VARCHAR|GRAPHIC|VARGRAPHIC|CLOB|BLOB|DBCLOB|XML|UTF8_CHAR|WCHAR|WVARCHAR|WLONGVARCHAR)$`)
	lobTypes        = regexp.MustCompile(`(?i)CLOB|DBCLOB|BLOB|XML`)
	longCharTypes   = regexp.MustCompile(`(?i)CHAR|VARCHAR|GRAPHIC|VARGRAPHIC`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
)

// longCharLength is the length above which character columns wrap.
const longCharLength = 250

// Column describes one result column.
type Column struct {
	Name      string `json:"name" mapstructure:"name"`
	Type      string `json:"type,omitempty" mapstructure:"type"`
	Length    int    `json:"length,omitempty" mapstructure:"length"`
	Decimals  int    `json:"decimals,omitempty" mapstructure:"decimals"`
	AllowNull string `json:"allownull,omitempty" mapstructure:"allownull"`
	CCSID     int    `json:"ccsid,omitempty" mapstructure:"ccsid"`
	Header    string `json:"colhdr,omitempty" mapstructure:"colhdr"`
}

// TypeString returns the column type with its length and precision.
func (c Column) TypeString() string {
	switch {
	case decimalTypes.MatchString(c.Type):
		return fmt.Sprintf("%s(%d,%d)", c.Type, c.Length, c.Decimals)
	case (integerTypes.MatchString(c.Type) || charTypes.MatchString(c.Type)) && c.Length > 0:
		return fmt.Sprintf("%s(%d)", c.Type, c.Length)
	default:
		return c.Type
	}
}

// Heading returns the column heading, falling back to the name.
func (c Column) Heading() string {
	h := c.Header
	if strings.TrimSpace(h) == "" {
		h = c.Name
	}
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(h, " "))
}

// Title describes the column for detail views.
func (c Column) Title() string {
	return fmt.Sprintf("Name: %s\nType: %s\nNullable: %s\nCCSID: %d\nColHdr: %s",
		c.Name, c.TypeString(), c.AllowNull, c.CCSID, c.Heading())
}

// RightAlign reports whether values of the column are right aligned.
func (c Column) RightAlign() bool {
	return rightAlignTypes.MatchString(c.Type)
}

// Wrap reports whether values of the column wrap instead of stretching
// the table.
func (c Column) Wrap() bool {
	return lobTypes.MatchString(c.Type) || (c.Length > longCharLength && longCharTypes.MatchString(c.Type))
}

// Set is a decoded result set. Each row holds one value per column.
type Set struct {
	Columns []Column
	Rows    [][]any
	Table   string
	Library string
}

// Empty reports whether the set has no columns.
func (s *Set) Empty() bool {
	return len(s.Columns) == 0
}

// Names returns the column names.
func (s *Set) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Meta returns the summary line shown above a result.
func (s *Set) Meta() string {
	txt := fmt.Sprintf("Rows: %d    Columns: %d", len(s.Rows), len(s.Columns))
	if s.Table != "" {
		txt += "    Table: " + s.Table
	}
	if s.Library != "" {
		txt += "    Library: " + s.Library
	}
	return txt
}

// Decode decodes a result envelope. Three shapes are accepted:
//
//	{"dataset": {"attr": [...], "rows": [...], "tblname": "", "libname": ""}}
//	{"attr": [...], "data": [...]}
//	[{"col": value, ...}, ...]
//
// Anything else decodes to an empty set.
func Decode(body []byte) (*Set, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}

	switch t := v.(type) {
	case map[string]any:
		if ds, ok := t["dataset"].(map[string]any); ok {
			return fromMeta(ds["attr"], ds["rows"], stringValue(ds["tblname"]), stringValue(ds["libname"]))
		}
		if attr, ok := t["attr"]; ok {
			return fromMeta(attr, t["data"], "", "")
		}
	case []any:
		if len(t) > 0 {
			return fromObjects(body, t)
		}
	}
	return &Set{}, nil
}

func fromMeta(attr, rows any, table, library string) (*Set, error) {
	var cols []Column
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &cols,
		DecodeHook:       jsonNumberHook,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(attr); err != nil {
		return nil, fmt.Errorf("failed to decode column attributes: %w", err)
	}

	set := &Set{Columns: cols, Table: strings.TrimSpace(table), Library: strings.TrimSpace(library)}
	list, _ := rows.([]any)
	names := set.Names()
	for _, r := range list {
		set.Rows = append(set.Rows, rowValues(r, names))
	}
	return set, nil
}

func fromObjects(body []byte, list []any) (*Set, error) {
	names, err := firstObjectKeys(body)
	if err != nil {
		return nil, err
	}
	set := &Set{}
	if len(names) == 0 {
		return set, nil
	}
	for _, n := range names {
		set.Columns = append(set.Columns, Column{Name: n})
	}
	for _, r := range list {
		set.Rows = append(set.Rows, rowValues(r, names))
	}
	return set, nil
}

// rowValues lays out a row object (or positional array) by column name.
func rowValues(r any, names []string) []any {
	out := make([]any, len(names))
	switch row := r.(type) {
	case map[string]any:
		for i, n := range names {
			out[i] = row[n]
		}
	case []any:
		copy(out, row)
	}
	return out
}

// firstObjectKeys returns the keys of the first object in a JSON array in
// document order.
func firstObjectKeys(body []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	if _, err := dec.Token(); err != nil { // [
		return nil, err
	}
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)
		keys = append(keys, key)
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

func stringValue(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// jsonNumberHook lets weakly typed decoding read json.Number values.
func jsonNumberHook(_, to reflect.Type, data any) (any, error) {
	n, ok := data.(json.Number)
	if !ok {
		return data, nil
	}
	switch to.Kind() {
	case reflect.Int, reflect.Int64:
		i, err := n.Int64()
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil {
				return nil, err
			}
			return int64(f), nil
		}
		return i, nil
	default:
		return n.String(), nil
	}
}
