package output

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// PlainFormatter prints replies like redis-cli and everything else as a
// table.
type PlainFormatter struct{}

// Format writes data to w.
func (f *PlainFormatter) Format(w io.Writer, data any) error {
	switch x := data.(type) {
	case nil:
		return nil
	case Reply:
		return writeLines(w, renderReply(x))
	case *Reply:
		return writeLines(w, renderReply(*x))
	case *Table:
		return x.Render(w)
	case string:
		_, err := fmt.Fprintln(w, x)
		return err
	}

	table, err := toTable(data)
	if err != nil {
		return err
	}
	return table.Render(w)
}

func writeLines(w io.Writer, lines []string) error {
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}

func renderReply(r Reply) []string {
	if r.Err != nil {
		if errors.Is(r.Err, redis.Nil) {
			return []string{"(nil)"}
		}
		return []string{"(error) " + r.Err.Error()}
	}
	return renderValue(r.Value)
}

func renderValue(v any) []string {
	switch x := v.(type) {
	case nil:
		return []string{"(nil)"}
	case error:
		return []string{"(error) " + x.Error()}
	case string:
		return []string{strconv.Quote(x)}
	case []byte:
		return []string{strconv.Quote(string(x))}
	case int64:
		return []string{fmt.Sprintf("(integer) %d", x)}
	case int:
		return []string{fmt.Sprintf("(integer) %d", x)}
	case bool:
		if x {
			return []string{"(integer) 1"}
		}
		return []string{"(integer) 0"}
	case float64:
		return []string{"(double) " + strconv.FormatFloat(x, 'g', -1, 64)}
	case []any:
		return renderArray(x)
	case []string:
		items := make([]any, len(x))
		for i, s := range x {
			items[i] = s
		}
		return renderArray(items)
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, e := range x {
			m[fmt.Sprint(k)] = e
		}
		return renderArray(sortedPairs(m))
	case map[string]any:
		return renderArray(sortedPairs(x))
	default:
		return []string{fmt.Sprint(x)}
	}
}

// renderArray numbers elements from 1 and indents nested arrays under
// their index, matching redis-cli.
func renderArray(items []any) []string {
	if len(items) == 0 {
		return []string{"(empty array)"}
	}
	width := len(strconv.Itoa(len(items)))
	var out []string
	for i, item := range items {
		prefix := fmt.Sprintf("%*d) ", width, i+1)
		pad := strings.Repeat(" ", len(prefix))
		for j, line := range renderValue(item) {
			if j == 0 {
				out = append(out, prefix+line)
			} else {
				out = append(out, pad+line)
			}
		}
	}
	return out
}

// toTable converts a struct, map or slice of structs to a table. Nested
// structs are flattened into dotted field names.
func toTable(data any) (*Table, error) {
	v := reflect.ValueOf(data)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return &Table{}, nil
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Struct:
		t := &Table{Headers: []string{"FIELD", "VALUE"}}
		flattenStruct(t, "", v)
		return t, nil
	case reflect.Map:
		m := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			m[fmt.Sprint(iter.Key().Interface())] = iter.Value().Interface()
		}
		t := &Table{Headers: []string{"KEY", "VALUE"}}
		pairs := sortedPairs(m)
		for i := 0; i < len(pairs); i += 2 {
			t.AddRow(pairs[i].(string), fmt.Sprint(pairs[i+1]))
		}
		return t, nil
	case reflect.Slice, reflect.Array:
		t := &Table{Headers: []string{"#", "VALUE"}}
		for i := 0; i < v.Len(); i++ {
			t.AddRow(strconv.Itoa(i+1), fmt.Sprint(v.Index(i).Interface()))
		}
		return t, nil
	default:
		return nil, fmt.Errorf("cannot render %s as a table", v.Kind())
	}
}

func flattenStruct(t *Table, prefix string, v reflect.Value) {
	typ := v.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		name := fieldName(field)
		if name == "" {
			continue
		}
		if prefix != "" {
			name = prefix + "." + name
		}

		fv := v.Field(i)
		if fv.Kind() == reflect.Pointer {
			if fv.IsNil() {
				continue
			}
			fv = fv.Elem()
		}
		if fv.Kind() == reflect.Struct {
			flattenStruct(t, name, fv)
			continue
		}
		t.AddRow(name, fmt.Sprint(fv.Interface()))
	}
}

func fieldName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return ""
	}
	if name, _, _ := strings.Cut(tag, ","); name != "" {
		return name
	}
	return f.Name
}
