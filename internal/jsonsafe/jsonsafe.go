// Package jsonsafe converts arbitrary Go values into values that
// encoding/json can always marshal: nil, bool, numbers, strings, []any and
// map[string]any.
//
// Translation engines report progress with whatever values they have at hand
// (file handles, timestamps, enum-like constants, byte buffers, nested records,
// cyclic object graphs). Normalize classifies each value into one of a closed
// set of variants and converts it explicitly; it never panics.
package jsonsafe

import (
	"bytes"
	"encoding"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"math"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// variant is the closed set of value shapes Normalize knows how to convert.
// Classification order matters: the first matching variant wins.
type variant uint8

const (
	variantNil variant = iota
	variantScalar
	variantPath
	variantTime
	variantTagged
	variantBytes
	variantMapping
	variantSequence
	variantDump
	variantError
	variantRecord
	variantPointer
	variantFallback
)

// pather is implemented by path-like values.
type pather interface {
	Path() string
}

// identity names a reference value (map, slice, pointer) by type and address.
type identity struct {
	typ  reflect.Type
	addr uintptr
	n    int
}

// Walk limits. A value that exceeds them is rendered in its string form.
const (
	maxDepth = 256
	maxSteps = 1 << 16
)

type walker struct {
	// path holds the references on the current path; seen holds every
	// reference visited during the call.
	path  map[identity]struct{}
	seen  map[identity]struct{}
	depth int
	steps int
}

// Normalize returns a JSON-safe deep copy of v. Each reference value (map,
// slice, pointer) is walked at most once per call: a reference that recurs
// along the current path renders as "<cycle TYPE ADDR>", one that was already
// converted elsewhere renders as "<ref TYPE ADDR>". Values nested deeper than
// maxDepth, or reached after maxSteps conversions, render in string form.
func Normalize(v any) any {
	w := &walker{
		path: make(map[identity]struct{}),
		seen: make(map[identity]struct{}),
	}
	return w.normalize(v)
}

func (w *walker) normalize(v any) (out any) {
	defer func() {
		if r := recover(); r != nil {
			out = stringForm(v)
		}
	}()

	w.steps++
	if w.depth >= maxDepth || w.steps > maxSteps {
		return stringForm(v)
	}
	w.depth++
	defer func() { w.depth-- }()

	rv := reflect.ValueOf(v)
	return w.convert(v, rv, classify(v, rv))
}

// enter marks id as visited. When id was visited before it returns the
// string rendered in its place.
func (w *walker) enter(id identity, rv reflect.Value) (string, bool) {
	if _, ok := w.path[id]; ok {
		return fmt.Sprintf("<cycle %s %#x>", rv.Type(), rv.Pointer()), false
	}
	if _, ok := w.seen[id]; ok {
		return fmt.Sprintf("<ref %s %#x>", rv.Type(), rv.Pointer()), false
	}
	w.path[id] = struct{}{}
	w.seen[id] = struct{}{}
	return "", true
}

func (w *walker) leave(id identity) {
	delete(w.path, id)
}

func (w *walker) convert(v any, rv reflect.Value, kind variant) any {
	switch kind {
	case variantNil:
		return nil
	case variantScalar:
		return scalar(v, rv)
	case variantPath:
		return pathString(v)
	case variantTime:
		return timeString(v)
	case variantTagged:
		text, err := v.(encoding.TextMarshaler).MarshalText()
		if err != nil {
			return stringForm(v)
		}
		return string(text)
	case variantBytes:
		return bytesString(rv)
	case variantMapping:
		return w.mapping(rv)
	case variantSequence:
		return w.sequence(rv)
	case variantDump:
		if dumped, ok := dump(v); ok {
			return w.normalize(dumped)
		}
		return w.convert(v, rv, classifyOpaque(v, rv))
	case variantError:
		return v.(error).Error()
	case variantRecord:
		return w.record(rv)
	case variantPointer:
		return w.pointer(rv)
	default:
		return stringForm(v)
	}
}

func classify(v any, rv reflect.Value) variant {
	if v == nil {
		return variantNil
	}
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return variantNil
	}

	switch v.(type) {
	case bool, string, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, uintptr,
		float32, float64:
		return variantScalar
	case *os.File, fs.FileInfo, fs.DirEntry, pather:
		return variantPath
	case time.Time, *time.Time, time.Duration:
		return variantTime
	case json.RawMessage:
		return variantDump
	case encoding.TextMarshaler:
		return variantTagged
	}

	switch rv.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		// Named basic types are enum-like constants; use the underlying value.
		return variantScalar
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return variantBytes
		}
		return variantSequence
	case reflect.Map:
		return variantMapping
	}

	if _, ok := v.(json.Marshaler); ok {
		return variantDump
	}
	return classifyOpaque(v, rv)
}

// classifyOpaque covers values with no canonical data representation.
func classifyOpaque(v any, rv reflect.Value) variant {
	if _, ok := v.(error); ok {
		return variantError
	}
	switch rv.Kind() {
	case reflect.Struct:
		if hasExportedFields(rv.Type()) {
			return variantRecord
		}
	case reflect.Pointer:
		return variantPointer
	}
	return variantFallback
}

func scalar(v any, rv reflect.Value) any {
	switch x := v.(type) {
	case float64:
		return finite(x)
	case float32:
		return finite(float64(x))
	case json.Number:
		if _, err := strconv.ParseFloat(string(x), 64); err != nil {
			return string(x)
		}
		return x
	case bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, uintptr:
		return x
	}

	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		return finite(rv.Float())
	}
	return stringForm(v)
}

// finite keeps f as a number unless JSON cannot represent it.
func finite(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return f
}

func pathString(v any) string {
	switch x := v.(type) {
	case *os.File:
		return x.Name()
	case fs.FileInfo:
		return x.Name()
	case fs.DirEntry:
		return x.Name()
	case pather:
		return x.Path()
	}
	return stringForm(v)
}

func timeString(v any) string {
	switch x := v.(type) {
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case *time.Time:
		return x.Format(time.RFC3339Nano)
	case time.Duration:
		return x.String()
	}
	return stringForm(v)
}

func bytesString(rv reflect.Value) string {
	b := make([]byte, rv.Len())
	for i := range b {
		b[i] = byte(rv.Index(i).Uint())
	}
	if utf8.Valid(b) {
		return string(b)
	}
	return hex.EncodeToString(b)
}

func (w *walker) mapping(rv reflect.Value) any {
	if rv.IsNil() {
		return map[string]any{}
	}
	id := identity{typ: rv.Type(), addr: rv.Pointer()}
	if repeat, ok := w.enter(id, rv); !ok {
		return repeat
	}
	defer w.leave(id)

	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k := iter.Key()
		var key string
		if k.Kind() == reflect.String {
			key = k.String()
		} else {
			key = keyString(w.normalize(k.Interface()))
		}
		out[key] = w.normalize(iter.Value().Interface())
	}
	return out
}

func (w *walker) sequence(rv reflect.Value) any {
	if rv.Kind() == reflect.Slice {
		if rv.IsNil() {
			return []any{}
		}
		if rv.Len() > 0 {
			id := identity{typ: rv.Type(), addr: rv.Pointer(), n: rv.Len()}
			if repeat, ok := w.enter(id, rv); !ok {
				return repeat
			}
			defer w.leave(id)
		}
	}

	out := make([]any, rv.Len())
	for i := range out {
		out[i] = w.normalize(rv.Index(i).Interface())
	}
	return out
}

func (w *walker) pointer(rv reflect.Value) any {
	id := identity{typ: rv.Type(), addr: rv.Pointer()}
	if repeat, ok := w.enter(id, rv); !ok {
		return repeat
	}
	defer w.leave(id)

	return w.normalize(rv.Elem().Interface())
}

func (w *walker) record(rv reflect.Value) any {
	t := rv.Type()
	out := make(map[string]any, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := fieldName(f)
		if name == "" {
			continue
		}
		out[name] = w.normalize(rv.Field(i).Interface())
	}
	return out
}

// dump returns the plain-data form of a json.Marshaler.
func dump(v any) (any, bool) {
	m, ok := v.(json.Marshaler)
	if !ok {
		return nil, false
	}
	data, err := m.MarshalJSON()
	if err != nil {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, false
	}
	return out, true
}

func hasExportedFields(t reflect.Type) bool {
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).IsExported() {
			return true
		}
	}
	return false
}

// fieldName returns the JSON name of f, or "" when the field is excluded.
func fieldName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return ""
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return f.Name
	}
	return name
}

// keyString renders a normalized map key as a string.
func keyString(k any) string {
	switch x := k.(type) {
	case string:
		return x
	case nil:
		return "null"
	case map[string]any, []any:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(data)
	}
	return fmt.Sprint(k)
}

// stringForm is the last-resort rendering. Composite values are never walked
// here so a cyclic value cannot recurse.
func stringForm(v any) (s string) {
	defer func() {
		if recover() != nil {
			s = fmt.Sprintf("<%T>", v)
		}
	}()

	if sv, ok := v.(fmt.Stringer); ok {
		return sv.String()
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Pointer, reflect.Interface:
		return fmt.Sprintf("<%T>", v)
	}
	return fmt.Sprint(v)
}
