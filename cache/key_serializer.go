package cache

import (
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/goliatone/go-blogstore/internal/cacheinfra"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = cacheinfra.KeySeparator

// Operation names used in cache keys.
const (
	OpFindOne  = "find_one"
	OpFindAll  = "find_all"
	OpFindSome = "find_some"
)

// nilMarker renders absent values. Every other rendering starts with a kind
// tag, and strings are quoted, so no argument can produce it.
const nilMarker = "<nil>"

// defaultKeySerializer renders arguments into a canonical text form and
// hashes it with xxhash, so keys stay short regardless of the predicate size.
//
// Scalars carry their kind: true and "true" are different predicates to the
// store and must not share an entry. Pointers and interfaces are followed, so
// a *int64 and an int64 holding the same number address the same entry.
type defaultKeySerializer struct{}

// NewDefaultKeySerializer creates a new instance of the default key serializer.
func NewDefaultKeySerializer() KeySerializer {
	return &defaultKeySerializer{}
}

// SerializeKey builds namespace::op, followed by ::digest when args are given.
// Equal arguments always produce the same key; map order does not matter.
func (s *defaultKeySerializer) SerializeKey(namespace, op string, args ...any) string {
	prefix := namespace + KeySeparator + op
	if len(args) == 0 {
		return prefix
	}
	digest := xxhash.Sum64String(s.canonical(args...))
	return prefix + KeySeparator + strconv.FormatUint(digest, 16)
}

// NamespacePrefix returns the prefix shared by every key of namespace.
func NamespacePrefix(namespace string) string {
	return cacheinfra.NamespacePrefix(namespace)
}

func (s *defaultKeySerializer) canonical(args ...any) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = s.render(reflect.ValueOf(arg))
	}
	return strings.Join(parts, KeySeparator)
}

func (s *defaultKeySerializer) render(rv reflect.Value) string {
	if !rv.IsValid() {
		return nilMarker
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nilMarker
		}
		return s.render(rv.Elem())
	case reflect.Slice:
		if rv.IsNil() {
			return "slice:" + nilMarker
		}
		return "slice" + s.list(rv)
	case reflect.Map:
		if rv.IsNil() {
			return "map:" + nilMarker
		}
		return s.mapping(rv)
	}

	if text, ok := s.text(rv); ok {
		return text
	}

	switch rv.Kind() {
	case reflect.Bool:
		return "bool:" + strconv.FormatBool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Kind().String() + ":" + strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Kind().String() + ":" + strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return rv.Kind().String() + ":" + strconv.FormatFloat(rv.Float(), 'g', -1, 64)
	case reflect.Complex64, reflect.Complex128:
		return rv.Kind().String() + ":" + strconv.FormatComplex(rv.Complex(), 'g', -1, 128)
	case reflect.String:
		return "string:" + strconv.Quote(rv.String())
	case reflect.Array:
		return "array" + s.list(rv)
	case reflect.Struct:
		return s.structure(rv)
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return fmt.Sprintf("%s:%#x", rv.Kind(), rv.Pointer())
	}
	return s.jsonFallback(rv)
}

// text renders values such as time.Time, which have no exported fields,
// through their text form, tagged with the concrete type.
func (s *defaultKeySerializer) text(rv reflect.Value) (string, bool) {
	if !rv.CanInterface() {
		return "", false
	}
	tm, ok := rv.Interface().(encoding.TextMarshaler)
	if !ok && rv.CanAddr() {
		tm, ok = rv.Addr().Interface().(encoding.TextMarshaler)
	}
	if !ok {
		return "", false
	}
	text, err := tm.MarshalText()
	if err != nil {
		return "", false
	}
	return "text(" + rv.Type().String() + "):" + strconv.Quote(string(text)), true
}

func (s *defaultKeySerializer) list(rv reflect.Value) string {
	parts := make([]string, rv.Len())
	for i := range parts {
		parts[i] = s.render(rv.Index(i))
	}
	return fmt.Sprintf("[%d]{%s}", len(parts), strings.Join(parts, ","))
}

func (s *defaultKeySerializer) mapping(rv reflect.Value) string {
	pairs := make([]string, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		pairs = append(pairs, s.render(iter.Key())+"="+s.render(iter.Value()))
	}
	sort.Strings(pairs)
	return fmt.Sprintf("map[%d]{%s}", len(pairs), strings.Join(pairs, ","))
}

// structure renders exported fields by name; unexported ones are ignored.
func (s *defaultKeySerializer) structure(rv reflect.Value) string {
	rt := rv.Type()
	parts := make([]string, 0, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		parts = append(parts, field.Name+":"+s.render(rv.Field(i)))
	}
	return "struct{" + strings.Join(parts, ",") + "}"
}

func (s *defaultKeySerializer) jsonFallback(rv reflect.Value) string {
	if !rv.CanInterface() {
		return "opaque:" + rv.Type().String()
	}
	data, err := json.Marshal(rv.Interface())
	if err != nil {
		return "opaque:" + rv.Type().String()
	}
	return "json:" + string(data)
}
