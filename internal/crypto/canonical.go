package crypto

import (
	"bytes"
	"encoding/json"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Canonicalize encodes v as canonical JSON: NFC strings, sorted object keys,
// nil members dropped, integers only.
func Canonicalize(v any) ([]byte, error) {
	var w canonicalWriter
	if err := w.value(reflect.ValueOf(v)); err != nil {
		return nil, err
	}
	return w.buf.Bytes(), nil
}

type canonicalWriter struct {
	buf bytes.Buffer
}

var jsonNumberType = reflect.TypeOf(json.Number(""))

func (w *canonicalWriter) value(rv reflect.Value) error {
	for rv.IsValid() && (rv.Kind() == reflect.Interface || rv.Kind() == reflect.Pointer) {
		if rv.IsNil() {
			w.buf.WriteString("null")
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		w.buf.WriteString("null")
		return nil
	}

	if rv.Type() == jsonNumberType {
		return w.number(rv.String())
	}

	switch rv.Kind() {
	case reflect.String:
		return w.str(rv.String())
	case reflect.Bool:
		w.buf.WriteString(strconv.FormatBool(rv.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		w.buf.WriteString(strconv.FormatInt(rv.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		w.buf.WriteString(strconv.FormatUint(rv.Uint(), 10))
	case reflect.Float32, reflect.Float64:
		return ErrFloatNotAllowed
	case reflect.Map:
		return w.object(rv)
	case reflect.Slice:
		if rv.IsNil() {
			w.buf.WriteString("null")
			return nil
		}
		return w.array(rv)
	case reflect.Array:
		return w.array(rv)
	default:
		return ErrUnsupportedType
	}
	return nil
}

func (w *canonicalWriter) str(s string) error {
	encoded, err := json.Marshal(nfc(s))
	if err != nil {
		return err
	}
	w.buf.Write(encoded)
	return nil
}

func (w *canonicalWriter) number(s string) error {
	if strings.ContainsAny(s, ".eE") {
		return ErrFloatNotAllowed
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return ErrFloatNotAllowed
	}
	w.buf.WriteString(strconv.FormatInt(n, 10))
	return nil
}

func (w *canonicalWriter) object(rv reflect.Value) error {
	if rv.Type().Key().Kind() != reflect.String {
		return ErrNonStringMapKey
	}

	type member struct {
		key   string
		value reflect.Value
	}
	members := make([]member, 0, rv.Len())
	seen := make(map[string]struct{}, rv.Len())

	iter := rv.MapRange()
	for iter.Next() {
		key := nfc(iter.Key().String())
		if _, dup := seen[key]; dup {
			return ErrKeyCollision
		}
		seen[key] = struct{}{}
		if isNil(iter.Value()) {
			continue
		}
		members = append(members, member{key: key, value: iter.Value()})
	}
	sort.Slice(members, func(i, j int) bool { return members[i].key < members[j].key })

	w.buf.WriteByte('{')
	for i, m := range members {
		if i > 0 {
			w.buf.WriteByte(',')
		}
		if err := w.str(m.key); err != nil {
			return err
		}
		w.buf.WriteByte(':')
		if err := w.value(m.value); err != nil {
			return err
		}
	}
	w.buf.WriteByte('}')
	return nil
}

func (w *canonicalWriter) array(rv reflect.Value) error {
	w.buf.WriteByte('[')
	for i := 0; i < rv.Len(); i++ {
		if i > 0 {
			w.buf.WriteByte(',')
		}
		if err := w.value(rv.Index(i)); err != nil {
			return err
		}
	}
	w.buf.WriteByte(']')
	return nil
}

func isNil(rv reflect.Value) bool {
	for rv.Kind() == reflect.Interface && !rv.IsNil() {
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice:
		return rv.IsNil()
	default:
		return false
	}
}

func nfc(s string) string {
	return norm.NFC.String(s)
}
