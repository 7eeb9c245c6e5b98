package telemetry

import (
	"fmt"
	"reflect"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/log"
	"golang.org/x/exp/constraints"
)

// Attr is a key/value pair attached to spans, log records and measurements.
//
// The zero value is an absent attribute, which is omitted wherever it is used.
type Attr struct {
	kv attribute.KeyValue
}

// String returns a string attribute.
func String[T ~string](k string, v T) Attr {
	return Attr{attribute.String(k, string(v))}
}

// Stringer returns a string attribute containing v.String().
func Stringer(k string, v fmt.Stringer) Attr {
	return String(k, v.String())
}

// Type returns a string attribute containing the name of the dynamic type of
// v, without any pointer indirection.
func Type(k string, v any) Attr {
	t := reflect.TypeOf(v)
	if t == nil {
		return String(k, "<nil>")
	}

	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	return String(k, t.String())
}

// Int returns an integer attribute.
func Int[T constraints.Integer](k string, v T) Attr {
	return Attr{attribute.Int64(k, int64(v))}
}

// If returns attr if cond is true, or an absent attribute otherwise.
func If(cond bool, attr Attr) Attr {
	if cond {
		return attr
	}
	return Attr{}
}

func (a Attr) present() bool {
	return a.kv.Key != ""
}

func (a Attr) logKeyValue() log.KeyValue {
	k := string(a.kv.Key)
	v := a.kv.Value

	switch v.Type() {
	case attribute.INT64:
		return log.Int64(k, v.AsInt64())
	case attribute.BOOL:
		return log.Bool(k, v.AsBool())
	case attribute.FLOAT64:
		return log.Float64(k, v.AsFloat64())
	default:
		return log.String(k, v.Emit())
	}
}

func keyValues(attrs []Attr) []attribute.KeyValue {
	kvs := make([]attribute.KeyValue, 0, len(attrs))
	for _, a := range attrs {
		if a.present() {
			kvs = append(kvs, a.kv)
		}
	}
	return kvs
}

func logKeyValues(attrs []Attr) []log.KeyValue {
	kvs := make([]log.KeyValue, 0, len(attrs))
	for _, a := range attrs {
		if a.present() {
			kvs = append(kvs, a.logKeyValue())
		}
	}
	return kvs
}
