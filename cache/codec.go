package cache

import (
	"reflect"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec turns snapshots into bytes and back.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// MsgpackCodec encodes snapshots with msgpack. Decoded times are in UTC,
// matching what the store returns, so a snapshot reads back equal to the row
// it was taken from.
type MsgpackCodec struct{}

// NewMsgpackCodec returns the default codec.
func NewMsgpackCodec() Codec {
	return MsgpackCodec{}
}

func (MsgpackCodec) Marshal(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (MsgpackCodec) Unmarshal(data []byte, v any) error {
	if err := msgpack.Unmarshal(data, v); err != nil {
		return err
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && !rv.IsNil() {
		toUTC(rv.Elem())
	}
	return nil
}

var timeType = reflect.TypeOf(time.Time{})

// toUTC rewrites every settable time.Time reachable from v into UTC.
// msgpack decodes times with time.Unix, which yields time.Local.
func toUTC(v reflect.Value) {
	switch v.Kind() {
	case reflect.Pointer:
		if !v.IsNil() {
			toUTC(v.Elem())
		}
	case reflect.Struct:
		if v.Type() == timeType {
			if v.CanSet() {
				v.Set(reflect.ValueOf(v.Interface().(time.Time).UTC()))
			}
			return
		}
		for i := 0; i < v.NumField(); i++ {
			if field := v.Field(i); field.CanSet() {
				toUTC(field)
			}
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			toUTC(v.Index(i))
		}
	}
}
