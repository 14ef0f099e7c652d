package api

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/torvik/yggdb/pkg/codec"
)

const (
	dateLayout     = "2006-01-02"
	timeLayout     = "15:04:05"
	dateTimeLayout = "2006-01-02T15:04:05"
)

// jsonToValue converts a decoded JSON value into the codec value expected
// by the field. The writer performs the actual range checks; this layer
// only maps JSON shapes onto value kinds.
func jsonToValue(f *codec.Field, raw interface{}) (codec.Value, error) {
	if raw == nil {
		return codec.NewNull(), nil
	}
	switch f.Type {
	case codec.TypeBool:
		b, ok := raw.(bool)
		if !ok {
			return codec.Value{}, fieldErr(f, "expected boolean")
		}
		return codec.NewBool(b), nil

	case codec.TypeInt8, codec.TypeInt16, codec.TypeInt32, codec.TypeInt64,
		codec.TypeTimestamp32, codec.TypeTimestamp64:
		n, err := jsonInt(raw)
		if err != nil {
			return codec.Value{}, fieldErr(f, err.Error())
		}
		return codec.NewInt(n), nil

	case codec.TypeFloat, codec.TypeDouble:
		n, ok := raw.(float64)
		if !ok {
			return codec.Value{}, fieldErr(f, "expected number")
		}
		return codec.NewFloat(n), nil

	case codec.TypeString, codec.TypeFixedString:
		s, ok := raw.(string)
		if !ok {
			return codec.Value{}, fieldErr(f, "expected string")
		}
		return codec.NewString(s), nil

	case codec.TypeDate:
		t, err := parseTemporal(raw, dateLayout)
		if err != nil {
			return codec.Value{}, fieldErr(f, err.Error())
		}
		return codec.NewDate(codec.Date{
			Year:  int16(t.Year()),
			Month: int8(t.Month()),
			Day:   int8(t.Day()),
		}), nil

	case codec.TypeTime:
		t, err := parseTemporal(raw, timeLayout)
		if err != nil {
			return codec.Value{}, fieldErr(f, err.Error())
		}
		return codec.NewTime(codec.Time{
			Hour:     int8(t.Hour()),
			Minute:   int8(t.Minute()),
			Sec:      int8(t.Second()),
			Microsec: int32(t.Nanosecond() / 1000),
		}), nil

	case codec.TypeDateTime:
		t, err := parseTemporal(raw, dateTimeLayout)
		if err != nil {
			return codec.Value{}, fieldErr(f, err.Error())
		}
		return codec.NewDateTime(codec.DateTime{
			Year:     int16(t.Year()),
			Month:    int8(t.Month()),
			Day:      int8(t.Day()),
			Hour:     int8(t.Hour()),
			Minute:   int8(t.Minute()),
			Sec:      int8(t.Second()),
			Microsec: int32(t.Nanosecond() / 1000),
		}), nil

	case codec.TypeListString, codec.TypeListInt, codec.TypeListFloat,
		codec.TypeSetString, codec.TypeSetInt, codec.TypeSetFloat:
		arr, ok := raw.([]interface{})
		if !ok {
			return codec.Value{}, fieldErr(f, "expected array")
		}
		elems := make([]codec.Value, 0, len(arr))
		for _, e := range arr {
			v, err := jsonElem(f, e)
			if err != nil {
				return codec.Value{}, err
			}
			elems = append(elems, v)
		}
		switch f.Type {
		case codec.TypeSetString, codec.TypeSetInt, codec.TypeSetFloat:
			return codec.NewSet(elems), nil
		default:
			return codec.NewList(elems), nil
		}

	default:
		return codec.Value{}, fieldErr(f, fmt.Sprintf("type %s has no JSON mapping", f.Type))
	}
}

func jsonElem(f *codec.Field, raw interface{}) (codec.Value, error) {
	switch f.Type {
	case codec.TypeListString, codec.TypeSetString:
		s, ok := raw.(string)
		if !ok {
			return codec.Value{}, fieldErr(f, "expected string element")
		}
		return codec.NewString(s), nil
	case codec.TypeListInt, codec.TypeSetInt:
		n, err := jsonInt(raw)
		if err != nil {
			return codec.Value{}, fieldErr(f, err.Error())
		}
		return codec.NewInt(n), nil
	default:
		n, ok := raw.(float64)
		if !ok {
			return codec.Value{}, fieldErr(f, "expected number element")
		}
		return codec.NewFloat(n), nil
	}
}

func jsonInt(raw interface{}) (int64, error) {
	n, ok := raw.(float64)
	if !ok {
		return 0, fmt.Errorf("expected integer")
	}
	if n != math.Trunc(n) {
		return 0, fmt.Errorf("expected integer, got %v", n)
	}
	return int64(n), nil
}

func parseTemporal(raw interface{}, layout string) (time.Time, error) {
	s, ok := raw.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("expected %q string", layout)
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected %q string: %v", layout, err)
	}
	return t, nil
}

func fieldErr(f *codec.Field, msg string) error {
	return fmt.Errorf("field %q (%s): %s", f.Name, f.Type, msg)
}

// valueToJSON renders a decoded value for a JSON response.
func valueToJSON(f *codec.Field, v codec.Value) interface{} {
	switch v.Kind() {
	case codec.KindNull:
		return nil
	case codec.KindBool:
		return v.Bool()
	case codec.KindInt:
		return v.Int()
	case codec.KindFloat:
		return v.Float()
	case codec.KindString:
		return v.Str()
	case codec.KindDate:
		d := v.Date()
		return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
	case codec.KindTime:
		t := v.Time()
		return fmt.Sprintf("%02d:%02d:%02d.%06d", t.Hour, t.Minute, t.Sec, t.Microsec)
	case codec.KindDateTime:
		dt := v.DateTime()
		return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02d.%06d",
			dt.Year, dt.Month, dt.Day, dt.Hour, dt.Minute, dt.Sec, dt.Microsec)
	case codec.KindList, codec.KindSet:
		elems := v.Elems()
		out := make([]interface{}, len(elems))
		for i, e := range elems {
			out[i] = valueToJSON(f, e)
		}
		return out
	default:
		return json.RawMessage(fmt.Sprintf("%q", v.String()))
	}
}
