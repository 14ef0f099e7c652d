package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/torvik/yggdb/pkg/codec"
	"github.com/torvik/yggdb/pkg/store"
)

func openRowStore() (*store.RowStore, error) {
	return store.Open(store.Options{
		Path:       cfg.DataDir,
		SyncWrites: cfg.Store.SyncWrites,
	})
}

func rowKindFromFlag(kind string) (store.RowKind, error) {
	switch kind {
	case "vertex":
		return store.KindVertex, nil
	case "edge":
		return store.KindEdge, nil
	default:
		return 0, fmt.Errorf("unknown row kind %q (want vertex or edge)", kind)
	}
}

// parseScalar converts one textual value to the codec value for a field
// type. The literal "null" maps to the null value.
func parseScalar(ft codec.FieldType, s string) (codec.Value, error) {
	if s == "null" {
		return codec.NewNull(), nil
	}
	switch ft {
	case codec.TypeBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return codec.Value{}, fmt.Errorf("bad bool %q", s)
		}
		return codec.NewBool(b), nil
	case codec.TypeInt8, codec.TypeInt16, codec.TypeInt32, codec.TypeInt64,
		codec.TypeTimestamp32, codec.TypeTimestamp64:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return codec.Value{}, fmt.Errorf("bad integer %q", s)
		}
		return codec.NewInt(n), nil
	case codec.TypeFloat, codec.TypeDouble:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return codec.Value{}, fmt.Errorf("bad number %q", s)
		}
		return codec.NewFloat(f), nil
	case codec.TypeString, codec.TypeFixedString:
		return codec.NewString(s), nil
	case codec.TypeDate:
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return codec.Value{}, fmt.Errorf("bad date %q (want YYYY-MM-DD)", s)
		}
		return codec.NewDate(codec.Date{
			Year:  int16(t.Year()),
			Month: int8(t.Month()),
			Day:   int8(t.Day()),
		}), nil
	case codec.TypeTime:
		t, err := time.Parse("15:04:05", s)
		if err != nil {
			return codec.Value{}, fmt.Errorf("bad time %q (want HH:MM:SS)", s)
		}
		return codec.NewTime(codec.Time{
			Hour:   int8(t.Hour()),
			Minute: int8(t.Minute()),
			Sec:    int8(t.Second()),
		}), nil
	case codec.TypeDateTime:
		t, err := time.Parse("2006-01-02T15:04:05", s)
		if err != nil {
			return codec.Value{}, fmt.Errorf("bad datetime %q (want YYYY-MM-DDTHH:MM:SS)", s)
		}
		return codec.NewDateTime(codec.DateTime{
			Year:   int16(t.Year()),
			Month:  int8(t.Month()),
			Day:    int8(t.Day()),
			Hour:   int8(t.Hour()),
			Minute: int8(t.Minute()),
			Sec:    int8(t.Second()),
		}), nil
	default:
		return codec.Value{}, fmt.Errorf("type %s cannot be given on the command line", ft)
	}
}

// parseFieldValue converts one field=value argument. List and set fields
// take comma-separated elements.
func parseFieldValue(f *codec.Field, s string) (codec.Value, error) {
	switch f.Type {
	case codec.TypeListString, codec.TypeListInt, codec.TypeListFloat,
		codec.TypeSetString, codec.TypeSetInt, codec.TypeSetFloat:
		if s == "null" {
			return codec.NewNull(), nil
		}
		var elemType codec.FieldType
		switch f.Type {
		case codec.TypeListString, codec.TypeSetString:
			elemType = codec.TypeString
		case codec.TypeListInt, codec.TypeSetInt:
			elemType = codec.TypeInt64
		default:
			elemType = codec.TypeDouble
		}
		var elems []codec.Value
		if s != "" {
			for _, part := range strings.Split(s, ",") {
				v, err := parseScalar(elemType, part)
				if err != nil {
					return codec.Value{}, err
				}
				elems = append(elems, v)
			}
		}
		switch f.Type {
		case codec.TypeSetString, codec.TypeSetInt, codec.TypeSetFloat:
			return codec.NewSet(elems), nil
		default:
			return codec.NewList(elems), nil
		}
	default:
		return parseScalar(f.Type, s)
	}
}

// formatValue renders a decoded value for terminal output.
func formatValue(v codec.Value) string {
	if v.Kind() == codec.KindString {
		return v.Str()
	}
	return v.String()
}
