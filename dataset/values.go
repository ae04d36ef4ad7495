package dataset

import (
	"fmt"
	"reflect"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

// flatten appends the numeric leaves of a (possibly nested) slice returned by
// go-native-netcdf to dst in row-major order.
func flatten(v any, dst []float64) ([]float64, error) {
	switch vv := v.(type) {
	case [][][]float32:
		for _, plane := range vv {
			for _, row := range plane {
				for _, x := range row {
					dst = append(dst, float64(x))
				}
			}
		}
		return dst, nil
	case [][][]int16:
		for _, plane := range vv {
			for _, row := range plane {
				for _, x := range row {
					dst = append(dst, float64(x))
				}
			}
		}
		return dst, nil
	case []float32:
		for _, x := range vv {
			dst = append(dst, float64(x))
		}
		return dst, nil
	case []int16:
		for _, x := range vv {
			dst = append(dst, float64(x))
		}
		return dst, nil
	case []float64:
		return append(dst, vv...), nil
	}
	return appendValue(dst, reflect.ValueOf(v))
}

func appendValue(dst []float64, rv reflect.Value) ([]float64, error) {
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		var err error
		for i := 0; i < rv.Len(); i++ {
			if dst, err = appendValue(dst, rv.Index(i)); err != nil {
				return dst, err
			}
		}
		return dst, nil
	case reflect.Float32, reflect.Float64:
		return append(dst, rv.Float()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return append(dst, float64(rv.Int())), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return append(dst, float64(rv.Uint())), nil
	}
	return dst, fmt.Errorf("unsupported value type %s", rv.Type())
}

func attrString(attrs api.AttributeMap, key string) (string, bool) {
	if attrs == nil {
		return "", false
	}
	v, ok := attrs.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func attrFloat(attrs api.AttributeMap, key string) (float64, bool) {
	if attrs == nil {
		return 0, false
	}
	v, ok := attrs.Get(key)
	if !ok {
		return 0, false
	}
	values, err := flatten(v, nil)
	if err != nil || len(values) == 0 {
		return 0, false
	}
	return values[0], true
}

func attrFloats(attrs api.AttributeMap, key string) []float64 {
	if attrs == nil {
		return nil
	}
	v, ok := attrs.Get(key)
	if !ok {
		return nil
	}
	values, err := flatten(v, nil)
	if err != nil {
		return nil
	}
	return values
}
