package binder

import (
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// BindQuery fills fields tagged `query:"name"` from the URL query.
// Supported kinds are string, bool, signed and unsigned integers, floats,
// time.Duration, time.Time (RFC 3339), pointers to those, and slices, which
// accept repeated keys or a comma separated value.
func BindQuery() func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		q := r.URL.Query()
		return bindFields(v, "query", ErrInvalidQuery, func(name string) []string { return q[name] })
	}
}

// Path fills fields tagged `path:"name"` using extractor, usually
// chi.URLParam.
func Path(extractor func(r *http.Request, name string) string) func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		if extractor == nil {
			return fmt.Errorf("%w: extractor is nil", ErrInvalidPath)
		}
		return bindFields(v, "path", ErrInvalidPath, func(name string) []string {
			if s := extractor(r, name); s != "" {
				return []string{s}
			}
			return nil
		})
	}
}

func bindFields(v any, tag string, kindErr error, lookup func(string) []string) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w: target must be a non-nil pointer to struct", kindErr)
	}
	rv = rv.Elem()
	rt := rv.Type()

	for i := range rv.NumField() {
		field, sf := rv.Field(i), rt.Field(i)
		if !field.CanSet() {
			continue
		}
		name, _, _ := strings.Cut(sf.Tag.Get(tag), ",")
		if name == "" || name == "-" {
			continue
		}
		values := lookup(name)
		if len(values) == 0 {
			continue
		}
		if err := setField(field, values); err != nil {
			return fmt.Errorf("%w: %s: %v", kindErr, name, err)
		}
	}
	return nil
}

var (
	durationType = reflect.TypeOf(time.Duration(0))
	timeType     = reflect.TypeOf(time.Time{})
)

func setField(field reflect.Value, values []string) error {
	switch field.Kind() {
	case reflect.Pointer:
		elem := reflect.New(field.Type().Elem())
		if err := setField(elem.Elem(), values); err != nil {
			return err
		}
		field.Set(elem)
		return nil
	case reflect.Slice:
		var parts []string
		for _, v := range values {
			for p := range strings.SplitSeq(v, ",") {
				if p = strings.TrimSpace(p); p != "" {
					parts = append(parts, p)
				}
			}
		}
		out := reflect.MakeSlice(field.Type(), len(parts), len(parts))
		for i, p := range parts {
			if err := setScalar(out.Index(i), p); err != nil {
				return err
			}
		}
		field.Set(out)
		return nil
	}
	return setScalar(field, values[0])
}

func setScalar(field reflect.Value, s string) error {
	switch field.Type() {
	case durationType:
		d, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	case timeType:
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return err
		}
		field.Set(reflect.ValueOf(t))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(s)
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(s, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetFloat(f)
	default:
		return fmt.Errorf("unsupported type %s", field.Type())
	}
	return nil
}
