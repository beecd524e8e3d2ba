package bson

import (
	"fmt"
	"reflect"
)

// assignDoc stores a decoded top-level or nested document into dest, which
// must already be dereferenced to a non-pointer, addressable value (or one
// of the special document types D/M).
func assignDoc(elems []element, dest reflect.Value) error {
	switch dest.Type() {
	case typeD:
		d := make(D, 0, len(elems))
		for _, e := range elems {
			d = append(d, DocItem{e.name, e.val})
		}
		dest.Set(reflect.ValueOf(d))
		return nil
	case typeM:
		dest.Set(reflect.ValueOf(elemsToM(elems)))
		return nil
	}

	switch dest.Kind() {
	case reflect.Map:
		if dest.IsNil() {
			dest.Set(reflect.MakeMap(dest.Type()))
		}
		for _, e := range elems {
			ev := reflect.New(dest.Type().Elem()).Elem()
			if err := assignValue(e.val, ev); err != nil {
				return err
			}
			dest.SetMapIndex(reflect.ValueOf(e.name).Convert(dest.Type().Key()), ev)
		}
		return nil
	case reflect.Struct:
		si := structInfoForType(dest.Type())
		byName := make(map[string]*fieldInfo, len(si.list))
		for _, fi := range si.list {
			byName[fi.name] = fi
		}
		for _, e := range elems {
			fi, ok := byName[e.name]
			if !ok {
				continue
			}
			if err := assignValue(e.val, dest.FieldByIndex(fi.index)); err != nil {
				return err
			}
		}
		return nil
	case reflect.Interface:
		dest.Set(reflect.ValueOf(elemsToM(elems)))
		return nil
	default:
		return fmt.Errorf("bson: cannot decode document into %s", dest.Type())
	}
}

func elemsToM(elems []element) M {
	m := make(M, len(elems))
	for _, e := range elems {
		m[e.name] = e.val
	}
	return m
}

// assignValue stores a single decoded BSON value into dest.
func assignValue(val interface{}, dest reflect.Value) error {
	for dest.Kind() == reflect.Ptr {
		if dest.IsNil() {
			dest.Set(reflect.New(dest.Type().Elem()))
		}
		dest = dest.Elem()
	}

	if dest.Kind() == reflect.Interface {
		if val == nil {
			dest.Set(reflect.Zero(dest.Type()))
			return nil
		}
		dest.Set(reflect.ValueOf(val))
		return nil
	}

	if val == nil {
		dest.Set(reflect.Zero(dest.Type()))
		return nil
	}

	// Nested documents/arrays decode recursively against the destination's
	// concrete shape rather than being stored as M/[]interface{} verbatim.
	if m, ok := val.(M); ok {
		elems := make([]element, 0, len(m))
		for k, v := range m {
			elems = append(elems, element{name: k, val: v})
		}
		return assignDoc(elems, dest)
	}
	if arr, ok := val.([]interface{}); ok && dest.Kind() != reflect.Interface {
		switch dest.Kind() {
		case reflect.Slice:
			out := reflect.MakeSlice(dest.Type(), len(arr), len(arr))
			for i, v := range arr {
				if err := assignValue(v, out.Index(i)); err != nil {
					return err
				}
			}
			dest.Set(out)
			return nil
		case reflect.Array:
			for i, v := range arr {
				if i >= dest.Len() {
					break
				}
				if err := assignValue(v, dest.Index(i)); err != nil {
					return err
				}
			}
			return nil
		}
	}

	vv := reflect.ValueOf(val)
	if vv.Type().AssignableTo(dest.Type()) {
		dest.Set(vv)
		return nil
	}
	if vv.Type().ConvertibleTo(dest.Type()) {
		switch dest.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
			reflect.Float32, reflect.Float64, reflect.String, reflect.Bool:
			dest.Set(vv.Convert(dest.Type()))
			return nil
		}
	}
	return &DecodeTypeError{Type: dest.Type()}
}
