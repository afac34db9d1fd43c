package config

import "reflect"

// DeepMerge overlays src onto dst. Both must be pointers to the same type.
// Zero scalars and empty slices in src leave dst untouched, so a config layer
// only overrides the keys it actually sets. Maps merge per key.
func DeepMerge(dst, src any) {
	dstVal := reflect.ValueOf(dst)
	srcVal := reflect.ValueOf(src)

	if dstVal.Kind() != reflect.Ptr || srcVal.Kind() != reflect.Ptr {
		return
	}
	if dstVal.IsNil() || srcVal.IsNil() || dstVal.Type() != srcVal.Type() {
		return
	}

	mergeValues(dstVal.Elem(), srcVal.Elem())
}

func mergeValues(dst, src reflect.Value) {
	if !dst.CanSet() || !src.IsValid() {
		return
	}

	switch dst.Kind() {
	case reflect.Struct:
		for i := 0; i < dst.NumField(); i++ {
			mergeValues(dst.Field(i), src.Field(i))
		}
	case reflect.Map:
		mergeMap(dst, src)
	case reflect.Slice:
		if src.Len() > 0 {
			dst.Set(src)
		}
	case reflect.Ptr:
		mergePointer(dst, src)
	default:
		if dst.IsZero() || !src.IsZero() {
			dst.Set(src)
		}
	}
}

func mergeMap(dst, src reflect.Value) {
	if src.IsNil() {
		return
	}
	if dst.IsNil() {
		dst.Set(reflect.MakeMap(dst.Type()))
	}

	for _, key := range src.MapKeys() {
		srcVal := src.MapIndex(key)
		dstVal := dst.MapIndex(key)

		if !dstVal.IsValid() {
			dst.SetMapIndex(key, srcVal)
			continue
		}

		switch srcVal.Kind() {
		case reflect.Map, reflect.Struct:
			merged := reflect.New(dstVal.Type()).Elem()
			merged.Set(dstVal)
			mergeValues(merged, srcVal)
			dst.SetMapIndex(key, merged)
		default:
			dst.SetMapIndex(key, srcVal)
		}
	}
}

func mergePointer(dst, src reflect.Value) {
	if src.IsNil() {
		return
	}
	if dst.IsNil() {
		dst.Set(src)
		return
	}
	mergeValues(dst.Elem(), src.Elem())
}
