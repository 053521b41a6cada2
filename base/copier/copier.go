// Copyright 2026 cellanno Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package copier deep-copies plain data values via reflection. It is used to
// clone configurations and hyperparameters so that callers never share
// mutable state with trainers.
package copier

import (
	"reflect"

	"github.com/juju/errors"
)

func Copy(dst, src interface{}) error {
	dstPtr := reflect.ValueOf(dst)
	if dstPtr.Kind() != reflect.Ptr {
		return errors.NotValidf("expect dst to be a pointer, but receive %v", dstPtr.Kind())
	}
	return copyValue(dstPtr.Elem(), reflect.ValueOf(src))
}

func copyValue(dst, src reflect.Value) error {
	if dst.Kind() != src.Kind() {
		return errors.NotValidf("different type: %v != %v", dst.Kind(), src.Kind())
	}

	switch dst.Kind() {
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Uint,
		reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Float32, reflect.Float64,
		reflect.String:
		dst.Set(src)
	case reflect.Slice:
		if src.IsNil() {
			dst.Set(reflect.Zero(src.Type()))
			return nil
		}
		newSlice := reflect.MakeSlice(src.Type(), src.Len(), src.Len())
		for i := 0; i < src.Len(); i++ {
			if err := copyValue(newSlice.Index(i), src.Index(i)); err != nil {
				return err
			}
		}
		dst.Set(newSlice)
	case reflect.Map:
		if src.IsNil() {
			dst.Set(reflect.Zero(src.Type()))
			return nil
		}
		newMap := reflect.MakeMap(dst.Type())
		for _, k := range src.MapKeys() {
			newValuePointer := reflect.New(src.MapIndex(k).Type())
			if err := copyValue(newValuePointer.Elem(), src.MapIndex(k)); err != nil {
				return err
			}
			newMap.SetMapIndex(k, newValuePointer.Elem())
		}
		dst.Set(newMap)
	case reflect.Struct:
		if dst.Type() != src.Type() {
			return errors.NotValidf("different struct: %v != %v", dst.Type(), src.Type())
		}
		for i := 0; i < src.NumField(); i++ {
			if !dst.Field(i).CanSet() {
				continue
			}
			if err := copyValue(dst.Field(i), src.Field(i)); err != nil {
				return err
			}
		}
	case reflect.Ptr:
		if src.IsNil() {
			dst.Set(reflect.Zero(src.Type()))
			return nil
		}
		if dst.IsNil() {
			dst.Set(reflect.New(src.Elem().Type()))
		}
		return copyValue(dst.Elem(), src.Elem())
	default:
		return errors.NotValidf("unsupported type: %v", dst.Kind())
	}
	return nil
}
