package utils

import (
	"reflect"
	"strings"
)

// ColumnList returns the `db` tags of a struct, in field order, to build SELECT column lists that stay
// in sync with the scanning target.
func ColumnList[T any](prefixes ...string) []string {
	var value T
	typ := reflect.TypeOf(value)

	prefix := ""
	if len(prefixes) > 0 {
		prefix = prefixes[0] + "."
	}

	columns := make([]string, 0, typ.NumField())
	for i := range typ.NumField() {
		tag := typ.Field(i).Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		columns = append(columns, prefix+strings.Split(tag, ",")[0])
	}
	return columns
}
