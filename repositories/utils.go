package repositories

import (
	"strings"

	"github.com/Masterminds/squirrel"
)

func NewQueryBuilder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func columnsNames(tablename string, fields []string) []string {
	result := make([]string, len(fields))
	for i, field := range fields {
		result[i] = tablename + "." + field
	}
	return result
}

func joinColumns(columns []string) string {
	return strings.Join(columns, ", ")
}
