// Package persistence contains helpers shared by the SQL repository implementations.
package persistence

import (
	"fmt"

	"example.com/fitlog/internal/domain"
)

var sortColumns = map[domain.SortField]string{
	domain.SortByDate:      "activity_date",
	domain.SortByDuration:  "duration_min",
	domain.SortByCalories:  "calories_burned",
	domain.SortByCreatedAt: "created_at",
}

// OrderClause renders s as an ORDER BY expression over the activities table.
// Column names come from a fixed allow-list; ties fall back to the default
// ordering and then the primary key.
func OrderClause(s domain.Sort) string {
	column, ok := sortColumns[s.Field]
	if !ok {
		s = domain.DefaultSort
		column = sortColumns[s.Field]
	}
	dir := "ASC"
	if s.Desc {
		dir = "DESC"
	}
	return fmt.Sprintf("%s %s NULLS LAST, activity_date DESC, created_at DESC, activity_id DESC", column, dir)
}
