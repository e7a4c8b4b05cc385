package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultLimit = 50

// timeFormat is fixed width so timestamps stored as text sort chronologically
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// generateID generates a new UUID
func generateID() string {
	return uuid.New().String()
}

// now returns the creation timestamp used for ordering and cursors
func now() string {
	return time.Now().UTC().Format(timeFormat)
}

func limitOf(p PaginationParams) int {
	if p.Limit <= 0 {
		return defaultLimit
	}
	return p.Limit
}

// page trims the extra row fetched to detect another page
func page[T any](rows []T, limit int, cursor func(T) string) *PaginatedResult[T] {
	result := &PaginatedResult[T]{Data: rows}
	if len(rows) > limit {
		result.Data = rows[:limit]
		result.HasMore = true
		result.NextCursor = cursor(result.Data[limit-1])
	}
	if result.Data == nil {
		result.Data = []T{}
	}
	return result
}

// conditions builds a WHERE clause for a driver's placeholder style
type conditions struct {
	clauses     []string
	args        []any
	placeholder func(n int) string
}

func (c *conditions) add(clause string, arg any) {
	c.args = append(c.args, arg)
	c.clauses = append(c.clauses, strings.Replace(clause, "?", c.placeholder(len(c.args)), 1))
}

func (c *conditions) addRaw(clause string) {
	c.clauses = append(c.clauses, clause)
}

// next returns the placeholder for an argument appended after the conditions
func (c *conditions) next(arg any) string {
	c.args = append(c.args, arg)
	return c.placeholder(len(c.args))
}

func (c *conditions) String() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

func questionMark(int) string { return "?" }

func dollar(n int) string { return fmt.Sprintf("$%d", n) }

// deploymentConditions translates a filter; verified means a full or partial match
func deploymentConditions(filter DeploymentFilter, placeholder func(int) string) *conditions {
	c := &conditions{placeholder: placeholder}
	if filter.Target != "" {
		c.add("target = ?", filter.Target)
	}
	if filter.ChainID != 0 {
		c.add("chain_id = ?", filter.ChainID)
	}
	if filter.Verified != nil {
		if *filter.Verified {
			c.addRaw("verification IN ('full', 'partial')")
		} else {
			c.addRaw("verification NOT IN ('full', 'partial')")
		}
	}
	return c
}
