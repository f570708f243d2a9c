package router

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// PlaceholderStyle selects the positional placeholder dialect a driver
// understands.
type PlaceholderStyle int

const (
	// StyleDollar rewrites :name to $1, $2, ... (PostgreSQL).
	StyleDollar PlaceholderStyle = iota
	// StyleQuestion rewrites :name to ? (MySQL).
	StyleQuestion
	// StyleAtP rewrites :name to @p1, @p2, ... (SQL Server).
	StyleAtP
)

var namedPlaceholder = regexp.MustCompile(`:([a-zA-Z_]\w*)`)

// BindNamed rewrites :name placeholders in template SQL to the driver's
// positional dialect and returns the argument values in placeholder
// order. A placeholder repeated in the SQL reuses the same position for
// dollar/at styles and repeats the value for question style. A
// placeholder with no supplied argument is an error.
func BindNamed(sqlText string, args map[string]any, style PlaceholderStyle) (string, []any, error) {
	positions := make(map[string]int)
	var ordered []any
	var bindErr error

	rewritten := namedPlaceholder.ReplaceAllStringFunc(sqlText, func(match string) string {
		name := match[1:]
		value, ok := args[name]
		if !ok {
			if bindErr == nil {
				bindErr = fmt.Errorf("no argument supplied for placeholder :%s", name)
			}
			return match
		}

		switch style {
		case StyleQuestion:
			ordered = append(ordered, value)
			return "?"
		default:
			pos, seen := positions[name]
			if !seen {
				ordered = append(ordered, value)
				pos = len(ordered)
				positions[name] = pos
			}
			if style == StyleAtP {
				return "@p" + strconv.Itoa(pos)
			}
			return "$" + strconv.Itoa(pos)
		}
	})

	if bindErr != nil {
		return "", nil, bindErr
	}
	return rewritten, ordered, nil
}

// HasNamedPlaceholders reports whether the SQL still carries :name
// placeholders after binding (indicating a binding gap).
func HasNamedPlaceholders(sqlText string) bool {
	return namedPlaceholder.MatchString(sqlText)
}

// NormalizeColumns upper-cases driver-reported column names so row
// lookups are case-insensitive across source systems.
func NormalizeColumns(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = strings.ToUpper(c)
	}
	return out
}
