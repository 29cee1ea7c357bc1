// Package sqlparse extracts structural information from SQL text without a
// full parser. It is used to categorize the statements being timed.
package sqlparse

import (
	"strings"

	"github.com/branchbench/branchbench/model"
)

var mainClauseKeywords = map[string]bool{
	"SELECT": true,
	"INSERT": true,
	"UPDATE": true,
	"DELETE": true,
}

var keywordOpTypes = map[string]model.OpType{
	"SELECT": model.OpTypeRead,
	"INSERT": model.OpTypeInsert,
	"UPDATE": model.OpTypeUpdate,
	// DELETE is a write and is measured as an update
	"DELETE": model.OpTypeUpdate,
	// a WITH that could not be unwrapped is most likely a read CTE
	"WITH": model.OpTypeRead,
}

// Classify maps a SQL statement to the operation kind it performs.
// Multi-statement batches are classified by their first statement.
func Classify(sql string) model.OpType {
	keyword := Keyword(sql)
	if keyword == "" {
		return model.OpTypeUnspecified
	}
	if op, ok := keywordOpTypes[keyword]; ok {
		return op
	}
	return model.OpTypeUnspecified
}

// Keyword returns the primary operation keyword of a statement in upper case,
// or an empty string if there is none. Comments are ignored, only the first
// statement is considered and a leading WITH clause is skipped in favour of
// the main statement that follows it.
func Keyword(sql string) string {
	if strings.TrimSpace(sql) == "" {
		return ""
	}

	clean := RemoveComments(sql)

	clean = strings.TrimSpace(FirstStatement(clean))
	if clean == "" {
		return ""
	}

	if strings.HasPrefix(strings.ToUpper(clean), "WITH") {
		if main := mainStatementAfterCTE(clean); main != "" {
			clean = main
		}
	}

	return FirstKeyword(clean)
}

// RemoveComments strips -- and /* */ comments from sql. Line comments are
// replaced by the newline that terminated them, block comments are removed.
// Comment markers inside single or double quoted literals are left alone.
func RemoveComments(sql string) string {
	var b strings.Builder
	b.Grow(len(sql))

	inString := false
	var quote byte
	for i := 0; i < len(sql); {
		c := sql[i]
		switch {
		case inString:
			b.WriteByte(c)
			if c == quote && (i == 0 || sql[i-1] != '\\') {
				inString = false
			}
			i++
		case c == '\'' || c == '"':
			inString = true
			quote = c
			b.WriteByte(c)
			i++
		case strings.HasPrefix(sql[i:], "--"):
			end := strings.IndexByte(sql[i:], '\n')
			if end < 0 {
				return b.String()
			}
			b.WriteByte('\n')
			i += end + 1
		case strings.HasPrefix(sql[i:], "/*"):
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				return b.String()
			}
			i += 2 + end + 2
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

// FirstStatement returns the text before the first semicolon that is not
// inside a quoted literal.
func FirstStatement(sql string) string {
	var quote byte
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case quote != 0:
			if c == quote && sql[i-1] != '\\' {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == ';':
			return sql[:i]
		}
	}
	return sql
}

// mainStatementAfterCTE returns the text starting at the first main clause
// keyword found outside of all parentheses, or "" if there is none.
func mainStatementAfterCTE(sql string) string {
	depth := 0
	var quote byte
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case quote != 0:
			if c == quote && sql[i-1] != '\\' {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			depth--
		case depth == 0 && isIdentByte(c) && (i == 0 || !isIdentByte(sql[i-1])):
			end := i
			for end < len(sql) && isIdentByte(sql[end]) {
				end++
			}
			if mainClauseKeywords[strings.ToUpper(sql[i:end])] {
				return sql[i:]
			}
			i = end - 1
		}
	}
	return ""
}

// FirstKeyword returns the first whitespace delimited token of sql in upper
// case with enclosing parentheses trimmed.
func FirstKeyword(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return ""
	}
	token := strings.ToUpper(fields[0])
	token = strings.TrimLeft(token, "(")
	token = strings.TrimRight(token, ")")
	return token
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
