package sandbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const (
	sqlStatementPreview = 50
	sqlSeparator        = "------------------------------"
)

// sqlAdapter runs a batch of statements against a private in-memory
// database. A failing statement is reported inline and the batch goes on.
// Output beyond maxOutput bytes is dropped and ends the batch.
type sqlAdapter struct {
	logger    *zap.Logger
	maxOutput int
}

func newSQLAdapter(logger *zap.Logger, maxOutput int) *sqlAdapter {
	return &sqlAdapter{logger: logger, maxOutput: maxOutput}
}

func (*sqlAdapter) Name() string       { return LanguageSQL }
func (*sqlAdapter) Kind() AdapterKind  { return AdapterRelational }
func (*sqlAdapter) EvalMode() EvalMode { return EvalProbe }
func (*sqlAdapter) Match() MatchRule   { return MatchContains }

func (*sqlAdapter) RenderProbe(expression string) string {
	return ";\n" + strings.TrimSpace(expression)
}

func (s *sqlAdapter) Execute(ctx context.Context, job Job) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, job.Limits.Run)
	defer cancel()

	// Each sql.Open(":memory:") connection is its own database; pinning the
	// pool to one connection keeps every statement on the same one.
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return "", newError(KindInternal, err, "failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		if timeoutErr := s.deadline(ctx, job.Limits.Run); timeoutErr != nil {
			return "", timeoutErr
		}
		return "", newError(KindInternal, err, "failed to open database: %v", err)
	}
	defer conn.Close()

	out := newCappedBuffer(s.maxOutput)
	var (
		executed int
		failed   int
	)
	for _, stmt := range splitStatements(job.Source) {
		if executed > 0 {
			out.WriteString("\n")
		}
		if out.truncated {
			break
		}
		executed++

		block := newCappedBuffer(s.maxOutput)
		stmtErr := runStatement(ctx, conn, stmt, block)
		if timeoutErr := s.deadline(ctx, job.Limits.Run); timeoutErr != nil {
			return "", timeoutErr
		}
		if stmtErr != nil {
			failed++
			out.WriteString(statementError(stmt, stmtErr).Message)
			continue
		}
		out.WriteString(block.buf.String())
		out.truncated = out.truncated || block.truncated
	}

	if failed > 0 || out.truncated {
		s.logger.Debug("sql batch finished",
			zap.String("execution_id", job.ID),
			zap.Int("statements", executed),
			zap.Int("failed", failed),
			zap.Bool("truncated", out.truncated))
	}

	return out.String(), nil
}

func (*sqlAdapter) deadline(ctx context.Context, budget time.Duration) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return newError(KindTimeout, ctx.Err(), "execution timed out after %s", budget)
	}
	return nil
}

func statementError(stmt string, err error) *Error {
	return newError(KindStatementError, err, "Error executing statement '%s': %v", previewStatement(stmt), err)
}

// runStatement executes one statement and renders its block into w. Rows
// that no longer fit in w are not read.
func runStatement(ctx context.Context, conn *sql.Conn, stmt string, w *cappedBuffer) error {
	if !isQuery(stmt) {
		res, err := conn.ExecContext(ctx, stmt)
		if err != nil {
			return err
		}
		var affected int64
		if changeKeywords[leadingKeyword(stmt)] {
			if n, rowsErr := res.RowsAffected(); rowsErr == nil {
				affected = n
			}
		}
		fmt.Fprintf(w, "Executed: %s (Rows affected: %d)", previewStatement(stmt), affected)
		return nil
	}

	rows, err := conn.QueryContext(ctx, stmt)
	if err != nil {
		return err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Result for: %s\n", previewStatement(stmt))
	w.WriteString(strings.Join(columns, " | "))
	w.WriteString("\n" + sqlSeparator + "\n")

	values := make([]any, len(columns))
	scanArgs := make([]any, len(columns))
	for i := range values {
		scanArgs[i] = &values[i]
	}

	count := 0
	cells := make([]string, len(columns))
	for !w.truncated && rows.Next() {
		if err := rows.Scan(scanArgs...); err != nil {
			return err
		}
		for i, v := range values {
			cells[i] = formatSQLValue(v)
		}
		w.WriteString(strings.Join(cells, " | "))
		w.WriteString("\n")
		count++
	}
	if err := rows.Err(); err != nil {
		return err
	}

	fmt.Fprintf(w, "(%d rows)", count)
	return nil
}

func formatSQLValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(val)
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprint(val)
	}
}

var (
	queryKeywords = map[string]bool{
		"SELECT":  true,
		"WITH":    true,
		"PRAGMA":  true,
		"VALUES":  true,
		"EXPLAIN": true,
	}
	// Only these report a change count; SQLite keeps the previous count
	// across DDL statements.
	changeKeywords = map[string]bool{
		"INSERT":  true,
		"UPDATE":  true,
		"DELETE":  true,
		"REPLACE": true,
	}
)

// leadingKeyword returns the first word of stmt in upper case.
func leadingKeyword(stmt string) string {
	word := strings.TrimLeft(stmt, " \t\r\n(")
	if i := strings.IndexFunc(word, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
	}); i >= 0 {
		word = word[:i]
	}
	return strings.ToUpper(word)
}

// isQuery reports whether stmt produces a result set. Data changes with a
// RETURNING clause do.
func isQuery(stmt string) bool {
	keyword := leadingKeyword(stmt)
	if queryKeywords[keyword] {
		return true
	}
	return changeKeywords[keyword] && hasTopLevelWord(stmt, "RETURNING")
}

// hasTopLevelWord reports whether word appears in stmt as a bare keyword,
// outside literals, quoted identifiers, comments and parentheses.
func hasTopLevelWord(stmt, word string) bool {
	depth := 0
	for i := 0; i < len(stmt); i++ {
		c := stmt[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			i = skipQuoted(stmt, i, c)
		case c == '[':
			i = skipQuoted(stmt, i, ']')
		case c == '-' && i+1 < len(stmt) && stmt[i+1] == '-':
			if nl := strings.IndexByte(stmt[i:], '\n'); nl >= 0 {
				i += nl
			} else {
				return false
			}
		case c == '/' && i+1 < len(stmt) && stmt[i+1] == '*':
			end := strings.Index(stmt[i+2:], "*/")
			if end < 0 {
				return false
			}
			i += end + 3
		case c == '(':
			depth++
		case c == ')':
			depth--
		case isWordByte(c):
			j := i
			for j < len(stmt) && isWordByte(stmt[j]) {
				j++
			}
			if depth == 0 && strings.EqualFold(stmt[i:j], word) {
				return true
			}
			i = j - 1
		}
	}
	return false
}

func isWordByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// previewStatement collapses whitespace and shortens a statement for display.
func previewStatement(stmt string) string {
	flat := strings.Join(strings.Fields(stmt), " ")
	runes := []rune(flat)
	if len(runes) > sqlStatementPreview {
		return string(runes[:sqlStatementPreview]) + "..."
	}
	return flat
}

// splitStatements splits source on semicolons that are outside string
// literals, quoted identifiers and comments. Leading comments are dropped,
// as are statements consisting only of whitespace and comments.
func splitStatements(source string) []string {
	var stmts []string
	first := -1

	mark := func(i int) {
		if first < 0 {
			first = i
		}
	}
	flush := func(end int) {
		if first >= 0 {
			stmts = append(stmts, strings.TrimSpace(source[first:end]))
		}
		first = -1
	}

	for i := 0; i < len(source); i++ {
		c := source[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			mark(i)
			i = skipQuoted(source, i, c)
		case c == '[':
			mark(i)
			i = skipQuoted(source, i, ']')
		case c == '-' && i+1 < len(source) && source[i+1] == '-':
			if nl := strings.IndexByte(source[i:], '\n'); nl >= 0 {
				i += nl
			} else {
				i = len(source)
			}
		case c == '/' && i+1 < len(source) && source[i+1] == '*':
			if end := strings.Index(source[i+2:], "*/"); end >= 0 {
				i += end + 3
			} else {
				i = len(source)
			}
		case c == ';':
			flush(i)
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
		default:
			mark(i)
		}
	}
	flush(len(source))

	return stmts
}

// skipQuoted returns the index of the closing quote of the literal opened
// at i, honouring doubled quotes, or the last index when unterminated.
func skipQuoted(source string, i int, closing byte) int {
	for j := i + 1; j < len(source); j++ {
		if source[j] != closing {
			continue
		}
		if closing != ']' && j+1 < len(source) && source[j+1] == closing {
			j++
			continue
		}
		return j
	}
	return len(source) - 1
}
