package sandbox

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const sqlTestOutputLimit = 64 * 1024

func runSQL(t *testing.T, source string, budget time.Duration) (string, error) {
	t.Helper()
	adapter := newSQLAdapter(zaptest.NewLogger(t), sqlTestOutputLimit)
	return adapter.Execute(context.Background(), Job{ID: "test", Source: source, Limits: Limits{Run: budget}})
}

func TestSQLAdapter(t *testing.T) {
	t.Run("CreateInsertSelect", func(t *testing.T) {
		out, err := runSQL(t, `
CREATE TABLE users (id INTEGER, name TEXT);
INSERT INTO users (id, name) VALUES (1, 'Ann'), (2, 'Bob');
SELECT id, name FROM users ORDER BY id;
`, 5*time.Second)
		require.NoError(t, err)
		assert.Equal(t, strings.Join([]string{
			"Executed: CREATE TABLE users (id INTEGER, name TEXT) (Rows affected: 0)",
			"Executed: INSERT INTO users (id, name) VALUES (1, 'Ann'), (2... (Rows affected: 2)",
			"Result for: SELECT id, name FROM users ORDER BY id",
			"id | name",
			"------------------------------",
			"1 | Ann",
			"2 | Bob",
			"(2 rows)",
		}, "\n"), out)
	})

	t.Run("DDLAfterInsertReportsZero", func(t *testing.T) {
		out, err := runSQL(t, "CREATE TABLE t(x INT); INSERT INTO t VALUES (1); CREATE TABLE u(y INT);", 5*time.Second)
		require.NoError(t, err)
		assert.Contains(t, out, "Executed: INSERT INTO t VALUES (1) (Rows affected: 1)")
		assert.Contains(t, out, "Executed: CREATE TABLE u(y INT) (Rows affected: 0)")
	})

	t.Run("PartialFailureContinues", func(t *testing.T) {
		out, err := runSQL(t, "SELECT * FROM missing_table; SELECT 1;", 5*time.Second)
		require.NoError(t, err)

		lines := strings.Split(out, "\n")
		require.NotEmpty(t, lines)
		assert.True(t, strings.HasPrefix(lines[0], "Error executing statement 'SELECT * FROM missing_table': "), lines[0])
		assert.Contains(t, lines[0], "no such table: missing_table")
		assert.Contains(t, out, "Result for: SELECT 1\n1\n------------------------------\n1\n(1 rows)")
	})

	t.Run("NullAndFloats", func(t *testing.T) {
		out, err := runSQL(t, "SELECT NULL AS n, 1.5 AS f, 'x' AS s", 5*time.Second)
		require.NoError(t, err)
		assert.Equal(t, "Result for: SELECT NULL AS n, 1.5 AS f, 'x' AS s\nn | f | s\n"+
			sqlSeparator+"\nNULL | 1.5 | x\n(1 rows)", out)
	})

	t.Run("EmptyResultSet", func(t *testing.T) {
		out, err := runSQL(t, "CREATE TABLE t(x INT); SELECT x FROM t;", 5*time.Second)
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(out, "x\n"+sqlSeparator+"\n(0 rows)"), out)
	})

	t.Run("EachRequestIsIsolated", func(t *testing.T) {
		_, err := runSQL(t, "CREATE TABLE shared(x INT); INSERT INTO shared VALUES (1);", 5*time.Second)
		require.NoError(t, err)

		out, err := runSQL(t, "SELECT * FROM shared;", 5*time.Second)
		require.NoError(t, err)
		assert.Contains(t, out, "no such table: shared")
	})

	t.Run("ProbeAppendsQuery", func(t *testing.T) {
		adapter := newSQLAdapter(zaptest.NewLogger(t), sqlTestOutputLimit)
		source := "CREATE TABLE t(x INT); INSERT INTO t VALUES (7)" + adapter.RenderProbe("SELECT x FROM t")
		out, err := runSQL(t, source, 5*time.Second)
		require.NoError(t, err)
		assert.Contains(t, out, "7\n(1 rows)")
	})

	t.Run("Timeout", func(t *testing.T) {
		_, err := runSQL(t, "WITH RECURSIVE c(x) AS (SELECT 1 UNION ALL SELECT x + 1 FROM c) SELECT count(*) FROM c;",
			50*time.Millisecond)
		require.Error(t, err)
		assert.True(t, IsTimeout(err))
		assert.Equal(t, "execution timed out after 50ms", err.Error())
	})

	t.Run("ReturningClauseShowsRows", func(t *testing.T) {
		out, err := runSQL(t, `
CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT);
INSERT INTO items (name) VALUES ('pen'), ('ink') RETURNING id, name;
UPDATE items SET name = 'returning' WHERE id = 2;
DELETE FROM items WHERE id = 1 RETURNING name;
`, 5*time.Second)
		require.NoError(t, err)
		assert.Contains(t, out, "Result for: INSERT INTO items (name) VALUES ('pen'), ('ink') R...\n"+
			"id | name\n"+sqlSeparator+"\n1 | pen\n2 | ink\n(2 rows)")
		assert.Contains(t, out, "Executed: UPDATE items SET name = 'returning' WHERE id = 2 (Rows affected: 1)")
		assert.Contains(t, out, "Result for: DELETE FROM items WHERE id = 1 RETURNING name\n"+
			"name\n"+sqlSeparator+"\npen\n(1 rows)")
	})

	t.Run("OutputIsCapped", func(t *testing.T) {
		adapter := newSQLAdapter(zaptest.NewLogger(t), 256)
		out, err := adapter.Execute(context.Background(), Job{
			ID: "test",
			Source: "WITH RECURSIVE c(x) AS (SELECT 1 UNION ALL SELECT x + 1 FROM c LIMIT 5000000) SELECT x FROM c;" +
				"CREATE TABLE after_cap(x INT);",
			Limits: Limits{Run: 5 * time.Second},
		})
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(out, truncationMarker), out)
		assert.LessOrEqual(t, len(out), 256+len(truncationMarker))
		assert.NotContains(t, out, "after_cap")
	})

	t.Run("Empty", func(t *testing.T) {
		out, err := runSQL(t, "  ;; -- nothing\n", 5*time.Second)
		require.NoError(t, err)
		assert.Empty(t, out)
	})
}

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		expected []string
	}{
		{"Simple", "SELECT 1; SELECT 2", []string{"SELECT 1", "SELECT 2"}},
		{"SemicolonInString", "SELECT ';'; SELECT 'it''s;'", []string{"SELECT ';'", "SELECT 'it''s;'"}},
		{"QuotedIdentifier", `SELECT "a;b" FROM [x;y]`, []string{`SELECT "a;b" FROM [x;y]`}},
		{"LeadingComments", "-- first; comment\nSELECT 1; /* a;b */ SELECT 2;", []string{"SELECT 1", "SELECT 2"}},
		{"BlankStatements", " ; \n ;", nil},
		{"TrailingComment", "SELECT 1 -- done", []string{"SELECT 1 -- done"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, splitStatements(tt.source))
		})
	}
}

func TestPreviewStatement(t *testing.T) {
	assert.Equal(t, "SELECT 1", previewStatement("SELECT\n   1"))

	long := "SELECT " + strings.Repeat("a", 60)
	preview := previewStatement(long)
	assert.Equal(t, long[:50]+"...", preview)
}

func TestIsQuery(t *testing.T) {
	tests := []struct {
		stmt string
		want bool
	}{
		{"SELECT 1", true},
		{"with x as (select 1) select * from x", true},
		{"INSERT INTO t VALUES (1)", false},
		{"insert into t values (1) returning id", true},
		{"UPDATE t SET a = 1 RETURNING *", true},
		{"INSERT INTO t VALUES ('returning')", false},
		{`INSERT INTO t ("returning") VALUES (1)`, false},
		{"INSERT INTO t VALUES (1) -- returning id", false},
		{"INSERT INTO t (returning_id) VALUES (1)", false},
		{"CREATE TABLE t (x INT)", false},
	}

	for _, tt := range tests {
		t.Run(tt.stmt, func(t *testing.T) {
			assert.Equal(t, tt.want, isQuery(tt.stmt))
		})
	}
}
