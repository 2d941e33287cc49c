package format

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormat_Clauses(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:  "select where and",
			input: "select a, b from t where x=1 and y=2",
			expected: `SELECT a, b
  FROM t
  WHERE x=1
      AND y=2;`,
		},
		{
			name:     "whitespace collapsed and terminators stripped",
			input:    "  select\n\t*   from   t  ;;",
			expected: "SELECT *\n  FROM t;",
		},
		{
			name:  "literals untouched",
			input: `select 'a   b', "Mixed Case" from t where c = 'select; from'`,
			expected: `SELECT 'a   b', "Mixed Case"
  FROM t
  WHERE c = 'select; from';`,
		},
		{
			name:  "host variables are not keywords",
			input: "select a into :from from t where b = & where",
			expected: `SELECT a into :from
  FROM t
  WHERE b = & where;`,
		},
		{
			name:  "joins align under FROM",
			input: "select a.x, b.y from a left outer join b on a.id = b.id inner join c on c.id = b.id where a.x > 1 order by a.x",
			expected: `SELECT a.x, b.y
  FROM a
     LEFT OUTER JOIN b
     ON a.id = b.id
     INNER JOIN c
     ON c.id = b.id
  WHERE a.x > 1
  ORDER BY a.x;`,
		},
		{
			name:  "cursor declaration",
			input: "declare c1 cursor for select a from t for fetch only",
			expected: `DECLARE c1 CURSOR FOR
  SELECT a
  FROM t FOR FETCH only;`,
		},
		{
			name:  "subquery breaks after open paren",
			input: "select * from (select a from t) x",
			expected: `SELECT *
  FROM (
  SELECT a
  FROM t) x;`,
		},
		{
			name:  "case block",
			input: "select case when a=1 then 'x' else 'y' end from t",
			expected: `SELECT
  CASE
    WHEN a=1 THEN 'x' ELSE 'y'
  END
  FROM t;`,
		},
		{
			name:  "nested case",
			input: "select case when a=1 then case when b=2 then 'x' end else 'y' end from t",
			expected: `SELECT
  CASE
    WHEN a=1 THEN
  CASE
    WHEN b=2 THEN 'x'
  END ELSE 'y'
  END
  FROM t;`,
		},
		{
			name:     "trailing line comment keeps the terminator out",
			input:    "select a -- first\n, b from t -- trailing",
			expected: "SELECT a -- first\n, b\n  FROM t -- trailing\n;",
		},
		{
			name:     "empty",
			input:    "",
			expected: ";",
		},
		{
			name:     "only terminators",
			input:    "  ;; ",
			expected: ";",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Format(tt.input))
		})
	}
}

func TestFormat_Wrap(t *testing.T) {
	tests := []struct {
		name     string
		width    int
		input    string
		expected string
	}{
		{
			name:  "column list",
			width: 40,
			input: "select customer_id, customer_name, customer_email, created_at from customers",
			expected: `SELECT customer_id, customer_name,
  customer_email, created_at
  FROM customers;`,
		},
		{
			name:  "prefers comma inside call",
			width: 40,
			input: "select coalesce(first_name, last_name, 'unknown'), id from people",
			expected: `SELECT coalesce(first_name, last_name,
  'unknown'), id
  FROM people;`,
		},
		{
			name:  "concat chain",
			width: 40,
			input: "select first_name concat ' ' concat middle_name concat ' ' concat last_name from t",
			expected: `SELECT first_name concat ' '
  concat middle_name concat ' '
  concat last_name
  FROM t;`,
		},
		{
			name:  "when then split",
			width: 60,
			input: "select case when customer_status_code = 'ACTIVE_PREMIUM_CUSTOMER_ACCOUNT' then 'premium customer' else 'standard' end as tier from customers",
			expected: `SELECT
  CASE
    WHEN customer_status_code = 'ACTIVE_PREMIUM_CUSTOMER_ACCOUNT'
      THEN 'premium customer' ELSE 'standard'
  END AS tier
  FROM customers;`,
		},
		{
			name:  "early then is not split",
			width: 40,
			input: "select case when a = 1 then 'some really long value text here' end from t",
			expected: `SELECT
  CASE
    WHEN a = 1 THEN 'some really long value text here'
  END
  FROM t;`,
		},
		{
			name:     "else expression",
			width:    40,
			input:    "else 'a very long default value that overflows the width'",
			expected: " ELSE\n   'a very long default value that overflows the width';",
		},
		{
			name:     "multibyte text measured by display width",
			width:    40,
			input:    "select 'éééééééééééééééééééé', b from t",
			expected: "SELECT 'éééééééééééééééééééé', b\n  FROM t;",
		},
		{
			name:     "no break point",
			width:    40,
			input:    "select a,b,c,d,e,f,g,h,i,j,k,l,m,n,o,p,q,r,s,t,u from t",
			expected: "SELECT a,b,c,d,e,f,g,h,i,j,k,l,m,n,o,p,q,r,s,t,u\n  FROM t;",
		},
		{
			name:     "disabled",
			width:    0,
			input:    "select customer_id, customer_name, customer_email, created_at from customers",
			expected: "SELECT customer_id, customer_name, customer_email, created_at\n  FROM customers;",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(Options{MaxWidth: tt.width})
			assert.Equal(t, tt.expected, f.Format(tt.input))
		})
	}
}

func TestFormat_Idempotent(t *testing.T) {
	inputs := []string{
		"select a, b from t where x=1 and y=2",
		"select customer_id, customer_name, customer_email, created_at from customers where status = 'A' or status = 'B'",
		"select coalesce(first_name, last_name, 'unknown'), id from people",
		"select first_name concat ' ' concat middle_name concat ' ' concat last_name from t",
		"select case when customer_status_code = 'ACTIVE_PREMIUM_CUSTOMER_ACCOUNT' then 'premium customer' else 'standard' end as tier from customers",
		"select * from (select a from t) x join y on x.a=y.a",
		"declare c1 cursor for select a from t for fetch only",
		"select a -- first\n, b from t -- trailing",
		"select 'it''s', \"a;b\" from t where n = :select",
		"with x as (select 1 as one) select one from x group by one having count(*) > 1",
		"else 'a very long default value that overflows the width'",
		"select 'multi\nline' from t /* block\ncomment */ where a in (1, 2, 3)",
		"",
	}

	for _, width := range []int{0, 40, 80} {
		f := New(Options{MaxWidth: width})
		for _, in := range inputs {
			once := f.Format(in)
			assert.Equal(t, once, f.Format(once), "width %d input %q", width, in)
		}
	}
}

func TestFormat_HostVariableNeverTriggersLayout(t *testing.T) {
	out := Format("select a from t where b = :where and c = &select")

	assert.Contains(t, out, ":where")
	assert.Contains(t, out, "&select")
	for _, l := range strings.Split(out, "\n") {
		trimmed := strings.TrimSpace(l)
		assert.False(t, strings.HasPrefix(trimmed, "where"), "line %q", l)
		assert.False(t, strings.HasPrefix(trimmed, "select"), "line %q", l)
	}
}

func TestFormat_EndsWithSingleSemicolon(t *testing.T) {
	for _, in := range []string{"select 1", "select 1;", "select 1 ; ; ", "select ';'"} {
		out := Format(in)
		assert.True(t, strings.HasSuffix(out, ";"), out)
		assert.False(t, strings.HasSuffix(out, ";;"), out)
	}
}

func TestFormatter_Options(t *testing.T) {
	assert.Equal(t, DefaultMaxWidth, DefaultOptions().MaxWidth)
	assert.Equal(t, 60, New(Options{MaxWidth: 60}).Options().MaxWidth)
}
