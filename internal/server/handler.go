package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/leapstack-labs/leapquery/internal/result"
)

const (
	stateSyntax  = "SYNTAX"
	stateGeneral = "HY000"
	// pgSyntaxError is the PostgreSQL SQLSTATE for syntax errors.
	pgSyntaxError = "42601"
)

var (
	syntaxMessage = regexp.MustCompile(`(?i)syntax error`)
	nearToken     = regexp.MustCompile(`(?i)near "([^"]*)"`)
)

// errorBody is the error envelope.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	SQLState string `json:"sqlstate"`
	MsgText  string `json:"msgtext"`
	Position int    `json:"position,omitempty"`
}

// datasetBody is the success envelope.
type datasetBody struct {
	Dataset dataset `json:"dataset"`
}

type dataset struct {
	Attr    []result.Column  `json:"attr"`
	Rows    []map[string]any `json:"rows"`
	TblName string           `json:"tblname"`
	LibName string           `json:"libname"`
}

// queryHandler runs the statement in the q parameter.
type queryHandler struct {
	db      *sql.DB
	maxRows int
	timeout time.Duration
	logger  *slog.Logger
}

func (h *queryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	stmt := strings.TrimSpace(r.FormValue("q"))
	logger := h.logger.With(slog.String("request_id", middleware.GetReqID(r.Context())))
	if stmt == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{SQLState: stateGeneral, MsgText: "no statement in parameter q"}})
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	start := time.Now()
	body, err := h.run(ctx, stmt)
	if err != nil {
		detail := classifyError(err, stmt)
		logger.Debug("statement failed",
			slog.String("sqlstate", detail.SQLState),
			slog.String("error", err.Error()))
		writeJSON(w, http.StatusOK, errorBody{Error: detail})
		return
	}
	logger.Debug("statement executed",
		slog.Int("rows", len(body.Dataset.Rows)),
		slog.Duration("elapsed", time.Since(start)))
	writeJSON(w, http.StatusOK, body)
}

func (h *queryHandler) run(ctx context.Context, stmt string) (*datasetBody, error) {
	rows, err := h.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	attr := make([]result.Column, len(types))
	for i, ct := range types {
		attr[i] = columnAttr(ct)
	}
	uniqueColumnNames(attr)

	body := &datasetBody{Dataset: dataset{Attr: attr, Rows: []map[string]any{}}}
	for rows.Next() {
		if h.maxRows > 0 && len(body.Dataset.Rows) >= h.maxRows {
			break
		}
		values := make([]any, len(attr))
		valuePtrs := make([]any, len(attr))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		row := make(map[string]any, len(attr))
		for i, col := range attr {
			val := values[i]
			if b, ok := val.([]byte); ok {
				val = string(b)
			}
			row[col.Name] = val
		}
		body.Dataset.Rows = append(body.Dataset.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return body, nil
}

// uniqueColumnNames renames repeated column names (a.id, b.id) to NAME_2,
// NAME_3 and so on, since rows are keyed by name. Names already present in
// the result are skipped.
func uniqueColumnNames(cols []result.Column) {
	taken := make(map[string]bool, len(cols))
	for _, c := range cols {
		taken[c.Name] = true
	}
	used := make(map[string]bool, len(cols))
	for i, c := range cols {
		if !used[c.Name] {
			used[c.Name] = true
			continue
		}
		for n := 2; ; n++ {
			candidate := fmt.Sprintf("%s_%d", c.Name, n)
			if !taken[candidate] && !used[candidate] {
				cols[i].Name = candidate
				used[candidate] = true
				break
			}
		}
	}
}

// columnAttr describes a result column from driver metadata.
func columnAttr(ct *sql.ColumnType) result.Column {
	col := result.Column{
		Name:   ct.Name(),
		Type:   strings.ToUpper(ct.DatabaseTypeName()),
		Header: ct.Name(),
	}
	if n, ok := ct.Length(); ok && n > 0 && n < 1<<31 {
		col.Length = int(n)
	}
	if p, s, ok := ct.DecimalSize(); ok {
		col.Length = int(p)
		col.Decimals = int(s)
	}
	if nullable, ok := ct.Nullable(); ok {
		col.AllowNull = "N"
		if nullable {
			col.AllowNull = "Y"
		}
	}
	return col
}

// classifyError maps a driver error to the error envelope. Syntax errors
// report the 1-based position of the offending token when it can be found.
func classifyError(err error, stmt string) errorDetail {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		d := errorDetail{SQLState: pgErr.Code, MsgText: pgErr.Message}
		if pgErr.Code == pgSyntaxError {
			d.SQLState = stateSyntax
			d.Position = int(pgErr.Position)
		}
		return d
	}

	msg := err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		return errorDetail{SQLState: "57014", MsgText: "statement timed out"}
	}
	if !syntaxMessage.MatchString(msg) {
		return errorDetail{SQLState: stateGeneral, MsgText: msg}
	}

	d := errorDetail{SQLState: stateSyntax, MsgText: msg}
	if m := nearToken.FindStringSubmatch(msg); m != nil && m[1] != "" {
		if idx := strings.Index(stmt, m[1]); idx >= 0 {
			d.Position = idx + 1
		}
	}
	return d
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		_, _ = fmt.Fprintf(w, `{"error":{"sqlstate":%q,"msgtext":%q}}`, stateGeneral, err.Error())
	}
}
