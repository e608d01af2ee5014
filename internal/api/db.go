package api

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"slices"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/marcboeker/go-duckdb"

	"github.com/joeblew999/plat-trails/internal/db"
)

// DBHandler handles database-related endpoints.
type DBHandler struct {
	conn  *sql.DB
	loads *db.LoadLog
}

// NewDBHandler creates a new database handler. Both arguments may be nil
// when DuckDB is unavailable; the routes then answer 503.
func NewDBHandler(conn *sql.DB, loads *db.LoadLog) *DBHandler {
	return &DBHandler{conn: conn, loads: loads}
}

// RegisterRoutes registers database routes with Huma.
func (h *DBHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/loads", h.ListLoads, huma.OperationTags("db"))
	huma.Get(api, "/api/v1/tables", h.ListTables, huma.OperationTags("db"))
	huma.Post(api, "/api/v1/query", h.Query, huma.OperationTags("db"))
}

// LoadsInput filters the load log.
type LoadsInput struct {
	Layer string `query:"layer" doc:"Only this layer" example:"erie-canal"`
	Limit int    `query:"limit" minimum:"1" maximum:"500" default:"50" doc:"Maximum records"`
}

// LoadsOutput is the response for the load log.
type LoadsOutput struct {
	Body []db.LoadRecord
}

// ListLoads returns recent layer load transitions, newest first.
func (h *DBHandler) ListLoads(ctx context.Context, input *LoadsInput) (*LoadsOutput, error) {
	if h.loads == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}
	records, err := h.loads.Recent(ctx, input.Layer, input.Limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to read load log", err)
	}
	return &LoadsOutput{Body: records}, nil
}

// TablesBody lists DuckDB tables.
type TablesBody struct {
	Tables []string `json:"tables" doc:"List of table names"`
}

// ListTables returns all DuckDB tables.
func (h *DBHandler) ListTables(ctx context.Context, input *struct{}) (*struct{ Body TablesBody }, error) {
	if h.conn == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}

	rows, err := h.conn.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list tables", err)
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, huma.Error500InternalServerError("Failed to read table name", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, huma.Error500InternalServerError("Failed to list tables", err)
	}
	return &struct{ Body TablesBody }{Body: TablesBody{Tables: tables}}, nil
}

// QueryInput is the input for SQL queries.
type QueryInput struct {
	Body struct {
		Query string `json:"query" required:"true" minLength:"1" doc:"Read-only SQL query to execute" example:"SELECT * FROM layer_loads WHERE state = 'failed'"`
	}
}

// QueryBody is the result of a SQL query.
type QueryBody struct {
	Columns []string         `json:"columns" doc:"Column names"`
	Rows    []map[string]any `json:"rows" doc:"Query results"`
	Count   int              `json:"count" doc:"Number of rows returned"`
}

// readOnlyStatements are the DuckDB statement types the query endpoint runs.
// SHOW, DESCRIBE and SUMMARIZE parse as SELECT.
var readOnlyStatements = []duckdb.StmtType{
	duckdb.STATEMENT_TYPE_SELECT,
	duckdb.STATEMENT_TYPE_EXPLAIN,
	duckdb.STATEMENT_TYPE_PRAGMA,
}

// Query executes a read-only SQL query against DuckDB. DuckDB classifies
// the statement; anything that is not a read is a 422. Accepted queries
// run in a transaction that is always rolled back.
func (h *DBHandler) Query(ctx context.Context, input *QueryInput) (*struct{ Body QueryBody }, error) {
	if h.conn == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}
	if strings.Contains(strings.TrimRight(input.Body.Query, "; \n\t"), ";") {
		return nil, huma.Error422UnprocessableEntity("Only a single statement is allowed")
	}

	conn, err := h.conn.Conn(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to get connection", err)
	}
	defer conn.Close()

	kind, err := statementType(ctx, conn, input.Body.Query)
	if err != nil {
		return nil, huma.Error400BadRequest("Query failed: " + err.Error())
	}
	if !slices.Contains(readOnlyStatements, kind) {
		return nil, huma.Error422UnprocessableEntity("Only read-only queries are allowed")
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to begin transaction", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, input.Body.Query)
	if err != nil {
		return nil, huma.Error400BadRequest("Query failed: " + err.Error())
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to get columns", err)
	}

	results := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, huma.Error500InternalServerError("Failed to read row", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, huma.Error500InternalServerError("Failed to read rows", err)
	}

	return &struct{ Body QueryBody }{Body: QueryBody{
		Columns: columns,
		Rows:    results,
		Count:   len(results),
	}}, nil
}

// statementType prepares query on conn without running it and returns the
// statement type DuckDB parsed.
func statementType(ctx context.Context, conn *sql.Conn, query string) (duckdb.StmtType, error) {
	var kind duckdb.StmtType
	err := conn.Raw(func(driverConn any) error {
		pc, ok := driverConn.(driver.ConnPrepareContext)
		if !ok {
			return errors.New("driver cannot prepare statements")
		}
		stmt, err := pc.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		ds, ok := stmt.(*duckdb.Stmt)
		if !ok {
			return errors.New("not a DuckDB statement")
		}
		kind, err = ds.StatementType()
		return err
	})
	return kind, err
}
