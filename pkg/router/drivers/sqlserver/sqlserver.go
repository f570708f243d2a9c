// Package sqlserver provides the source driver for hospital systems
// running on Microsoft SQL Server.
package sqlserver

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/medrelay-io/medrelay-engine/pkg/models"
	"github.com/medrelay-io/medrelay-engine/pkg/router"
)

func init() {
	router.RegisterDriver("sqlserver", New)
}

type conn struct {
	db  *sql.DB
	cfg router.DriverConfig
}

// New builds a pooled SQL Server source connection. The credentials are
// injected into the URL's userinfo section.
func New(ctx context.Context, cfg router.DriverConfig) (router.SourceConn, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse sqlserver url: %w", err)
	}
	u.User = url.UserPassword(cfg.Username, cfg.Password)

	db, err := sql.Open("sqlserver", u.String())
	if err != nil {
		return nil, fmt.Errorf("open sqlserver: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(1)
	return &conn{db: db, cfg: cfg}, nil
}

func (c *conn) Query(ctx context.Context, sqlText string, args map[string]any) (*models.SourceResult, error) {
	bound, values, err := router.BindNamed(sqlText, args, router.StyleAtP)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.QueryTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, bound, values...)
	if err != nil {
		return nil, fmt.Errorf("sqlserver query: %w", err)
	}
	defer rows.Close()

	return scanRows(rows, c.cfg.MaxRows)
}

func (c *conn) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *conn) Close() error {
	return c.db.Close()
}

// scanRows drains a database/sql result set into a SourceResult,
// stopping at the row cap. Shared shape with the mysql driver.
func scanRows(rows *sql.Rows, maxRows int) (*models.SourceResult, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	columns := router.NormalizeColumns(cols)

	result := &models.SourceResult{Columns: columns}
	for rows.Next() {
		if len(result.Rows) >= maxRows {
			break
		}
		raw := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		record := make(models.SourceRecord, len(columns))
		for i, col := range columns {
			record[col] = raw[i]
		}
		result.Rows = append(result.Rows, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return result, nil
}
