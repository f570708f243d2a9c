// Package mysql provides the source driver for lab systems running on
// MySQL.
package mysql

import (
	"context"
	"database/sql"
	"fmt"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/medrelay-io/medrelay-engine/pkg/models"
	"github.com/medrelay-io/medrelay-engine/pkg/router"
)

func init() {
	router.RegisterDriver("mysql", New)
}

type conn struct {
	db  *sql.DB
	cfg router.DriverConfig
}

// New builds a pooled MySQL source connection. The URL is a go-sql-driver
// DSN without credentials ("tcp(host:3306)/dbname"); username and
// password are applied from the tenant's credential block.
func New(ctx context.Context, cfg router.DriverConfig) (router.SourceConn, error) {
	dsnCfg, err := gomysql.ParseDSN(cfg.Username + ":" + cfg.Password + "@" + cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	dsnCfg.ParseTime = true
	dsnCfg.ReadTimeout = cfg.QueryTimeout

	db, err := sql.Open("mysql", dsnCfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(1)
	return &conn{db: db, cfg: cfg}, nil
}

func (c *conn) Query(ctx context.Context, sqlText string, args map[string]any) (*models.SourceResult, error) {
	bound, values, err := router.BindNamed(sqlText, args, router.StyleQuestion)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.QueryTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, bound, values...)
	if err != nil {
		return nil, fmt.Errorf("mysql query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("mysql columns: %w", err)
	}
	columns := router.NormalizeColumns(cols)

	result := &models.SourceResult{Columns: columns}
	for rows.Next() {
		if len(result.Rows) >= c.cfg.MaxRows {
			break
		}
		raw := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("mysql scan: %w", err)
		}
		record := make(models.SourceRecord, len(columns))
		for i, col := range columns {
			record[col] = raw[i]
		}
		result.Rows = append(result.Rows, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mysql rows: %w", err)
	}
	return result, nil
}

func (c *conn) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *conn) Close() error {
	return c.db.Close()
}
