// Package postgres provides the source driver for hospital systems
// running on PostgreSQL.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medrelay-io/medrelay-engine/pkg/models"
	"github.com/medrelay-io/medrelay-engine/pkg/router"
)

func init() {
	router.RegisterDriver("postgres", New)
}

type conn struct {
	pool *pgxpool.Pool
	cfg  router.DriverConfig
}

// New builds a pooled PostgreSQL source connection.
func New(ctx context.Context, cfg router.DriverConfig) (router.SourceConn, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	poolCfg.ConnConfig.User = cfg.Username
	poolCfg.ConnConfig.Password = cfg.Password
	poolCfg.MaxConns = 4
	poolCfg.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	return &conn{pool: pool, cfg: cfg}, nil
}

func (c *conn) Query(ctx context.Context, sqlText string, args map[string]any) (*models.SourceResult, error) {
	bound, values, err := router.BindNamed(sqlText, args, router.StyleDollar)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.QueryTimeout)
	defer cancel()

	rows, err := c.pool.Query(ctx, bound, values...)
	if err != nil {
		return nil, fmt.Errorf("postgres query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}
	columns = router.NormalizeColumns(columns)

	result := &models.SourceResult{Columns: columns}
	for rows.Next() {
		if len(result.Rows) >= c.cfg.MaxRows {
			break
		}
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("postgres scan: %w", err)
		}
		record := make(models.SourceRecord, len(columns))
		for i, col := range columns {
			record[col] = values[i]
		}
		result.Rows = append(result.Rows, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres rows: %w", err)
	}
	return result, nil
}

func (c *conn) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

func (c *conn) Close() error {
	c.pool.Close()
	return nil
}
