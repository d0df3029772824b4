// Package migrate applies embedded SQL migrations.
package migrate

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/and161185/bookswap/migrations"
)

// Direction selects what Run does with the embedded migrations.
type Direction string

const (
	DirUp     Direction = "up"
	DirDown   Direction = "down"
	DirStatus Direction = "status"
)

// Up runs all pending migrations from the embedded filesystem.
func Up(ctx context.Context, dsn string) error {
	return Run(ctx, dsn, DirUp)
}

// Run opens a short-lived connection and applies dir.
func Run(ctx context.Context, dsn string, dir Direction) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	switch dir {
	case DirUp:
		return goose.UpContext(ctx, db, ".")
	case DirDown:
		return goose.DownContext(ctx, db, ".")
	case DirStatus:
		return goose.StatusContext(ctx, db, ".")
	default:
		return fmt.Errorf("unknown migration direction %q", dir)
	}
}
