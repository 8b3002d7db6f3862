// Command migrate applies the SQL files under migrations/ in name order and
// records each in schema_migrations. With -down it reverts the most recent
// one.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"sort"

	"ledger/internal/config"
	"ledger/internal/db"

	"github.com/jmoiron/sqlx"
)

func main() {
	dir := flag.String("dir", "migrations", "directory holding *.sql migrations")
	down := flag.Bool("down", false, "revert the most recently applied migration")
	status := flag.Bool("status", false, "list migrations and whether they are applied")
	flag.Parse()

	cfg := config.Load()
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer database.Close()

	ctx := context.Background()
	if _, err := database.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (filename text PRIMARY KEY, applied_at timestamptz DEFAULT now())`); err != nil {
		log.Fatalf("failed to ensure schema_migrations: %v", err)
	}
	files, err := filepath.Glob(filepath.Join(*dir, "*.sql"))
	if err != nil {
		log.Fatalf("failed to read migrations: %v", err)
	}
	sort.Strings(files)

	var applied []string
	if err := database.SelectContext(ctx, &applied, `SELECT filename FROM schema_migrations ORDER BY filename`); err != nil {
		log.Fatalf("failed to read migration state: %v", err)
	}
	done := make(map[string]bool, len(applied))
	for _, name := range applied {
		done[name] = true
	}

	switch {
	case *status:
		for _, file := range files {
			mark := "pending"
			if done[filepath.Base(file)] {
				mark = "applied"
			}
			fmt.Printf("%-8s %s\n", mark, filepath.Base(file))
		}
	case *down:
		if len(applied) == 0 {
			fmt.Println("nothing to revert")
			return
		}
		last := applied[len(applied)-1]
		if err := revert(ctx, database, filepath.Join(*dir, last)); err != nil {
			log.Fatalf("failed to revert %s: %v", last, err)
		}
		fmt.Printf("reverted %s\n", last)
	default:
		for _, file := range files {
			name := filepath.Base(file)
			if done[name] {
				continue
			}
			if err := apply(ctx, database, file); err != nil {
				log.Fatalf("failed to apply %s: %v", name, err)
			}
			fmt.Printf("applied %s\n", name)
		}
	}
}

// apply runs the up section and records the file in one transaction.
func apply(ctx context.Context, database *sqlx.DB, path string) error {
	m, err := load(path)
	if err != nil {
		return err
	}
	return db.WithTx(ctx, database, func(tx *sqlx.Tx) error {
		if err := execAll(ctx, tx, m.up); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (filename) VALUES ($1)`, filepath.Base(path))
		return err
	})
}

func revert(ctx context.Context, database *sqlx.DB, path string) error {
	m, err := load(path)
	if err != nil {
		return err
	}
	if len(m.down) == 0 {
		return fmt.Errorf("%s has no down section", filepath.Base(path))
	}
	return db.WithTx(ctx, database, func(tx *sqlx.Tx) error {
		if err := execAll(ctx, tx, m.down); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE filename = $1`, filepath.Base(path))
		return err
	})
}

func execAll(ctx context.Context, tx *sqlx.Tx, statements []string) error {
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
