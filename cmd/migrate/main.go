package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"campuscore.org/internal/auth"
	"campuscore.org/internal/hierarchy"
	"campuscore.org/internal/ids"
	"campuscore.org/internal/migrate"
)

func main() {
	log.SetFlags(0)
	var (
		dsn            = flag.String("dsn", os.Getenv("PORTAL_PG_DSN"), "PostgreSQL DSN")
		migrationsPath = flag.String("migrations", "migrations/sql", "Path to SQL migrations")
		seedsPath      = flag.String("seeds", "migrations/seeds", "Path to SQL seeds")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or PORTAL_PG_DSN")
	}
	if len(flag.Args()) == 0 {
		log.Fatal("usage: migrate [up|down|seed|seed-root|status]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	mgr := migrate.NewManager(db, *migrationsPath, *seedsPath)

	switch flag.Arg(0) {
	case "up":
		err = mgr.Up(ctx)
	case "down":
		err = mgr.Down(ctx)
	case "seed":
		err = mgr.Seed(ctx)
	case "seed-root":
		err = seedRootAdmin(ctx, db)
	case "status":
		var history []string
		history, err = mgr.Status(ctx)
		if err == nil {
			for _, item := range history {
				fmt.Println(item)
			}
		}
	default:
		log.Fatalf("unknown command %q", flag.Arg(0))
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", flag.Arg(0), err)
	}
}

// seedRootAdmin bootstraps the first administrative identity. It is a
// no-op when a Root Admin already exists.
func seedRootAdmin(ctx context.Context, db *sql.DB) error {
	email := strings.TrimSpace(os.Getenv("PORTAL_ROOT_EMAIL"))
	password := os.Getenv("PORTAL_ROOT_PASSWORD")
	if email == "" || password == "" {
		return fmt.Errorf("PORTAL_ROOT_EMAIL and PORTAL_ROOT_PASSWORD are required")
	}

	var exists bool
	err := db.QueryRowContext(ctx,
		`select exists(select 1 from identities where tag = $1)`,
		string(hierarchy.TagRootAdmin)).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		log.Println("root admin already present, nothing to do")
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		insert into identities (id, email, password_hash, tag, status, profile_data)
		values ($1, $2, $3, $4, 'Active', '{}'::jsonb)
	`, ids.New(), email, hash, string(hierarchy.TagRootAdmin))
	if err != nil {
		return err
	}
	log.Printf("root admin %s created", email)
	return nil
}
