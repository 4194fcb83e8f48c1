package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/willemschots/cardhub/internal"
	"github.com/willemschots/cardhub/internal/db"
	"github.com/willemschots/cardhub/internal/db/migrate"
	"github.com/willemschots/cardhub/migrations"
)

const helpText = `Usage: dbmigrate [sqlite_file]

Applies the embedded cardhub migrations that have not ran yet.`

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, helpText)
		os.Exit(1)
	}

	sqlDB, err := db.OpenSQLite(os.Args[1], true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	ran, err := migrate.RunFS(ctx, sqlDB, migrations.FS, migrate.Metadata{
		AppVersion: internal.BuildRevision,
		Timestamp:  time.Now(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		os.Exit(1)
	}

	if len(ran) == 0 {
		fmt.Println("database is up to date")
		return
	}

	for _, m := range ran {
		fmt.Printf("%d: %s\n", m.Sequence, m.Filename)
	}
}
