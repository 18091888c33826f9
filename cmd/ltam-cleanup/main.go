// Command ltam-cleanup is the operator data-purge utility from §6: either
// every row belonging to one user, or every row created after a cutoff
// timestamp, across a fixed table list. Both modes default to a dry run
// that only counts what would be deleted; --confirm performs the deletes.
// Exit code is 0 on success (including a dry run), non-zero on any DB
// error.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/scrypster/ltam/internal/config"
)

func main() {
	var (
		userEmail string
		cutoff    string
		confirm   bool
		engine    string
		dsn       string
	)
	flag.StringVar(&userEmail, "user-email", "", "delete all entity data owned by this user id/email, preserving the user identity itself")
	flag.StringVar(&cutoff, "cutoff", "", "delete all records created after this RFC3339 timestamp")
	flag.BoolVar(&confirm, "confirm", false, "actually perform the deletes; without this flag the run is dry (count only)")
	flag.StringVar(&engine, "storage-engine", "", "sqlite or postgres; defaults to LTAM_STORAGE_ENGINE")
	flag.StringVar(&dsn, "dsn", "", "storage DSN; defaults to LTAM_STORAGE_DSN")
	flag.Parse()

	if (userEmail == "") == (cutoff == "") {
		log.Print("ltam-cleanup: exactly one of --user-email or --cutoff is required")
		os.Exit(1)
	}

	cfg, err := config.Load(os.Getenv("LTAM_CONFIG_FILE"))
	if err != nil {
		log.Printf("ltam-cleanup: load config: %v", err)
		os.Exit(1)
	}
	if engine == "" {
		engine = cfg.Storage.Engine
	}
	if dsn == "" {
		dsn = cfg.Storage.DSN
	}

	driver := "sqlite"
	if engine == "postgres" {
		driver = "postgres"
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		log.Printf("ltam-cleanup: open %s: %v", driver, err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	ctx := context.Background()
	var report []tableCount
	if userEmail != "" {
		report, err = purgeUser(ctx, db, driver, userEmail, confirm)
	} else {
		var ts time.Time
		ts, err = time.Parse(time.RFC3339, cutoff)
		if err != nil {
			log.Printf("ltam-cleanup: parse --cutoff: %v", err)
			os.Exit(1)
		}
		report, err = purgeCutoff(ctx, db, driver, ts, confirm)
	}
	if err != nil {
		log.Printf("ltam-cleanup: %v", err)
		os.Exit(1)
	}

	mode := "DRY RUN"
	if confirm {
		mode = "CONFIRMED"
	}
	fmt.Printf("ltam-cleanup: %s\n", mode)
	for _, tc := range report {
		fmt.Printf("  %-24s %d row(s)\n", tc.table, tc.count)
	}
}

type tableCount struct {
	table string
	count int64
}
