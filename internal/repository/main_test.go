//go:build integration

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/iliyamo/pokernight/internal/database"
)

var (
	testDB *sql.DB
	myC    *mysql.MySQLContainer
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	var err error
	myC, err = mysql.Run(ctx,
		"mysql:8.0.36",
		mysql.WithDatabase("pokernight"),
		mysql.WithUsername("test"),
		mysql.WithPassword("test"),
	)
	if err != nil {
		panic(fmt.Errorf("start mysql container: %w", err))
	}

	dsn, err := myC.ConnectionString(ctx, "charset=utf8mb4", "parseTime=true", "loc=UTC", "clientFoundRows=true", "multiStatements=true")
	if err != nil {
		_ = dumpContainerLogs(ctx, myC)
		panic(fmt.Errorf("connection string: %w", err))
	}

	testDB, err = sql.Open("mysql", dsn)
	if err != nil {
		_ = dumpContainerLogs(ctx, myC)
		panic(fmt.Errorf("sql open: %w", err))
	}
	testDB.SetMaxOpenConns(10)
	testDB.SetConnMaxLifetime(time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 45*time.Second)
	defer cancel()
	if err := pingWithRetry(pingCtx, testDB, 250*time.Millisecond); err != nil {
		_ = dumpContainerLogs(ctx, myC)
		panic(fmt.Errorf("db ping: %w", err))
	}

	if err := database.Migrate(testDB); err != nil {
		_ = dumpContainerLogs(ctx, myC)
		panic(err)
	}

	code := m.Run()

	_ = testDB.Close()
	_ = testcontainers.TerminateContainer(myC)

	os.Exit(code)
}

func pingWithRetry(ctx context.Context, db *sql.DB, step time.Duration) error {
	var lastErr error
	for {
		if err := db.PingContext(ctx); err == nil {
			return nil
		} else {
			lastErr = err
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("ping timeout: %w (last error: %v)", ctx.Err(), lastErr)
		case <-time.After(step):
			if step < 2*time.Second {
				step *= 2
			}
		}
	}
}

func dumpContainerLogs(ctx context.Context, c *mysql.MySQLContainer) error {
	r, err := c.Logs(ctx)
	if err != nil {
		return err
	}
	defer r.Close()

	b, _ := io.ReadAll(r)
	fmt.Printf("\n--- mysql container logs ---\n%s\n--- end logs ---\n", string(b))
	return nil
}

// cleanDB empties every table.  The transaction log is append-only
// (triggers reject DELETE) so it is truncated, which bypasses them.
func cleanDB(t *testing.T) {
	t.Helper()
	stmts := []string{
		"SET FOREIGN_KEY_CHECKS=0",
		"TRUNCATE TABLE session_transactions",
		"TRUNCATE TABLE session_players",
		"TRUNCATE TABLE sessions",
		"TRUNCATE TABLE users",
		"SET FOREIGN_KEY_CHECKS=1",
	}
	conn, err := testDB.Conn(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	for _, s := range stmts {
		if _, err := conn.ExecContext(context.Background(), s); err != nil {
			t.Fatalf("%s: %v", s, err)
		}
	}
}
