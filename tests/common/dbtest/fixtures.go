//go:build unit || e2e

package dbtest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

// the minimal interface required for test DB operations.
type DBLike interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DefaultSlots are the slots every reset database starts with.
var DefaultSlots = []string{"slot-1", "slot-2", "slot-3"}

// bcrypt hash of "password123"
const defaultPasswordHash = "$2a$12$uhAjVE9f92IGYv3E25pJNetg.27lVt0p7jmLWjqjmhOg92ldPS0A."

func CreateTestUser(t *testing.T, db DBLike, email string) uuid.UUID {
	t.Helper()

	userID := uuid.New()
	ctx := context.Background()

	tag, err := db.Exec(ctx,
		"INSERT INTO users (id, email, password_hash, provider) VALUES ($1, $2, $3, 'password') ON CONFLICT (email) DO NOTHING",
		userID, email, defaultPasswordHash)
	require.NoError(t, err)

	if tag.RowsAffected() == 0 {
		_ = db.QueryRow(ctx, "SELECT id FROM users WHERE email = $1", email).Scan(&userID)
	}

	return userID
}

func CreateTestSlot(t *testing.T, db DBLike, id string) {
	t.Helper()

	_, err := db.Exec(context.Background(),
		"INSERT INTO parking_slots (id, slot_number) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING",
		id, slotNumber(id))
	require.NoError(t, err)
}

// ReserveTestSlot puts id into the reserved state for email, bypassing the application.
func ReserveTestSlot(t *testing.T, db DBLike, id, email string) {
	t.Helper()

	tag, err := db.Exec(context.Background(),
		"UPDATE parking_slots SET reserved = true, holder_email = $2, reserved_at = now() WHERE id = $1",
		id, email)
	require.NoError(t, err)
	require.EqualValues(t, 1, tag.RowsAffected(), "slot %s not found", id)
}

// SlotHolder returns the holder email and reserved flag of id as stored.
func SlotHolder(t *testing.T, db DBLike, id string) (string, bool) {
	t.Helper()

	var (
		holder   string
		reserved bool
	)
	err := db.QueryRow(context.Background(),
		"SELECT holder_email, reserved FROM parking_slots WHERE id = $1", id).Scan(&holder, &reserved)
	require.NoError(t, err)
	return holder, reserved
}

// inserts the slots needed by tests
func SeedReferenceData(pool *pgxpool.Pool) error {
	ctx := context.Background()

	for _, id := range DefaultSlots {
		if _, err := pool.Exec(ctx,
			"INSERT INTO parking_slots (id, slot_number) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING",
			id, slotNumber(id)); err != nil {
			return err
		}
	}
	return nil
}

func slotNumber(id string) string {
	if i := strings.LastIndex(id, "-"); i >= 0 {
		return id[i+1:]
	}
	return id
}

var (
	buildTruncateOnce sync.Once
	truncateSQL       atomic.Value // string
)

// truncates all tables and reseeds reference data
func ResetDB(pool *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	buildTruncateOnce.Do(func() {
		rows, err := pool.Query(ctx, `
		  SELECT 'public.' || quote_ident(tablename)
		  FROM pg_tables
		  WHERE schemaname = 'public'
		    AND tablename NOT IN ('schema_migrations')`)
		if err != nil {
			truncateSQL.Store("")
			return
		}
		defer rows.Close()
		var tables []string
		for rows.Next() {
			var t string
			if err := rows.Scan(&t); err != nil {
				truncateSQL.Store("")
				return
			}
			tables = append(tables, t)
		}
		if rows.Err() != nil {
			truncateSQL.Store("")
			return
		}
		if len(tables) == 0 {
			truncateSQL.Store("SELECT 1")
			return
		}
		truncateSQL.Store("TRUNCATE " + strings.Join(tables, ", ") + " RESTART IDENTITY CASCADE;")
	})
	sqlAny := truncateSQL.Load()
	if sqlAny == nil || sqlAny.(string) == "" {
		return fmt.Errorf("failed to build TRUNCATE SQL")
	}
	if _, err := pool.Exec(ctx, sqlAny.(string)); err != nil {
		return err
	}

	return SeedReferenceData(pool)
}
