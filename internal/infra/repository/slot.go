package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"parkwise/internal/domain/slot"
	"parkwise/internal/infra"
	"parkwise/internal/pkg/pgconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const slotColumns = "id, slot_number, occupied, reserved, holder_email, reserved_at"

const (
	listSlots       = "SELECT " + slotColumns + " FROM parking_slots ORDER BY id"
	findSlotByID    = "SELECT " + slotColumns + " FROM parking_slots WHERE id = $1"
	findSlotsHolder = "SELECT " + slotColumns + " FROM parking_slots WHERE holder_email = $1 ORDER BY id"
	upsertSlot      = `INSERT INTO parking_slots (id, slot_number, occupied, reserved, holder_email, reserved_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
    slot_number = EXCLUDED.slot_number,
    occupied = EXCLUDED.occupied,
    reserved = EXCLUDED.reserved,
    holder_email = EXCLUDED.holder_email,
    reserved_at = EXCLUDED.reserved_at,
    updated_at = now()`
)

type slotRow struct {
	ID          string             `db:"id"`
	SlotNumber  string             `db:"slot_number"`
	Occupied    bool               `db:"occupied"`
	Reserved    bool               `db:"reserved"`
	HolderEmail string             `db:"holder_email"`
	ReservedAt  pgtype.Timestamptz `db:"reserved_at"`
}

func (r slotRow) toDomain() *slot.Slot {
	return slot.Reconstruct(
		slot.ID(r.ID),
		r.SlotNumber,
		r.Occupied,
		r.Reserved,
		r.HolderEmail,
		pgconv.TimePtrFromPgtype(r.ReservedAt),
	)
}

type SlotRepository struct {
	db DBTX
}

func NewSlotRepository(db DBTX) *SlotRepository {
	return &SlotRepository{db: db}
}

func (r *SlotRepository) ListOrdered(ctx context.Context) ([]*slot.Slot, error) {
	slots, err := r.query(ctx, listSlots)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to list slots", err)
	}
	return slots, nil
}

func (r *SlotRepository) FindByID(ctx context.Context, id slot.ID) (*slot.Slot, error) {
	var row slotRow
	err := r.db.QueryRow(ctx, findSlotByID, id.String()).Scan(
		&row.ID, &row.SlotNumber, &row.Occupied, &row.Reserved, &row.HolderEmail, &row.ReservedAt,
	)
	if err != nil {
		if pgconv.IsNoRows(err) {
			return nil, infra.WrapRepoErr("slot not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to find slot by ID", err)
	}
	return row.toDomain(), nil
}

func (r *SlotRepository) FindByHolder(ctx context.Context, email string) ([]*slot.Slot, error) {
	slots, err := r.query(ctx, findSlotsHolder, email)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to find slots by holder", err)
	}
	return slots, nil
}

// Apply writes only the fields set in change. The update has no precondition; the
// last writer wins.
func (r *SlotRepository) Apply(ctx context.Context, id slot.ID, change slot.Change) error {
	if err := change.Validate(); err != nil {
		return infra.WrapRepoErr("invalid slot change", err)
	}

	query, args := buildSlotUpdate(id, change)
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return infra.WrapRepoErr("failed to update slot", err)
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr("slot not found", nil, infra.KindNotFound)
	}
	return nil
}

// Upsert stores s as-is. Used to provision slots and by tests.
func (r *SlotRepository) Upsert(ctx context.Context, s *slot.Slot) error {
	_, err := r.db.Exec(ctx, upsertSlot,
		s.ID().String(), s.Number(), s.Occupied(), s.Reserved(), s.HolderEmail(), pgconv.TimePtrToPgtype(s.ReservedAt()),
	)
	if err != nil {
		return infra.WrapRepoErr("failed to upsert slot", err)
	}
	return nil
}

func (r *SlotRepository) query(ctx context.Context, sql string, args ...any) ([]*slot.Slot, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	collected, err := pgx.CollectRows(rows, pgx.RowToStructByName[slotRow])
	if err != nil {
		return nil, err
	}

	out := make([]*slot.Slot, 0, len(collected))
	for _, row := range collected {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func buildSlotUpdate(id slot.ID, change slot.Change) (string, []any) {
	sets := make([]string, 0, 5)
	args := []any{id.String()}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if change.Reserved != nil {
		add("reserved", *change.Reserved)
	}
	if change.Occupied != nil {
		add("occupied", *change.Occupied)
	}
	if change.HolderEmail != nil {
		add("holder_email", *change.HolderEmail)
	}
	if change.ReservedAt.Set {
		add("reserved_at", pgconv.TimePtrToPgtype(utcPtr(change.ReservedAt.Time)))
	}
	sets = append(sets, "updated_at = now()")

	return "UPDATE parking_slots SET " + strings.Join(sets, ", ") + " WHERE id = $1", args
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
