package sqlite

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/storage"
)

// Timestamps are stored as RFC 3339 text in UTC so they sort lexically.

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp %q: %w", storage.ErrSerializationFailed, s, err)
	}
	return t, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func now() time.Time {
	return time.Now().UTC()
}

// nullID stores 0 as NULL so optional references stay unset.
func nullID(id core.ID) any {
	if id == 0 {
		return nil
	}
	return int64(id)
}

func idFrom(n sql.NullInt64) core.ID {
	if !n.Valid {
		return 0
	}
	return core.ID(n.Int64)
}

func nullInt(p *int) any {
	if p == nil {
		return nil
	}
	return int64(*p)
}

func intFrom(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

// encodeJSON stores empty collections as NULL.
func encodeJSON[T any](v T, empty bool) (any, error) {
	if empty {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}
	return string(data), nil
}

func decodeJSON[T any](s sql.NullString, dst *T) error {
	if !s.Valid {
		return nil
	}
	if err := json.Unmarshal([]byte(s.String), dst); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}
	return nil
}

// encodeVector packs a vector as little-endian float32s.
func encodeVector(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf) == 0 {
		return nil, nil
	}
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("%w: embedding length %d", storage.ErrSerializationFailed, len(buf))
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// where accumulates the WHERE clause of a list query.
type where struct {
	clauses []string
	args    []any
}

func ownerScope(owner string) *where {
	return &where{clauses: []string{"owner_id = ?"}, args: []any{owner}}
}

func (w *where) add(clause string, arg any) *where {
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, arg)
	return w
}

// addIf adds clause only when cond holds.
func (w *where) addIf(cond bool, clause string, arg any) *where {
	if cond {
		w.add(clause, arg)
	}
	return w
}

// query renders a SELECT over table ordered by insertion.
func (w *where) query(columns, table string, limit int) (string, []any) {
	q := "SELECT " + columns + " FROM " + table + " WHERE " + strings.Join(w.clauses, " AND ") + " ORDER BY id"
	args := w.args
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	return q, args
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}
