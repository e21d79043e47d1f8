package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/storage"
)

const (
	sourceColumns     = "id, owner_id, type, url, metadata, created_at"
	rawContentColumns = "id, owner_id, source_id, text_content, checksum, created_at, processed_at"
)

// AddSource stores a new source.
func (s *Store) AddSource(ctx context.Context, source *core.Source) (*core.Source, error) {
	if err := core.ValidateSource(source); err != nil {
		return nil, err
	}
	metadata, err := encodeJSON(source.Metadata, len(source.Metadata) == 0)
	if err != nil {
		return nil, err
	}
	if source.CreatedAt.IsZero() {
		source.CreatedAt = now()
	}

	err = s.update(ctx, func(q querier) error {
		res, err := q.ExecContext(ctx,
			"INSERT INTO sources (owner_id, type, url, metadata, created_at) VALUES (?, ?, ?, ?, ?)",
			source.Owner, string(source.Kind), source.URL, metadata, formatTime(source.CreatedAt))
		if err != nil {
			return mapError(err)
		}
		source.Id, err = insertedID(res)
		return err
	})
	if err != nil {
		return nil, err
	}
	return source, nil
}

// AddRawContent stores a new raw content body under an existing source.
func (s *Store) AddRawContent(ctx context.Context, content *core.RawContent) (*core.RawContent, error) {
	if err := core.ValidateRawContent(content); err != nil {
		return nil, err
	}
	content.Checksum = core.Checksum(content.Text)
	content.ProcessedAt = nil
	if content.CreatedAt.IsZero() {
		content.CreatedAt = now()
	}

	err := s.update(ctx, func(q querier) error {
		if err := requireRef(ctx, q, sourcesTable, content.Owner, int64(content.SourceId), "source"); err != nil {
			return err
		}
		res, err := q.ExecContext(ctx,
			"INSERT INTO raw_content (owner_id, source_id, text_content, checksum, created_at) VALUES (?, ?, ?, ?, ?)",
			content.Owner, int64(content.SourceId), content.Text, int64(content.Checksum), formatTime(content.CreatedAt))
		if err != nil {
			return mapError(err)
		}
		content.Id, err = insertedID(res)
		return err
	})
	if err != nil {
		return nil, err
	}
	return content, nil
}

// GetSource retrieves a single source by ID.
func (s *Store) GetSource(ctx context.Context, owner string, id core.ID) (*core.Source, error) {
	row := s.conn(ctx).QueryRowContext(ctx,
		"SELECT "+sourceColumns+" FROM sources WHERE id = ? AND owner_id = ?", int64(id), owner)
	source, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, mapError(err)
	}
	return source, nil
}

// GetRawContent retrieves a single raw content by ID.
func (s *Store) GetRawContent(ctx context.Context, owner string, id core.ID) (*core.RawContent, error) {
	row := s.conn(ctx).QueryRowContext(ctx,
		"SELECT "+rawContentColumns+" FROM raw_content WHERE id = ? AND owner_id = ?", int64(id), owner)
	content, err := scanRawContent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, mapError(err)
	}
	return content, nil
}

// MarkProcessed stamps ProcessedAt once.
func (s *Store) MarkProcessed(ctx context.Context, owner string, id core.ID, at time.Time) error {
	return s.update(ctx, func(q querier) error {
		res, err := q.ExecContext(ctx,
			"UPDATE raw_content SET processed_at = ? WHERE id = ? AND owner_id = ? AND processed_at IS NULL",
			formatTime(at), int64(id), owner)
		if err != nil {
			return mapError(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 1 {
			return nil
		}

		// Nothing updated: tell a missing row from an already stamped one.
		if err := requireRef(ctx, q, rawContentTable, owner, int64(id), "raw content"); err != nil {
			if errors.Is(err, storage.ErrInvalidReference) {
				return storage.ErrNotFound
			}
			return err
		}
		return fmt.Errorf("%w: raw content %d", storage.ErrAlreadyProcessed, id)
	})
}

// ListSources returns an owner's sources.
func (s *Store) ListSources(ctx context.Context, owner string, filter storage.Filter) ([]*core.Source, error) {
	w := ownerScope(owner).
		addIf(filter.SourceId != 0, "id = ?", int64(filter.SourceId))
	return list(ctx, s, sourceColumns, sourcesTable, w, filter, scanSource)
}

// ListRawContents returns an owner's raw content.
func (s *Store) ListRawContents(ctx context.Context, owner string, filter storage.Filter) ([]*core.RawContent, error) {
	w := ownerScope(owner).
		addIf(filter.RawContentId != 0, "id = ?", int64(filter.RawContentId)).
		addIf(filter.SourceId != 0, "source_id = ?", int64(filter.SourceId))
	return list(ctx, s, rawContentColumns, rawContentTable, w, filter, scanRawContent)
}

func scanSource(row scanner) (*core.Source, error) {
	var (
		src       core.Source
		id        int64
		kind      string
		metadata  sql.NullString
		createdAt string
	)
	if err := row.Scan(&id, &src.Owner, &kind, &src.URL, &metadata, &createdAt); err != nil {
		return nil, err
	}
	src.Id = core.ID(id)
	src.Kind = core.SourceKind(kind)
	if err := decodeJSON(metadata, &src.Metadata); err != nil {
		return nil, err
	}
	var err error
	if src.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &src, nil
}

func scanRawContent(row scanner) (*core.RawContent, error) {
	var (
		rc          core.RawContent
		id          int64
		sourceID    int64
		checksum    int64
		createdAt   string
		processedAt sql.NullString
	)
	if err := row.Scan(&id, &rc.Owner, &sourceID, &rc.Text, &checksum, &createdAt, &processedAt); err != nil {
		return nil, err
	}
	rc.Id = core.ID(id)
	rc.SourceId = core.ID(sourceID)
	rc.Checksum = uint64(checksum)
	var err error
	if rc.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if rc.ProcessedAt, err = parseNullTime(processedAt); err != nil {
		return nil, err
	}
	return &rc, nil
}

func insertedID(res sql.Result) (core.ID, error) {
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return core.ID(id), nil
}

// list runs a filtered, owner-scoped SELECT and scans every row.
func list[T any](ctx context.Context, s *Store, columns, table string, w *where, filter storage.Filter, scan func(scanner) (*T, error)) ([]*T, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	query, args := w.query(columns, table, filter.Limit)
	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var results []*T
	for rows.Next() {
		rec, err := scan(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return results, nil
}
