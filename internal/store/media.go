package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"reel/internal/media"
)

const mediaColumns = `id, title, description, file_type, input_name, encoding, encoded, uploaded,
    keep_input_file, owner, created_at, updated_at`

func scanMedia(row rowScanner) (*media.Media, error) {
	var (
		m                                 media.Media
		fileType                          string
		description, inputName, owner     sql.NullString
		encoding, encoded, uploaded, keep int
		createdAt, updatedAt              string
	)
	if err := row.Scan(
		&m.ID, &m.Title, &description, &fileType, &inputName,
		&encoding, &encoded, &uploaded, &keep, &owner, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	m.FileType = media.FileType(fileType)
	m.Description = description.String
	m.InputName = inputName.String
	m.Owner = owner.String
	m.Encoding = encoding != 0
	m.Encoded = encoded != 0
	m.Uploaded = uploaded != 0
	m.KeepInputFile = keep != 0
	m.CreatedAt = parseTimeString(createdAt)
	m.UpdatedAt = parseTimeString(updatedAt)
	return &m, nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loadMedia(ctx context.Context, q queryer, id int64) (*media.Media, error) {
	m, err := scanMedia(q.QueryRowContext(ctx, "SELECT "+mediaColumns+" FROM media WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load media %d: %w", id, err)
	}
	if err := loadRelations(ctx, q, m); err != nil {
		return nil, err
	}
	return m, nil
}

func loadRelations(ctx context.Context, q queryer, m *media.Media) error {
	rows, err := q.QueryContext(ctx,
		"SELECT profile_id FROM media_profiles WHERE media_id = ? ORDER BY position, profile_id", m.ID)
	if err != nil {
		return fmt.Errorf("load profiles for media %d: %w", m.ID, err)
	}
	m.ProfileIDs = nil
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan profile id: %w", err)
		}
		m.ProfileIDs = append(m.ProfileIDs, id)
	}
	if err := rows.Close(); err != nil {
		return err
	}

	rows, err = q.QueryContext(ctx, `SELECT f.id, f.title, f.name, f.url, f.profile_id, f.created_at
        FROM media_files f JOIN media_outputs o ON o.file_id = f.id
        WHERE o.media_id = ? ORDER BY f.id`, m.ID)
	if err != nil {
		return fmt.Errorf("load outputs for media %d: %w", m.ID, err)
	}
	defer rows.Close()
	m.Outputs = nil
	for rows.Next() {
		var (
			f         media.File
			url       sql.NullString
			profileID sql.NullInt64
			createdAt string
		)
		if err := rows.Scan(&f.ID, &f.Title, &f.Name, &url, &profileID, &createdAt); err != nil {
			return fmt.Errorf("scan output: %w", err)
		}
		f.URL = url.String
		f.ProfileID = profileID.Int64
		f.CreatedAt = parseTimeString(createdAt)
		m.Outputs = append(m.Outputs, f)
	}
	return rows.Err()
}

// CreateMedia inserts m and its requested profiles, assigning ID and timestamps.
func (s *Store) CreateMedia(ctx context.Context, m *media.Media) error {
	if m == nil {
		return errors.New("create media: nil entity")
	}
	if m.Persisted() {
		return fmt.Errorf("create media: entity already has id %d", m.ID)
	}
	now := time.Now().UTC()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO media (title, description, file_type, input_name,
                encoding, encoded, uploaded, keep_input_file, owner, created_at, updated_at)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.Title, nullableString(m.Description), string(m.FileType), nullableString(m.InputName),
			boolToInt(m.Encoding), boolToInt(m.Encoded), boolToInt(m.Uploaded), boolToInt(m.KeepInputFile),
			nullableString(m.Owner), formatTime(now), formatTime(now),
		)
		if err != nil {
			return fmt.Errorf("insert media: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("media id: %w", err)
		}
		for i, pid := range m.ProfileIDs {
			if _, err := tx.ExecContext(ctx,
				"INSERT OR IGNORE INTO media_profiles (media_id, profile_id, position) VALUES (?, ?, ?)",
				id, pid, i,
			); err != nil {
				return fmt.Errorf("attach profile %d: %w", pid, err)
			}
		}
		m.ID = id
		m.CreatedAt = now
		m.UpdatedAt = now
		return nil
	})
}

// UpdateMedia persists the scalar fields and lifecycle flags of m.
func (s *Store) UpdateMedia(ctx context.Context, m *media.Media) error {
	if !m.Persisted() {
		return errors.New("update media: entity has no id")
	}
	now := time.Now().UTC()
	res, err := s.execWithRetry(ctx, `UPDATE media SET
            title = ?, description = ?, file_type = ?, input_name = ?,
            encoding = ?, encoded = ?, uploaded = ?, keep_input_file = ?, owner = ?, updated_at = ?
        WHERE id = ?`,
		m.Title, nullableString(m.Description), string(m.FileType), nullableString(m.InputName),
		boolToInt(m.Encoding), boolToInt(m.Encoded), boolToInt(m.Uploaded), boolToInt(m.KeepInputFile),
		nullableString(m.Owner), formatTime(now), m.ID,
	)
	if err != nil {
		return fmt.Errorf("update media %d: %w", m.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &media.MediaNotFound{ID: m.ID}
	}
	m.UpdatedAt = now
	return nil
}

// GetMedia returns the entity with its profiles and outputs, or nil when absent.
func (s *Store) GetMedia(ctx context.Context, id int64) (*media.Media, error) {
	return loadMedia(ctx, s.db, id)
}

// AttachProfile adds profileID to the requested set of mediaID. Attaching an
// already requested profile is a no-op.
func (s *Store) AttachProfile(ctx context.Context, mediaID, profileID int64) error {
	_, err := s.execWithRetry(ctx, `INSERT OR IGNORE INTO media_profiles (media_id, profile_id, position)
        SELECT ?, ?, COALESCE(MAX(position) + 1, 0) FROM media_profiles WHERE media_id = ?`,
		mediaID, profileID, mediaID)
	if err != nil {
		return fmt.Errorf("attach profile %d to media %d: %w", profileID, mediaID, err)
	}
	return nil
}

// OutputCount returns the number of outputs recorded for mediaID.
func (s *Store) OutputCount(ctx context.Context, mediaID int64) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM media_outputs WHERE media_id = ?", mediaID,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("count outputs for media %d: %w", mediaID, err)
	}
	return count, nil
}

// ErrOutputExists reports that mediaID already has an output for the file's
// profile. Nothing is written when it is returned.
var ErrOutputExists = errors.New("output already recorded for profile")

// AddOutput records file as an output of mediaID. Inside the same
// transaction it reloads the entity and, once every requested profile has an
// output, applies the completion transition. The returned entity reflects
// the committed state. At most one output is kept per profile.
func (s *Store) AddOutput(ctx context.Context, mediaID int64, file *media.File) (*media.Media, error) {
	if file == nil {
		return nil, errors.New("add output: nil file")
	}
	var result *media.Media
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM media WHERE id = ?", mediaID).Scan(&exists); err != nil {
			return fmt.Errorf("check media %d: %w", mediaID, err)
		}
		if exists == 0 {
			return &media.MediaNotFound{ID: mediaID}
		}
		if file.ProfileID != 0 {
			var dup int
			if err := tx.QueryRowContext(ctx,
				`SELECT COUNT(1) FROM media_outputs o JOIN media_files f ON f.id = o.file_id
				WHERE o.media_id = ? AND f.profile_id = ?`, mediaID, file.ProfileID,
			).Scan(&dup); err != nil {
				return fmt.Errorf("check outputs for media %d: %w", mediaID, err)
			}
			if dup > 0 {
				return fmt.Errorf("media %d profile %d: %w", mediaID, file.ProfileID, ErrOutputExists)
			}
		}

		created := file.CreatedAt
		if created.IsZero() {
			created = time.Now().UTC()
		}
		res, err := tx.ExecContext(ctx,
			"INSERT INTO media_files (title, name, url, profile_id, created_at) VALUES (?, ?, ?, ?, ?)",
			file.Title, file.Name, nullableString(file.URL), nullableInt64(file.ProfileID), formatTime(created),
		)
		if err != nil {
			return fmt.Errorf("insert file: %w", err)
		}
		fileID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("file id: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO media_outputs (media_id, file_id) VALUES (?, ?)", mediaID, fileID,
		); err != nil {
			return fmt.Errorf("link output: %w", err)
		}

		m, err := loadMedia(ctx, tx, mediaID)
		if err != nil {
			return err
		}
		if m.Ready() && !m.Encoded {
			if err := m.Complete(); err != nil {
				return err
			}
			now := time.Now().UTC()
			if _, err := tx.ExecContext(ctx,
				"UPDATE media SET encoding = 0, encoded = 1, uploaded = 1, updated_at = ? WHERE id = ?",
				formatTime(now), mediaID,
			); err != nil {
				return fmt.Errorf("complete media %d: %w", mediaID, err)
			}
			m.UpdatedAt = now
		}
		file.ID = fileID
		file.CreatedAt = created
		result = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListFilter narrows ListMedia results. Zero values match everything.
type ListFilter struct {
	FileType media.FileType
	Status   string
	Owner    string
	Limit    int
}

// ListMedia returns entities matching filter, newest first.
func (s *Store) ListMedia(ctx context.Context, filter ListFilter) ([]*media.Media, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.FileType != "" {
		clauses = append(clauses, "file_type = ?")
		args = append(args, string(filter.FileType))
	}
	if filter.Owner != "" {
		clauses = append(clauses, "owner = ?")
		args = append(args, filter.Owner)
	}
	switch strings.ToLower(filter.Status) {
	case "":
	case "complete":
		clauses = append(clauses, "encoded = 1 AND uploaded = 1")
	case "encoding":
		clauses = append(clauses, "encoding = 1")
	case "idle":
		clauses = append(clauses, "encoding = 0 AND NOT (encoded = 1 AND uploaded = 1)")
	default:
		return nil, fmt.Errorf("unknown status filter %q", filter.Status)
	}

	query := "SELECT " + mediaColumns + " FROM media"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	var items []*media.Media
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan media: %w", err)
		}
		items = append(items, m)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, m := range items {
		if err := loadRelations(ctx, s.db, m); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// MediaByIDs loads several entities at once, skipping ids that do not exist.
func (s *Store) MediaByIDs(ctx context.Context, ids []int64) ([]*media.Media, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+mediaColumns+" FROM media WHERE id IN ("+makePlaceholders(len(ids))+") ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("load media by ids: %w", err)
	}
	var items []*media.Media
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan media: %w", err)
		}
		items = append(items, m)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	for _, m := range items {
		if err := loadRelations(ctx, s.db, m); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// Stats summarizes stored media.
type Stats struct {
	Total    int
	Encoding int
	Complete int
	Outputs  int
	ByType   map[media.FileType]int
}

// Stats returns aggregate counts across all media.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{ByType: make(map[media.FileType]int)}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*),
            COALESCE(SUM(encoding), 0),
            COALESCE(SUM(CASE WHEN encoded = 1 AND uploaded = 1 THEN 1 ELSE 0 END), 0)
        FROM media`).Scan(&stats.Total, &stats.Encoding, &stats.Complete); err != nil {
		return Stats{}, fmt.Errorf("media stats: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM media_outputs").Scan(&stats.Outputs); err != nil {
		return Stats{}, fmt.Errorf("output stats: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, "SELECT file_type, COUNT(*) FROM media GROUP BY file_type")
	if err != nil {
		return Stats{}, fmt.Errorf("type stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			fileType string
			count    int
		)
		if err := rows.Scan(&fileType, &count); err != nil {
			return Stats{}, err
		}
		stats.ByType[media.FileType(fileType)] = count
	}
	return stats, rows.Err()
}
