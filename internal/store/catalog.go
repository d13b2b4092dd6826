package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"reel/internal/config"
	"reel/internal/media"
)

// SyncCatalog upserts the configured encoders and profiles by name. Rows
// that are no longer configured are left in place so existing media keep
// their profile references.
func (s *Store) SyncCatalog(ctx context.Context, encoders []config.Encoder, profiles []config.Profile) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, enc := range encoders {
			if _, err := tx.ExecContext(ctx, `INSERT INTO encoders (name, path, kind, flags, description, documentation_url)
                VALUES (?, ?, ?, ?, ?, ?)
                ON CONFLICT(name) DO UPDATE SET
                    path = excluded.path,
                    kind = excluded.kind,
                    flags = excluded.flags,
                    description = excluded.description,
                    documentation_url = excluded.documentation_url`,
				enc.Name, enc.Path, enc.Kind, enc.Flags,
				nullableString(enc.Description), nullableString(enc.DocumentationURL),
			); err != nil {
				return fmt.Errorf("upsert encoder %q: %w", enc.Name, err)
			}
		}
		for _, p := range profiles {
			res, err := tx.ExecContext(ctx, `INSERT INTO profiles (name, description, container, mime_type, video_codec, audio_codec, command, encoder_id)
                SELECT ?, ?, ?, ?, ?, ?, ?, id FROM encoders WHERE name = ?
                ON CONFLICT(name) DO UPDATE SET
                    description = excluded.description,
                    container = excluded.container,
                    mime_type = excluded.mime_type,
                    video_codec = excluded.video_codec,
                    audio_codec = excluded.audio_codec,
                    command = excluded.command,
                    encoder_id = excluded.encoder_id`,
				p.Name, nullableString(p.Description), p.Container,
				nullableString(p.MIMEType), nullableString(p.VideoCodec), nullableString(p.AudioCodec),
				p.Command, p.Encoder,
			)
			if err != nil {
				return fmt.Errorf("upsert profile %q: %w", p.Name, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return fmt.Errorf("upsert profile %q: encoder %q is not in the catalog", p.Name, p.Encoder)
			}
		}
		return nil
	})
}

const profileColumns = `p.id, p.name, p.description, p.container, p.mime_type, p.video_codec, p.audio_codec, p.command,
    e.id, e.name, e.path, e.kind, e.flags, e.description, e.documentation_url`

const profileFrom = ` FROM profiles p JOIN encoders e ON e.id = p.encoder_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*media.Profile, error) {
	var p media.Profile
	var desc, mime, vcodec, acodec, encDesc, encDocs sql.NullString
	if err := row.Scan(
		&p.ID, &p.Name, &desc, &p.Container, &mime, &vcodec, &acodec, &p.Command,
		&p.Encoder.ID, &p.Encoder.Name, &p.Encoder.Path, &p.Encoder.Kind, &p.Encoder.Flags, &encDesc, &encDocs,
	); err != nil {
		return nil, err
	}
	p.Description = desc.String
	p.MIMEType = mime.String
	p.VideoCodec = vcodec.String
	p.AudioCodec = acodec.String
	p.Encoder.Description = encDesc.String
	p.Encoder.DocumentationURL = encDocs.String
	return &p, nil
}

// Profile returns the profile with id joined to its encoder, or nil when absent.
func (s *Store) Profile(ctx context.Context, id int64) (*media.Profile, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+profileColumns+profileFrom+" WHERE p.id = ?", id)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load profile %d: %w", id, err)
	}
	return p, nil
}

// ProfileByName returns the profile named name (case-insensitive), or nil when absent.
func (s *Store) ProfileByName(ctx context.Context, name string) (*media.Profile, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+profileColumns+profileFrom+" WHERE lower(p.name) = ?",
		strings.ToLower(strings.TrimSpace(name)))
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", name, err)
	}
	return p, nil
}

// ListProfiles returns every catalog profile ordered by id.
func (s *Store) ListProfiles(ctx context.Context) ([]media.Profile, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+profileColumns+profileFrom+" ORDER BY p.id")
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []media.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

// ListEncoders returns every catalog encoder ordered by id.
func (s *Store) ListEncoders(ctx context.Context) ([]media.Encoder, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, path, kind, flags, description, documentation_url FROM encoders ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list encoders: %w", err)
	}
	defer rows.Close()

	var encoders []media.Encoder
	for rows.Next() {
		var (
			enc           media.Encoder
			desc, docsURL sql.NullString
		)
		if err := rows.Scan(&enc.ID, &enc.Name, &enc.Path, &enc.Kind, &enc.Flags, &desc, &docsURL); err != nil {
			return nil, fmt.Errorf("scan encoder: %w", err)
		}
		enc.Description = desc.String
		enc.DocumentationURL = docsURL.String
		encoders = append(encoders, enc)
	}
	return encoders, rows.Err()
}
