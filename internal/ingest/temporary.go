package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"reel/internal/logging"
	"reel/internal/media"
	"reel/internal/pipeline"
	"reel/internal/services"
	"reel/internal/storage"
)

// DefaultExtension is used when neither the caller nor content sniffing
// provides one.
const DefaultExtension = "media"

// Submitter creates media from uploaded bytes. *pipeline.Service satisfies it.
type Submitter interface {
	Submit(ctx context.Context, req pipeline.SubmitRequest) (*media.Media, error)
}

// TemporaryFile describes how raw upload bytes are staged before submission.
type TemporaryFile struct {
	// Dir holds the staging file. Empty uses the OS temp dir.
	Dir    string
	Prefix string
	// Extension names the staged file. Empty sniffs the content and falls
	// back to DefaultExtension.
	Extension     string
	FileType      media.FileType
	Profiles      []string
	KeepInputFile *bool
	Owner         string
	Logger        *slog.Logger
}

// SaveDataURI decodes uri and saves the result. Nothing is written when the
// payload does not decode.
func (t TemporaryFile) SaveDataURI(ctx context.Context, submit Submitter, uri string) (*media.Media, error) {
	data, err := ParseDataURI(uri)
	if err != nil {
		return nil, err
	}
	return t.Save(ctx, submit, data)
}

// Save writes data to a staging file, submits it under a random title and
// removes the staging file again.
func (t TemporaryFile) Save(ctx context.Context, submit Submitter, data []byte) (*media.Media, error) {
	ctx = services.WithRequestID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, logging.NewComponentLogger(t.Logger, "ingest"))

	ext := strings.TrimPrefix(strings.TrimSpace(t.Extension), ".")
	if ext == "" {
		ext = storage.DetectExtension(data)
	}
	if ext == "" {
		ext = DefaultExtension
	}
	title, err := media.RandomFilename(ext, 0)
	if err != nil {
		return nil, err
	}

	if t.Dir != "" {
		if err := os.MkdirAll(t.Dir, 0o755); err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "ingest", "stage",
				fmt.Sprintf("create staging dir %s", t.Dir), err)
		}
	}
	staged, err := os.CreateTemp(t.Dir, t.Prefix+"*."+ext)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "ingest", "stage", "create staging file", err)
	}
	stagedPath := staged.Name()
	defer func() {
		if err := os.Remove(stagedPath); err != nil && !os.IsNotExist(err) {
			logger.Warn("staging file not removed", logging.String("path", stagedPath), logging.Error(err))
		}
	}()

	if _, err := staged.Write(data); err != nil {
		staged.Close()
		return nil, services.Wrap(services.ErrTransient, "ingest", "stage", "write staging file", err)
	}
	if _, err := staged.Seek(0, io.SeekStart); err != nil {
		staged.Close()
		return nil, services.Wrap(services.ErrTransient, "ingest", "stage", "rewind staging file", err)
	}
	defer staged.Close()

	logger.Debug("staged upload",
		logging.String("path", stagedPath),
		logging.Int("bytes", len(data)),
	)
	m, err := submit.Submit(ctx, pipeline.SubmitRequest{
		Title:         title,
		FileType:      t.FileType,
		Filename:      filepath.Base(stagedPath),
		Source:        staged,
		Profiles:      t.Profiles,
		KeepInputFile: t.KeepInputFile,
		Owner:         t.Owner,
	})
	if err != nil {
		return m, err
	}
	logger.Info("ingested upload",
		logging.Int64(logging.FieldMediaID, m.ID),
		logging.String("title", m.Title),
		logging.String("input", m.InputName),
	)
	return m, nil
}
