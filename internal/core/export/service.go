// Package export packages completed batch results: single transcript or
// subtitle files, a combined ZIP with a manifest, and optional upload of the
// archive to a storage bucket.
package export

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reelscribe/internal/config"
	"reelscribe/internal/core/batch"
	"reelscribe/internal/logger"

	"github.com/antoineross/supabase-go"
	storage_go "github.com/supabase-community/storage-go"
)

var (
	ErrExportFailed = errors.New("export failed")
	ErrNoResults    = errors.New("no completed results to export")
)

type Service struct {
	log   *logger.Logger
	cfg   config.Config
	clock batch.Clock

	supabaseClient *supabase.Client
}

func New(cfg config.Config, clock batch.Clock) (*Service, error) {
	s := &Service{log: logger.New("ExportService"), cfg: cfg, clock: clock}
	if s.clock == nil {
		s.clock = batch.NewClock()
	}

	// In production the archive must land in a bucket, not on local disk.
	if cfg.AppEnv == "production" {
		if cfg.SupabaseURL == "" || cfg.SupabaseServiceKey == "" || cfg.SupabaseBucket == "" {
			return nil, fmt.Errorf("production environment requires Supabase configuration: NEXT_PUBLIC_SUPABASE_URL, SUPABASE_SERVICE_ROLE_KEY, and SUPABASE_STORAGE_BUCKET must be set")
		}
	}
	if cfg.SupabaseURL != "" && cfg.SupabaseServiceKey != "" {
		client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, nil)
		if err != nil {
			if cfg.AppEnv == "production" {
				return nil, fmt.Errorf("failed to initialize Supabase client in production: %w", err)
			}
			s.log.LogWarnf("failed to initialize Supabase client: %v", err)
		} else {
			s.supabaseClient = client
		}
	}
	return s, nil
}

// SingleFile renders one result as a downloadable payload. Format is "txt"
// for the plain transcript or "srt" for the subtitle block.
func (s *Service) SingleFile(res batch.Result, format string) (string, []byte, error) {
	switch strings.ToLower(format) {
	case "", "txt":
		return res.ExportBaseName + ".txt", []byte(res.Text), nil
	case "srt":
		return res.ExportBaseName + ".srt", []byte(res.SubtitleText), nil
	default:
		return "", nil, fmt.Errorf("%w: unknown format %q", ErrExportFailed, format)
	}
}

// Archive builds one ZIP holding a .txt and .srt per result plus a manifest
// listing every entry in completion order.
func (s *Service) Archive(results []batch.Result) ([]byte, error) {
	if len(results) == 0 {
		return nil, ErrNoResults
	}

	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)

	write := func(name string, content string) error {
		f, err := zw.Create(name)
		if err != nil {
			return err
		}
		_, err = f.Write([]byte(content))
		return err
	}

	var manifest strings.Builder
	for i, res := range results {
		if err := write(res.ExportBaseName+".txt", res.Text); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrExportFailed, err)
		}
		if err := write(res.ExportBaseName+".srt", res.SubtitleText); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrExportFailed, err)
		}
		fmt.Fprintf(&manifest, "%d. %s\n   Filename: %s\n\n", i+1, res.SourceURL, res.ExportBaseName)
	}
	if err := write("manifest.txt", manifest.String()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExportFailed, err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExportFailed, err)
	}
	return buf.Bytes(), nil
}

// SaveArchive builds the archive and stores it: Supabase bucket with a signed
// URL when configured, local DATA_DIR fallback otherwise (non-production only).
func (s *Service) SaveArchive(results []batch.Result) (string, string, error) {
	data, err := s.Archive(results)
	if err != nil {
		return "", "", err
	}
	name := "transcripts_" + time.Now().Format("20060102_150405") + ".zip"

	if s.supabaseClient != nil && s.cfg.SupabaseBucket != "" {
		bucketPath := filepath.ToSlash(filepath.Join("exports", name))
		mimeType := "application/zip"
		reader := bytes.NewReader(data)
		if _, err := s.supabaseClient.Storage.UploadFile(s.cfg.SupabaseBucket, bucketPath, reader, storage_go.FileOptions{ContentType: &mimeType}); err != nil {
			if s.cfg.AppEnv == "production" {
				return "", "", fmt.Errorf("%w: bucket upload: %v", ErrExportFailed, err)
			}
			s.log.LogWarnf("Supabase upload failed, falling back to local storage: %v", err)
			return s.saveLocal(name, data)
		}
		signed, err := s.supabaseClient.Storage.CreateSignedUrl(s.cfg.SupabaseBucket, bucketPath, 15*60)
		if err != nil {
			if s.cfg.AppEnv == "production" {
				return "", "", fmt.Errorf("%w: signed URL: %v", ErrExportFailed, err)
			}
			s.log.LogWarnf("signed URL creation failed, falling back to local storage: %v", err)
			return s.saveLocal(name, data)
		}
		return bucketPath, signed.SignedURL, nil
	}

	if s.cfg.AppEnv == "production" {
		return "", "", fmt.Errorf("%w: supabase storage is required in production", ErrExportFailed)
	}
	return s.saveLocal(name, data)
}

func (s *Service) saveLocal(name string, data []byte) (string, string, error) {
	dir := filepath.Join(s.cfg.DataDir, "exports")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrExportFailed, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrExportFailed, err)
	}
	return path, "/files/exports/" + name, nil
}

// WriteAll saves each result as individual .txt and .srt files under dir,
// spacing results out so rapid successive saves do not get throttled.
func (s *Service) WriteAll(ctx context.Context, results []batch.Result, dir string) error {
	if len(results) == 0 {
		return ErrNoResults
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrExportFailed, err)
	}
	delay := time.Duration(s.cfg.ExportDelayMillis) * time.Millisecond
	for i, res := range results {
		if err := os.WriteFile(filepath.Join(dir, res.ExportBaseName+".txt"), []byte(res.Text), 0o644); err != nil {
			return fmt.Errorf("%w: %v", ErrExportFailed, err)
		}
		if err := os.WriteFile(filepath.Join(dir, res.ExportBaseName+".srt"), []byte(res.SubtitleText), 0o644); err != nil {
			return fmt.Errorf("%w: %v", ErrExportFailed, err)
		}
		if i < len(results)-1 && delay > 0 {
			s.clock.Sleep(ctx, delay)
		}
	}
	return nil
}
