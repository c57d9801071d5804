package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/seletivo/admissions-api/pkg/export"
	appErrors "github.com/seletivo/admissions-api/pkg/errors"
	"github.com/seletivo/admissions-api/pkg/storage"
)

// ExportFormat selects the rendered file type.
type ExportFormat string

// Supported export formats.
const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(table export.Table) ([]byte, error)
}

type pdfRenderer interface {
	Render(table export.Table) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string       `json:"relative_path"`
	Token        string       `json:"token"`
	URL          string       `json:"url"`
	Format       ExportFormat `json:"format"`
	ExpiresAt    time.Time    `json:"expires_at"`
}

// ExportService renders ranked call lists to CSV or PDF and hands back a
// signed download URL.
type ExportService struct {
	lists   rankedListReader
	storage fileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(lists rankedListReader, files fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		lists:   lists,
		storage: files,
		csv:     csv,
		pdf:     pdf,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
	}
}

// Generate renders the ranked list of (round, course, category) and stores
// the file.
func (s *ExportService) Generate(ctx context.Context, roundID, courseID, categoryID string, format ExportFormat) (*ExportResult, error) {
	list, err := s.lists.Find(ctx, roundID, courseID, categoryID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch call list")
	}
	if list == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no call list for this round, course and category")
	}
	entries, err := s.lists.Entries(ctx, list.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list entries")
	}

	table := export.Table{Title: fmt.Sprintf("Call list (vacancy %d)", list.Vacancy)}
	for _, entry := range entries {
		rank := ""
		if entry.Rank != nil {
			rank = strconv.Itoa(*entry.Rank)
		}
		table.Rows = append(table.Rows, export.Row{
			Position:     entry.Position,
			Candidate:    entry.CandidateName,
			Registration: entry.RegistrationID,
			Rank:         rank,
		})
	}

	var payload []byte
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(table)
	case ExportFormatPDF:
		payload, err = s.pdf.Render(table)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %s", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	filename := fmt.Sprintf("calllist_%s_%s.%s",
		sanitizeFilename(list.ID), time.Now().UTC().Format("20060102_150405"), format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}

	token, expiresAt, err := s.signer.Generate(list.ID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	s.logger.Info("ranked list exported",
		zap.String("call_list_id", list.ID),
		zap.String("format", string(format)),
		zap.Int("entries", len(entries)),
	)
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/exports/%s", prefix, token),
		Format:       format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (listID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Cleanup removes files older than ttl (defaults to the configured TTL when
// ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
