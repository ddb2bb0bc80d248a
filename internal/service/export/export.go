// Package export renders the traceability job list as an xlsx workbook
// and optionally archives it in object storage.
package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/Alijeyrad/labtrace_backend/internal/service/traceability"
)

const (
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	sheetName   = "Jobs"
)

// Archiver is the object storage the workbook is archived in.
type Archiver interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	PresignDownload(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

type Archive struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Service interface {
	// Workbook renders every job matching q.
	Workbook(ctx context.Context, q string) (*bytes.Buffer, error)
	// Archive uploads the workbook and returns a presigned link to it.
	Archive(ctx context.Context, q string) (*Archive, error)
	Filename() string
}

type service struct {
	jobs     traceability.Service
	archiver Archiver
	ttl      time.Duration
	log      *slog.Logger
	now      func() time.Time
}

// New builds the export service. archiver may be nil when archiving is
// disabled.
func New(jobs traceability.Service, archiver Archiver, ttl time.Duration, log *slog.Logger) Service {
	if log == nil {
		log = slog.Default()
	}
	return &service{jobs: jobs, archiver: archiver, ttl: ttl, log: log, now: time.Now}
}

var columns = []struct {
	title string
	width float64
	value func(traceability.JobRow) any
}{
	{"Job ID", 18, func(r traceability.JobRow) any { return r.JobID }},
	{"Client", 28, func(r traceability.JobRow) any { return r.ClientName }},
	{"Project", 28, func(r traceability.JobRow) any { return r.ProjectName }},
	{"Samples", 10, func(r traceability.JobRow) any { return r.SampleCount }},
	{"Status", 16, func(r traceability.JobRow) any { return string(r.Status) }},
	{"Items", 10, func(r traceability.JobRow) any { return r.ItemsCount }},
	{"Specimens", 12, func(r traceability.JobRow) any { return r.SpecimensCount }},
	{"Received", 20, func(r traceability.JobRow) any { return r.CreatedAt.UTC().Format("2006-01-02 15:04") }},
}

func (s *service) Workbook(ctx context.Context, q string) (*bytes.Buffer, error) {
	rows, err := s.jobs.ExportJobs(ctx, q)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("export: header style: %w", err)
	}

	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, col.title); err != nil {
			return nil, fmt.Errorf("export: %w", err)
		}
		name, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheetName, name, name, col.width); err != nil {
			return nil, fmt.Errorf("export: %w", err)
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(columns), 1)
	if err := f.SetCellStyle(sheetName, "A1", last, headerStyle); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	for r, row := range rows {
		for c, col := range columns {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheetName, cell, col.value(row)); err != nil {
				return nil, fmt.Errorf("export: %w", err)
			}
		}
	}

	if err := f.SetPanes(sheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("export: write workbook: %w", err)
	}
	return buf, nil
}

func (s *service) Archive(ctx context.Context, q string) (*Archive, error) {
	if s.archiver == nil {
		return nil, ErrArchiveDisabled
	}
	buf, err := s.Workbook(ctx, q)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	key := fmt.Sprintf("exports/jobs/%s-%s.xlsx", now.Format("20060102T150405Z"), uuid.NewString())
	if err := s.archiver.Upload(ctx, key, ContentType, bytes.NewReader(buf.Bytes()), int64(buf.Len())); err != nil {
		return nil, err
	}
	url, err := s.archiver.PresignDownload(ctx, key)
	if err != nil {
		if derr := s.archiver.Delete(ctx, key); derr != nil {
			s.log.WarnContext(ctx, "export: delete unlinked archive failed", "key", key, "err", derr)
		}
		return nil, err
	}

	s.log.InfoContext(ctx, "export archived", "key", key, "bytes", buf.Len())
	return &Archive{Key: key, URL: url, ExpiresAt: now.Add(s.ttl)}, nil
}

func (s *service) Filename() string {
	return fmt.Sprintf("traceability_jobs_%s.xlsx", s.now().UTC().Format("20060102_150405"))
}
