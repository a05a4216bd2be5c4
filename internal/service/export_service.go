package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/blueridge-hs/registrar-api/internal/models"
	"github.com/blueridge-hs/registrar-api/pkg/export"
	"github.com/blueridge-hs/registrar-api/pkg/storage"
)

type eligibilityChecker interface {
	CheckEligibility(ctx context.Context, studentID, courseID string) (*models.EligibilityResult, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService builds report datasets and persists rendered files.
type ExportService struct {
	enrollments enrollmentAggregator
	students    rosterReader
	courses     catalogReader
	eligibility eligibilityChecker
	storage     fileStorage
	csv         csvRenderer
	pdf         pdfRenderer
	signer      *storage.SignedURLSigner
	logger      *zap.Logger
	cfg         ExportConfig
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// NewExportService constructs an ExportService.
func NewExportService(enrollments enrollmentAggregator, students rosterReader, courses catalogReader, eligibility eligibilityChecker, storage fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
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
		enrollments: enrollments,
		students:    students,
		courses:     courses,
		eligibility: eligibility,
		storage:     storage,
		csv:         csv,
		pdf:         pdf,
		signer:      signer,
		logger:      logger,
		cfg:         cfg,
	}
}

// Generate builds the dataset according to the job definition and stores the rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/export/%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	scope := sanitizeFilename(deref(job.Params.CourseID))
	return fmt.Sprintf("%s_%s_%s.%s", strings.ToLower(string(job.Type)), scope, timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "all"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ReportTypeAssignments:
		return s.buildAssignmentsDataset(ctx, job.Params)
	case models.ReportTypeEligibility:
		return s.buildEligibilityDataset(ctx, job.Params)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func (s *ExportService) buildAssignmentsDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	rows, err := s.enrollments.AggregateCourseFill(ctx)
	if err != nil {
		return export.Dataset{}, "", err
	}
	filter := deref(params.CourseID)
	dataRows := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		if filter != "" && row.CourseID != filter {
			continue
		}
		var fill float64
		if row.Capacity > 0 {
			fill = float64(row.Enrolled) / float64(row.Capacity) * 100
		}
		dataRows = append(dataRows, map[string]string{
			"Course Code": row.CourseCode,
			"Course Name": row.CourseName,
			"Sections":    fmt.Sprintf("%d", row.Sections),
			"Capacity":    fmt.Sprintf("%d", row.Capacity),
			"Enrolled":    fmt.Sprintf("%d", row.Enrolled),
			"Fill (%)":    fmt.Sprintf("%.2f", fill),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Course Code", "Course Name", "Sections", "Capacity", "Enrolled", "Fill (%)"},
		Rows:    dataRows,
	}
	return dataset, "Assignment Report", nil
}

func (s *ExportService) buildEligibilityDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	courseID := deref(params.CourseID)
	if courseID == "" {
		return export.Dataset{}, "", fmt.Errorf("courseId required for eligibility report")
	}
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		return export.Dataset{}, "", err
	}
	students, err := s.students.ListActive(ctx)
	if err != nil {
		return export.Dataset{}, "", err
	}
	dataRows := make([]map[string]string, 0, len(students))
	for _, student := range students {
		result, err := s.eligibility.CheckEligibility(ctx, student.ID, courseID)
		if err != nil {
			return export.Dataset{}, "", err
		}
		dataRows = append(dataRows, map[string]string{
			"Student No":  student.StudentNo,
			"Full Name":   student.FullName,
			"Grade Level": student.GradeLevel,
			"Eligible":    fmt.Sprintf("%t", result.Meets),
			"Reason":      result.Reason,
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Student No", "Full Name", "Grade Level", "Eligible", "Reason"},
		Rows:    dataRows,
	}
	title := fmt.Sprintf("Eligibility Report %s", course.Code)
	return dataset, title, nil
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
