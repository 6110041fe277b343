package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cellarlog/cellarlog/internal/constants"
	"github.com/cellarlog/cellarlog/internal/models"
	"github.com/cellarlog/cellarlog/internal/repository"
)

// ExportFormat selects the output format of an export.
type ExportFormat string

const (
	ExportFormatJSON     ExportFormat = "json"
	ExportFormatCSV      ExportFormat = "csv"
	ExportFormatMarkdown ExportFormat = "markdown"
)

// ParseExportFormat validates a format string from a request.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(s)) {
	case ExportFormatJSON:
		return ExportFormatJSON, nil
	case ExportFormatCSV:
		return ExportFormatCSV, nil
	case ExportFormatMarkdown, "md":
		return ExportFormatMarkdown, nil
	default:
		return "", fmt.Errorf("%w: unknown export format %q", ErrInvalidInput, s)
	}
}

// ExportFile is a rendered export ready to be sent or uploaded.
type ExportFile struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
	NoteCount   int    `json:"note_count"`
	StorageKey  string `json:"storage_key,omitempty"`
}

// ExportService renders tasting notes and the calibration scale into
// portable files. Markdown exports carry the structured fields as YAML
// frontmatter so they round-trip into plain-text note systems.
type ExportService struct {
	repos       *repository.Repositories
	entitlement *EntitlementService
	storage     *StorageService
	logger      *slog.Logger
}

// NewExportService creates a new export service.
func NewExportService(repos *repository.Repositories, entitlement *EntitlementService, storage *StorageService, logger *slog.Logger) *ExportService {
	return &ExportService{
		repos:       repos,
		entitlement: entitlement,
		storage:     storage,
		logger:      logger,
	}
}

// exportPageSize bounds each repository page while collecting notes.
const exportPageSize = 500

// ExportNotes renders all tasting notes with the given status ("" means
// every status) in the requested format. When upload is set and object
// storage is configured the file is also stored under exports/.
func (s *ExportService) ExportNotes(ctx context.Context, format ExportFormat, status models.NoteStatus, upload bool) (*ExportFile, error) {
	if err := s.entitlement.RequireFeature(ctx, constants.FeatureExport); err != nil {
		return nil, err
	}

	notes, err := s.collectNotes(ctx, status)
	if err != nil {
		return nil, err
	}

	stamp := time.Now().UTC().Format("20060102-150405")
	file := &ExportFile{NoteCount: len(notes)}

	switch format {
	case ExportFormatJSON:
		file.Filename = fmt.Sprintf("cellarlog-notes-%s.json", stamp)
		file.ContentType = "application/json"
		file.Data, err = renderNotesJSON(notes)
	case ExportFormatCSV:
		file.Filename = fmt.Sprintf("cellarlog-notes-%s.csv", stamp)
		file.ContentType = "text/csv"
		file.Data, err = renderNotesCSV(notes)
	case ExportFormatMarkdown:
		file.Filename = fmt.Sprintf("cellarlog-notes-%s.md", stamp)
		file.ContentType = "text/markdown"
		file.Data, err = renderNotesMarkdown(notes)
	default:
		return nil, fmt.Errorf("%w: unknown export format %q", ErrInvalidInput, format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to render export: %w", err)
	}

	if upload && s.storage.IsEnabled() {
		key, err := s.storage.StoreExport(ctx, file.Filename, file.ContentType, file.Data)
		if err != nil {
			return nil, err
		}
		file.StorageKey = key
	}

	s.logger.Info("exported notes",
		"format", format,
		"status", status,
		"note_count", file.NoteCount,
		"size_bytes", len(file.Data),
	)
	return file, nil
}

// ExportCalibration renders the calibration scale in the requested
// format.
func (s *ExportService) ExportCalibration(ctx context.Context, format ExportFormat) (*ExportFile, error) {
	if err := s.entitlement.RequireFeature(ctx, constants.FeatureExport); err != nil {
		return nil, err
	}

	notes, err := s.repos.Calibration.List(ctx)
	if err != nil {
		return nil, err
	}

	stamp := time.Now().UTC().Format("20060102-150405")
	file := &ExportFile{NoteCount: len(notes)}

	switch format {
	case ExportFormatJSON:
		file.Filename = fmt.Sprintf("cellarlog-calibration-%s.json", stamp)
		file.ContentType = "application/json"
		file.Data, err = json.MarshalIndent(notes, "", "  ")
	case ExportFormatCSV:
		file.Filename = fmt.Sprintf("cellarlog-calibration-%s.csv", stamp)
		file.ContentType = "text/csv"
		file.Data, err = renderCalibrationCSV(notes)
	case ExportFormatMarkdown:
		file.Filename = fmt.Sprintf("cellarlog-calibration-%s.md", stamp)
		file.ContentType = "text/markdown"
		file.Data = renderCalibrationMarkdown(notes)
	default:
		return nil, fmt.Errorf("%w: unknown export format %q", ErrInvalidInput, format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to render export: %w", err)
	}

	s.logger.Info("exported calibration scale", "format", format, "levels", len(notes))
	return file, nil
}

func (s *ExportService) collectNotes(ctx context.Context, status models.NoteStatus) ([]*models.TastingNote, error) {
	var all []*models.TastingNote
	for offset := 0; ; offset += exportPageSize {
		page, err := s.repos.Note.List(ctx, status, exportPageSize, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < exportPageSize {
			return all, nil
		}
	}
}

func renderNotesJSON(notes []*models.TastingNote) ([]byte, error) {
	doc := map[string]any{
		"exported_at":    time.Now().UTC().Format(time.RFC3339),
		"scoring_system": models.ScoringSystem,
		"note_count":     len(notes),
		"notes":          notes,
	}
	return json.MarshalIndent(doc, "", "  ")
}

var notesCSVHeader = []string{
	"id", "status", "producer", "cuvee", "vintage", "country", "region",
	"grapes", "color", "score_total", "quality_band", "drink_or_hold",
	"tags", "created_at", "updated_at",
}

func renderNotesCSV(notes []*models.TastingNote) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(notesCSVHeader); err != nil {
		return nil, err
	}
	for _, n := range notes {
		vintage := ""
		if n.Vintage != nil {
			vintage = strconv.Itoa(*n.Vintage)
		}
		color := ""
		if n.Color != nil {
			color = string(*n.Color)
		}
		band := ""
		if n.QualityBand != nil {
			band = string(*n.QualityBand)
		}
		record := []string{
			n.ID,
			string(n.Status),
			n.Producer,
			n.Cuvee,
			vintage,
			n.Country,
			n.Region,
			strings.Join(n.Grapes, "; "),
			color,
			strconv.Itoa(n.ScoreTotal),
			band,
			string(n.Payload.Readiness.DrinkOrHold),
			strings.Join(n.Tags, "; "),
			n.CreatedAt.UTC().Format(time.RFC3339),
			n.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// noteFrontmatter is the YAML frontmatter of one markdown note.
type noteFrontmatter struct {
	ID          string         `yaml:"id"`
	Status      string         `yaml:"status"`
	Producer    string         `yaml:"producer"`
	Cuvee       string         `yaml:"cuvee,omitempty"`
	Vintage     *int           `yaml:"vintage,omitempty"`
	Country     string         `yaml:"country,omitempty"`
	Region      string         `yaml:"region,omitempty"`
	Appellation string         `yaml:"appellation,omitempty"`
	Grapes      []string       `yaml:"grapes,omitempty"`
	Color       string         `yaml:"color,omitempty"`
	Score       int            `yaml:"score"`
	QualityBand string         `yaml:"quality_band,omitempty"`
	DrinkOrHold string         `yaml:"drink_or_hold,omitempty"`
	Tags        []string       `yaml:"tags,omitempty"`
	TastedAt    string         `yaml:"tasted_at"`
	Subscores   map[string]int `yaml:"subscores"`
}

func renderNotesMarkdown(notes []*models.TastingNote) ([]byte, error) {
	var buf bytes.Buffer
	for i, n := range notes {
		if i > 0 {
			buf.WriteString("\n")
		}
		if err := writeNoteMarkdown(&buf, n); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func writeNoteMarkdown(buf *bytes.Buffer, n *models.TastingNote) error {
	fm := noteFrontmatter{
		ID:       n.ID,
		Status:   string(n.Status),
		Producer: n.Producer,
		Cuvee:    n.Cuvee,
		Vintage:  n.Vintage,
		Country:  n.Country,
		Region:   n.Region,
		Grapes:   n.Grapes,
		Score:    n.ScoreTotal,
		Tags:     n.Tags,
		TastedAt: n.CreatedAt.UTC().Format("2006-01-02"),
		Subscores: map[string]int{
			"appearance":          n.Payload.Scores.SubScores.Appearance,
			"nose":                n.Payload.Scores.SubScores.Nose,
			"palate":              n.Payload.Scores.SubScores.Palate,
			"structure_balance":   n.Payload.Scores.SubScores.StructureBalance,
			"finish":              n.Payload.Scores.SubScores.Finish,
			"typicity_complexity": n.Payload.Scores.SubScores.TypicityComplexity,
			"overall_judgment":    n.Payload.Scores.SubScores.OverallJudgment,
		},
	}
	fm.Appellation = n.Payload.Wine.Appellation
	if n.Color != nil {
		fm.Color = string(*n.Color)
	}
	if n.QualityBand != nil {
		fm.QualityBand = string(*n.QualityBand)
	}
	if n.Payload.Readiness.DrinkOrHold != "" {
		fm.DrinkOrHold = string(n.Payload.Readiness.DrinkOrHold)
	}

	front, err := yaml.Marshal(&fm)
	if err != nil {
		return err
	}
	buf.WriteString("---\n")
	buf.Write(front)
	buf.WriteString("---\n\n")

	buf.WriteString("# " + noteTitle(n) + "\n\n")
	writeSection(buf, "Appearance", n.Payload.AppearanceNotes)
	writeSection(buf, "Nose", n.Payload.NoseNotes)
	writeSection(buf, "Palate", n.Payload.PalateNotes)
	writeSection(buf, "Structure", n.Payload.StructureNotes)
	writeSection(buf, "Finish", n.Payload.FinishNotes)
	writeSection(buf, "Overall", n.Payload.OverallNotes)
	writeSection(buf, "Conclusion", n.Payload.Conclusion)
	return nil
}

func noteTitle(n *models.TastingNote) string {
	parts := make([]string, 0, 3)
	if n.Producer != "" {
		parts = append(parts, n.Producer)
	}
	if n.Cuvee != "" {
		parts = append(parts, n.Cuvee)
	}
	if n.Vintage != nil {
		parts = append(parts, strconv.Itoa(*n.Vintage))
	}
	if len(parts) == 0 {
		return "Untitled tasting note"
	}
	return strings.Join(parts, " ")
}

func writeSection(buf *bytes.Buffer, heading, body string) {
	if body == "" {
		return
	}
	buf.WriteString("## " + heading + "\n\n")
	buf.WriteString(body + "\n\n")
}

func renderCalibrationCSV(notes []*models.CalibrationNote) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"score_value", "description", "examples"}); err != nil {
		return nil, err
	}
	for _, n := range notes {
		record := []string{
			strconv.Itoa(n.ScoreValue),
			n.Description,
			strings.Join(n.Examples, "; "),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func renderCalibrationMarkdown(notes []*models.CalibrationNote) []byte {
	var buf bytes.Buffer
	buf.WriteString("# Personal calibration scale\n\n")
	buf.WriteString(fmt.Sprintf("Scoring system: %s\n\n", models.ScoringSystem))
	for _, n := range notes {
		buf.WriteString(fmt.Sprintf("## %d points\n\n", n.ScoreValue))
		buf.WriteString(n.Description + "\n\n")
		if len(n.Examples) > 0 {
			buf.WriteString("Examples:\n\n")
			for _, ex := range n.Examples {
				buf.WriteString("- " + ex + "\n")
			}
			buf.WriteString("\n")
		}
	}
	return buf.Bytes()
}
