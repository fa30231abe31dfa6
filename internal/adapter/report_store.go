package adapter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	m "auditscope.dev/pkg/auditscope/internal/model"
)

const (
	// AnalysisFileName is the machine-readable report inside the output directory.
	AnalysisFileName = "analysis.yaml"
	// MarkdownReportFileName is the human-readable report inside the output directory.
	MarkdownReportFileName = "analysis_report.md"
)

// ErrNoAnalysis is returned when the output directory holds no stored analysis.
var ErrNoAnalysis = errors.New("no stored analysis")

// ReportStore persists analyses in an output directory.
type ReportStore interface {
	// SaveAnalysis writes the YAML and markdown reports and returns their paths.
	SaveAnalysis(dir m.Path, analysis m.Analysis) ([]m.Path, error)
	// LoadAnalysis reads the YAML report back.
	LoadAnalysis(dir m.Path) (m.Analysis, error)
}

// LocalReportStore stores reports on the local disk.
type LocalReportStore struct {
	fs SourceFSAdapter
}

// NewReportStore constructs a LocalReportStore writing through fsAdapter.
func NewReportStore(fsAdapter SourceFSAdapter) *LocalReportStore {
	return &LocalReportStore{fs: fsAdapter}
}

// SaveAnalysis writes analysis.yaml and analysis_report.md into dir.
func (s *LocalReportStore) SaveAnalysis(dir m.Path, analysis m.Analysis) ([]m.Path, error) {
	if err := os.MkdirAll(string(dir), 0o755); err != nil {
		return nil, fmt.Errorf("create output directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(analysis)
	if err != nil {
		return nil, fmt.Errorf("encode analysis: %w", err)
	}

	yamlPath := s.fs.JoinPath(string(dir), AnalysisFileName)
	if err := s.fs.WriteFile(yamlPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", yamlPath, err)
	}

	markdownPath := s.fs.JoinPath(string(dir), MarkdownReportFileName)
	if err := s.fs.WriteFile(markdownPath, []byte(RenderMarkdownReport(analysis)), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", markdownPath, err)
	}

	return []m.Path{yamlPath, markdownPath}, nil
}

// LoadAnalysis reads analysis.yaml from dir.
func (s *LocalReportStore) LoadAnalysis(dir m.Path) (m.Analysis, error) {
	yamlPath := filepath.Join(string(dir), AnalysisFileName)

	data, err := s.fs.ReadFile(m.Path(yamlPath))
	if errors.Is(err, os.ErrNotExist) {
		return m.Analysis{}, fmt.Errorf("%w in %s", ErrNoAnalysis, dir)
	}

	if err != nil {
		return m.Analysis{}, fmt.Errorf("read %s: %w", yamlPath, err)
	}

	var analysis m.Analysis
	if err := yaml.Unmarshal(data, &analysis); err != nil {
		return m.Analysis{}, fmt.Errorf("decode %s: %w", yamlPath, err)
	}

	return analysis, nil
}
