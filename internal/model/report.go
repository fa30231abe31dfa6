package model

import "time"

// FileEntry is a file of the analysis report.
type FileEntry struct {
	FileRecord  `yaml:",inline"`
	Fingerprint string `yaml:"fingerprint,omitempty"`
}

// CodeCount is a line-count summary produced by the counting tool.
type CodeCount struct {
	Files    int            `yaml:"files"`
	Blank    int            `yaml:"blank"`
	Comment  int            `yaml:"comment"`
	Code     int            `yaml:"code"`
	Language map[string]int `yaml:"language,omitempty"`
}

// StripSummary records what the test removal pass did.
type StripSummary struct {
	Removed  []Path `yaml:"removed,omitempty"`
	Modified []Path `yaml:"modified,omitempty"`
	Regions  int    `yaml:"regions"`
}

// Analysis is the persisted result of one analyze run.
type Analysis struct {
	Version      int             `yaml:"version"`
	CreatedAt    time.Time       `yaml:"created_at"`
	Target       Target          `yaml:"target"`
	Extensions   []string        `yaml:"extensions"`
	Rules        FilterRules     `yaml:"rules"`
	Primary      []FileEntry     `yaml:"primary"`
	Dependencies []FileEntry     `yaml:"dependencies"`
	PrimaryCount *CodeCount      `yaml:"primary_count,omitempty"`
	FullCount    *CodeCount      `yaml:"full_count,omitempty"`
	Changes      *Classification `yaml:"changes,omitempty"`
	Stripped     *StripSummary   `yaml:"stripped,omitempty"`
	Warnings     []Warning       `yaml:"warnings,omitempty"`
}
