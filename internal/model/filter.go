package model

// FilterRules holds the include and exclude patterns of one run.
// It is treated as immutable once built.
type FilterRules struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

// ChangeRecord describes one file touched by a comparison.
type ChangeRecord struct {
	Path      Path `yaml:"path"`
	Additions int  `yaml:"additions"`
	Deletions int  `yaml:"deletions"`
}

// Totals aggregates line counts over a group of change records.
type Totals struct {
	Files     int `yaml:"files"`
	Additions int `yaml:"additions"`
	Deletions int `yaml:"deletions"`
}

// Classification is the partition of change records by the filter rules.
// Totals covers Kept only.
type Classification struct {
	Kept    []ChangeRecord `yaml:"kept"`
	Dropped []ChangeRecord `yaml:"dropped"`
	Totals  Totals         `yaml:"totals"`
}
