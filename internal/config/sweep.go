package config

import "fmt"

// SweepConfig configures the rectangle subdivision.
type SweepConfig struct {
	Rows       int      `yaml:"rows"`
	Columns    int      `yaml:"columns"` // 0 means same as rows
	Threshold  int      `yaml:"threshold"` // recurse when a cell returns more places than this
	MaxDepth   int      `yaml:"max_depth"`
	Categories []string `yaml:"categories,omitempty"`
}

func (s SweepConfig) validate(pageSize int) error {
	if s.Rows < 1 {
		return fmt.Errorf("sweep.rows must be >= 1")
	}
	if s.Columns < 0 {
		return fmt.Errorf("sweep.columns must be >= 0")
	}
	cols := s.Columns
	if cols == 0 {
		cols = s.Rows
	}
	if s.Rows*cols < 2 {
		return fmt.Errorf("sweep grid must have at least 2 cells")
	}
	if s.Threshold < 1 || s.Threshold > pageSize {
		return fmt.Errorf("sweep.threshold must be in [1, %d]", pageSize)
	}
	if s.MaxDepth < 1 {
		return fmt.Errorf("sweep.max_depth must be >= 1")
	}
	return nil
}
