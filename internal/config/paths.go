package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths holds the resolved directories a run reads from and writes to.
type Paths struct {
	BaseDir     string
	DataDir     string
	ReportsDir  string
	LogsDir     string
	MetricsFile string
}

// ResolvePaths anchors relative configured paths at baseDir. An empty baseDir
// means the current working directory.
func (c *Config) ResolvePaths(baseDir string) (*Paths, error) {
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		baseDir = wd
	}

	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(baseDir, p)
	}

	return &Paths{
		BaseDir:     baseDir,
		DataDir:     resolve(c.Paths.DataDir),
		ReportsDir:  resolve(c.Paths.ReportsDir),
		LogsDir:     resolve(c.Paths.LogsDir),
		MetricsFile: resolve(c.Paths.MetricsFile),
	}, nil
}

// EnsureDirectories creates the output directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.ReportsDir, p.LogsDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if p.MetricsFile != "" {
		if err := os.MkdirAll(filepath.Dir(p.MetricsFile), 0755); err != nil {
			return fmt.Errorf("failed to create metrics directory: %w", err)
		}
	}
	return nil
}

// GetDataPath resolves an input file name. Absolute names and names that
// exist relative to the working directory are returned unchanged.
func (p *Paths) GetDataPath(filename string) string {
	if filepath.IsAbs(filename) || FileExists(filename) {
		return filename
	}
	return filepath.Join(p.DataDir, filename)
}

// GetReportPath returns the full path for a report file
func (p *Paths) GetReportPath(filename string) string {
	return filepath.Join(p.ReportsDir, filename)
}

// GetLogPath returns the full path for a log file
func (p *Paths) GetLogPath(filename string) string {
	return filepath.Join(p.LogsDir, filename)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
