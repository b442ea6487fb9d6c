// Package statistics snapshots registered engine variables to a delimited
// file, one row per scheduler time step, for offline analysis.
package statistics

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"
)

// Variable is one observed value. The accessor is polled at every snapshot.
type Variable struct {
	Name        string
	Description string
	Get         func() float64

	originalName string
}

type Registry struct {
	logger *zap.Logger

	enabled    bool
	outputPath string

	variables []Variable
	file      *os.File
	writer    *csv.Writer
}

func NewRegistry(logger *zap.Logger, outputPath string, enabled bool) *Registry {
	return &Registry{logger: logger, outputPath: outputPath, enabled: enabled}
}

// Add registers a variable. Duplicate names get a numeric suffix so every
// column stays addressable.
func (r *Registry) Add(variable Variable) {
	variable.originalName = variable.Name
	duplicates := 0
	for _, existing := range r.variables {
		if existing.originalName == variable.Name {
			duplicates++
		}
	}
	if duplicates > 0 {
		variable.Name = fmt.Sprintf("%s_%d", variable.Name, duplicates+1)
	}
	r.variables = append(r.variables, variable)
}

// Log appends one snapshot row, writing the header and the companion
// description file on first use. Failures disable further logging; the
// engine keeps running without its statistics.
func (r *Registry) Log() {
	if !r.enabled || len(r.variables) == 0 {
		return
	}

	if r.writer == nil {
		if err := r.open(); err != nil {
			r.logger.Warn("statistics output unavailable", zap.Error(err))
			r.enabled = false
			return
		}
	}

	row := make([]string, len(r.variables))
	for i, variable := range r.variables {
		row[i] = strconv.FormatFloat(variable.Get(), 'g', -1, 64)
	}
	if err := r.writer.Write(row); err != nil {
		r.logger.Warn("statistics write failed", zap.Error(err))
		r.enabled = false
		return
	}
	// Flush every row so a killed process loses nothing.
	r.writer.Flush()
}

func (r *Registry) Close() {
	if r.writer != nil {
		r.writer.Flush()
	}
	if r.file != nil {
		_ = r.file.Close()
		r.file = nil
		r.writer = nil
	}
}

func (r *Registry) open() error {
	if err := os.MkdirAll(filepath.Dir(r.outputPath), 0o755); err != nil {
		return err
	}

	file, err := os.Create(r.outputPath)
	if err != nil {
		return err
	}
	r.file = file
	r.writer = csv.NewWriter(file)
	r.writer.Comma = '\t'

	header := make([]string, len(r.variables))
	descriptions := make([][]string, 0, len(r.variables))
	for i, variable := range r.variables {
		header[i] = variable.Name
		descriptions = append(descriptions, []string{variable.Name, variable.Description})
	}
	if err := r.writer.Write(header); err != nil {
		return err
	}

	// Companion file mapping column names to their meaning.
	info, err := os.Create(r.outputPath + ".info")
	if err != nil {
		return err
	}
	defer info.Close()
	infoWriter := csv.NewWriter(info)
	infoWriter.Comma = '\t'
	if err := infoWriter.WriteAll(descriptions); err != nil {
		return err
	}
	return nil
}
