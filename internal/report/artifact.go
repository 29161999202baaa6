package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/nao1215/shotdiff/internal/imageio"
	"github.com/nao1215/shotdiff/internal/model"
)

// ArtifactTimeFormat is the timestamp layout of artifact file names.
const ArtifactTimeFormat = "20060102-150405"

// maxArtifactSuffix bounds the search for a free file name.
const maxArtifactSuffix = 1000

// ArtifactName returns the base file name for a report created at the
// report's creation time.
func ArtifactName(report *model.RunReport) string {
	return "report-" + report.CreatedAt.Format(ArtifactTimeFormat) + ".json"
}

// SaveArtifact writes report as indented JSON into dir and returns the path.
// An existing artifact is never overwritten: when the timestamped name is
// taken, a numeric suffix is added (report-...-1.json, -2, ...).
// report_path is not part of the document.
func SaveArtifact(dir string, report *model.RunReport) (string, error) {
	if err := imageio.EnsureDirs(dir); err != nil {
		return "", err
	}

	doc := *report
	doc.ReportPath = ""
	data, err := marshal(&doc, true, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	base := ArtifactName(report)
	ext := filepath.Ext(base)
	stem := base[:len(base)-len(ext)]

	for i := 0; i < maxArtifactSuffix; i++ {
		name := base
		if i > 0 {
			name = stem + "-" + strconv.Itoa(i) + ext
		}
		path := filepath.Join(dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, imageio.FilePerm) //nolint:gosec // path is built from a timestamp
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create report file: %w", err)
		}

		if _, err := f.Write(data); err != nil {
			_ = f.Close() //nolint:errcheck // write error takes precedence
			return "", fmt.Errorf("failed to write report file: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("failed to close report file: %w", err)
		}
		return path, nil
	}
	return "", fmt.Errorf("no free report file name for %s in %s", base, dir)
}

// LoadArtifact reads a report written by SaveArtifact.
func LoadArtifact(path string) (*model.RunReport, error) {
	data, err := os.ReadFile(path) //nolint:gosec // caller chooses the report
	if err != nil {
		return nil, err
	}
	var report model.RunReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", path, err)
	}
	report.ReportPath = path
	return &report, nil
}
