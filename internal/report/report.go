// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report renders a per-case clinical decision-support summary as
// a PDF, assembled from an export batch directory (rois.json plus the
// per-ROI prediction artifacts).
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/araratmed/ararat-viewer/internal/export"
	"github.com/araratmed/ararat-viewer/pkg/types"
)

// Lesion is one report row. Probability is nil when the ROI has no
// prediction artifact in the batch directory.
type Lesion struct {
	ID          string
	Center      [3]float64
	RadiusMM    float64
	Side        string
	Probability *float64
	Bucket      types.RiskBucket
}

// Data is everything the renderer needs for one case report.
type Data struct {
	CaseID     string
	PatientID  string
	SeriesName string
	BatchID    string
	Exported   string
	Lesions    []Lesion
}

// batchDoc mirrors the rois.json document written by the export
// orchestrator.
type batchDoc struct {
	BatchID         string      `json:"batch_id"`
	ExportTimestamp string      `json:"export_timestamp"`
	CaseID          string      `json:"case_id"`
	SeriesUID       string      `json:"series_instance_uid"`
	ROIs            []types.ROI `json:"rois"`
}

// Load assembles report data from an export batch directory. Missing
// prediction artifacts are tolerated per lesion; a missing batch
// document is an error.
func Load(dir string, risk types.RiskConfig) (*Data, error) {
	path := filepath.Join(dir, "rois.json")
	if _, err := os.Stat(path); err != nil {
		path = filepath.Join(dir, "rois_latest.json")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading batch metadata: %w", err)
	}
	var doc batchDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	data := &Data{
		CaseID:     doc.CaseID,
		SeriesName: doc.SeriesUID,
		BatchID:    doc.BatchID,
		Exported:   doc.ExportTimestamp,
	}
	for _, roi := range doc.ROIs {
		l := Lesion{
			ID:       roi.ID,
			Center:   roi.CenterPhysical,
			RadiusMM: roi.RadiusMM,
			Side:     sideFromX(roi.CenterPhysical[0]),
		}
		if res, ok := readPrediction(dir, roi.ID); ok {
			p := res.ProbPos
			// Tolerate percent-scale payloads from older model bundles.
			if p > 1.0 {
				p /= 100.0
			}
			l.Probability = &p
			l.Bucket = export.BucketFor(p, risk)
		}
		data.Lesions = append(data.Lesions, l)
	}
	return data, nil
}

// readPrediction loads pred_<id>.json if present and parseable.
func readPrediction(dir, roiID string) (types.InferenceResult, bool) {
	raw, err := os.ReadFile(filepath.Join(dir, fmt.Sprintf("pred_%s.json", roiID)))
	if err != nil {
		return types.InferenceResult{}, false
	}
	var res types.InferenceResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return types.InferenceResult{}, false
	}
	return res, true
}

// sideFromX maps the physical x coordinate to patient laterality. In
// LPS, negative x is the patient's right.
func sideFromX(x float64) string {
	if x > 0 {
		return "left"
	}
	return "right"
}

func formatProb(p *float64) string {
	if p == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.1f%%", *p*100)
}

func bucketText(b types.RiskBucket) string {
	switch b {
	case types.RiskLow:
		return "Low risk"
	case types.RiskIntermediate:
		return "Intermediate risk"
	case types.RiskHigh:
		return "High risk"
	default:
		return "N/A"
	}
}

// Generate renders the report PDF to out.
func Generate(data *Data, out string) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("ARARAT CDS report - %s", data.CaseID), false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 15)
	pdf.CellFormat(0, 9, "ARARAT - Clinical Decision Support Report", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	patient := data.PatientID
	if patient == "" {
		patient = "N/A"
	}
	series := data.SeriesName
	if series == "" {
		series = "N/A"
	}
	meta := [][2]string{
		{"Case", data.CaseID},
		{"Patient", patient},
		{"Series", series},
		{"Analysis", "Radiomics (T2W)"},
		{"Export batch", data.BatchID},
		{"Exported", data.Exported},
		{"Generated", time.Now().Format("2006-01-02 15:04")},
	}
	pdf.SetTextColor(0, 0, 0)
	for _, row := range meta {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(30, 6, row[0], "1", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(110, 6, row[1], "1", 1, "L", false, 0, "")
	}
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(0, 6, "Suggested wording for the radiology report:", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	text := fmt.Sprintf("The analysis identified %d lesion(s).\n", len(data.Lesions))
	for _, l := range data.Lesions {
		text += fmt.Sprintf("- %s (%s): probability %s for ISUP >= 3 (%s).\n",
			l.ID, l.Side, formatProb(l.Probability), bucketText(l.Bucket))
	}
	text += "\nThese findings must be interpreted together with clinical data, PSA," +
		" histopathology and patient-specific factors. This tool does not replace" +
		" the radiologist's report."
	pdf.MultiCell(0, 5, text, "", "L", false)
	pdf.Ln(6)

	widths := []float64{20, 28, 42, 25, 30, 35}
	headers := []string{"Lesion", "Radius", "Center (mm)", "Side", "Prob. ISUP>=3", "Risk"}
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(31, 56, 100)
	pdf.SetTextColor(255, 255, 255)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(0, 0, 0)
	fill := false
	for _, l := range data.Lesions {
		pdf.SetFillColor(245, 245, 245)
		cells := []string{
			l.ID,
			fmt.Sprintf("%.1f mm", l.RadiusMM),
			fmt.Sprintf("(%.1f, %.1f, %.1f)", l.Center[0], l.Center[1], l.Center[2]),
			l.Side,
			formatProb(l.Probability),
			bucketText(l.Bucket),
		}
		for i, c := range cells {
			pdf.CellFormat(widths[i], 6, c, "1", 0, "L", fill, 0, "")
		}
		pdf.Ln(-1)
		fill = !fill
	}
	if len(data.Lesions) == 0 {
		pdf.CellFormat(0, 6, "No lesions exported.", "", 1, "L", false, 0, "")
	}

	pdf.Ln(10)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.SetTextColor(128, 128, 128)
	pdf.CellFormat(0, 5, fmt.Sprintf("Export batch %s | Generated by ararat-viewer", data.BatchID), "", 1, "L", false, 0, "")

	if err := pdf.OutputFileAndClose(out); err != nil {
		return fmt.Errorf("writing report pdf: %w", err)
	}
	return nil
}
