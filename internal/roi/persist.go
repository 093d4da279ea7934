// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package roi

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/araratmed/ararat-viewer/pkg/types"
)

// latestFile is the rois_latest.json autosave document, rewritten after
// every confirm/delete so a case can be reopened without losing work.
type latestFile struct {
	CaseID  string      `json:"case_id"`
	SavedAt string      `json:"saved_at"`
	ROIs    []types.ROI `json:"rois"`
}

func latestPath(dir, caseID string) string {
	return filepath.Join(dir, caseID, "rois_latest.json")
}

// SaveLatest writes the confirmed ROI list for a case.
func SaveLatest(path, caseID string, rois []types.ROI) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating autosave directory: %w", err)
	}
	doc := latestFile{
		CaseID:  caseID,
		SavedAt: time.Now().UTC().Format(time.RFC3339),
		ROIs:    rois,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding autosave: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing autosave %s: %w", path, err)
	}
	return nil
}

// LoadLatest reads an autosave file. Restored ROIs come back Confirmed;
// export/prediction state belongs to the session that produced it.
func LoadLatest(path string) ([]types.ROI, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading autosave %s: %w", path, err)
	}
	var doc latestFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing autosave %s: %w", path, err)
	}
	for i := range doc.ROIs {
		doc.ROIs[i].State = types.StateConfirmed
		doc.ROIs[i].Risk = nil
		doc.ROIs[i].FailureReason = ""
	}
	return doc.ROIs, nil
}
