// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package gtruth loads reference lesion annotations from heterogeneous
// label files (research CSVs, JSON exports) and matches them to the
// open case. Headers vary wildly across sources, so column matching is
// by normalized name against prioritized alias lists.
package gtruth

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/araratmed/ararat-viewer/pkg/types"
)

// Label files are searched in priority order; the first hit wins.
var priorityNames = []string{
	"prostatex-findings-train.csv",
	"prostatex-findings-test.csv",
	"prostatex_findings.csv",
	"labels.csv",
	"labels.json",
}

// Matcher caches lesion annotations per data root. Reloading happens
// only when the root changes.
type Matcher struct {
	log zerolog.Logger

	loadedRoot string
	loaded     bool
	cache      map[string][]lesionEntry
}

type lesionEntry struct {
	lesion types.Lesion
	key    string
}

// NewMatcher creates an empty matcher; labels load lazily on first use.
func NewMatcher(log zerolog.Logger) *Matcher {
	return &Matcher{log: log.With().Str("component", "gtruth").Logger()}
}

// Lookup returns the reference lesions for a case, loading label files
// under dataRoot on first use. Lesions missing an identifier get
// sequential GT<n> labels. A case with no annotations yields an empty
// slice, never an error — absent ground truth is normal.
func (m *Matcher) Lookup(caseID, dataRoot string) []types.Lesion {
	m.ensureLoaded(dataRoot)

	entries := m.cache[normalizePatientID(caseID)]
	out := make([]types.Lesion, 0, len(entries))
	counter := 1
	for _, e := range entries {
		l := e.lesion
		if l.LesionID == "" {
			l.LesionID = fmt.Sprintf("GT%d", counter)
			counter++
		}
		out = append(out, l)
	}
	return out
}

func (m *Matcher) ensureLoaded(dataRoot string) {
	abs, err := filepath.Abs(dataRoot)
	if err != nil {
		abs = dataRoot
	}
	if m.loaded && m.loadedRoot == abs {
		return
	}
	m.cache = map[string][]lesionEntry{}
	m.loaded = true
	m.loadedRoot = abs

	path := scanLabelFiles(abs)
	if path == "" {
		m.log.Debug().Str("root", abs).Msg("no label files found")
		return
	}

	var entries []lesionEntry
	if strings.EqualFold(filepath.Ext(path), ".json") {
		entries, err = parseJSONLabels(path)
	} else {
		entries, err = parseCSVLabels(path)
	}
	if err != nil {
		m.log.Warn().Err(err).Str("path", path).Msg("label file unreadable")
		return
	}

	for _, e := range entries {
		m.cache[e.key] = append(m.cache[e.key], e)
	}
	m.log.Info().Str("path", path).Int("lesions", len(entries)).Msg("ground-truth labels loaded")
}

// scanLabelFiles looks for LABELS/labels directories under the data
// root and its parent, returning the highest-priority file found.
func scanLabelFiles(root string) string {
	if root == "" {
		return ""
	}
	parent := filepath.Dir(root)
	dirs := []string{
		filepath.Join(root, "LABELS"),
		filepath.Join(root, "labels"),
		filepath.Join(parent, "LABELS"),
		filepath.Join(parent, "labels"),
	}
	for _, d := range dirs {
		names, err := os.ReadDir(d)
		if err != nil {
			continue
		}
		lower := map[string]string{}
		for _, n := range names {
			lower[strings.ToLower(n.Name())] = n.Name()
		}
		for _, wanted := range priorityNames {
			if orig, ok := lower[wanted]; ok {
				return filepath.Join(d, orig)
			}
		}
	}
	return ""
}

// normalizeName reduces a header to lowercase alphanumerics so "ClinSig",
// "clin_sig" and "Clin Sig" all match.
func normalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// normalizePatientID keys patients by their digits ("ProstateX-0005" and
// "0005" match); non-numeric ids fall back to lowercase.
func normalizePatientID(v string) string {
	s := strings.TrimSpace(v)
	var digits strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}
	if digits.Len() > 0 {
		return digits.String()
	}
	return strings.ToLower(s)
}

// safeFloat parses a numeric cell, accepting comma decimal separators.
func safeFloat(v string) (float64, bool) {
	s := strings.TrimSpace(v)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// row maps normalized column names to raw cell values.
type row map[string]string

func (r row) first(aliases ...string) string {
	for _, a := range aliases {
		if v, ok := r[a]; ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

var xyzSplit = regexp.MustCompile(`[,\s;]+`)

// parseXYZ reads the lesion position: separate x/y/z columns first, then
// any cell holding a "(x, y, z)" style triple.
func parseXYZ(r row) ([3]float64, bool) {
	var pos [3]float64
	axes := [3][]string{
		{"x", "worldx", "posx", "xmm"},
		{"y", "worldy", "posy", "ymm"},
		{"z", "worldz", "posz", "zmm"},
	}
	all := true
	for a := 0; a < 3; a++ {
		v, ok := safeFloat(r.first(axes[a]...))
		if !ok {
			all = false
			break
		}
		pos[a] = v
	}
	if all {
		return pos, true
	}

	for _, v := range r {
		inner := strings.Trim(strings.TrimSpace(v), "()[] ")
		parts := xyzSplit.Split(inner, -1)
		if len(parts) < 3 {
			continue
		}
		ok := true
		for a := 0; a < 3; a++ {
			f, fok := safeFloat(parts[a])
			if !fok {
				ok = false
				break
			}
			pos[a] = f
		}
		if ok {
			return pos, true
		}
	}
	return pos, false
}

// buildLesion converts one row to a lesion entry. Rows without a patient
// id or position are skipped, not errors.
func buildLesion(r row, source string) (lesionEntry, bool) {
	patientID := r.first("patientid", "patient", "prostatexid", "prostatex", "proxid", "case", "caseid")
	if patientID == "" {
		return lesionEntry{}, false
	}
	pos, ok := parseXYZ(r)
	if !ok {
		return lesionEntry{}, false
	}

	l := types.Lesion{
		PatientID: patientID,
		LesionID:  r.first("finding", "findingid", "lesion", "lesionid", "fid", "roi", "roiid", "id"),
		Position:  pos,
		ClinSig:   r.first("clinsig"),
		Zone:      r.first("zone"),
		GGG:       r.first("ggg", "gradegroup", "gleasongradegroup"),
		ISUP:      r.first("isup", "gg", "ggroup"),
		Source:    source,
	}
	return lesionEntry{lesion: l, key: normalizePatientID(patientID)}, true
}

func parseCSVLabels(path string) ([]lesionEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening labels: %w", err)
	}
	defer f.Close()

	rd := csv.NewReader(f)
	rd.FieldsPerRecord = -1
	records, err := rd.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, nil
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = normalizeName(h)
	}

	var out []lesionEntry
	for _, rec := range records[1:] {
		r := row{}
		for i, v := range rec {
			if i < len(header) {
				r[header[i]] = v
			}
		}
		if e, ok := buildLesion(r, path); ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func parseJSONLabels(path string) ([]lesionEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading labels: %w", err)
	}

	var items []map[string]any
	if err := json.Unmarshal(data, &items); err != nil {
		var doc map[string]json.RawMessage
		if err2 := json.Unmarshal(data, &doc); err2 != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		for _, key := range []string{"lesions", "items"} {
			if raw, ok := doc[key]; ok {
				if err := json.Unmarshal(raw, &items); err != nil {
					return nil, fmt.Errorf("parsing %s.%s: %w", path, key, err)
				}
				break
			}
		}
	}

	var out []lesionEntry
	for _, item := range items {
		r := row{}
		for k, v := range item {
			r[normalizeName(k)] = cellString(v)
		}
		if e, ok := buildLesion(r, path); ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func cellString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", x)
	}
}
