// Package audit keeps an append-only JSON Lines history of file scans.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/redactyl/promptscan/internal/types"
)

// FileName is the history file written at the scan root, or inside .git
// (without the leading dot) when the root is a repository.
const FileName = ".promptscan_audit.jsonl"

const redacted = "[REDACTED]"

type ScanRecord struct {
	Timestamp      time.Time        `json:"timestamp"`
	ScanID         string           `json:"scan_id"`
	Root           string           `json:"root"`
	TotalFindings  int              `json:"total_findings"`
	NewFindings    int              `json:"new_findings"`
	BaselinedCount int              `json:"baselined_count"`
	CategoryCounts map[string]int   `json:"category_counts"`
	FilesScanned   int              `json:"files_scanned"`
	Duration       string           `json:"duration"`
	BaselineFile   string           `json:"baseline_file,omitempty"`
	TopFindings    []FindingSummary `json:"top_findings,omitempty"`
	AllFindings    []types.Finding  `json:"all_findings,omitempty"`
}

type FindingSummary struct {
	Path     string         `json:"path"`
	Category types.Category `json:"category"`
	Rule     int            `json:"rule"`
	Line     int            `json:"line"`
}

type AuditLog struct {
	logPath string
}

func NewAuditLog(root string) *AuditLog {
	gitDir := filepath.Join(root, ".git")
	logPath := filepath.Join(root, FileName)
	if st, err := os.Stat(gitDir); err == nil && st.IsDir() {
		logPath = filepath.Join(gitDir, FileName[1:])
	}
	return &AuditLog{logPath: logPath}
}

// Path is where records are appended.
func (a *AuditLog) Path() string { return a.logPath }

// LoadHistory returns all records, newest first. Reading stops at the
// first record that does not decode.
func (a *AuditLog) LoadHistory() ([]ScanRecord, error) {
	f, err := os.Open(a.logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	var records []ScanRecord
	decoder := json.NewDecoder(f)
	for decoder.More() {
		var record ScanRecord
		if err := decoder.Decode(&record); err != nil {
			break
		}
		records = append(records, record)
	}

	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

func (a *AuditLog) LogScan(record ScanRecord) error {
	if record.ScanID == "" {
		record.ScanID = uuid.NewString()
	}

	// Owner-only: records carry finding locations.
	f, err := os.OpenFile(a.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(record); err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}
	return nil
}

// DeleteRecord removes the record at index in LoadHistory order. The file
// is replaced atomically.
func (a *AuditLog) DeleteRecord(index int) error {
	records, err := a.LoadHistory()
	if err != nil {
		return err
	}
	if index < 0 || index >= len(records) {
		return fmt.Errorf("invalid index: %d", index)
	}
	records = append(records[:index], records[index+1:]...)
	return a.rewrite(records)
}

// rewrite replaces the log with records given newest first.
func (a *AuditLog) rewrite(records []ScanRecord) error {
	tmp, err := os.CreateTemp(filepath.Dir(a.logPath), ".audit-*.jsonl")
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	defer os.Remove(tmp.Name())

	encoder := json.NewEncoder(tmp)
	for i := len(records) - 1; i >= 0; i-- {
		if err := encoder.Encode(records[i]); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write audit record: %w", err)
		}
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), a.logPath)
}

func CreateScanRecord(
	root string,
	allFindings []types.Finding,
	newFindings []types.Finding,
	filesScanned int,
	duration time.Duration,
	baselineFile string,
) ScanRecord {
	counts := make(map[string]int)
	for _, f := range allFindings {
		counts[string(f.Category)]++
	}

	topFindings := make([]FindingSummary, 0, 10)
	for i, f := range newFindings {
		if i >= 10 {
			break
		}
		topFindings = append(topFindings, FindingSummary{
			Path:     f.Path,
			Category: f.Category,
			Rule:     f.Rule,
			Line:     f.Line,
		})
	}

	return ScanRecord{
		Timestamp:      time.Now(),
		Root:           root,
		TotalFindings:  len(allFindings),
		NewFindings:    len(newFindings),
		BaselinedCount: len(allFindings) - len(newFindings),
		CategoryCounts: counts,
		FilesScanned:   filesScanned,
		Duration:       duration.String(),
		BaselineFile:   baselineFile,
		TopFindings:    topFindings,
		AllFindings:    redactSecrets(allFindings),
	}
}

// redactSecrets returns a copy of findings with matched text removed. The
// fingerprint is kept so records can be correlated with baselines.
func redactSecrets(findings []types.Finding) []types.Finding {
	out := make([]types.Finding, len(findings))
	for i, f := range findings {
		out[i] = f
		out[i].Match = redacted
		out[i].Value = redacted
		if len(f.Groups) > 0 {
			out[i].Groups = make([]string, len(f.Groups))
			for j := range out[i].Groups {
				out[i].Groups[j] = redacted
			}
		}
	}
	return out
}
