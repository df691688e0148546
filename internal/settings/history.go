package settings

import (
	"encoding/xml"
	"fmt"
	"os"

	"k8s.io/klog/v2"
)

// CounterField is one named change-log counter value inside a history
// entry.
type CounterField struct {
	Name  string `xml:"name,attr"`
	Value uint64 `xml:",chardata"`
}

// HistoryEntry is one per-invocation log record. CommandLine and
// DurationSeconds restore fields the distillation dropped but the
// original implementation recorded (SPEC_FULL.md SUPPLEMENTED FEATURES
// §3).
type HistoryEntry struct {
	XMLName         xml.Name       `xml:"command"`
	CommandLine     string         `xml:"command_line"`
	DurationSeconds float64        `xml:"duration_seconds"`
	Counters        []CounterField `xml:"counters>counter"`
}

// History is the root <history> document: an append-only sequence of
// HistoryEntry records.
type History struct {
	XMLName xml.Name       `xml:"history"`
	Entries []HistoryEntry `xml:"command"`
}

const (
	historyFileName = "history.xml"
	logFileName     = "log.xml"
)

// loadHistory reads history.xml. A missing or corrupt file yields an
// empty History and a logged warning, never an error — spec.md §4.8:
// "Corrupt or missing history yields a warning, never a failure."
func loadHistory(dir string) History {
	b, err := os.ReadFile(dir + string(os.PathSeparator) + historyFileName)
	if err != nil {
		if !os.IsNotExist(err) {
			klog.Warningf("history.xml unreadable, starting fresh: %v", err)
		}
		return History{}
	}
	var h History
	if err := xml.Unmarshal(b, &h); err != nil {
		klog.Warningf("history.xml corrupt, starting fresh: %v", err)
		return History{}
	}
	return h
}

// AppendHistory appends entry to history.xml (read-strip-reemit, per
// spec.md §4.8) and overwrites log.xml with just this entry, the most
// recent command's log.
func AppendHistory(dir string, entry HistoryEntry) error {
	h := loadHistory(dir)
	h.Entries = append(h.Entries, entry)

	out, err := xml.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Errorf("settings: encode history: %w", err)
	}
	out = append([]byte(xml.Header), out...)
	if err := os.WriteFile(dir+string(os.PathSeparator)+historyFileName, out, 0o644); err != nil {
		return fmt.Errorf("settings: write history: %w", err)
	}

	logOut, err := xml.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("settings: encode log: %w", err)
	}
	logOut = append([]byte(xml.Header), logOut...)
	if err := os.WriteFile(dir+string(os.PathSeparator)+logFileName, logOut, 0o644); err != nil {
		return fmt.Errorf("settings: write log: %w", err)
	}
	return nil
}
