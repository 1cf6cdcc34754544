package processlog

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"imagebatch/internal/models"
)

// Line layout: date;inputFile;outputFile;originalSize;processedSize;inputFolder;outputFolder;originalFileName;processedFileName
const (
	timeLayout = "2006-01-02 15:04:05"
	separator  = ";"
	fieldCount = 9
)

// Recorder appends processed-file entries to a single durable log file
type Recorder struct {
	fs   afero.Fs
	path string
	mu   sync.Mutex
}

// NewRecorder creates a recorder for path, creating the parent directory
func NewRecorder(fs afero.Fs, path string) (*Recorder, error) {
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return &Recorder{fs: fs, path: path}, nil
}

// Path returns the log file location
func (r *Recorder) Path() string {
	return r.path
}

// Append writes one line per entry. Appends from concurrent jobs never interleave.
func (r *Recorder) Append(entries ...models.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	var b strings.Builder
	for _, e := range entries {
		if fields := unsafeFields(e); len(fields) > 0 {
			log.Printf("⚠️  Log entry for %q has %s containing ';' or a line break; the line will not read back", e.OriginalFileName, strings.Join(fields, ", "))
		}
		b.WriteString(formatLine(e))
		b.WriteByte('\n')
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.fs.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open processing log: %w", err)
	}
	if _, err := f.WriteString(b.String()); err != nil {
		f.Close()
		return fmt.Errorf("failed to write processing log: %w", err)
	}
	return f.Close()
}

// Entries reads every well-formed line. Malformed lines are skipped; a missing file is empty.
func (r *Recorder) Entries() ([]models.LogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.fs.Open(r.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open processing log: %w", err)
	}
	defer f.Close()

	var entries []models.LogEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		entry, err := parseLine(line)
		if err != nil {
			log.Printf("⚠️  Error parsing log entry: %s - %v", line, err)
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return entries, fmt.Errorf("failed to read processing log: %w", err)
	}
	return entries, nil
}

// Clear removes every entry
func (r *Recorder) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.fs.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear processing log: %w", err)
	}
	return nil
}

func formatLine(e models.LogEntry) string {
	return strings.Join([]string{
		e.Date.Format(timeLayout),
		e.InputFile,
		e.OutputFile,
		strconv.FormatInt(e.OriginalSize, 10),
		strconv.FormatInt(e.ProcessedSize, 10),
		e.InputFolder,
		e.OutputFolder,
		e.OriginalFileName,
		e.ProcessedFileName,
	}, separator)
}

// unsafeFields names the text fields that would break the line layout
func unsafeFields(e models.LogEntry) []string {
	var names []string
	for _, f := range []struct{ name, value string }{
		{"inputFile", e.InputFile},
		{"outputFile", e.OutputFile},
		{"inputFolder", e.InputFolder},
		{"outputFolder", e.OutputFolder},
		{"originalFileName", e.OriginalFileName},
		{"processedFileName", e.ProcessedFileName},
	} {
		if strings.ContainsAny(f.value, separator+"\r\n") {
			names = append(names, f.name)
		}
	}
	return names
}

func parseLine(line string) (models.LogEntry, error) {
	parts := strings.Split(line, separator)
	if len(parts) != fieldCount {
		return models.LogEntry{}, fmt.Errorf("expected %d fields, got %d", fieldCount, len(parts))
	}

	date, err := time.ParseInLocation(timeLayout, parts[0], time.Local)
	if err != nil {
		return models.LogEntry{}, err
	}
	original, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return models.LogEntry{}, err
	}
	processed, err := strconv.ParseInt(parts[4], 10, 64)
	if err != nil {
		return models.LogEntry{}, err
	}

	return models.LogEntry{
		Date:              date,
		InputFile:         parts[1],
		OutputFile:        parts[2],
		OriginalSize:      original,
		ProcessedSize:     processed,
		InputFolder:       parts[5],
		OutputFolder:      parts[6],
		OriginalFileName:  parts[7],
		ProcessedFileName: parts[8],
	}, nil
}

// DailyLog groups the entries of one calendar day
type DailyLog struct {
	Date               time.Time         `json:"date"`
	Entries            []models.LogEntry `json:"entries"`
	TotalOriginalSize  int64             `json:"total_original_size"`
	TotalProcessedSize int64             `json:"total_processed_size"`
}

// TotalReductionPercentage is the saved fraction across the day
func (d DailyLog) TotalReductionPercentage() float64 {
	if d.TotalOriginalSize <= 0 {
		return 0
	}
	return float64(d.TotalOriginalSize-d.TotalProcessedSize) / float64(d.TotalOriginalSize)
}

// GroupByDay buckets entries per local calendar day, newest day first
func GroupByDay(entries []models.LogEntry) []DailyLog {
	byDay := make(map[time.Time]*DailyLog)
	for _, e := range entries {
		y, m, d := e.Date.Date()
		day := time.Date(y, m, d, 0, 0, 0, 0, e.Date.Location())
		dl, ok := byDay[day]
		if !ok {
			dl = &DailyLog{Date: day}
			byDay[day] = dl
		}
		dl.Entries = append(dl.Entries, e)
		dl.TotalOriginalSize += e.OriginalSize
		dl.TotalProcessedSize += e.ProcessedSize
	}

	days := make([]DailyLog, 0, len(byDay))
	for _, dl := range byDay {
		days = append(days, *dl)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date.After(days[j].Date) })
	return days
}

// ExportCSV writes entries as ';'-separated CSV with a header row
func ExportCSV(w io.Writer, entries []models.LogEntry) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'

	if err := cw.Write([]string{
		"Time", "Input Folder", "Output Folder", "Original File Name",
		"Processed File Name", "Original Size", "Processed Size", "Reduction",
	}); err != nil {
		return err
	}
	for _, e := range entries {
		if err := cw.Write([]string{
			e.Date.Format(timeLayout),
			e.InputFolder,
			e.OutputFolder,
			e.OriginalFileName,
			e.ProcessedFileName,
			strconv.FormatInt(e.OriginalSize, 10),
			strconv.FormatInt(e.ProcessedSize, 10),
			fmt.Sprintf("%.2f %%", e.ReductionPercentage()*100),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
