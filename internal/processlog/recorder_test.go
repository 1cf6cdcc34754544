package processlog

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"

	"imagebatch/internal/models"
)

func newTestRecorder(t *testing.T) (*Recorder, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	r, err := NewRecorder(fs, "/data/processing_log.txt")
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	return r, fs
}

func sampleEntry(i int) models.LogEntry {
	return models.LogEntry{
		Date:              time.Date(2024, 3, 1+i%3, 10, 20, 30+i, 123456789, time.Local),
		InputFile:         fmt.Sprintf("/in/My Photos/img%d.jpg", i),
		OutputFile:        fmt.Sprintf("/out/My Photos/img%d_final.webp", i),
		InputFolder:       "/in/My Photos",
		OutputFolder:      "/out/My Photos",
		OriginalFileName:  fmt.Sprintf("img%d.jpg", i),
		ProcessedFileName: fmt.Sprintf("img%d_final.webp", i),
		OriginalSize:      int64(1000 + i),
		ProcessedSize:     int64(400 + i),
	}
}

func TestRecorder_RoundTrip(t *testing.T) {
	r, _ := newTestRecorder(t)

	var want []models.LogEntry
	for i := 0; i < 5; i++ {
		want = append(want, sampleEntry(i))
	}
	if err := r.Append(want[:2]...); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := r.Append(want[2:]...); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := r.Entries()
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		w := want[i]
		w.Date = w.Date.Truncate(time.Second)
		if !got[i].Date.Equal(w.Date) {
			t.Errorf("entry %d date = %v, want %v", i, got[i].Date, w.Date)
		}
		got[i].Date, w.Date = time.Time{}, time.Time{}
		if got[i] != w {
			t.Errorf("entry %d:\n got %+v\nwant %+v", i, got[i], w)
		}
	}
}

func TestRecorder_LineFormat(t *testing.T) {
	r, fs := newTestRecorder(t)
	e := sampleEntry(0)
	if err := r.Append(e); err != nil {
		t.Fatal(err)
	}

	data, err := afero.ReadFile(fs, r.Path())
	if err != nil {
		t.Fatal(err)
	}
	want := "2024-03-01 10:20:30;/in/My Photos/img0.jpg;/out/My Photos/img0_final.webp;1000;400;" +
		"/in/My Photos;/out/My Photos;img0.jpg;img0_final.webp\n"
	if string(data) != want {
		t.Errorf("line:\n got %q\nwant %q", data, want)
	}
}

func TestRecorder_WarnsOnFieldsThatBreakTheLayout(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	r, _ := newTestRecorder(t)
	if err := r.Append(sampleEntry(0)); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Fatalf("unexpected warning for a clean entry: %s", buf.String())
	}

	e := sampleEntry(1)
	e.InputFolder = "/in/a;b"
	e.OriginalFileName = "two\nlines.jpg"
	if err := r.Append(e); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "inputFolder") || !strings.Contains(out, "originalFileName") {
		t.Errorf("warning = %q", out)
	}
	if strings.Contains(out, "outputFolder") {
		t.Errorf("warning names a clean field: %q", out)
	}
	if n := strings.Count(out, "⚠️"); n != 1 {
		t.Errorf("got %d warnings, want 1: %q", n, out)
	}
}

func TestRecorder_DropsMalformedLines(t *testing.T) {
	r, fs := newTestRecorder(t)
	for i := 0; i < 3; i++ {
		if err := r.Append(sampleEntry(i)); err != nil {
			t.Fatal(err)
		}
	}

	data, _ := afero.ReadFile(fs, r.Path())
	lines := strings.SplitAfter(string(data), "\n")
	corrupted := []string{
		lines[0],
		"garbage line without separators\n",
		lines[1],
		"2024-03-01 10:20:30;a;b;not-a-number;1;c;d;e;f\n",
		"yesterday;a;b;1;1;c;d;e;f\n",
		"\n",
		lines[2],
	}
	if err := afero.WriteFile(fs, r.Path(), []byte(strings.Join(corrupted, "")), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := r.Entries()
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3", len(got))
	}
	for i, e := range got {
		if e.OriginalFileName != sampleEntry(i).OriginalFileName {
			t.Errorf("entry %d = %q", i, e.OriginalFileName)
		}
	}
}

func TestRecorder_MissingFileIsEmpty(t *testing.T) {
	r, _ := newTestRecorder(t)
	got, err := r.Entries()
	if err != nil || len(got) != 0 {
		t.Fatalf("Entries() = %v, %v", got, err)
	}
}

func TestRecorder_Clear(t *testing.T) {
	r, _ := newTestRecorder(t)
	if err := r.Clear(); err != nil {
		t.Fatalf("Clear on empty log: %v", err)
	}
	r.Append(sampleEntry(0), sampleEntry(1))
	if err := r.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	got, _ := r.Entries()
	if len(got) != 0 {
		t.Errorf("got %d entries after Clear", len(got))
	}
}

func TestRecorder_ConcurrentAppends(t *testing.T) {
	r, _ := newTestRecorder(t)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				if err := r.Append(sampleEntry(w*100 + i)); err != nil {
					t.Error(err)
				}
			}
		}(w)
	}
	wg.Wait()

	got, err := r.Entries()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 200 {
		t.Errorf("got %d entries, want 200", len(got))
	}
}

func TestGroupByDay(t *testing.T) {
	entries := []models.LogEntry{sampleEntry(0), sampleEntry(1), sampleEntry(3)}
	days := GroupByDay(entries)
	if len(days) != 2 {
		t.Fatalf("got %d days, want 2", len(days))
	}
	if days[0].Date.Day() != 2 || len(days[0].Entries) != 1 {
		t.Errorf("newest day = %+v", days[0])
	}
	if days[1].Date.Day() != 1 || len(days[1].Entries) != 2 {
		t.Errorf("oldest day = %+v", days[1])
	}
	if days[1].TotalOriginalSize != 1000+1003 || days[1].TotalProcessedSize != 400+403 {
		t.Errorf("totals = %d/%d", days[1].TotalOriginalSize, days[1].TotalProcessedSize)
	}
	if (DailyLog{}).TotalReductionPercentage() != 0 {
		t.Error("empty day should report zero reduction")
	}
}

func TestExportCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportCSV(&buf, []models.LogEntry{sampleEntry(0)}); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "Time;Input Folder;") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], ";1000;400;60.00 %") {
		t.Errorf("row = %q", lines[1])
	}
}
