package services

// TotalKey is the reserved folder key that accumulates grand totals
const TotalKey = "total"

// Totals holds original and processed byte counts for one scope
type Totals struct {
	OriginalSize  int64
	ConvertedSize int64
}

// Saving returns 1 - converted/original, or nil while nothing has been counted
func (t Totals) Saving() *float64 {
	if t.OriginalSize <= 0 {
		return nil
	}
	v := 1.0 - float64(t.ConvertedSize)/float64(t.OriginalSize)
	return &v
}

// SizeStats accumulates per-folder and grand-total byte counts for one run.
// It belongs to a single run and is not safe for concurrent use.
type SizeStats struct {
	folders map[string]Totals
	counted map[string]bool
}

// NewSizeStats creates empty accumulators
func NewSizeStats() *SizeStats {
	return &SizeStats{
		folders: map[string]Totals{TotalKey: {}},
		counted: make(map[string]bool),
	}
}

// Add counts a file into its folder and into the total. A file already counted is
// ignored and Add returns false.
func (s *SizeStats) Add(folder, file string, original, processed int64) bool {
	if s.counted[file] {
		return false
	}
	s.counted[file] = true

	f := s.folders[folder]
	f.OriginalSize += original
	f.ConvertedSize += processed
	s.folders[folder] = f

	t := s.folders[TotalKey]
	t.OriginalSize += original
	t.ConvertedSize += processed
	s.folders[TotalKey] = t
	return true
}

// Folder returns the totals for a folder key (zero when unseen)
func (s *SizeStats) Folder(folder string) Totals {
	return s.folders[folder]
}

// Total returns the grand totals
func (s *SizeStats) Total() Totals {
	return s.folders[TotalKey]
}
