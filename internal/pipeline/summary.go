package pipeline

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"dicomsort/internal/enumerate"
	"dicomsort/internal/placer"
)

const reportRule = "---------------------------------------------------------"

// Summary aggregates the outcome of a Run.
type Summary struct {
	RunID           string                 `json:"run_id,omitempty"`
	Source          string                 `json:"source"`
	Destination     string                 `json:"destination"`
	Mode            enumerate.TransferMode `json:"mode"`
	Archive         bool                   `json:"archive"`
	Converted       bool                   `json:"converted"`
	Total           int                    `json:"total"`
	Placed          int                    `json:"dicom"`
	Skipped         int                    `json:"non_dicom"`
	Unidentified    int                    `json:"unidentified"`
	Collisions      int                    `json:"collisions"`
	Failed          int                    `json:"failed"`
	UnreadableDirs  int                    `json:"unreadable_dirs,omitempty"`
	ArchiveEntries  int                    `json:"archive_entries,omitempty"`
	ConvertedSeries int                    `json:"converted_series,omitempty"`
	ConvertError    string                 `json:"convert_error,omitempty"`
	Finalized       bool                   `json:"finalized"`
	ScanDuration    time.Duration          `json:"scan_duration_ns"`
	PlaceDuration   time.Duration          `json:"place_duration_ns"`
	ConvertDuration time.Duration          `json:"convert_duration_ns,omitempty"`
}

func (s *Summary) add(res placer.Result) {
	if res.Outcome == placer.Placed {
		s.Placed++
	} else {
		s.Skipped++
	}
	switch res.Reason {
	case placer.ReasonUnidentified:
		s.Unidentified++
	case placer.ReasonCollision:
		s.Collisions++
	case placer.ReasonFailed:
		s.Failed++
	}
}

// Report renders the human-readable completion message.
func (s Summary) Report() string {
	var b strings.Builder
	switch {
	case s.Archive:
		b.WriteString("Translation to ZIP completed \n")
	case s.Converted:
		b.WriteString("Translation and Nifti generation completed \n")
	default:
		b.WriteString("Translation completed \n")
	}
	b.WriteString(reportRule + "\n")
	if s.Archive {
		fmt.Fprintf(&b, "Scan duration: %s s\n", formatSeconds(s.ScanDuration+s.PlaceDuration))
	} else {
		fmt.Fprintf(&b, "Scan duration: %s s\n", formatSeconds(s.ScanDuration))
	}
	fmt.Fprintf(&b, "Number of detected files: %d \n", s.Total)
	fmt.Fprintf(&b, "     DICOM files: %d\n", s.Placed)
	fmt.Fprintf(&b, "     Non-DICOM files: %d", s.Skipped)
	if !s.Archive {
		fmt.Fprintf(&b, "\nDuration to %s all DICOM files: %s s", s.Mode, formatSeconds(s.PlaceDuration))
		if s.Converted {
			fmt.Fprintf(&b, " \nDuration to generate and save Nifti files: %s s ", formatSeconds(s.ConvertDuration))
		}
	}

	var notes []string
	if s.Unidentified > 0 {
		notes = append(notes, fmt.Sprintf("     Without subject name: %d", s.Unidentified))
	}
	if s.Collisions > 0 {
		notes = append(notes, fmt.Sprintf("     Destination collisions: %d", s.Collisions))
	}
	if s.Failed > 0 {
		notes = append(notes, fmt.Sprintf("     Failed: %d", s.Failed))
	}
	if s.UnreadableDirs > 0 {
		notes = append(notes, fmt.Sprintf("     Unreadable directories: %d", s.UnreadableDirs))
	}
	if s.ConvertError != "" {
		notes = append(notes, "Nifti conversion error: "+s.ConvertError)
	}
	if s.Destination != "" {
		notes = append(notes, "Output: "+s.Destination)
	}
	if len(notes) > 0 {
		b.WriteString("\n")
		b.WriteString(strings.Join(notes, "\n"))
	}
	return b.String()
}

// formatSeconds rounds to hundredths and always keeps a decimal point.
func formatSeconds(d time.Duration) string {
	v := math.Round(d.Seconds()*100) / 100
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
