package dicommeta

import (
	"errors"
	"strconv"
	"strings"
)

// Defaults applied when an attribute is absent or unparseable.
const (
	DefaultSubjectID         = "NA"
	DefaultStudyDate         = "0000000"
	DefaultStudyTime         = "0000000.0"
	DefaultSeriesDescription = "NoSeriesDescription"
	DefaultSeriesUID         = "0042"
)

// ErrNotDICOM marks files that could not be parsed as DICOM.
var ErrNotDICOM = errors.New("not a dicom file")

// Record holds the attributes that drive placement. Strings are raw attribute
// values with padding trimmed; token cleanup happens in the layout package.
type Record struct {
	SubjectName       string
	HasSubjectName    bool
	SubjectID         string
	StudyDate         string
	StudyTime         string
	SeriesNumber      int
	SeriesDescription string
	SeriesInstanceUID string
	InstanceNumber    int
}

// NewRecord returns a record with every field at its default.
func NewRecord() Record {
	return Record{
		SubjectID:         DefaultSubjectID,
		StudyDate:         DefaultStudyDate,
		StudyTime:         DefaultStudyTime,
		SeriesDescription: DefaultSeriesDescription,
		SeriesInstanceUID: DefaultSeriesUID,
	}
}

// trimValue strips the space and NUL padding DICOM uses for even lengths.
func trimValue(value string) string {
	return strings.Trim(value, " \x00")
}

// parseIntString parses an IS value, falling back when it is blank or invalid.
func parseIntString(value string, fallback int) int {
	value = trimValue(value)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		f, ferr := strconv.ParseFloat(value, 64)
		if ferr != nil {
			return fallback
		}
		return int(f)
	}
	return n
}
