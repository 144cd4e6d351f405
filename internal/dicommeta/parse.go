package dicommeta

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

const (
	preambleLength = 128
	magicWord      = "DICM"
)

// Probe reports whether path starts with a Part 10 preamble and magic word.
func Probe(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	header := make([]byte, preambleLength+len(magicWord))
	if _, err := io.ReadFull(f, header); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return false, nil
		}
		return false, err
	}
	return bytes.Equal(header[preambleLength:], []byte(magicWord)), nil
}

// ParseFile reads the placement attributes of the DICOM file at path without
// modifying it. Files that fail the probe or the parser yield an error
// wrapping ErrNotDICOM.
func ParseFile(path string) (rec Record, err error) {
	ok, err := Probe(path)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %s: %w", ErrNotDICOM, path, err)
	}
	if !ok {
		return Record{}, fmt.Errorf("%w: %s: missing DICM preamble", ErrNotDICOM, path)
	}

	defer func() {
		if r := recover(); r != nil {
			rec = Record{}
			err = fmt.Errorf("%w: %s: parser panic: %v", ErrNotDICOM, path, r)
		}
	}()

	ds, err := dicom.ParseFile(path, nil, dicom.SkipPixelData(), dicom.AllowMissingMetaElementGroupLength())
	if err != nil {
		return Record{}, fmt.Errorf("%w: %s: %w", ErrNotDICOM, path, err)
	}
	return fromDataset(&ds), nil
}

func fromDataset(ds *dicom.Dataset) Record {
	rec := NewRecord()

	if name, ok := stringValue(ds, tag.PatientName); ok && strings.TrimSpace(name) != "" {
		rec.SubjectName = name
		rec.HasSubjectName = true
	}
	if id, ok := stringValue(ds, tag.PatientID); ok && id != "" {
		rec.SubjectID = id
	}
	if date, ok := stringValue(ds, tag.StudyDate); ok && date != "" {
		rec.StudyDate = date
	}
	if tm, ok := stringValue(ds, tag.StudyTime); ok && tm != "" {
		rec.StudyTime = tm
	}
	if desc, ok := stringValue(ds, tag.SeriesDescription); ok && desc != "" {
		rec.SeriesDescription = desc
	}
	if uid, ok := stringValue(ds, tag.SeriesInstanceUID); ok && uid != "" {
		rec.SeriesInstanceUID = uid
	}
	rec.SeriesNumber = intValue(ds, tag.SeriesNumber, 0)
	rec.InstanceNumber = intValue(ds, tag.InstanceNumber, 0)
	return rec
}

func stringValue(ds *dicom.Dataset, t tag.Tag) (string, bool) {
	elem, err := ds.FindElementByTag(t)
	if err != nil || elem == nil || elem.Value == nil {
		return "", false
	}
	switch v := elem.Value.GetValue().(type) {
	case []string:
		if len(v) == 0 {
			return "", true
		}
		return trimValue(strings.Join(v, "\\")), true
	case []int:
		if len(v) == 0 {
			return "", true
		}
		return fmt.Sprint(v[0]), true
	default:
		return "", false
	}
}

func intValue(ds *dicom.Dataset, t tag.Tag, fallback int) int {
	elem, err := ds.FindElementByTag(t)
	if err != nil || elem == nil || elem.Value == nil {
		return fallback
	}
	switch v := elem.Value.GetValue().(type) {
	case []string:
		if len(v) == 0 {
			return fallback
		}
		return parseIntString(v[0], fallback)
	case []int:
		if len(v) == 0 {
			return fallback
		}
		return v[0]
	default:
		return fallback
	}
}
