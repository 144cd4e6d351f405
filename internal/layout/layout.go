// Package layout derives the destination path of a DICOM file from its
// metadata record.
package layout

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"dicomsort/internal/dicommeta"
	"dicomsort/internal/textutil"
)

// ErrUnidentifiedSubject is returned for records without a usable subject name.
var ErrUnidentifiedSubject = errors.New("subject name missing")

const (
	uidTerminator = ".0.0"
	uidSuffixLen  = 5
	studyTimeLen  = 4
)

// Components are the cleaned tokens a destination path is built from.
type Components struct {
	SubjectName       string
	SubjectID         string
	StudyDate         string
	StudyTime         string
	SeriesNumber      string
	SeriesDescription string
	SeriesUID         string
	Instance          string
}

// SubjectDir is the first directory level: {name}_{id}.
func (c Components) SubjectDir() string {
	return c.SubjectName + "_" + c.SubjectID
}

// StudyDir is the second directory level: {date}_{time}.
func (c Components) StudyDir() string {
	return c.StudyDate + "_" + c.StudyTime
}

// SeriesDir is the third directory level: {number}_{description}_{uid}.
func (c Components) SeriesDir() string {
	return c.SeriesNumber + "_" + c.SeriesDescription + "_" + c.SeriesUID
}

// FileName is the leaf: {description}_{uid}_dyn_{instance}.dcm.
func (c Components) FileName() string {
	return c.SeriesDescription + "_" + c.SeriesUID + "_dyn_" + c.Instance + ".dcm"
}

// Path joins the components with forward slashes.
func (c Components) Path() string {
	return strings.Join([]string{c.SubjectDir(), c.StudyDir(), c.SeriesDir(), c.FileName()}, "/")
}

// Split cleans every attribute of rec into a path token.
func Split(rec dicommeta.Record) (Components, error) {
	name := textutil.CleanPersonName(rec.SubjectName)
	if !rec.HasSubjectName || name == "" {
		return Components{}, ErrUnidentifiedSubject
	}
	return Components{
		SubjectName:       name,
		SubjectID:         orDefault(textutil.CleanIdentifier(rec.SubjectID), dicommeta.DefaultSubjectID),
		StudyDate:         orDefault(textutil.SanitizeComponent(rec.StudyDate), dicommeta.DefaultStudyDate),
		StudyTime:         StudyTimePrefix(rec.StudyTime),
		SeriesNumber:      strconv.Itoa(rec.SeriesNumber),
		SeriesDescription: orDefault(textutil.CleanDescription(rec.SeriesDescription), dicommeta.DefaultSeriesDescription),
		SeriesUID:         ShortUID(rec.SeriesInstanceUID),
		Instance:          fmt.Sprintf("%05d", rec.InstanceNumber),
	}, nil
}

// Derive returns the slash-separated destination path, relative to the
// destination root, for rec.
func Derive(rec dicommeta.Record) (string, error) {
	c, err := Split(rec)
	if err != nil {
		return "", err
	}
	return textutil.StripAngles(c.Path()), nil
}

// StudyTimePrefix keeps the first four characters of the integer-second part
// of a study time (HHMM).
func StudyTimePrefix(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		value = dicommeta.DefaultStudyTime
	}
	whole, _, _ := strings.Cut(value, ".")
	if len(whole) > studyTimeLen {
		whole = whole[:studyTimeLen]
	}
	whole = textutil.SanitizeComponent(whole)
	if whole == "" {
		return StudyTimePrefix(dicommeta.DefaultStudyTime)
	}
	return whole
}

// ShortUID returns the last five characters of a series UID, ignoring any
// ".0.0" suffix block.
func ShortUID(uid string) string {
	uid = strings.TrimSpace(uid)
	head, _, _ := strings.Cut(uid, uidTerminator)
	if len(head) > uidSuffixLen {
		head = head[len(head)-uidSuffixLen:]
	}
	head = textutil.SanitizeComponent(head)
	if head == "" {
		return dicommeta.DefaultSeriesUID
	}
	return head
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
