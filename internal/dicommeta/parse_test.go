package dicommeta_test

import (
	"errors"
	"path/filepath"
	"testing"

	"dicomsort/internal/dicommeta"
	"dicomsort/internal/testsupport"
)

func TestParseFileReadsAttributes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img0001")
	testsupport.WriteDICOM(t, path, testsupport.SampleStudy())

	rec, err := dicommeta.ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if !rec.HasSubjectName || rec.SubjectName != "DOE^JANE" {
		t.Fatalf("subject name = %q (has=%v)", rec.SubjectName, rec.HasSubjectName)
	}
	if rec.SubjectID != "P001" {
		t.Fatalf("subject id = %q", rec.SubjectID)
	}
	if rec.StudyDate != "20240101" || rec.StudyTime != "093000.000" {
		t.Fatalf("study date/time = %q %q", rec.StudyDate, rec.StudyTime)
	}
	if rec.SeriesDescription != "Scan A" {
		t.Fatalf("series description = %q", rec.SeriesDescription)
	}
	if rec.SeriesInstanceUID != "1.2.826.0.1.3680043.8.498.12345" {
		t.Fatalf("series uid = %q", rec.SeriesInstanceUID)
	}
	if rec.SeriesNumber != 3 || rec.InstanceNumber != 7 {
		t.Fatalf("series/instance = %d/%d", rec.SeriesNumber, rec.InstanceNumber)
	}
}

func TestParseFileWithoutMetaGroupLength(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nogl.dcm")
	study := testsupport.SampleStudy()
	study.OmitGroupLength = true
	testsupport.WriteDICOM(t, path, study)

	rec, err := dicommeta.ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if rec.SubjectName != "DOE^JANE" || rec.SeriesNumber != 3 || rec.InstanceNumber != 7 {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.SeriesInstanceUID != "1.2.826.0.1.3680043.8.498.12345" {
		t.Fatalf("series uid = %q", rec.SeriesInstanceUID)
	}
}

func TestParseFileAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bare.dcm")
	testsupport.WriteDICOM(t, path, testsupport.Study{SubjectName: "ANON"})

	rec, err := dicommeta.ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	want := dicommeta.NewRecord()
	want.SubjectName = "ANON"
	want.HasSubjectName = true
	if rec != want {
		t.Fatalf("record = %+v, want %+v", rec, want)
	}
}

func TestParseFileWithoutSubjectName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anon.dcm")
	study := testsupport.SampleStudy()
	study.SubjectName = ""
	testsupport.WriteDICOM(t, path, study)

	rec, err := dicommeta.ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if rec.HasSubjectName {
		t.Fatalf("expected no subject name, got %q", rec.SubjectName)
	}
}

func TestParseFileRejectsNonDICOM(t *testing.T) {
	dir := t.TempDir()
	small := filepath.Join(dir, "notes.txt")
	large := filepath.Join(dir, "blob.bin")
	testsupport.WriteFile(t, small, 10)
	testsupport.WriteFile(t, large, 4096)

	for _, path := range []string{small, large} {
		if _, err := dicommeta.ParseFile(path); !errors.Is(err, dicommeta.ErrNotDICOM) {
			t.Fatalf("ParseFile(%s) error = %v, want ErrNotDICOM", path, err)
		}
	}
}

func TestParseFileMissing(t *testing.T) {
	_, err := dicommeta.ParseFile(filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, dicommeta.ErrNotDICOM) {
		t.Fatalf("expected ErrNotDICOM for missing file, got %v", err)
	}
}

func TestProbe(t *testing.T) {
	dir := t.TempDir()
	dcm := filepath.Join(dir, "a.dcm")
	testsupport.WriteDICOM(t, dcm, testsupport.SampleStudy())
	other := filepath.Join(dir, "b")
	testsupport.WriteFile(t, other, 200)

	if ok, err := dicommeta.Probe(dcm); err != nil || !ok {
		t.Fatalf("Probe(dicom) = %v, %v", ok, err)
	}
	if ok, err := dicommeta.Probe(other); err != nil || ok {
		t.Fatalf("Probe(other) = %v, %v", ok, err)
	}
}
