package testsupport

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

const (
	explicitVRLittleEndian = "1.2.840.10008.1.2.1"
	mrImageStorage         = "1.2.840.10008.5.1.4.1.1.4"
)

// Study describes the attributes written into a synthetic DICOM file. Empty
// fields are omitted from the dataset.
type Study struct {
	SubjectName       string
	SubjectID         string
	StudyDate         string
	StudyTime         string
	SeriesDescription string
	SeriesInstanceUID string
	SeriesNumber      string
	InstanceNumber    string

	// OmitGroupLength drops the (0002,0000) element, as some scanners do.
	OmitGroupLength bool
}

// SampleStudy returns a fully populated study used by most tests.
func SampleStudy() Study {
	return Study{
		SubjectName:       "DOE^JANE",
		SubjectID:         "P001",
		StudyDate:         "20240101",
		StudyTime:         "093000.000",
		SeriesDescription: "Scan A",
		SeriesInstanceUID: "1.2.826.0.1.3680043.8.498.12345",
		SeriesNumber:      "3",
		InstanceNumber:    "7",
	}
}

// EncodeDICOM renders s as an explicit VR little endian Part 10 file.
func EncodeDICOM(s Study) []byte {
	var meta bytes.Buffer
	writeElement(&meta, 0x0002, 0x0001, "OB", []byte{0x00, 0x01})
	writeElement(&meta, 0x0002, 0x0002, "UI", uidBytes(mrImageStorage))
	writeElement(&meta, 0x0002, 0x0003, "UI", uidBytes("1.2.826.0.1.3680043.8.498.1."+s.InstanceNumber+"1"))
	writeElement(&meta, 0x0002, 0x0010, "UI", uidBytes(explicitVRLittleEndian))

	var out bytes.Buffer
	out.Write(make([]byte, 128))
	out.WriteString("DICM")
	if !s.OmitGroupLength {
		groupLength := make([]byte, 4)
		binary.LittleEndian.PutUint32(groupLength, uint32(meta.Len()))
		writeElement(&out, 0x0002, 0x0000, "UL", groupLength)
	}
	out.Write(meta.Bytes())

	writeText(&out, 0x0008, 0x0020, "DA", s.StudyDate)
	writeText(&out, 0x0008, 0x0030, "TM", s.StudyTime)
	writeText(&out, 0x0008, 0x103E, "LO", s.SeriesDescription)
	writeText(&out, 0x0010, 0x0010, "PN", s.SubjectName)
	writeText(&out, 0x0010, 0x0020, "LO", s.SubjectID)
	if s.SeriesInstanceUID != "" {
		writeElement(&out, 0x0020, 0x000E, "UI", uidBytes(s.SeriesInstanceUID))
	}
	writeText(&out, 0x0020, 0x0011, "IS", s.SeriesNumber)
	writeText(&out, 0x0020, 0x0013, "IS", s.InstanceNumber)
	return out.Bytes()
}

// WriteDICOM writes a synthetic DICOM file for s at path, creating parents.
func WriteDICOM(t testing.TB, path string, s Study) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, EncodeDICOM(s), 0o644); err != nil {
		t.Fatalf("write dicom %s: %v", path, err)
	}
}

func writeText(buf *bytes.Buffer, group, element uint16, vr, value string) {
	if value == "" {
		return
	}
	data := []byte(value)
	if len(data)%2 == 1 {
		data = append(data, ' ')
	}
	writeElement(buf, group, element, vr, data)
}

func uidBytes(uid string) []byte {
	data := []byte(uid)
	if len(data)%2 == 1 {
		data = append(data, 0x00)
	}
	return data
}

func writeElement(buf *bytes.Buffer, group, element uint16, vr string, value []byte) {
	var header [12]byte
	binary.LittleEndian.PutUint16(header[0:], group)
	binary.LittleEndian.PutUint16(header[2:], element)
	copy(header[4:6], vr)
	switch vr {
	case "OB", "OW", "OF", "SQ", "UT", "UN":
		binary.LittleEndian.PutUint32(header[8:], uint32(len(value)))
		buf.Write(header[:12])
	default:
		binary.LittleEndian.PutUint16(header[6:], uint16(len(value)))
		buf.Write(header[:8])
	}
	buf.Write(value)
}
