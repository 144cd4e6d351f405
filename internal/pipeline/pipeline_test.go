package pipeline_test

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"dicomsort/internal/enumerate"
	"dicomsort/internal/logging"
	"dicomsort/internal/pipeline"
	"dicomsort/internal/services"
	"dicomsort/internal/services/dcm2niix"
	"dicomsort/internal/testsupport"
)

// buildSource lays out two series of one subject plus stray files.
func buildSource(t *testing.T) string {
	t.Helper()
	source := filepath.Join(t.TempDir(), "exam")

	a := testsupport.SampleStudy()
	for _, inst := range []string{"1", "2", "3"} {
		a.InstanceNumber = inst
		testsupport.WriteDICOM(t, filepath.Join(source, "raw", "IM"+inst), a)
	}
	b := testsupport.SampleStudy()
	b.SeriesNumber = "4"
	b.SeriesDescription = "Scan B"
	b.SeriesInstanceUID = "1.2.826.0.1.3680043.8.498.54321"
	b.InstanceNumber = "1"
	testsupport.WriteDICOM(t, filepath.Join(source, "other", "deep", "IMB1"), b)

	testsupport.WriteFile(t, filepath.Join(source, "README.txt"), 64)
	testsupport.WriteFile(t, filepath.Join(source, "raw", "DICOMDIR.bak"), 300)
	return source
}

func drain(ch <-chan int) (func() []int, *sync.WaitGroup) {
	var (
		values []int
		wg     sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for v := range ch {
			values = append(values, v)
		}
	}()
	return func() []int { return values }, &wg
}

func TestRunCopy(t *testing.T) {
	source := buildSource(t)
	progress := make(chan int)
	values, wg := drain(progress)

	summary, err := pipeline.Run(context.Background(), pipeline.Options{
		Source:   source,
		Mode:     enumerate.Copy,
		Workers:  3,
		Progress: progress,
		Logger:   logging.NewNop(),
	})
	wg.Wait()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Total != 6 || summary.Placed != 4 || summary.Skipped != 2 {
		t.Fatalf("unexpected counts %+v", summary)
	}
	if summary.Destination != source+"_translated" {
		t.Fatalf("destination = %q", summary.Destination)
	}

	got := testsupport.ListFiles(t, summary.Destination)
	sort.Strings(got)
	want := []string{
		"DOE_JANE_P001/20240101_0930/3_ScanA_12345/ScanA_12345_dyn_00001.dcm",
		"DOE_JANE_P001/20240101_0930/3_ScanA_12345/ScanA_12345_dyn_00002.dcm",
		"DOE_JANE_P001/20240101_0930/3_ScanA_12345/ScanA_12345_dyn_00003.dcm",
		"DOE_JANE_P001/20240101_0930/4_ScanB_54321/ScanB_54321_dyn_00001.dcm",
	}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Fatalf("sorted tree:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
	if n := len(testsupport.ListFiles(t, source)); n != 6 {
		t.Fatalf("copy must keep all source files, found %d", n)
	}

	v := values()
	if len(v) != 6 || v[len(v)-1] != 100 {
		t.Fatalf("progress values = %v", v)
	}
	for i := 1; i < len(v); i++ {
		if v[i] < v[i-1] {
			t.Fatalf("progress not monotonic: %v", v)
		}
	}
}

func TestRunCopyIsIdempotent(t *testing.T) {
	source := buildSource(t)
	opts := pipeline.Options{Source: source, Mode: enumerate.Copy, Workers: 2}
	first, err := pipeline.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	second, err := pipeline.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if first.Placed != second.Placed {
		t.Fatalf("placed differs: %d vs %d", first.Placed, second.Placed)
	}
	if n := len(testsupport.ListFiles(t, first.Destination)); n != 4 {
		t.Fatalf("expected 4 sorted files after rerun, got %d", n)
	}
}

// snapshot maps every file under root to its contents.
func snapshot(t *testing.T, root string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	for _, rel := range testsupport.ListFiles(t, root) {
		data, err := os.ReadFile(filepath.Join(root, rel))
		if err != nil {
			t.Fatal(err)
		}
		out[rel] = string(data)
	}
	return out
}

func sameTree(t *testing.T, got, want map[string]string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("tree has %d files, want %d", len(got), len(want))
	}
	for rel, data := range want {
		other, ok := got[rel]
		if !ok {
			t.Fatalf("missing %s", rel)
		}
		if other != data {
			t.Fatalf("contents of %s differ", rel)
		}
	}
}

func TestRunCopyRerunKeepsIdenticalTree(t *testing.T) {
	source := buildSource(t)
	opts := pipeline.Options{Source: source, Mode: enumerate.Copy, Workers: 2}
	first, err := pipeline.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	before := snapshot(t, first.Destination)

	if _, err := pipeline.Run(context.Background(), opts); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	sameTree(t, snapshot(t, first.Destination), before)
}

func TestRunCopyRerunWithReadOnlySources(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("root ignores permission bits")
	}
	source := buildSource(t)
	for _, rel := range testsupport.ListFiles(t, source) {
		if err := os.Chmod(filepath.Join(source, rel), 0o444); err != nil {
			t.Fatal(err)
		}
	}
	opts := pipeline.Options{Source: source, Mode: enumerate.Copy, Workers: 2}
	if _, err := pipeline.Run(context.Background(), opts); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	second, err := pipeline.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if second.Placed != 4 {
		t.Fatalf("placed = %d, want 4", second.Placed)
	}
}

func TestRunResultIndependentOfWorkerCount(t *testing.T) {
	var reference map[string]string
	for _, workers := range []int{1, 4, 16} {
		source := buildSource(t)
		progress := make(chan int)
		values, wg := drain(progress)

		summary, err := pipeline.Run(context.Background(), pipeline.Options{
			Source:   source,
			Mode:     enumerate.Copy,
			Workers:  workers,
			Progress: progress,
		})
		wg.Wait()
		if err != nil {
			t.Fatalf("workers=%d: Run: %v", workers, err)
		}
		if summary.Total != 6 || summary.Placed != 4 || summary.Skipped != 2 {
			t.Fatalf("workers=%d: unexpected counts %+v", workers, summary)
		}

		v := values()
		if len(v) == 0 || v[len(v)-1] != 100 {
			t.Fatalf("workers=%d: progress = %v", workers, v)
		}
		for i := 1; i < len(v); i++ {
			if v[i] < v[i-1] {
				t.Fatalf("workers=%d: progress not monotonic: %v", workers, v)
			}
		}

		tree := snapshot(t, summary.Destination)
		if reference == nil {
			reference = tree
			continue
		}
		sameTree(t, tree, reference)
	}
}

func TestRunMoveFlattensSingleSubject(t *testing.T) {
	source := buildSource(t)

	summary, err := pipeline.Run(context.Background(), pipeline.Options{
		Source:  source,
		Mode:    enumerate.Move,
		Workers: 2,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !summary.Finalized {
		t.Fatal("expected move to be finalized")
	}
	wantRoot := filepath.Join(filepath.Dir(source), "DOE_JANE_P001")
	if summary.Destination != wantRoot {
		t.Fatalf("final root = %q, want %q", summary.Destination, wantRoot)
	}
	if _, err := os.Stat(source); !os.IsNotExist(err) {
		t.Fatalf("expected source wrapper removed, stat err=%v", err)
	}
	if _, err := os.Stat(source + "_translated"); !os.IsNotExist(err) {
		t.Fatalf("expected temporary destination gone, stat err=%v", err)
	}
	if n := len(testsupport.ListFiles(t, wantRoot)); n != 4 {
		t.Fatalf("expected 4 files under final root, got %d", n)
	}
}

func TestRunMoveKeepsRootForSeveralSubjects(t *testing.T) {
	source := buildSource(t)
	other := testsupport.SampleStudy()
	other.SubjectName = "ROE^RICHARD"
	other.SubjectID = "P002"
	testsupport.WriteDICOM(t, filepath.Join(source, "p2", "IM1"), other)

	summary, err := pipeline.Run(context.Background(), pipeline.Options{Source: source, Mode: enumerate.Move, Workers: 2})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Destination != source {
		t.Fatalf("final root = %q, want %q", summary.Destination, source)
	}
	entries, err := os.ReadDir(source)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	if strings.Join(names, ",") != "DOE_JANE_P001,ROE_RICHARD_P002" {
		t.Fatalf("unexpected top level %v", names)
	}
}

func TestRunMoveWithoutDICOMKeepsSource(t *testing.T) {
	source := filepath.Join(t.TempDir(), "junk")
	testsupport.WriteFile(t, filepath.Join(source, "a.txt"), 10)

	summary, err := pipeline.Run(context.Background(), pipeline.Options{Source: source, Mode: enumerate.Move})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Finalized || summary.Placed != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if _, err := os.Stat(filepath.Join(source, "a.txt")); err != nil {
		t.Fatalf("source file should remain: %v", err)
	}
}

func TestRunArchive(t *testing.T) {
	source := buildSource(t)
	zipPath := filepath.Join(t.TempDir(), "out", "exam.zip")

	summary, err := pipeline.Run(context.Background(), pipeline.Options{
		Source:      source,
		Mode:        enumerate.Move,
		Workers:     4,
		Archive:     true,
		ArchivePath: zipPath,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Mode != enumerate.Copy {
		t.Fatalf("archive mode must not move, got %s", summary.Mode)
	}
	if summary.ArchiveEntries != 4 || summary.Placed != 4 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	defer r.Close()
	if len(r.File) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(r.File))
	}
	if n := len(testsupport.ListFiles(t, source)); n != 6 {
		t.Fatalf("archive mode must keep sources, found %d", n)
	}
	if _, err := os.Stat(source + "_translated"); !os.IsNotExist(err) {
		t.Fatalf("archive mode must not create a directory tree, stat err=%v", err)
	}
}

func TestRunEmptySourceReportsFullProgress(t *testing.T) {
	progress := make(chan int, 4)
	summary, err := pipeline.Run(context.Background(), pipeline.Options{Source: t.TempDir(), Progress: progress})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	var values []int
	for v := range progress {
		values = append(values, v)
	}
	if len(values) != 1 || values[0] != 100 {
		t.Fatalf("progress = %v, want [100]", values)
	}
	if summary.Total != 0 {
		t.Fatalf("unexpected total %d", summary.Total)
	}
}

func TestRunMissingSource(t *testing.T) {
	_, err := pipeline.Run(context.Background(), pipeline.Options{Source: filepath.Join(t.TempDir(), "missing")})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
	if _, err := pipeline.Run(context.Background(), pipeline.Options{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRunCancelled(t *testing.T) {
	source := buildSource(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := pipeline.Run(ctx, pipeline.Options{Source: source, Mode: enumerate.Move, Workers: 2})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if summary.Finalized {
		t.Fatal("cancelled run must not finalize")
	}
	if _, err := os.Stat(source); err != nil {
		t.Fatalf("source must survive cancellation: %v", err)
	}
}

type fakeConverter struct {
	req dcm2niix.Request
	err error
}

func (f *fakeConverter) Convert(_ context.Context, req dcm2niix.Request) (dcm2niix.Result, error) {
	f.req = req
	return dcm2niix.Result{Series: 2}, f.err
}

func TestRunConvertsSortedTree(t *testing.T) {
	source := buildSource(t)
	conv := &fakeConverter{}

	summary, err := pipeline.Run(context.Background(), pipeline.Options{
		Source:  source,
		Mode:    enumerate.Copy,
		Workers: 3,
		Convert: &pipeline.ConvertOptions{Client: conv, Mode: dcm2niix.ModeExamDate, OutputType: "float32", Compress: true},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !summary.Converted || summary.ConvertedSeries != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if conv.req.Root != summary.Destination || conv.req.Mode != dcm2niix.ModeExamDate || conv.req.Workers != 3 || !conv.req.Compress {
		t.Fatalf("unexpected request %+v", conv.req)
	}
	if !strings.Contains(summary.Report(), "Nifti") {
		t.Fatalf("expected nifti report, got %q", summary.Report())
	}
}

func TestRunConversionFailureIsNotFatal(t *testing.T) {
	source := buildSource(t)
	conv := &fakeConverter{err: errors.New("dcm2niix crashed")}

	summary, err := pipeline.Run(context.Background(), pipeline.Options{
		Source:  source,
		Convert: &pipeline.ConvertOptions{Client: conv},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.ConvertError == "" {
		t.Fatal("expected conversion error recorded")
	}
	if summary.Placed != 4 {
		t.Fatalf("placement must be unaffected, got %d", summary.Placed)
	}
}

func TestRunMoveSortsFilesWithoutMetaGroupLength(t *testing.T) {
	source := filepath.Join(t.TempDir(), "exam")
	with := testsupport.SampleStudy()
	without := testsupport.SampleStudy()
	without.InstanceNumber = "8"
	without.OmitGroupLength = true
	testsupport.WriteDICOM(t, filepath.Join(source, "IM7"), with)
	testsupport.WriteDICOM(t, filepath.Join(source, "IM8"), without)

	summary, err := pipeline.Run(context.Background(), pipeline.Options{Source: source, Mode: enumerate.Move, Workers: 2})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Placed != 2 || summary.Skipped != 0 {
		t.Fatalf("unexpected counts %+v", summary)
	}
	got := testsupport.ListFiles(t, summary.Destination)
	sort.Strings(got)
	want := []string{
		"20240101_0930/3_ScanA_12345/ScanA_12345_dyn_00007.dcm",
		"20240101_0930/3_ScanA_12345/ScanA_12345_dyn_00008.dcm",
	}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Fatalf("sorted tree:\n%s", strings.Join(got, "\n"))
	}
}

func TestOptionsDestination(t *testing.T) {
	tests := []struct {
		name string
		opts pipeline.Options
		want string
	}{
		{"tree", pipeline.Options{Source: "/data/exam/", DestinationSuffix: "_translated"}, "/data/exam_translated"},
		{"default archive", pipeline.Options{Source: "/data/exam/", DestinationSuffix: "_translated", Archive: true}, "/data/exam_translated.zip"},
		{"explicit archive", pipeline.Options{Source: "/data/exam", Archive: true, ArchivePath: "/out/a.zip"}, "/out/a.zip"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.opts.Destination(); got != tt.want {
				t.Fatalf("Destination() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRunMoveKeepsSourceWithUnreadableDirectory(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("root ignores permission bits")
	}
	source := buildSource(t)
	locked := filepath.Join(source, "locked")
	testsupport.WriteDICOM(t, filepath.Join(locked, "IM9"), testsupport.SampleStudy())
	if err := os.Chmod(locked, 0); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	summary, err := pipeline.Run(context.Background(), pipeline.Options{Source: source, Mode: enumerate.Move, Workers: 2})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.UnreadableDirs != 1 || summary.Placed != 4 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.Finalized {
		t.Fatal("move must not finalize when a directory was skipped")
	}
	if _, err := os.Stat(locked); err != nil {
		t.Fatalf("unreadable directory must survive: %v", err)
	}
	if !strings.Contains(summary.Report(), "Unreadable directories: 1") {
		t.Fatalf("report missing unreadable count:\n%s", summary.Report())
	}
}
