package application

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/rasterd/cogstream/internal/adapters/staging"
	"github.com/rasterd/cogstream/internal/domain"
	"github.com/rasterd/cogstream/internal/ports/input"
)

func newTestScheduler(engine *mockEngine, layout *staging.Layout, metrics *mockMetrics, cfg ConverterConfig) *Scheduler {
	converter := newTestConverter(engine, layout, metrics, cfg)
	policies := map[string]domain.Policy{
		"wofs_albers":           wofsPolicy(),
		"wofs_filtered_summary": summaryPolicy(),
	}
	return NewScheduler(converter, layout, policies, metrics, testLogger(), 2)
}

func TestConvertBatchStagesAndPromotes(t *testing.T) {
	engine := wofsEngine()
	layout := newTestLayout(t)
	metrics := &mockMetrics{}
	scheduler := newTestScheduler(engine, layout, metrics, ConverterConfig{})

	result, err := scheduler.ConvertBatch(context.Background(), input.ConvertRequest{
		Product: "wofs_albers",
		Files:   []string{wofsSource},
	})
	if err != nil {
		t.Fatalf("ConvertBatch error: %v", err)
	}

	if result.RunID == "" {
		t.Error("batch has no run id")
	}
	if result.Total != 1 || result.Converted != 1 || result.Failed != 0 {
		t.Errorf("result = %+v", result)
	}
	if result.DatasetsStaged != 2 {
		t.Errorf("datasets staged = %d, want 2", result.DatasetsStaged)
	}

	staged, err := layout.List(domain.StateToUpload)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(staged) != 2 {
		t.Fatalf("TO_UPLOAD = %v, want both slices", staged)
	}

	wantDest := map[string]string{
		wofsPrefixOne: "s3://dea-public-data-dev/WOfS/WOFLs/v2.1.0/combined/x_9/y_-39/2018/05/06",
		wofsPrefixTwo: "s3://dea-public-data-dev/WOfS/WOFLs/v2.1.0/combined/x_9/y_-39/2018/06/13",
	}
	for prefix, want := range wantDest {
		got, err := layout.ReadMarker(prefix)
		if err != nil {
			t.Fatalf("ReadMarker %s error: %v", prefix, err)
		}
		if got != want {
			t.Errorf("marker for %s = %q, want %q", prefix, got, want)
		}
	}

	// Nothing lingers in the working area after promotion.
	working, err := layout.List(domain.StateWorking)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(working) != 0 {
		t.Errorf("WORKING = %v, want empty", working)
	}

	if metrics.filesOK != 1 || metrics.datasetsStaged != 2 {
		t.Errorf("metrics = %d files ok, %d staged", metrics.filesOK, metrics.datasetsStaged)
	}
}

func TestConvertBatchIsolatesFileFailures(t *testing.T) {
	engine := wofsEngine()
	layout := newTestLayout(t)
	metrics := &mockMetrics{}
	scheduler := newTestScheduler(engine, layout, metrics, ConverterConfig{})

	missing := "/g/data/fk4/datacube/002/LS_WATER_3577_12_-11_20180506102018_v1526758996.nc"
	result, err := scheduler.ConvertBatch(context.Background(), input.ConvertRequest{
		Product: "wofs_albers",
		Files:   []string{missing, wofsSource},
	})
	if err != nil {
		t.Fatalf("ConvertBatch error: %v", err)
	}

	if result.Converted != 1 || result.Failed != 1 {
		t.Errorf("result = %+v", result)
	}
	if len(result.FailedFiles) != 1 || result.FailedFiles[0] != missing {
		t.Errorf("failed files = %v", result.FailedFiles)
	}

	// The good file's datasets are staged regardless.
	staged, err := layout.List(domain.StateToUpload)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(staged) != 2 {
		t.Errorf("TO_UPLOAD = %v, want the good file's slices", staged)
	}
	if metrics.filesFailed != 1 {
		t.Errorf("files failed = %d, want 1", metrics.filesFailed)
	}
}

func TestConvertBatchHeldDatasetStaysInWorking(t *testing.T) {
	engine := wofsEngine()
	engine.extractErrs = map[string]error{
		subdataset(wofsSource, "water").Identifier: errors.New("translate exited with status 1"),
	}
	layout := newTestLayout(t)
	metrics := &mockMetrics{}
	scheduler := newTestScheduler(engine, layout, metrics, ConverterConfig{
		HoldOnBandFailure: true,
	})

	result, err := scheduler.ConvertBatch(context.Background(), input.ConvertRequest{
		Product: "wofs_albers",
		Files:   []string{wofsSource},
		Year:    2018,
		Month:   5,
	})
	if err != nil {
		t.Fatalf("ConvertBatch error: %v", err)
	}

	// A band failure does not fail the file, but the dataset is withheld.
	if result.Converted != 1 || result.DatasetsStaged != 0 {
		t.Errorf("result = %+v", result)
	}
	staged, err := layout.List(domain.StateToUpload)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(staged) != 0 {
		t.Errorf("TO_UPLOAD = %v, want empty", staged)
	}
	if _, err := os.Stat(layout.DatasetDir(domain.StateWorking, wofsPrefixOne)); err != nil {
		t.Errorf("held dataset missing from WORKING: %v", err)
	}
}

func TestConvertBatchUnknownProduct(t *testing.T) {
	scheduler := newTestScheduler(wofsEngine(), newTestLayout(t), &mockMetrics{}, ConverterConfig{})

	_, err := scheduler.ConvertBatch(context.Background(), input.ConvertRequest{
		Product: "ls9_fc_albers",
		Files:   []string{wofsSource},
	})
	if !errors.Is(err, domain.ErrProductNotFound) {
		t.Errorf("error = %v, want product not found", err)
	}
}

func TestConvertBatchRerunAfterPromotion(t *testing.T) {
	engine := wofsEngine()
	layout := newTestLayout(t)
	scheduler := newTestScheduler(engine, layout, &mockMetrics{}, ConverterConfig{})

	for run := 0; run < 2; run++ {
		if _, err := scheduler.ConvertBatch(context.Background(), input.ConvertRequest{
			Product: "wofs_albers",
			Files:   []string{wofsSource},
		}); err != nil {
			t.Fatalf("run %d: ConvertBatch error: %v", run, err)
		}
	}

	// Promotion emptied WORKING, so the rerun rebuilds both datasets and
	// replaces the staged copies.
	extracts, _, _ := engine.counts()
	if extracts != 4 {
		t.Errorf("extract calls = %d, want 4", extracts)
	}
	staged, err := layout.List(domain.StateToUpload)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(staged) != 2 {
		t.Errorf("TO_UPLOAD = %v, want both slices", staged)
	}
}
