package gdal

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/rasterd/cogstream/internal/command"
	"github.com/rasterd/cogstream/internal/ports/output"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// fakeRunner records invocations and serves canned responses.
type fakeRunner struct {
	invocations []command.Invocation
	respond     func(command.Invocation) ([]byte, error)
}

func (f *fakeRunner) Run(_ context.Context, inv command.Invocation) ([]byte, error) {
	f.invocations = append(f.invocations, inv)
	if f.respond != nil {
		return f.respond(inv)
	}
	return nil, nil
}

func TestExtractBandArgs(t *testing.T) {
	runner := &fakeRunner{}
	engine := New(Config{}, runner, testLogger())

	err := engine.ExtractBand(context.Background(), output.ExtractRequest{
		Source: `NETCDF:"/data/in.nc":water`,
		Band:   2,
		Dest:   "/scratch/tile_water.tif",
		Config: output.RuntimeConfig{"GDAL_DISABLE_READDIR_ON_OPEN": "YES"},
	})
	if err != nil {
		t.Fatalf("ExtractBand error: %v", err)
	}

	if len(runner.invocations) != 1 {
		t.Fatalf("got %d invocations, want 1", len(runner.invocations))
	}
	inv := runner.invocations[0]
	if inv.Path != "gdal_translate" {
		t.Errorf("binary = %q, want gdal_translate", inv.Path)
	}
	want := []string{
		"--config", "GDAL_DISABLE_READDIR_ON_OPEN", "YES",
		"-of", "GTIFF",
		"-b", "2",
		`NETCDF:"/data/in.nc":water`,
		"/scratch/tile_water.tif",
	}
	if !reflect.DeepEqual(inv.Args, want) {
		t.Errorf("args = %v, want %v", inv.Args, want)
	}
}

func TestBuildOverviewsArgs(t *testing.T) {
	runner := &fakeRunner{}
	engine := New(Config{AddoBinary: "/opt/gdal/bin/gdaladdo"}, runner, testLogger())

	err := engine.BuildOverviews(context.Background(), output.OverviewRequest{
		Path:      "/scratch/tile_water.tif",
		Method:    "average",
		Levels:    []int{2, 4, 8, 16, 32},
		BlockSize: 512,
	})
	if err != nil {
		t.Fatalf("BuildOverviews error: %v", err)
	}

	inv := runner.invocations[0]
	if inv.Path != "/opt/gdal/bin/gdaladdo" {
		t.Errorf("binary = %q", inv.Path)
	}
	want := []string{
		"-r", "average",
		"--config", "GDAL_TIFF_OVR_BLOCKSIZE", "512",
		"/scratch/tile_water.tif",
		"2", "4", "8", "16", "32",
	}
	if !reflect.DeepEqual(inv.Args, want) {
		t.Errorf("args = %v, want %v", inv.Args, want)
	}
}

func TestFinalizeCOGArgs(t *testing.T) {
	runner := &fakeRunner{}
	engine := New(Config{}, runner, testLogger())

	err := engine.FinalizeCOG(context.Background(), output.FinalizeRequest{
		Source: "/scratch/tile_water.tif",
		Dest:   "/out/WORKING/tile/tile_water.tif",
		Profile: output.COGProfile{
			Compress:  "DEFLATE",
			ZLevel:    9,
			Predictor: 2,
			BlockSize: 512,
		},
	})
	if err != nil {
		t.Fatalf("FinalizeCOG error: %v", err)
	}

	inv := runner.invocations[0]
	want := []string{
		"--config", "GDAL_TIFF_OVR_BLOCKSIZE", "512",
		"-co", "TILED=YES",
		"-co", "COPY_SRC_OVERVIEWS=YES",
		"-co", "COMPRESS=DEFLATE",
		"-co", "ZLEVEL=9",
		"-co", "BLOCKXSIZE=512",
		"-co", "BLOCKYSIZE=512",
		"-co", "PREDICTOR=2",
		"-co", "PROFILE=GeoTIFF",
		"/scratch/tile_water.tif",
		"/out/WORKING/tile/tile_water.tif",
	}
	if !reflect.DeepEqual(inv.Args, want) {
		t.Errorf("args = %v, want %v", inv.Args, want)
	}
}

const rootInfoJSON = `{
  "driverShortName": "netCDF",
  "metadata": {
    "": {"NC_GLOBAL#title": "Water Observations"},
    "SUBDATASETS": {
      "SUBDATASET_1_NAME": "NETCDF:\"/data/in.nc\":water",
      "SUBDATASET_1_DESC": "[2x4000x4000] water",
      "SUBDATASET_2_NAME": "NETCDF:\"/data/in.nc\":extent",
      "SUBDATASET_2_DESC": "[2x4000x4000] extent",
      "SUBDATASET_3_NAME": "NETCDF:\"/data/in.nc\":dataset",
      "SUBDATASET_3_DESC": "[2x27000] dataset"
    }
  }
}`

const subdatasetInfoJSON = `{
  "driverShortName": "netCDF",
  "metadata": {
    "": {"NETCDF_DIM_time_VALUES": "{1525602018,1528849818}"}
  }
}`

func TestInspect(t *testing.T) {
	runner := &fakeRunner{
		respond: func(inv command.Invocation) ([]byte, error) {
			target := inv.Args[len(inv.Args)-1]
			if target == "/data/in.nc" {
				return []byte(rootInfoJSON), nil
			}
			return []byte(subdatasetInfoJSON), nil
		},
	}
	engine := New(Config{}, runner, testLogger())

	info, err := engine.Inspect(context.Background(), "/data/in.nc", nil)
	if err != nil {
		t.Fatalf("Inspect error: %v", err)
	}

	// The metadata variable must not appear as a band subdataset.
	if len(info.Subdatasets) != 2 {
		t.Fatalf("got %d subdatasets, want 2", len(info.Subdatasets))
	}
	if info.Subdatasets[0].Variable != "water" || info.Subdatasets[1].Variable != "extent" {
		t.Errorf("subdatasets = %+v", info.Subdatasets)
	}

	// Time values come from the first subdataset when the root has none.
	if len(runner.invocations) != 2 {
		t.Fatalf("got %d invocations, want 2", len(runner.invocations))
	}
	if len(info.Timestamps) != 2 {
		t.Fatalf("got %d timestamps, want 2", len(info.Timestamps))
	}
	want := time.Date(2018, 5, 6, 10, 20, 18, 0, time.UTC)
	if !info.Timestamps[0].Equal(want) {
		t.Errorf("first timestamp = %v, want %v", info.Timestamps[0], want)
	}
}

func TestInspectUntimed(t *testing.T) {
	runner := &fakeRunner{
		respond: func(inv command.Invocation) ([]byte, error) {
			target := inv.Args[len(inv.Args)-1]
			if target == "/data/flat.nc" {
				return []byte(rootInfoJSON), nil
			}
			// Subdataset carries no time dimension either.
			return []byte(`{"metadata": {"": {}}}`), nil
		},
	}
	engine := New(Config{}, runner, testLogger())

	info, err := engine.Inspect(context.Background(), "/data/flat.nc", nil)
	if err != nil {
		t.Fatalf("Inspect error: %v", err)
	}
	if len(info.Timestamps) != 0 {
		t.Errorf("timestamps = %v, want none", info.Timestamps)
	}
}

func TestInspectCommandFailure(t *testing.T) {
	wantErr := &command.CommandError{Cmd: "gdalinfo", ExitCode: 1, Output: "not recognized"}
	runner := &fakeRunner{
		respond: func(command.Invocation) ([]byte, error) { return nil, wantErr },
	}
	engine := New(Config{}, runner, testLogger())

	_, err := engine.Inspect(context.Background(), "/data/in.nc", nil)
	if !errors.Is(err, wantErr) {
		t.Errorf("Inspect error = %v, want the command error", err)
	}
}

func TestMetadataDocuments(t *testing.T) {
	cdl := "netcdf in {\n" +
		"dimensions:\n\ttime = 2 ;\n" +
		"variables:\n\tchar dataset(time, nchar) ;\n" +
		"data:\n\n" +
		" dataset =\n" +
		"  \"id: first\\nproduct: wofs\\n\",\n" +
		"  \"id: second\\nproduct: wofs\\n\" ;\n" +
		"}\n"
	runner := &fakeRunner{
		respond: func(command.Invocation) ([]byte, error) { return []byte(cdl), nil },
	}
	engine := New(Config{NcdumpBinary: "ncdump"}, runner, testLogger())

	docs, err := engine.MetadataDocuments(context.Background(), "/data/in.nc")
	if err != nil {
		t.Fatalf("MetadataDocuments error: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d documents, want 2", len(docs))
	}
	if string(docs[0]) != "id: first\nproduct: wofs\n" {
		t.Errorf("first document = %q", docs[0])
	}

	inv := runner.invocations[0]
	want := []string{"-v", "dataset", "/data/in.nc"}
	if !reflect.DeepEqual(inv.Args, want) {
		t.Errorf("args = %v, want %v", inv.Args, want)
	}
}
