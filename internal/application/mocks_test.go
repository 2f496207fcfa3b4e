package application

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/rasterd/cogstream/internal/ports/output"
)

// mockEngine implements output.RasterEngine for testing. Extraction and
// finalization write placeholder files so staged datasets are real on disk.
type mockEngine struct {
	mu sync.Mutex

	infos map[string]*output.SourceInfo
	docs  map[string][][]byte

	inspectErr  error
	metadataErr error
	extractErrs map[string]error // keyed by subdataset identifier
	overviewErr error
	finalizeErr error

	inspectCalls  int
	metadataCalls int
	extracts      []output.ExtractRequest
	overviews     []output.OverviewRequest
	finalizes     []output.FinalizeRequest
}

func (m *mockEngine) Inspect(_ context.Context, path string, _ output.RuntimeConfig) (*output.SourceInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inspectCalls++
	if m.inspectErr != nil {
		return nil, m.inspectErr
	}
	info, ok := m.infos[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return info, nil
}

func (m *mockEngine) MetadataDocuments(_ context.Context, path string) ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metadataCalls++
	if m.metadataErr != nil {
		return nil, m.metadataErr
	}
	return m.docs[path], nil
}

func (m *mockEngine) ExtractBand(_ context.Context, req output.ExtractRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extracts = append(m.extracts, req)
	if err := m.extractErrs[req.Source]; err != nil {
		return err
	}
	return os.WriteFile(req.Dest, []byte("scratch"), 0o644)
}

func (m *mockEngine) BuildOverviews(_ context.Context, req output.OverviewRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overviews = append(m.overviews, req)
	return m.overviewErr
}

func (m *mockEngine) FinalizeCOG(_ context.Context, req output.FinalizeRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finalizes = append(m.finalizes, req)
	if m.finalizeErr != nil {
		return m.finalizeErr
	}
	return os.WriteFile(req.Dest, []byte("cog"), 0o644)
}

func (m *mockEngine) counts() (extracts, overviews, finalizes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.extracts), len(m.overviews), len(m.finalizes)
}

// syncCall records one invocation of the remote sync port.
type syncCall struct {
	localDir string
	remote   string
	excludes []string
}

// mockSync implements output.RemoteSync for testing.
type mockSync struct {
	mu    sync.Mutex
	calls []syncCall
	errs  map[string]error // keyed by remote destination
}

func (m *mockSync) Sync(_ context.Context, localDir, remote string, excludes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, syncCall{localDir: localDir, remote: remote, excludes: excludes})
	return m.errs[remote]
}

func (m *mockSync) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// mockCatalog implements output.Catalog for testing.
type mockCatalog struct {
	paths []string
	err   error
	query output.CatalogQuery
}

func (m *mockCatalog) DatasetPaths(_ context.Context, q output.CatalogQuery) ([]string, error) {
	m.query = q
	if m.err != nil {
		return nil, m.err
	}
	return m.paths, nil
}

// mockInventory implements output.Inventory for testing.
type mockInventory struct {
	prefixes map[string]struct{}
	err      error
	bucket   string
	baseDir  string
}

func (m *mockInventory) DatasetPrefixes(_ context.Context, bucket, baseDir string) (map[string]struct{}, error) {
	m.bucket, m.baseDir = bucket, baseDir
	if m.err != nil {
		return nil, m.err
	}
	return m.prefixes, nil
}

// mockMetrics implements output.MetricsCollector, counting calls.
type mockMetrics struct {
	mu             sync.Mutex
	filesOK        int
	filesFailed    int
	bandsOK        int
	bandsFailed    int
	bandsSkipped   int
	datasetsStaged int
	datasetsReady  int
	uploadsOK      int
	uploadsFailed  int
	engineOps      map[string]int
}

func (m *mockMetrics) IncFilesConverted(_ string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if success {
		m.filesOK++
	} else {
		m.filesFailed++
	}
}

func (m *mockMetrics) ObserveFileDuration(_ string, _ time.Duration) {}

func (m *mockMetrics) IncBandsConverted(_ string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if success {
		m.bandsOK++
	} else {
		m.bandsFailed++
	}
}

func (m *mockMetrics) IncBandsSkipped(_ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bandsSkipped++
}

func (m *mockMetrics) IncDatasetsStaged(_ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.datasetsStaged++
}

func (m *mockMetrics) SetDatasetsReady(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.datasetsReady = count
}

func (m *mockMetrics) IncUploads(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if success {
		m.uploadsOK++
	} else {
		m.uploadsFailed++
	}
}

func (m *mockMetrics) ObserveUploadDuration(_ time.Duration) {}

func (m *mockMetrics) IncEngineInvocations(operation string, _ bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.engineOps == nil {
		m.engineOps = make(map[string]int)
	}
	m.engineOps[operation]++
}
