package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sm-diecasting/inspection-service/internal/domain/entity"
)

type memoryResultStore struct {
	records map[int64]*entity.ProductRecord
	order   []int64
	scanErr error
}

func newMemoryResultStore(records ...entity.ProductRecord) *memoryResultStore {
	s := &memoryResultStore{records: map[int64]*entity.ProductRecord{}}
	for _, rec := range records {
		rec := rec
		s.records[rec.ProductID] = &rec
		s.order = append(s.order, rec.ProductID)
	}
	return s
}

func (s *memoryResultStore) Put(_ context.Context, records []entity.ProductRecord) error {
	for _, rec := range records {
		rec := rec
		s.records[rec.ProductID] = &rec
		s.order = append(s.order, rec.ProductID)
	}
	return nil
}

func (s *memoryResultStore) Scan(_ context.Context) ([]entity.ProductRecord, error) {
	if s.scanErr != nil {
		return nil, s.scanErr
	}
	out := make([]entity.ProductRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.records[id])
	}
	return out, nil
}

func (s *memoryResultStore) UpdateVerdict(_ context.Context, productID int64, verdict entity.Verdict) error {
	rec, ok := s.records[productID]
	if !ok {
		return fmt.Errorf("%w: product %d", entity.ErrNotFound, productID)
	}
	rec.FinalResult = verdict
	return nil
}

type presignFrameStorage struct{}

func (presignFrameStorage) Reset(_ context.Context, _ string) error { return nil }

func (presignFrameStorage) UploadFrames(_ context.Context, _ string, frames []entity.Frame) ([]entity.Frame, error) {
	return frames, nil
}

func (presignFrameStorage) FrameURL(_ context.Context, objectKey string) (string, error) {
	return "https://minio.local/frames/" + objectKey + "?signed", nil
}

func record(id int64, verdict entity.Verdict) entity.ProductRecord {
	frames := make([]entity.Prediction, 5)
	for i := range frames {
		label := entity.VerdictOK
		if verdict == entity.VerdictNG && i == 2 {
			label = entity.VerdictNG
		}
		frames[i] = entity.NewPrediction(entity.Frame{
			Index:     i,
			ObjectKey: fmt.Sprintf("run-1/frame_%d.jpg", int(id)*5+i),
		}, label, 0.88)
	}
	return entity.ProductRecord{ProductID: id, Frames: frames, FinalResult: verdict}
}

func newTestServer(store *memoryResultStore) *httptest.Server {
	srv := NewServer(store, presignFrameStorage{}, zap.NewNop())
	return httptest.NewServer(srv.Handler())
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func postVerdict(t *testing.T, url string, id string, verdict string) int {
	t.Helper()
	body := strings.NewReader(fmt.Sprintf(`{"verdict":%q}`, verdict))
	resp, err := http.Post(fmt.Sprintf("%s/api/products/%s/verdict", url, id), "application/json", body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestListProductsSplitsByVerdict(t *testing.T) {
	store := newMemoryResultStore(
		record(1, entity.VerdictOK),
		record(2, entity.VerdictNG),
		record(3, entity.VerdictOK),
	)
	ts := newTestServer(store)
	defer ts.Close()

	var resp productsResponse
	code := getJSON(t, ts.URL+"/api/products", &resp)
	require.Equal(t, http.StatusOK, code)

	require.Len(t, resp.NG, 1)
	require.Len(t, resp.OK, 2)
	assert.Equal(t, int64(2), resp.NG[0].ProductID)
	assert.Equal(t, "NG", resp.NG[0].FinalResult)

	require.Len(t, resp.NG[0].Frames, 5)
	for _, fv := range resp.NG[0].Frames {
		assert.Contains(t, fv.URL, "https://minio.local/frames/")
		assert.Contains(t, fv.URL, "?signed")
	}
}

func TestListProductsEmptyStore(t *testing.T) {
	ts := newTestServer(newMemoryResultStore())
	defer ts.Close()

	var resp productsResponse
	code := getJSON(t, ts.URL+"/api/products", &resp)
	require.Equal(t, http.StatusOK, code)
	assert.NotNil(t, resp.NG)
	assert.NotNil(t, resp.OK)
	assert.Empty(t, resp.NG)
	assert.Empty(t, resp.OK)
}

func TestUpdateVerdict(t *testing.T) {
	store := newMemoryResultStore(record(7, entity.VerdictNG))
	ts := newTestServer(store)
	defer ts.Close()

	code := postVerdict(t, ts.URL, "7", "OK")
	assert.Equal(t, http.StatusNoContent, code)
	assert.Equal(t, entity.VerdictOK, store.records[7].FinalResult)

	// Repeating the same correction is a no-op success.
	code = postVerdict(t, ts.URL, "7", "OK")
	assert.Equal(t, http.StatusNoContent, code)
	assert.Equal(t, entity.VerdictOK, store.records[7].FinalResult)
}

func TestUpdateVerdictRejectsUnknownLabel(t *testing.T) {
	store := newMemoryResultStore(record(7, entity.VerdictNG))
	ts := newTestServer(store)
	defer ts.Close()

	assert.Equal(t, http.StatusBadRequest, postVerdict(t, ts.URL, "7", "MAYBE"))
	assert.Equal(t, entity.VerdictNG, store.records[7].FinalResult)
}

func TestUpdateVerdictUnknownProduct(t *testing.T) {
	ts := newTestServer(newMemoryResultStore(record(7, entity.VerdictNG)))
	defer ts.Close()

	assert.Equal(t, http.StatusNotFound, postVerdict(t, ts.URL, "99", "OK"))
}

func TestUpdateVerdictBadID(t *testing.T) {
	ts := newTestServer(newMemoryResultStore())
	defer ts.Close()

	assert.Equal(t, http.StatusBadRequest, postVerdict(t, ts.URL, "abc", "OK"))
}

func TestDashboardCounts(t *testing.T) {
	store := newMemoryResultStore(
		record(1, entity.VerdictOK),
		record(2, entity.VerdictNG),
		record(3, entity.VerdictNG),
		record(4, entity.VerdictOK),
	)
	ts := newTestServer(store)
	defer ts.Close()

	var resp dashboardResponse
	code := getJSON(t, ts.URL+"/api/dashboard", &resp)
	require.Equal(t, http.StatusOK, code)

	assert.Equal(t, 4, resp.Total)
	assert.Equal(t, 2, resp.NG)
	assert.Equal(t, 2, resp.OK)
	assert.InDelta(t, 0.5, resp.NGRatio, 1e-9)
}

func TestDashboardEmpty(t *testing.T) {
	ts := newTestServer(newMemoryResultStore())
	defer ts.Close()

	var resp dashboardResponse
	code := getJSON(t, ts.URL+"/api/dashboard", &resp)
	require.Equal(t, http.StatusOK, code)
	assert.Zero(t, resp.Total)
	assert.Zero(t, resp.NGRatio)
}

func TestScanFailureIsServerError(t *testing.T) {
	store := newMemoryResultStore()
	store.scanErr = fmt.Errorf("%w: connection reset", entity.ErrPersistence)
	ts := newTestServer(store)
	defer ts.Close()

	assert.Equal(t, http.StatusInternalServerError, getJSON(t, ts.URL+"/api/products", nil))
	assert.Equal(t, http.StatusInternalServerError, getJSON(t, ts.URL+"/api/dashboard", nil))
}
