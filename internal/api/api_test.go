package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/rs/zerolog"

	"github.com/emailengineer/email-extractor/internal/storage"
)

type fakeStore struct {
	searches map[int64]*storage.Search
	nextID   int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{searches: make(map[int64]*storage.Search), nextID: 1}
}

func (f *fakeStore) CreateSearch(_ context.Context, batchName *string, domains []string) (*storage.Search, error) {
	s := &storage.Search{ID: f.nextID, BatchName: batchName, TotalDomains: len(domains), Status: storage.SearchStatusPending}
	f.searches[s.ID] = s
	f.nextID++

	return s, nil
}

func (f *fakeStore) GetSearch(_ context.Context, id int64) (*storage.Search, error) {
	s, ok := f.searches[id]
	if !ok {
		return nil, errNotFound
	}

	return s, nil
}

var errNotFound = &notFoundErr{}

type notFoundErr struct{}

func (*notFoundErr) Error() string { return "not found" }

func (f *fakeStore) ListSearches(_ context.Context, _ string, _, _ int) ([]storage.Search, error) {
	var out []storage.Search
	for _, s := range f.searches {
		out = append(out, *s)
	}

	return out, nil
}

func (f *fakeStore) SearchStats(_ context.Context, _ int64) (*storage.SearchStatistics, error) {
	return &storage.SearchStatistics{}, nil
}

func (f *fakeStore) ListDomains(_ context.Context, _ int64, _ string, _, _ int) ([]storage.Domain, error) {
	return nil, nil
}

func (f *fakeStore) EmailsForSearch(_ context.Context, _ int64, _, _ int) ([]storage.Email, error) {
	return nil, nil
}

func (f *fakeStore) EmailsForDomain(_ context.Context, _ int64, _, _ int) ([]storage.Email, error) {
	return nil, nil
}

func (f *fakeStore) PauseSearch(_ context.Context, id int64) (bool, error) {
	s, ok := f.searches[id]
	if !ok || s.Status != storage.SearchStatusInProgress {
		return false, nil
	}

	s.Status = storage.SearchStatusPaused

	return true, nil
}

func (f *fakeStore) ResumeSearch(_ context.Context, id int64) (bool, error) {
	s, ok := f.searches[id]
	if !ok || s.Status != storage.SearchStatusPaused {
		return false, nil
	}

	s.Status = storage.SearchStatusInProgress

	return true, nil
}

func (f *fakeStore) CancelSearch(_ context.Context, id int64) (bool, bool, error) {
	s, ok := f.searches[id]
	if !ok {
		return false, false, nil
	}

	if s.Status == storage.SearchStatusCompleted || s.Status == storage.SearchStatusCancelled {
		return true, true, nil
	}

	s.Status = storage.SearchStatusCancelled

	return true, false, nil
}

func testLogger() *zerolog.Logger {
	l := zerolog.New(os.Stderr)
	return &l
}

func TestCreateSearchValidatesDomainCount(t *testing.T) {
	api := New(newFakeStore(), testLogger())
	handler := api.Handler()

	body, _ := json.Marshal(createSearchRequest{Domains: nil})
	req := httptest.NewRequest("POST", "/api/searches", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != 400 {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCreateSearchSucceeds(t *testing.T) {
	api := New(newFakeStore(), testLogger())
	handler := api.Handler()

	body, _ := json.Marshal(createSearchRequest{Domains: []string{"a.com", "b.com"}})
	req := httptest.NewRequest("POST", "/api/searches", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != 201 {
		t.Fatalf("status = %d, want 201, body=%s", rec.Code, rec.Body.String())
	}
}

func TestGetSearchNotFound(t *testing.T) {
	api := New(newFakeStore(), testLogger())
	handler := api.Handler()

	req := httptest.NewRequest("GET", "/api/searches/999", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != 404 {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCancelSearchStatusMatrix(t *testing.T) {
	store := newFakeStore()
	store.searches[1] = &storage.Search{ID: 1, Status: storage.SearchStatusInProgress}
	store.searches[2] = &storage.Search{ID: 2, Status: storage.SearchStatusCompleted}

	api := New(store, testLogger())
	handler := api.Handler()

	req := httptest.NewRequest("DELETE", "/api/searches/1", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Errorf("cancel in-progress: status = %d, want 200", rec.Code)
	}

	req = httptest.NewRequest("DELETE", "/api/searches/2", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != 400 {
		t.Errorf("cancel completed: status = %d, want 400", rec.Code)
	}

	req = httptest.NewRequest("DELETE", "/api/searches/999", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != 404 {
		t.Errorf("cancel missing: status = %d, want 404", rec.Code)
	}
}

func TestPauseResumeSearch(t *testing.T) {
	store := newFakeStore()
	store.searches[1] = &storage.Search{ID: 1, Status: storage.SearchStatusInProgress}

	api := New(store, testLogger())
	handler := api.Handler()

	req := httptest.NewRequest("PATCH", "/api/searches/1/pause", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("pause: status = %d, want 200", rec.Code)
	}

	req = httptest.NewRequest("PATCH", "/api/searches/1/pause", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != 400 {
		t.Errorf("double pause: status = %d, want 400", rec.Code)
	}

	req = httptest.NewRequest("PATCH", "/api/searches/1/resume", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Errorf("resume: status = %d, want 200", rec.Code)
	}
}
