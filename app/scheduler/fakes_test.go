package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"time"

	"github.com/amirphl/measurement-reporting/app/services"
	"github.com/amirphl/measurement-reporting/models"
)

var errStoreUnavailable = errors.New("store unavailable")

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// countingTxRunner counts transactions and tracks whether one is open
type countingTxRunner struct {
	mu     sync.Mutex
	count  int
	active int
}

func (r *countingTxRunner) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	r.mu.Lock()
	r.count++
	r.active++
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.active--
		r.mu.Unlock()
	}()
	return fn(ctx)
}

func (r *countingTxRunner) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func (r *countingTxRunner) InTransaction() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active > 0
}

// txCheckingSender fails the delivery if it is attempted inside a transaction
type txCheckingSender struct {
	inner    services.ReportSender
	tx       *countingTxRunner
	sentInTx bool
}

func (s *txCheckingSender) SendReport(ctx context.Context, reportingOrigin, path string, payload any) (int, error) {
	if s.tx.InTransaction() {
		s.sentInTx = true
	}
	return s.inner.SendReport(ctx, reportingOrigin, path, payload)
}

type receivedReport struct {
	Path string
	Body json.RawMessage
}

// reportEndpoint is a reporting origin recording every delivery
type reportEndpoint struct {
	*httptest.Server
	mu       sync.Mutex
	status   int
	received []receivedReport
}

func newReportEndpoint(status int) *reportEndpoint {
	e := &reportEndpoint{status: status}
	e.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		e.mu.Lock()
		e.received = append(e.received, receivedReport{Path: r.URL.Path, Body: body})
		status := e.status
		e.mu.Unlock()
		w.WriteHeader(status)
	}))
	return e
}

func (e *reportEndpoint) Received() []receivedReport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]receivedReport(nil), e.received...)
}

type fakeEventReportStore struct {
	mu        sync.Mutex
	reports   map[string]*models.EventReport
	byIDErr   error
	listErr   error
	markCalls int
}

func newFakeEventReportStore(reports ...*models.EventReport) *fakeEventReportStore {
	s := &fakeEventReportStore{reports: make(map[string]*models.EventReport)}
	for _, r := range reports {
		s.reports[r.ID] = r
	}
	return s
}

func (s *fakeEventReportStore) ByID(_ context.Context, id string) (*models.EventReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byIDErr != nil {
		return nil, s.byIDErr
	}
	r, ok := s.reports[id]
	if !ok {
		return nil, nil
	}
	copied := *r
	return &copied, nil
}

func (s *fakeEventReportStore) PendingIDsInWindow(_ context.Context, start, end time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var ids []string
	for id, r := range s.reports {
		if r.Status == models.ReportStatusPending && !r.ReportTime.Before(start) && !r.ReportTime.After(end) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *fakeEventReportStore) PendingDebugIDs(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, r := range s.reports {
		if r.DebugReportStatus == models.DebugReportStatusPending {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *fakeEventReportStore) MarkStatus(_ context.Context, id string, status models.ReportStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markCalls++
	r, ok := s.reports[id]
	if !ok || r.Status != models.ReportStatusPending {
		return false, nil
	}
	r.Status = status
	return true, nil
}

func (s *fakeEventReportStore) MarkDebugReportDelivered(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markCalls++
	r, ok := s.reports[id]
	if !ok || r.DebugReportStatus != models.DebugReportStatusPending {
		return false, nil
	}
	r.DebugReportStatus = models.DebugReportStatusDelivered
	return true, nil
}

func (s *fakeEventReportStore) Report(id string) models.EventReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.reports[id]
}

type fakeAggregateReportStore struct {
	mu      sync.Mutex
	reports map[string]*models.AggregateReport
}

func newFakeAggregateReportStore(reports ...*models.AggregateReport) *fakeAggregateReportStore {
	s := &fakeAggregateReportStore{reports: make(map[string]*models.AggregateReport)}
	for _, r := range reports {
		s.reports[r.ID] = r
	}
	return s
}

func (s *fakeAggregateReportStore) ByID(_ context.Context, id string) (*models.AggregateReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, nil
	}
	copied := *r
	return &copied, nil
}

func (s *fakeAggregateReportStore) PendingIDsInWindow(_ context.Context, start, end time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, r := range s.reports {
		if r.Status == models.ReportStatusPending && !r.ScheduledReportTime.Before(start) && !r.ScheduledReportTime.After(end) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *fakeAggregateReportStore) PendingDebugIDs(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, r := range s.reports {
		if r.DebugReportStatus == models.DebugReportStatusPending {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *fakeAggregateReportStore) MarkStatus(_ context.Context, id string, status models.ReportStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok || r.Status != models.ReportStatusPending {
		return false, nil
	}
	r.Status = status
	return true, nil
}

func (s *fakeAggregateReportStore) MarkDebugReportDelivered(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok || r.DebugReportStatus != models.DebugReportStatusPending {
		return false, nil
	}
	r.DebugReportStatus = models.DebugReportStatusDelivered
	return true, nil
}

func (s *fakeAggregateReportStore) Report(id string) models.AggregateReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.reports[id]
}

type fakeDebugReportStore struct {
	mu      sync.Mutex
	reports map[string]*models.DebugReport
}

func newFakeDebugReportStore(reports ...*models.DebugReport) *fakeDebugReportStore {
	s := &fakeDebugReportStore{reports: make(map[string]*models.DebugReport)}
	for _, r := range reports {
		s.reports[r.ID] = r
	}
	return s
}

func (s *fakeDebugReportStore) ByID(_ context.Context, id string) (*models.DebugReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, nil
	}
	copied := *r
	return &copied, nil
}

func (s *fakeDebugReportStore) PendingIDs(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.reports))
	for id := range s.reports {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *fakeDebugReportStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reports[id]; !ok {
		return false, nil
	}
	delete(s.reports, id)
	return true, nil
}

func (s *fakeDebugReportStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reports)
}

// fakeKeyManager hands out a fixed pool, cycling through it
type fakeKeyManager struct {
	keys     []*models.AggregateEncryptionKey
	requests []int
}

func (m *fakeKeyManager) GetEncryptionKeys(_ context.Context, numKeys int) []*models.AggregateEncryptionKey {
	m.requests = append(m.requests, numKeys)
	if len(m.keys) == 0 {
		return nil
	}
	out := make([]*models.AggregateEncryptionKey, 0, numKeys)
	for i := 0; i < numKeys && i < len(m.keys); i++ {
		out = append(out, m.keys[i])
	}
	return out
}
