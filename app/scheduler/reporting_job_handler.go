// Package scheduler delivers stored measurement reports and runs the delivery loops
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/amirphl/measurement-reporting/app/services"
	"github.com/amirphl/measurement-reporting/models"
	"github.com/amirphl/measurement-reporting/repository"
)

// ReportingStatusCode is the outcome of one report delivery
type ReportingStatusCode int

const (
	ReportingStatusSuccess ReportingStatusCode = iota
	ReportingStatusIOError
	ReportingStatusInvalidArgument
	ReportingStatusStoreError
	ReportingStatusUnknownError
)

func (c ReportingStatusCode) String() string {
	switch c {
	case ReportingStatusSuccess:
		return "SUCCESS"
	case ReportingStatusIOError:
		return "IO_ERROR"
	case ReportingStatusInvalidArgument:
		return "INVALID_ARGUMENT"
	case ReportingStatusStoreError:
		return "STORE_ERROR"
	default:
		return "UNKNOWN_ERROR"
	}
}

// RunSummary counts the outcomes of one lane run
type RunSummary struct {
	Lane       string `json:"lane"`
	Candidates int    `json:"candidates"`
	Succeeded  int    `json:"succeeded"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
	NoKeys     bool   `json:"no_keys"`
	Error      string `json:"error,omitempty"`
}

// ReportingJob is one lane run resolvable from the scheduler registry
type ReportingJob interface {
	Lane() string
	Run(ctx context.Context, start, end time.Time) RunSummary
	DeliverReport(ctx context.Context, id string) ReportingStatusCode
}

// ReportingJobHandler delivers the reports of one lane
type ReportingJobHandler struct {
	lane   ReportLane
	tx     repository.TransactionRunner
	sender services.ReportSender
	keys   services.AggregateEncryptionKeyManager
	logger *log.Logger
}

func newReportingJobHandler(lane ReportLane, tx repository.TransactionRunner, sender services.ReportSender, keys services.AggregateEncryptionKeyManager, logger *log.Logger) *ReportingJobHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &ReportingJobHandler{
		lane:   lane,
		tx:     tx,
		sender: sender,
		keys:   keys,
		logger: logger,
	}
}

// NewEventReportingJobHandler delivers pending event reports
func NewEventReportingJobHandler(reports EventReportStore, tx repository.TransactionRunner, sender services.ReportSender, logger *log.Logger) *ReportingJobHandler {
	return newReportingJobHandler(&eventLane{reports: reports}, tx, sender, nil, logger)
}

// NewDebugEventReportingJobHandler delivers the debug copies of event reports
func NewDebugEventReportingJobHandler(reports EventReportStore, tx repository.TransactionRunner, sender services.ReportSender, logger *log.Logger) *ReportingJobHandler {
	return newReportingJobHandler(&eventLane{reports: reports, debug: true}, tx, sender, nil, logger)
}

// NewAggregateReportingJobHandler delivers pending aggregate reports
func NewAggregateReportingJobHandler(reports AggregateReportStore, tx repository.TransactionRunner, sender services.ReportSender, keys services.AggregateEncryptionKeyManager, encrypter services.AggregateEncrypter, logger *log.Logger) *ReportingJobHandler {
	return newReportingJobHandler(&aggregateLane{reports: reports, encrypter: encrypter}, tx, sender, keys, logger)
}

// NewDebugAggregateReportingJobHandler delivers the debug copies of aggregate reports
func NewDebugAggregateReportingJobHandler(reports AggregateReportStore, tx repository.TransactionRunner, sender services.ReportSender, keys services.AggregateEncryptionKeyManager, encrypter services.AggregateEncrypter, logger *log.Logger) *ReportingJobHandler {
	return newReportingJobHandler(&aggregateLane{reports: reports, encrypter: encrypter, debug: true}, tx, sender, keys, logger)
}

// NewDebugReportingJobHandler delivers verbose debug reports
func NewDebugReportingJobHandler(reports DebugReportStore, tx repository.TransactionRunner, sender services.ReportSender, logger *log.Logger) *ReportingJobHandler {
	return newReportingJobHandler(&verboseDebugLane{reports: reports}, tx, sender, nil, logger)
}

// Lane returns the lane name of the handler
func (h *ReportingJobHandler) Lane() string { return h.lane.Name() }

// PerformReport delivers one report. The report is read in one transaction, posted outside
// any transaction and marked delivered in a second transaction only after a 2xx response.
func (h *ReportingJobHandler) PerformReport(ctx context.Context, id string, key *models.AggregateEncryptionKey) ReportingStatusCode {
	start := time.Now()
	code := h.performReport(ctx, id, key)
	reportDeliveriesTotal.WithLabelValues(h.lane.Name(), code.String()).Inc()
	reportDeliveryDuration.WithLabelValues(h.lane.Name()).Observe(time.Since(start).Seconds())
	return code
}

func (h *ReportingJobHandler) performReport(ctx context.Context, id string, key *models.AggregateEncryptionKey) ReportingStatusCode {
	var report *deliverableReport
	if err := h.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		report, err = h.lane.Load(txCtx, id)
		return err
	}); err != nil {
		h.logger.Printf("reporting: load %s report id=%s failed: %v", h.lane.Name(), id, err)
		return ReportingStatusStoreError
	}
	if report == nil {
		return ReportingStatusInvalidArgument
	}
	if h.lane.NeedsEncryptionKey() && key == nil {
		h.logger.Printf("reporting: %s report id=%s has no encryption key", h.lane.Name(), id)
		return ReportingStatusInvalidArgument
	}

	payload, err := report.build(key)
	if err != nil {
		h.logger.Printf("reporting: build %s report id=%s failed: %v", h.lane.Name(), id, err)
		return ReportingStatusUnknownError
	}

	status, err := h.sender.SendReport(ctx, report.reportingOrigin, h.lane.Path(), payload)
	if err != nil {
		h.logger.Printf("reporting: send %s report id=%s failed: %v", h.lane.Name(), id, err)
		return ReportingStatusIOError
	}
	if !services.IsSuccessStatus(status) {
		h.logger.Printf("reporting: send %s report id=%s rejected with status %d", h.lane.Name(), id, status)
		return ReportingStatusIOError
	}

	var marked bool
	if err := h.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		marked, err = h.lane.MarkDelivered(txCtx, id)
		return err
	}); err != nil {
		h.logger.Printf("reporting: mark %s report id=%s delivered failed: %v", h.lane.Name(), id, err)
		return ReportingStatusStoreError
	}
	if !marked {
		h.logger.Printf("reporting: %s report id=%s was already moved by another worker", h.lane.Name(), id)
	}
	return ReportingStatusSuccess
}

// PerformScheduledPendingReportsInWindow delivers every pending report scheduled in
// [start, end]. It always returns true; per report outcomes go to logs and metrics.
func (h *ReportingJobHandler) PerformScheduledPendingReportsInWindow(ctx context.Context, start, end time.Time) bool {
	h.Run(ctx, start, end)
	return true
}

// PerformScheduledPendingReports delivers every pending report of an unwindowed lane
func (h *ReportingJobHandler) PerformScheduledPendingReports(ctx context.Context) bool {
	h.Run(ctx, time.Time{}, time.Time{})
	return true
}

// Run delivers the lane's pending reports one by one and summarizes the outcomes
func (h *ReportingJobHandler) Run(ctx context.Context, start, end time.Time) RunSummary {
	summary := RunSummary{Lane: h.lane.Name()}

	var ids []string
	if err := h.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		ids, err = h.lane.PendingIDs(txCtx, start, end)
		return err
	}); err != nil {
		h.logger.Printf("reporting: list pending %s reports failed: %v", h.lane.Name(), err)
		summary.Error = err.Error()
		return summary
	}
	summary.Candidates = len(ids)
	reportBatchCandidates.WithLabelValues(h.lane.Name()).Observe(float64(len(ids)))
	if len(ids) == 0 {
		return summary
	}

	var keys []*models.AggregateEncryptionKey
	if h.lane.NeedsEncryptionKey() {
		if h.keys != nil {
			keys = h.keys.GetEncryptionKeys(ctx, len(ids))
		}
		if len(keys) == 0 {
			h.logger.Printf("reporting: no encryption keys for %d %s reports, skipping run", len(ids), h.lane.Name())
			reportBatchesWithoutKeys.WithLabelValues(h.lane.Name()).Inc()
			summary.NoKeys = true
			return summary
		}
	}

	for i, id := range ids {
		if ctx.Err() != nil {
			h.logger.Printf("reporting: %s run abandoned after %d of %d reports: %v", h.lane.Name(), i, len(ids), ctx.Err())
			summary.Error = ctx.Err().Error()
			break
		}
		var key *models.AggregateEncryptionKey
		if len(keys) > 0 {
			key = keys[i%len(keys)]
		}
		switch h.PerformReport(ctx, id, key) {
		case ReportingStatusSuccess:
			summary.Succeeded++
		case ReportingStatusInvalidArgument:
			summary.Skipped++
		default:
			summary.Failed++
		}
	}

	h.logger.Printf("reporting: %s run done candidates=%d succeeded=%d failed=%d skipped=%d",
		h.lane.Name(), summary.Candidates, summary.Succeeded, summary.Failed, summary.Skipped)
	return summary
}

// DeliverReport delivers a single report, drawing one encryption key when the lane needs it
func (h *ReportingJobHandler) DeliverReport(ctx context.Context, id string) ReportingStatusCode {
	var key *models.AggregateEncryptionKey
	if h.lane.NeedsEncryptionKey() && h.keys != nil {
		if keys := h.keys.GetEncryptionKeys(ctx, 1); len(keys) > 0 {
			key = keys[0]
		}
	}
	return h.PerformReport(ctx, id, key)
}
