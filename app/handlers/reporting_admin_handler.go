package handlers

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/amirphl/measurement-reporting/app/dto"
	"github.com/amirphl/measurement-reporting/app/middleware"
	businessflow "github.com/amirphl/measurement-reporting/business_flow"
	"github.com/amirphl/measurement-reporting/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// ReportingAdminHandlerInterface defines operator endpoints for report delivery
type ReportingAdminHandlerInterface interface {
	RunJob(c fiber.Ctx) error
	RequestRun(c fiber.Ctx) error
	DeliverReport(c fiber.Ctx) error
	ListPendingReports(c fiber.Ctx) error
	ExportDeliveryState(c fiber.Ctx) error
}

// ReportingAdminHandler implements the operator reporting endpoints
type ReportingAdminHandler struct {
	flow      businessflow.ReportingAdminFlow
	validator *validator.Validate
}

func NewReportingAdminHandler(flow businessflow.ReportingAdminFlow) ReportingAdminHandlerInterface {
	return &ReportingAdminHandler{
		flow:      flow,
		validator: validator.New(),
	}
}

func (h *ReportingAdminHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, code string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{Success: false, Message: message, Error: dto.ErrorDetail{Code: code, Details: details}})
}

func (h *ReportingAdminHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{Success: true, Message: message, Data: data})
}

// RunJob runs every lane of a job kind synchronously and returns the lane summaries
// @Summary Admin Run Reporting Job
// @Tags Admin Reporting
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.RunReportingJobRequest true "Job kind and optional window"
// @Success 200 {object} dto.APIResponse{data=dto.RunReportingJobResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 401 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/admin/reporting/run [post]
func (h *ReportingAdminHandler) RunJob(c fiber.Ctx) error {
	var req dto.RunReportingJobRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validate(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", err)
	}

	ctx := h.createRequestContextWithTimeout(c, "/api/v1/admin/reporting/run", 10*time.Minute)
	defer cancelRequestContext(ctx)

	res, err := h.flow.RunJob(ctx, &req, h.metadata(c))
	if err != nil {
		return h.flowError(c, err, "Admin run reporting job failed:", "Failed to run reporting job", "RUN_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Reporting job finished", res)
}

// RequestRun asks the scheduler to run a job kind soon; forced requests wake the loop immediately
// @Summary Admin Request Reporting Run
// @Tags Admin Reporting
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.RequestReportingRunRequest true "Job kind and force flag"
// @Success 202 {object} dto.APIResponse
// @Failure 400 {object} dto.APIResponse
// @Failure 401 {object} dto.APIResponse
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/admin/reporting/request-run [post]
func (h *ReportingAdminHandler) RequestRun(c fiber.Ctx) error {
	var req dto.RequestReportingRunRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validate(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", err)
	}

	ctx := h.createRequestContext(c, "/api/v1/admin/reporting/request-run")
	defer cancelRequestContext(ctx)

	if err := h.flow.RequestRun(ctx, &req, h.metadata(c)); err != nil {
		return h.flowError(c, err, "Admin request reporting run failed:", "Failed to request run", "REQUEST_RUN_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusAccepted, "Run requested", fiber.Map{"kind": req.Kind, "force": req.Force})
}

// DeliverReport delivers a single pending report on a lane
// @Summary Admin Deliver Report
// @Tags Admin Reporting
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.DeliverReportRequest true "Lane and report id"
// @Success 200 {object} dto.APIResponse{data=dto.DeliverReportResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 401 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/admin/reporting/deliver [post]
func (h *ReportingAdminHandler) DeliverReport(c fiber.Ctx) error {
	var req dto.DeliverReportRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validate(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", err)
	}

	ctx := h.createRequestContext(c, "/api/v1/admin/reporting/deliver")
	defer cancelRequestContext(ctx)

	res, err := h.flow.DeliverReport(ctx, &req, h.metadata(c))
	if err != nil {
		return h.flowError(c, err, "Admin deliver report failed:", "Failed to deliver report", "DELIVER_FAILED")
	}
	message := "Report delivered"
	if !res.Delivered {
		message = "Report delivery failed"
	}
	return h.SuccessResponse(c, fiber.StatusOK, message, res)
}

// ListPendingReports lists reports still pending on a lane
// @Summary Admin List Pending Reports
// @Tags Admin Reporting
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.ListPendingReportsRequest true "Lane, optional window and limit"
// @Success 200 {object} dto.APIResponse{data=dto.ListPendingReportsResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 401 {object} dto.APIResponse
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/admin/reporting/pending [post]
func (h *ReportingAdminHandler) ListPendingReports(c fiber.Ctx) error {
	var req dto.ListPendingReportsRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validate(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", err)
	}

	ctx := h.createRequestContext(c, "/api/v1/admin/reporting/pending")
	defer cancelRequestContext(ctx)

	res, err := h.flow.ListPendingReports(ctx, &req)
	if err != nil {
		return h.flowError(c, err, "Admin list pending reports failed:", "Failed to list pending reports", "LIST_PENDING_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Pending reports retrieved", res)
}

// ExportDeliveryState returns an Excel workbook with one sheet per report family
// @Summary Admin Export Delivery State
// @Tags Admin Reporting
// @Accept json
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param request body dto.ExportDeliveryStateRequest true "Optional window"
// @Success 200 {string} string "Excel file"
// @Failure 400 {object} dto.APIResponse
// @Failure 401 {object} dto.APIResponse
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/admin/reporting/export [post]
func (h *ReportingAdminHandler) ExportDeliveryState(c fiber.Ctx) error {
	var req dto.ExportDeliveryStateRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
	}

	ctx := h.createRequestContextWithTimeout(c, "/api/v1/admin/reporting/export", 2*time.Minute)
	defer cancelRequestContext(ctx)

	filename, data, err := h.flow.ExportDeliveryState(ctx, &req)
	if err != nil {
		return h.flowError(c, err, "Admin export delivery state failed:", "Failed to generate Excel", "EXPORT_FAILED")
	}
	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", "attachment; filename="+filename)
	return c.Send(data)
}

func (h *ReportingAdminHandler) validate(req any) []string {
	if err := h.validator.Struct(req); err != nil {
		var validationErrors []string
		var fieldErrors validator.ValidationErrors
		if !errors.As(err, &fieldErrors) {
			return []string{err.Error()}
		}
		for _, fe := range fieldErrors {
			validationErrors = append(validationErrors, getValidationErrorMessage(fe))
		}
		return validationErrors
	}
	return nil
}

func (h *ReportingAdminHandler) flowError(c fiber.Ctx, err error, logPrefix, message, code string) error {
	switch {
	case errors.Is(err, businessflow.ErrUnknownJobKind):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Unknown reporting job kind", "UNKNOWN_JOB_KIND", nil)
	case errors.Is(err, businessflow.ErrUnknownReportLane):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Unknown report lane", "UNKNOWN_REPORT_LANE", nil)
	case errors.Is(err, businessflow.ErrInvalidWindow):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Start cannot be after end", "INVALID_WINDOW", nil)
	case businessflow.IsReportNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Report not found", "REPORT_NOT_FOUND", nil)
	case errors.Is(err, businessflow.ErrReportNotPending):
		return h.ErrorResponse(c, fiber.StatusConflict, "Report is not pending on this lane", "REPORT_NOT_PENDING", nil)
	case businessflow.IsRunInProgress(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "A run of this kind is already in progress", "RUN_IN_PROGRESS", nil)
	}
	log.Println(logPrefix, err)
	return h.ErrorResponse(c, fiber.StatusInternalServerError, message, code, nil)
}

func (h *ReportingAdminHandler) metadata(c fiber.Ctx) *businessflow.ClientMetadata {
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	metadata.SetRequestID(c.Get("X-Request-ID"))
	if adminID, ok := middleware.GetAdminIDFromContext(c); ok {
		metadata.AdminID = adminID
	}
	return metadata
}

func (h *ReportingAdminHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 60*time.Second)
}

func (h *ReportingAdminHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	if adminID, ok := middleware.GetAdminIDFromContext(c); ok {
		ctx = context.WithValue(ctx, utils.AdminIDKey, adminID)
	}
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)
	return ctx
}
