package handlers

import (
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/complaint-service/internal/api/dto"
	"github.com/spec-kit/complaint-service/internal/auth"
	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/service"
	apperrors "github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

// ComplaintsHandler manages complaint endpoints.
type ComplaintsHandler struct {
	service *service.ComplaintService
}

// NewComplaintsHandler constructs handler.
func NewComplaintsHandler(complaintService *service.ComplaintService) *ComplaintsHandler {
	return &ComplaintsHandler{service: complaintService}
}

// Create POST /complaints.
func (h *ComplaintsHandler) Create(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateComplaintRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	complaint, err := h.service.Create(c.UserContext(), actor, service.CreateComplaintInput{
		ComplaintType:      req.ComplaintType,
		Governorate:        req.Governorate,
		GovernmentAgency:   req.GovernmentAgency,
		Location:           req.Location,
		Description:        req.Description,
		SolutionSuggestion: req.SolutionSuggestion,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromComplaint(complaint)})
}

// Get GET /complaints/:id.
func (h *ComplaintsHandler) Get(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	complaint, err := h.service.Get(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromComplaint(complaint)})
}

// GetByTrackingNumber GET /complaints/tracking/:code.
func (h *ComplaintsHandler) GetByTrackingNumber(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	complaint, err := h.service.GetByTrackingNumber(c.UserContext(), actor, c.Params("code"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromComplaint(complaint)})
}

// Update PATCH /complaints/:id.
func (h *ComplaintsHandler) Update(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.UpdateComplaintRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	complaint, err := h.service.UpdateFields(c.UserContext(), actor, c.Params("id"), service.UpdateComplaintInput{
		Location:           req.Location,
		Description:        req.Description,
		SolutionSuggestion: req.SolutionSuggestion,
		Status:             req.Status,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromComplaint(complaint)})
}

// Respond POST /complaints/:id/respond.
func (h *ComplaintsHandler) Respond(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.RespondRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	complaint, err := h.service.Respond(c.UserContext(), actor, c.Params("id"), req.Response, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromComplaint(complaint)})
}

// Delete DELETE /complaints/:id.
func (h *ComplaintsHandler) Delete(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// History GET /complaints/:id/history?page=0&size=20.
func (h *ComplaintsHandler) History(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	page, err := h.service.History(c.UserContext(), actor, c.Params("id"),
		parseNonNegative(c.Query("page"), 0), parseInt(c.Query("size"), 0))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.HistoryPageResponse{
		Items: dto.FromHistory(page.Entries),
		Total: page.Total,
		Page:  page.Page,
		Size:  page.Size,
	}})
}

// AddAttachment POST /complaints/:id/attachments (multipart field "file").
func (h *ComplaintsHandler) AddAttachment(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	header, err := c.FormFile("file")
	if err != nil {
		return apperrors.NewValidationError("file is required", map[string]any{"field": "file"})
	}
	upload, closeFn, err := openUpload(header)
	if err != nil {
		return err
	}
	defer closeFn()

	attachment, err := h.service.AddAttachment(c.UserContext(), actor, c.Params("id"), upload)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromAttachment(attachment)})
}

// RemoveAttachment DELETE /complaints/:id/attachments/:attachmentId.
func (h *ComplaintsHandler) RemoveAttachment(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	if err := h.service.RemoveAttachment(c.UserContext(), actor, c.Params("id"), c.Params("attachmentId")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func requireActor(c *fiber.Ctx) (domain.Actor, error) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return actor, nil
}

func openUpload(header *multipart.FileHeader) (service.FileUpload, func(), error) {
	file, err := header.Open()
	if err != nil {
		return service.FileUpload{}, func() {}, apperrors.NewValidationError("unreadable file", map[string]any{"file": header.Filename})
	}
	return service.FileUpload{
		FileName: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Body:     file,
	}, func() { _ = file.Close() }, nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func parseNonNegative(val string, def int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}
