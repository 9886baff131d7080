package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/complaint-service/internal/api/dto"
	"github.com/spec-kit/complaint-service/internal/service"
	apperrors "github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

// InfoRequestsHandler manages the information request workflow endpoints.
type InfoRequestsHandler struct {
	service *service.InformationRequestService
}

// NewInfoRequestsHandler constructs handler.
func NewInfoRequestsHandler(requestService *service.InformationRequestService) *InfoRequestsHandler {
	return &InfoRequestsHandler{service: requestService}
}

// Create POST /complaints/:id/info-requests.
func (h *InfoRequestsHandler) Create(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateInfoRequestRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	created, err := h.service.Request(c.UserContext(), actor, c.Params("id"), req.Message)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromInfoRequest(created)})
}

// List GET /complaints/:id/info-requests.
func (h *InfoRequestsHandler) List(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	requests, err := h.service.List(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.InfoRequestResponse, 0, len(requests))
	for i := range requests {
		items = append(items, dto.FromInfoRequest(&requests[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Respond POST /info-requests/:id/respond. Accepts JSON or multipart with a
// "message" field and any number of "files".
func (h *InfoRequestsHandler) Respond(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}

	var input service.InfoResponseInput
	if strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm) {
		form, err := c.MultipartForm()
		if err != nil {
			return apperrors.NewValidationError("invalid multipart payload", nil)
		}
		if msgs := form.Value["message"]; len(msgs) > 0 {
			input.Message = msgs[0]
		}
		for _, header := range form.File["files"] {
			upload, closeFn, err := openUpload(header)
			if err != nil {
				return err
			}
			defer closeFn()
			input.Files = append(input.Files, upload)
		}
	} else {
		var req dto.InfoRespondRequest
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
		input.Message = req.Message
	}

	answered, err := h.service.Respond(c.UserContext(), actor, c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromInfoRequest(answered)})
}

// Cancel POST /info-requests/:id/cancel.
func (h *InfoRequestsHandler) Cancel(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	cancelled, err := h.service.Cancel(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromInfoRequest(cancelled)})
}
