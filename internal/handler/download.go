package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/mediagrab/api/internal/model"
	"github.com/mediagrab/api/internal/service"
	"github.com/mediagrab/api/pkg/response"
)

type DownloadHandler struct {
	service *service.DownloadService
	log     *logrus.Logger
}

func NewDownloadHandler(svc *service.DownloadService, log *logrus.Logger) *DownloadHandler {
	return &DownloadHandler{
		service: svc,
		log:     log,
	}
}

// Submit handles POST /api/downloads
func (h *DownloadHandler) Submit(c *fiber.Ctx) error {
	var req model.SubmitDownloadRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body")
	}

	d, err := h.service.Submit(c.UserContext(), &req)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.OK(c, model.SubmitDownloadResponse{
		Message: "Download started",
		ID:      d.ID,
	})
}

// Status handles GET /api/downloads/:id
func (h *DownloadHandler) Status(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return response.ValidationError(c, "Download ID is required")
	}

	d, err := h.service.GetStatus(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.OK(c, d)
}

// DownloadURL handles POST /api/download-url. Any failure after the request
// is parsed, including a missing id, record or file, is a 500.
func (h *DownloadHandler) DownloadURL(c *fiber.Ctx) error {
	var req model.DownloadURLRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body")
	}

	signed, err := h.service.SignedURL(c.UserContext(), req.DownloadID)
	if err != nil {
		h.log.WithError(err).WithField("download_id", req.DownloadID).Warn("failed to create signed url")
		return response.Error(c, fiber.StatusInternalServerError, response.CodeFor(err), response.Message(err))
	}

	return response.OK(c, model.DownloadURLResponse{URL: signed})
}
