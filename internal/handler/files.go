package handler

import (
	"fmt"
	"path"

	"github.com/gofiber/fiber/v2"

	"github.com/mediagrab/api/internal/client"
	"github.com/mediagrab/api/pkg/response"
)

// FilesHandler serves artifacts of the in-memory blob store through the
// URLs minted by client.MemoryStorage.
type FilesHandler struct {
	storage *client.MemoryStorage
}

func NewFilesHandler(storage *client.MemoryStorage) *FilesHandler {
	return &FilesHandler{storage: storage}
}

// Get handles GET /files/*
func (h *FilesHandler) Get(c *fiber.Ctx) error {
	key := c.Params("*")

	expires := int64(c.QueryInt("expires", 0))
	if !h.storage.Verify(key, expires, c.Query("signature")) {
		return response.Error(c, fiber.StatusForbidden, response.CodeUnauthorized, "Invalid signature")
	}
	if h.storage.Expired(expires) {
		return response.Error(c, fiber.StatusForbidden, response.CodeUnauthorized, "Signed URL expired")
	}

	obj, ok := h.storage.Object(key)
	if !ok {
		return response.NotFound(c, "File not found")
	}

	c.Set(fiber.HeaderContentType, obj.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", path.Base(key)))
	return c.Send(obj.Data)
}
