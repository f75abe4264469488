package controllers

import (
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/EZPoster/internal/pkg/imagestore"
	"github.com/ManuelReschke/EZPoster/internal/pkg/usercontext"
)

const maxImageUploadBytes = 8 << 20

// HandleUploadImage stores one listing image and returns its URL.
// Request: multipart form with field "image".
func (lc *ListingController) HandleUploadImage(c *fiber.Ctx) error {
	u := usercontext.GetUser(c)
	if lc.deps.Images == nil {
		return jsonError(c, fiber.StatusServiceUnavailable, "storage_unavailable", "Image storage is not configured")
	}

	file, err := c.FormFile("image")
	if err != nil {
		return badRequest(c, "Missing image file")
	}
	if file.Size > maxImageUploadBytes {
		return jsonError(c, fiber.StatusRequestEntityTooLarge, "file_too_large", "Image exceeds the upload size limit")
	}

	src, err := file.Open()
	if err != nil {
		return internalError(c, "Failed to read upload")
	}
	defer src.Close()
	data, err := io.ReadAll(io.LimitReader(src, maxImageUploadBytes+1))
	if err != nil {
		return internalError(c, "Failed to read upload")
	}

	url, err := lc.deps.Images.Upload(c.Context(), u.ID, data)
	if err != nil {
		if errors.Is(err, imagestore.ErrTooLarge) {
			return jsonError(c, fiber.StatusRequestEntityTooLarge, "file_too_large", "Image exceeds the upload size limit")
		}
		if errors.Is(err, imagestore.ErrInvalidImage) {
			return badRequest(c, "Unsupported or corrupt image")
		}
		log.Errorf("[ImageStore] Upload for user %d failed: %v", u.ID, err)
		return internalError(c, "Failed to store image")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"url": url})
}
