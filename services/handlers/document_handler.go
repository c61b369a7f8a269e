package handlers

import (
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/answerhive/answerhive_api/shared"
)

const presignedURLExpiry = 15 * time.Minute

type DocumentHandler struct {
	documentSvc DocumentServiceInterface
}

func NewDocumentHandler(documentSvc DocumentServiceInterface) *DocumentHandler {
	return &DocumentHandler{documentSvc: documentSvc}
}

// @Summary Upload a document
// @Description Upload a knowledge-base file for the account's assistant
// @Tags documents
// @Accept multipart/form-data
// @Produce json
// @Security Bearer
// @Param file formData file true "Document file"
// @Success 201 {object} shared.Response{data=dto.DocumentUploadResponse}
// @Router /api/v1/admin/documents [post]
func (h *DocumentHandler) Upload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return shared.NewBadRequestError(err, "No file provided")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return shared.NewBadRequestError(err, "Unable to read uploaded file")
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	resp, err := h.documentSvc.Upload(c.Context(), userIDFromLocals(c), fileHeader.Filename, file, fileHeader.Size, contentType)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusCreated, "Document uploaded successfully", resp)
}

// @Summary List documents
// @Description List the account's uploaded documents
// @Tags documents
// @Produce json
// @Security Bearer
// @Success 200 {object} shared.Response{data=dto.DocumentListResponse}
// @Router /api/v1/admin/documents [get]
func (h *DocumentHandler) List(c *fiber.Ctx) error {
	resp, err := h.documentSvc.List(c.Context(), userIDFromLocals(c))
	if err != nil {
		return err
	}
	return shared.ResponseOK(c, resp)
}

// @Summary Delete a document
// @Tags documents
// @Produce json
// @Security Bearer
// @Param name path string true "File name"
// @Success 200 {object} shared.Response
// @Router /api/v1/admin/documents/{name} [delete]
func (h *DocumentHandler) Delete(c *fiber.Ctx) error {
	fileName, err := decodeParam(c, "name")
	if err != nil {
		return err
	}
	if err := h.documentSvc.Delete(c.Context(), userIDFromLocals(c), fileName); err != nil {
		return err
	}
	return shared.ResponseOK(c, nil)
}

// @Summary Download link
// @Description Generate a short-lived presigned URL for a document
// @Tags documents
// @Produce json
// @Security Bearer
// @Param name path string true "File name"
// @Success 200 {object} shared.Response
// @Router /api/v1/admin/documents/{name}/url [get]
func (h *DocumentHandler) DownloadURL(c *fiber.Ctx) error {
	fileName, err := decodeParam(c, "name")
	if err != nil {
		return err
	}
	url, err := h.documentSvc.PresignedURL(c.Context(), userIDFromLocals(c), fileName, presignedURLExpiry)
	if err != nil {
		return err
	}
	return shared.ResponseOK(c, fiber.Map{"url": url})
}

func decodeParam(c *fiber.Ctx, name string) (string, error) {
	value, err := url.PathUnescape(c.Params(name))
	if err != nil {
		return "", shared.NewBadRequestError(err, "Invalid path parameter")
	}
	return value, nil
}
