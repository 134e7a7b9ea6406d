package handlers

import (
	"io"
	"mime/multipart"
	"strings"

	"barqpix-backend/internal/services"

	"github.com/gofiber/fiber/v2"
)

// Both "photos" and the bracketed "photos[]" field conventions are accepted.
func formFiles(form *multipart.Form, key string) []*multipart.FileHeader {
	if files := form.File[key]; len(files) > 0 {
		return files
	}
	return form.File[key+"[]"]
}

func formValues(form *multipart.Form, key string) []string {
	if values := form.Value[key]; len(values) > 0 {
		return values
	}
	return form.Value[key+"[]"]
}

func parsePhotoUploads(form *multipart.Form) ([]services.PhotoUpload, error) {
	files := formFiles(form, "photos")
	captions := formValues(form, "captions")
	tags := formValues(form, "tags")

	uploads := make([]services.PhotoUpload, 0, len(files))
	for i, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, err
		}

		up := services.PhotoUpload{Filename: fh.Filename, Data: data}
		if i < len(captions) {
			up.Caption = captions[i]
		}
		if i < len(tags) && tags[i] != "" {
			for _, tag := range strings.Split(tags[i], ",") {
				if tag = strings.TrimSpace(tag); tag != "" {
					up.Tags = append(up.Tags, tag)
				}
			}
		}
		uploads = append(uploads, up)
	}
	return uploads, nil
}

// UploadQuickPhotosHandler appends photos to an Active quick-share session.
// Multipart fields: photos[], captions[], tags[] (comma-separated per file),
// optional uploaderName.
func UploadQuickPhotosHandler(photoService *services.PhotoService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		form, err := c.MultipartForm()
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "multipart form required"})
		}
		uploads, err := parsePhotoUploads(form)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unreadable photo in request"})
		}

		photos, err := photoService.AppendQuickPhotos(c.Context(), c.Params("quickId"), uploads, c.FormValue("uploaderName"), nil)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"photos": photos})
	}
}

// UploadEventPhotosHandler appends photos to an event gallery (guests upload
// via the event link, so the route is public).
func UploadEventPhotosHandler(photoService *services.PhotoService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		form, err := c.MultipartForm()
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "multipart form required"})
		}
		uploads, err := parsePhotoUploads(form)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unreadable photo in request"})
		}

		photos, err := photoService.AppendEventPhotos(c.Context(), c.Params("eventId"), uploads, c.FormValue("uploaderName"), nil)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"photos": photos})
	}
}

// ListQuickPhotosHandler pages an Active session's photos (410 once expired).
func ListQuickPhotosHandler(photoService *services.PhotoService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page, err := photoService.ListQuickPhotos(c.Context(), c.Params("quickId"), c.QueryInt("limit"), c.QueryInt("offset"))
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(page)
	}
}

// ListEventPhotosHandler pages an event gallery.
func ListEventPhotosHandler(photoService *services.PhotoService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page, err := photoService.ListEventPhotos(c.Context(), c.Params("eventId"), c.QueryInt("limit"), c.QueryInt("offset"))
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(page)
	}
}

// DeletePhotoHandler deletes a photo by id for the owning organizer
func DeletePhotoHandler(photoService *services.PhotoService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := photoService.DeletePhoto(c.Context(), c.Locals("user_id").(string), c.Params("photoId")); err != nil {
			return errorResponse(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
