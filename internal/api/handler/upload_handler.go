package handler

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ree-portal/agent-onboarding/internal/api/metrics"
)

type UploadHandler struct {
	maxSize int64
}

func NewUploadHandler(maxSize int64) *UploadHandler {
	return &UploadHandler{maxSize: maxSize}
}

// UploadReceipt stores the payment receipt for the visitor's next sign-up.
//
// @Summary      Upload payment receipt
// @Tags         uploads
// @Accept       multipart/form-data
// @Produce      json
// @Param        file  formData  file  true  "PDF, PNG or JPG receipt"
// @Success      201   {object}  uploadResponse
// @Failure      400   {object}  errorResponse
// @Failure      413   {object}  errorResponse
// @Failure      415   {object}  errorResponse
// @Router       /uploads/receipt [post]
func (h *UploadHandler) UploadReceipt(c echo.Context) error {
	v, err := visitorOf(c)
	if err != nil {
		return err
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, v, "file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return badRequest(c, v, "unreadable file")
	}
	defer f.Close()

	// Read one byte past the limit so the slot can see the file is too large.
	r := io.Reader(f)
	if h.maxSize > 0 {
		r = io.LimitReader(f, h.maxSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return badRequest(c, v, "unreadable file")
	}

	url, err := v.Receipt.Upload(c.Request().Context(), fh.Filename, fh.Header.Get(echo.HeaderContentType), data)
	metrics.ReceiptUploadsTotal.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		return fail(c, v, err)
	}

	notes, _ := v.Outbox.Drain()
	return c.JSON(http.StatusCreated, uploadResponse{URL: url, Notifications: notes})
}

// RemoveReceipt forgets the uploaded receipt.
//
// @Summary      Remove payment receipt
// @Tags         uploads
// @Produce      json
// @Success      200  {object}  uploadResponse
// @Router       /uploads/receipt [delete]
func (h *UploadHandler) RemoveReceipt(c echo.Context) error {
	v, err := visitorOf(c)
	if err != nil {
		return err
	}

	v.Receipt.Remove()
	notes, _ := v.Outbox.Drain()
	return c.JSON(http.StatusOK, uploadResponse{Notifications: notes})
}
