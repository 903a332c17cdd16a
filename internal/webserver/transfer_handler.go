package webserver

import (
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/logger"
	"github.com/pkg/errors"
	"github.com/usman-khan12/one-shot/internal/transfer"
	"github.com/usman-khan12/one-shot/internal/webserver/serializer"
	"github.com/usman-khan12/one-shot/internal/webserver/weberror"
)

const fallbackContentType = "application/octet-stream"

type transfers struct {
	logger  logger.Logger
	service *transfer.Service
}

func (h *transfers) Upload(c echo.Context) error {
	c.Set("handler_method", "transfers.Upload")

	// Admission is decided before the body is parsed.
	if err := h.service.Admit(c.Request().Context(), c.RealIP()); err != nil {
		return err
	}

	req := transfer.IngestRequest{
		ClientKey: c.RealIP(),
	}

	fh, err := c.FormFile("file")
	switch {
	case err == nil:
		f, err := fh.Open()
		if err != nil {
			return errors.Wrap(err, "could not open uploaded file")
		}
		defer f.Close()

		req.Body = f
		req.OriginalName = filepath.Base(fh.Filename)
		req.ContentType = contentType(fh)
		req.Size = fh.Size
	case errors.Is(err, http.ErrMissingFile):
		// Reported as invalid by the service.
	default:
		var herr *echo.HTTPError
		if errors.As(err, &herr) {
			return herr
		}
		return weberror.New(http.StatusBadRequest, string(transfer.KindInvalidRequest), "Malformed multipart form")
	}

	receipt, err := h.service.Store(c.Request().Context(), req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, serializer.Receipt(receipt))
}

func (h *transfers) Download(c echo.Context) error {
	c.Set("handler_method", "transfers.Download")

	download, err := h.service.Fetch(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": download.OriginalName})
	if disposition == "" {
		disposition = "attachment"
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, disposition)
	c.Response().Header().Set(echo.HeaderContentLength, strconv.Itoa(len(download.Payload)))
	c.Response().Header().Set("Etag", download.Checksum)
	return c.Blob(http.StatusOK, download.ContentType, download.Payload)
}

func (h *transfers) Info(c echo.Context) error {
	c.Set("handler_method", "transfers.Info")

	info, err := h.service.Info(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, serializer.Info(info))
}

// contentType returns the declared type of the part, guessed from its extension when absent.
func contentType(fh *multipart.FileHeader) string {
	if ct := fh.Header.Get(echo.HeaderContentType); ct != "" {
		return ct
	}
	if ct := mime.TypeByExtension(filepath.Ext(fh.Filename)); ct != "" {
		return ct
	}
	return fallbackContentType
}
