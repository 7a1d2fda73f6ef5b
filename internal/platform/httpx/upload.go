package httpx

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/saludsync/clinic/internal/platform/blobstore"
)

// Upload opens the multipart file in field.
func Upload(c echo.Context, field string) (blobstore.Object, io.ReadCloser, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return blobstore.Object{}, nil, echo.NewHTTPError(http.StatusBadRequest, "falta el archivo '"+field+"'")
	}
	f, err := fh.Open()
	if err != nil {
		return blobstore.Object{}, nil, err
	}
	obj := blobstore.Object{FileName: fh.Filename, ContentType: fh.Header.Get(echo.HeaderContentType)}
	return obj, f, nil
}

// BlobError maps blob store errors to client errors. Other errors pass through.
func BlobError(err error) error {
	switch {
	case errors.Is(err, blobstore.ErrBlobNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "archivo no encontrado")
	case errors.Is(err, blobstore.ErrFileTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "el archivo supera el tamaño permitido")
	case errors.Is(err, blobstore.ErrInvalidContentType):
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, "tipo de archivo no permitido")
	case errors.Is(err, blobstore.ErrMissingFileName):
		return echo.NewHTTPError(http.StatusBadRequest, "el archivo no tiene nombre")
	}
	return err
}

// Attachment streams rc as a download named after obj.
func Attachment(c echo.Context, rc io.ReadCloser, obj *blobstore.Object) error {
	defer rc.Close()
	c.Response().Header().Set(echo.HeaderContentDisposition, blobstore.ContentDisposition(obj))
	return c.Stream(http.StatusOK, obj.ContentType, rc)
}
