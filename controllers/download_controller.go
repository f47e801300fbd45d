package controllers

import (
	"errors"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/taller-reparaciones/models"
	"github.com/kendall-kelly/taller-reparaciones/services"
	"github.com/kendall-kelly/taller-reparaciones/utils"
)

const msgFileMissing = "El archivo ya no está disponible."

// GetRepairMedia handles GET /reparaciones/:id/media/:kind - serves the
// image, second image or video of a repair
func GetRepairMedia(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	kind, valid := models.ParseMediaKind(c.Param("kind"))
	if !valid {
		renderError(c, http.StatusNotFound, msgNotFound)
		return
	}

	repair, err := repairService().GetForUser(c.Request.Context(), user, id)
	if err != nil {
		if !handleServiceError(c, err) {
			serverError(c, "failed to load repair", err)
		}
		return
	}

	key := repair.MediaKey(kind)
	if key == "" {
		renderError(c, http.StatusNotFound, msgFileMissing)
		return
	}
	serveStoredFile(c, key, models.FileName(key))
}

// DownloadQuote handles GET /presupuestos/:id/descargar/
func DownloadQuote(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	quote, err := quoteService().Get(c.Request.Context(), id)
	if err != nil {
		if !handleServiceError(c, err) {
			serverError(c, "failed to load quote", err)
		}
		return
	}
	if quote.Repair == nil || !services.CanAccessRepair(user, *quote.Repair) {
		handleServiceError(c, services.ErrForbidden)
		return
	}
	serveStoredFile(c, quote.FileKey, quote.FileName)
}

// DownloadInvoice handles GET /reparaciones/:id/factura-final/descargar/ -
// serves the invoice file or redirects to the external invoice link
func DownloadInvoice(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	repair, err := repairService().GetForUser(c.Request.Context(), user, id)
	if err != nil {
		if !handleServiceError(c, err) {
			serverError(c, "failed to load repair", err)
		}
		return
	}

	invoice := repair.FinalInvoice
	switch {
	case invoice == nil:
		renderError(c, http.StatusNotFound, "Esta reparación todavía no tiene factura final.")
	case invoice.HasFile():
		name := models.FileName(*invoice.FileKey)
		if invoice.FileName != nil && *invoice.FileName != "" {
			name = *invoice.FileName
		}
		serveStoredFile(c, *invoice.FileKey, name)
	case invoice.Link != nil && *invoice.Link != "":
		c.Redirect(http.StatusFound, *invoice.Link)
	default:
		renderError(c, http.StatusNotFound, msgFileMissing)
	}
}

// serveStoredFile sends a stored file, or redirects to a signed URL when the
// storage backend can issue one. ?inline=1 asks the browser to display it.
func serveStoredFile(c *gin.Context, key, name string) {
	disposition := "attachment"
	if c.Query("inline") == "1" {
		disposition = "inline"
	}
	if header := mime.FormatMediaType(disposition, map[string]string{"filename": name}); header != "" {
		disposition = header
	}

	uploads := services.GetUploadService()
	ctx := c.Request.Context()

	signedURL, supported, err := uploads.SignedURL(ctx, key, disposition)
	if supported {
		if err != nil {
			serverError(c, "failed to sign download URL", err)
			return
		}
		c.Redirect(http.StatusFound, signedURL)
		return
	}

	body, err := uploads.Open(ctx, key)
	if errors.Is(err, services.ErrFileNotFound) {
		renderError(c, http.StatusNotFound, msgFileMissing)
		return
	}
	if err != nil {
		serverError(c, "failed to open stored file", err)
		return
	}
	defer body.Close()

	c.Header("Cache-Control", "private, max-age=300")
	c.DataFromReader(http.StatusOK, -1, utils.ContentTypeFor(name), body, map[string]string{
		"Content-Disposition": disposition,
	})
}
