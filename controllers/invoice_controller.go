package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/taller-reparaciones/middleware"
	"github.com/kendall-kelly/taller-reparaciones/models"
	"github.com/kendall-kelly/taller-reparaciones/services"
	"go.uber.org/zap"
)

const (
	staffFinalizedPath = "/staff/finalizados/"
	msgNotFinalized    = "Finalizá la reparación antes de cargar la factura final."
)

func invoiceFormPath(repairID uint) string {
	return staffRepairPath(repairID) + "factura-final/"
}

// ShowInvoiceForm handles GET /staff/reparaciones/:id/factura-final/
func ShowInvoiceForm(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	repair, err := repairService().Get(c.Request.Context(), id)
	if err != nil {
		if !handleServiceError(c, err) {
			serverError(c, "failed to load repair", err)
		}
		return
	}
	if repair.Status != models.StatusFinalized {
		redirectWithFlash(c, middleware.FlashError, msgNotFinalized, staffRepairPath(id))
		return
	}
	renderInvoiceForm(c, http.StatusOK, repair, invoiceForm{Currency: string(models.CurrencyARS)}, nil)
}

// CreateInvoice handles POST /staff/reparaciones/:id/factura-final/ -
// attaches the final invoice as a file, a link or both
func CreateInvoice(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	repair, err := repairService().Get(ctx, id)
	if err != nil {
		if !handleServiceError(c, err) {
			serverError(c, "failed to load repair", err)
		}
		return
	}

	var form invoiceForm
	errs := bindForm(c, &form)
	var total float64
	if amount, valid := parseAmount(form.TotalAmount); !valid {
		errs = mergeErrors(errs, map[string]string{"total_amount": "Ingresá un monto válido."})
	} else if amount != nil {
		total = *amount
	}
	file, err := optionalFile(c, "file")
	if err != nil {
		errs = mergeErrors(errs, map[string]string{"file": "No pudimos leer el archivo."})
	}
	if errs != nil {
		renderInvoiceForm(c, http.StatusUnprocessableEntity, repair, form, errs)
		return
	}

	invoice, err := invoiceService().Create(ctx, user, id, services.CreateInvoiceInput{
		TotalAmount:   total,
		Currency:      models.Currency(form.Currency),
		File:          file,
		Link:          form.Link,
		InternalNotes: form.InternalNotes,
	})
	if fields, ok := validationFields(err); ok {
		renderInvoiceForm(c, http.StatusUnprocessableEntity, repair, form, fields)
		return
	}
	switch {
	case err == nil:
		zap.L().Info("final invoice created", zap.Uint("invoice_id", invoice.ID), zap.Uint("repair_id", id))
		redirectWithFlash(c, middleware.FlashSuccess, "Factura final cargada.", staffFinalizedPath)
	case errors.Is(err, services.ErrRepairNotFinalized):
		redirectWithFlash(c, middleware.FlashError, msgNotFinalized, staffRepairPath(id))
	case errors.Is(err, services.ErrInvoiceExists):
		redirectWithFlash(c, middleware.FlashWarning, "Esta reparación ya tiene factura final.", invoiceFormPath(id))
	case handleServiceError(c, err):
	default:
		c.Error(err)
		zap.L().Error("failed to create final invoice", zap.Uint("repair_id", id), zap.Error(err))
		renderInvoiceForm(c, http.StatusInternalServerError, repair, form, map[string]string{"form": msgSaveFailed})
	}
}

func renderInvoiceForm(c *gin.Context, status int, repair *models.Repair, form invoiceForm, errs map[string]string) {
	render(c, status, "invoice_form.html", gin.H{
		"Title":      "Factura final",
		"Repair":     repair,
		"Form":       form,
		"Errors":     errs,
		"Currencies": models.Currencies,
	})
}
