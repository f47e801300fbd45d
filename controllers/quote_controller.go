package controllers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/taller-reparaciones/middleware"
	"github.com/kendall-kelly/taller-reparaciones/models"
	"github.com/kendall-kelly/taller-reparaciones/services"
	"go.uber.org/zap"
)

func staffQuotesPath(repairID uint) string {
	return staffRepairPath(repairID) + "presupuestos/"
}

// StaffQuotes handles GET /staff/reparaciones/:id/presupuestos/
func StaffQuotes(c *gin.Context) {
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
	quotes, err := quoteService().ListForRepair(ctx, id)
	if err != nil {
		serverError(c, "failed to list quotes", err)
		return
	}

	render(c, http.StatusOK, "staff_quotes.html", gin.H{
		"Title":         fmt.Sprintf("Presupuestos #%d", id),
		"Repair":        repair,
		"Quotes":        quotes,
		"QuoteStatuses": models.QuoteStatuses,
	})
}

// ShowQuoteForm handles GET /staff/reparaciones/:id/presupuestos/cargar/
func ShowQuoteForm(c *gin.Context) {
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
	renderQuoteForm(c, http.StatusOK, repair, quoteForm{Currency: string(models.CurrencyARS)}, nil)
}

// UploadQuote handles POST /staff/reparaciones/:id/presupuestos/cargar/ -
// attaches a pending quote to the repair
func UploadQuote(c *gin.Context) {
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

	var form quoteForm
	errs := bindForm(c, &form)
	amount, validAmount := parseAmount(form.Amount)
	if !validAmount {
		errs = mergeErrors(errs, map[string]string{"amount": "Ingresá un monto válido."})
	}
	file, err := optionalFile(c, "file")
	if err != nil {
		errs = mergeErrors(errs, map[string]string{"file": "No pudimos leer el archivo."})
	}
	if errs != nil {
		renderQuoteForm(c, http.StatusUnprocessableEntity, repair, form, errs)
		return
	}

	quote, err := quoteService().Create(ctx, user, id, services.CreateQuoteInput{
		File:          file,
		Amount:        amount,
		Currency:      models.Currency(form.Currency),
		InternalNotes: form.InternalNotes,
	})
	if fields, ok := validationFields(err); ok {
		renderQuoteForm(c, http.StatusUnprocessableEntity, repair, form, fields)
		return
	}
	if err != nil {
		if handleServiceError(c, err) {
			return
		}
		c.Error(err)
		zap.L().Error("failed to create quote", zap.Uint("repair_id", id), zap.Error(err))
		renderQuoteForm(c, http.StatusInternalServerError, repair, form, map[string]string{"form": msgSaveFailed})
		return
	}

	zap.L().Info("quote uploaded", zap.Uint("quote_id", quote.ID), zap.Uint("repair_id", id))
	redirectWithFlash(c, middleware.FlashSuccess, "Presupuesto cargado. Marcalo como enviado para que el cliente lo vea.", staffQuotesPath(id))
}

func renderQuoteForm(c *gin.Context, status int, repair *models.Repair, form quoteForm, errs map[string]string) {
	render(c, status, "quote_form.html", gin.H{
		"Title":         "Cargar presupuesto",
		"Repair":        repair,
		"Form":          form,
		"Errors":        errs,
		"Currencies":    models.Currencies,
		"MaxDocumentMB": uploadLimits().DocumentMB,
	})
}

// BulkQuoteStatus handles POST /staff/presupuestos/acciones/ - sets the
// status of the selected quotes and moves their repairs accordingly
func BulkQuoteStatus(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var form quoteBulkForm
	errs := bindForm(c, &form)
	back := staffRepairsPath
	if form.RepairID != 0 {
		back = staffQuotesPath(form.RepairID)
	}
	status, valid := models.ParseQuoteStatus(form.Status)
	if errs != nil || !valid {
		redirectWithFlash(c, middleware.FlashError, "Elegí un estado válido.", back)
		return
	}

	n, err := quoteService().SetStatus(c.Request.Context(), user, form.IDs, status)
	switch {
	case err == nil:
		msg := fmt.Sprintf("%d presupuesto(s) marcados como %q.", n, status.Label())
		if status == models.QuoteSent {
			msg += " El cliente ya puede verlos."
		}
		redirectWithFlash(c, middleware.FlashSuccess, msg, back)
	case errors.Is(err, services.ErrNothingSelected):
		redirectWithFlash(c, middleware.FlashWarning, "Seleccioná al menos un presupuesto.", back)
	case errors.Is(err, services.ErrIllegalTransition):
		zap.L().Info("quote status change rejected", zap.Error(err))
		redirectWithFlash(c, middleware.FlashError, "No se modificó ningún presupuesto: "+msgInvalidStatus, back)
	case errors.Is(err, services.ErrNotFound):
		redirectWithFlash(c, middleware.FlashError, "Alguno de los presupuestos seleccionados ya no existe.", back)
	default:
		if _, isValidation := validationFields(err); isValidation {
			redirectWithFlash(c, middleware.FlashError, "Elegí un estado válido.", back)
			return
		}
		serverError(c, "quote status change failed", err)
	}
}
