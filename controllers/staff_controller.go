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

const staffRepairsPath = "/staff/reparaciones/"

func staffRepairPath(id uint) string {
	return fmt.Sprintf("%s%d/", staffRepairsPath, id)
}

// StaffRepairs handles GET /staff/reparaciones/ - lists repairs with the
// status, equipment type and free text filters
func StaffRepairs(c *gin.Context) {
	var form repairFilterForm
	if errs := bindForm(c, &form); errs != nil {
		form.Query = ""
	}

	filter := services.RepairFilter{
		EquipmentType: form.EquipmentType,
		Query:         form.Query,
	}
	if status, ok := models.ParseRepairStatus(form.Status); ok {
		filter.Status = status
	} else {
		form.Status = ""
	}

	repairs, err := repairService().List(c.Request.Context(), filter)
	if err != nil {
		serverError(c, "failed to list repairs", err)
		return
	}

	render(c, http.StatusOK, "staff_repairs.html", gin.H{
		"Title":          "Reparaciones",
		"Repairs":        repairs,
		"Filter":         form,
		"Statuses":       models.RepairStatuses,
		"EquipmentTypes": models.EquipmentTypes,
	})
}

// BulkRepairStatus handles POST /staff/reparaciones/acciones/ - moves every
// selected repair to one status, or none of them
func BulkRepairStatus(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var form bulkForm
	errs := bindForm(c, &form)
	status, valid := models.ParseRepairStatus(form.Status)
	if errs != nil || !valid {
		redirectWithFlash(c, middleware.FlashError, "Elegí un estado válido.", staffRepairsPath)
		return
	}

	n, err := repairService().BulkChangeStatus(c.Request.Context(), user, form.IDs, status)
	switch {
	case err == nil:
		redirectWithFlash(c, middleware.FlashSuccess, fmt.Sprintf("%d reparación(es) marcadas como %q.", n, status.Label()), staffRepairsPath)
	case errors.Is(err, services.ErrNothingSelected):
		redirectWithFlash(c, middleware.FlashWarning, "Seleccioná al menos una reparación.", staffRepairsPath)
	case errors.Is(err, services.ErrIllegalTransition):
		zap.L().Info("bulk status change rejected", zap.Error(err))
		redirectWithFlash(c, middleware.FlashError, "No se modificó ninguna reparación: "+msgInvalidStatus, staffRepairsPath)
	case errors.Is(err, services.ErrNotFound):
		redirectWithFlash(c, middleware.FlashError, "Alguna de las reparaciones seleccionadas ya no existe.", staffRepairsPath)
	default:
		serverError(c, "bulk status change failed", err)
	}
}

// StaffRepairDetail handles GET /staff/reparaciones/:id/
func StaffRepairDetail(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
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

	form := repairUpdateForm{Status: string(repair.Status)}
	if repair.EstimatedDelivery != nil {
		form.EstimatedDelivery = repair.EstimatedDelivery.Format("2006-01-02")
	}
	if repair.AdminComment != nil {
		form.AdminComment = *repair.AdminComment
	}
	renderRepairDetail(c, http.StatusOK, user, repair, form, nil)
}

// UpdateRepair handles POST /staff/reparaciones/:id/ - status, estimated
// delivery and admin comment
func UpdateRepair(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	svc := repairService()
	ctx := c.Request.Context()
	repair, err := svc.Get(ctx, id)
	if err != nil {
		if !handleServiceError(c, err) {
			serverError(c, "failed to load repair", err)
		}
		return
	}

	var form repairUpdateForm
	errs := bindForm(c, &form)
	status, valid := models.ParseRepairStatus(form.Status)
	if !valid {
		errs = mergeErrors(errs, map[string]string{"status": "Elegí un estado válido."})
	}
	delivery, validDate := parseDate(form.EstimatedDelivery)
	if !validDate {
		errs = mergeErrors(errs, map[string]string{"estimated_delivery": "Ingresá una fecha válida."})
	}
	if errs != nil {
		renderRepairDetail(c, http.StatusUnprocessableEntity, user, repair, form, errs)
		return
	}

	updated, err := svc.Update(ctx, user, id, status, delivery, form.AdminComment)
	if errors.Is(err, services.ErrIllegalTransition) {
		renderRepairDetail(c, http.StatusUnprocessableEntity, user, repair, form, map[string]string{"status": msgInvalidStatus})
		return
	}
	if err != nil {
		if !handleServiceError(c, err) {
			serverError(c, "failed to update repair", err)
		}
		return
	}

	if updated.Status == models.StatusFinalized && repair.Status != models.StatusFinalized {
		redirectWithFlash(c, middleware.FlashSuccess, "Reparación finalizada. Cargá la factura final.", invoiceFormPath(id))
		return
	}
	redirectWithFlash(c, middleware.FlashSuccess, "Reparación actualizada.", staffRepairPath(id))
}

func renderRepairDetail(c *gin.Context, status int, user models.User, repair *models.Repair, form repairUpdateForm, errs map[string]string) {
	history, err := repairService().History(c.Request.Context(), repair.ID)
	if err != nil {
		// The page is still useful without the history.
		zap.L().Warn("failed to load status history", zap.Uint("repair_id", repair.ID), zap.Error(err))
	}

	render(c, status, "staff_repair_detail.html", gin.H{
		"Title":           fmt.Sprintf("Reparación #%d", repair.ID),
		"Repair":          repair,
		"History":         history,
		"Form":            form,
		"Errors":          errs,
		"AllowedStatuses": services.AllowedStatuses(user, repair.Status),
		"CanFinalize":     repair.Status != models.StatusFinalized && services.CanTransition(repair.Status, models.StatusFinalized),
		"CanReopen":       repair.Status == models.StatusFinalized,
	})
}

// FinalizeRepair handles POST /staff/reparaciones/:id/finalizar/
func FinalizeRepair(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	_, err := repairService().Finalize(c.Request.Context(), user, id)
	switch {
	case err == nil:
		redirectWithFlash(c, middleware.FlashSuccess, "Reparación finalizada. Cargá la factura final.", invoiceFormPath(id))
	case errors.Is(err, services.ErrIllegalTransition):
		redirectWithFlash(c, middleware.FlashError, "Esta reparación todavía no se puede finalizar.", staffRepairPath(id))
	case handleServiceError(c, err):
	default:
		serverError(c, "failed to finalize repair", err)
	}
}

// ReopenRepair handles POST /staff/reparaciones/:id/reabrir/ (superusers)
func ReopenRepair(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	_, err := repairService().Reopen(c.Request.Context(), user, id)
	switch {
	case err == nil:
		zap.L().Info("repair reopened", zap.Uint("repair_id", id), zap.Uint("user_id", user.ID))
		redirectWithFlash(c, middleware.FlashSuccess, "Reparación reabierta: volvió a \"En proceso de reparación\".", staffRepairPath(id))
	case errors.Is(err, services.ErrIllegalTransition):
		redirectWithFlash(c, middleware.FlashError, "Solo se pueden reabrir reparaciones finalizadas.", staffRepairPath(id))
	case handleServiceError(c, err):
	default:
		serverError(c, "failed to reopen repair", err)
	}
}

// StaffFinalized handles GET /staff/finalizados/
func StaffFinalized(c *gin.Context) {
	repairs, err := repairService().ListFinalized(c.Request.Context())
	if err != nil {
		serverError(c, "failed to list finalized repairs", err)
		return
	}
	render(c, http.StatusOK, "staff_finalized.html", gin.H{
		"Title":   "Finalizados",
		"Repairs": repairs,
	})
}
