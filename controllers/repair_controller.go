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

// repairCard is one repair on the customer dashboard.
type repairCard struct {
	models.Repair
	PriorityEditable bool
	VisibleQuotes    []models.Quote
}

// Home handles GET / - the customer's repairs by priority
func Home(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	repairs, err := repairService().ListForOwner(c.Request.Context(), user.ID)
	if err != nil {
		serverError(c, "failed to list customer repairs", err)
		return
	}

	cards := make([]repairCard, 0, len(repairs))
	for _, r := range repairs {
		cards = append(cards, repairCard{
			Repair:           r,
			PriorityEditable: services.PriorityEditable(r, int64(len(repairs))),
			VisibleQuotes:    r.CustomerQuotes(),
		})
	}

	render(c, http.StatusOK, "home.html", gin.H{
		"Title":   "Mis reparaciones",
		"Repairs": cards,
	})
}

// ShowCreateRepair handles GET /crear/
func ShowCreateRepair(c *gin.Context) {
	renderRepairForm(c, http.StatusOK, repairForm{}, nil)
}

// CreateRepair handles POST /crear/ - stores the media and creates the repair
func CreateRepair(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var form repairForm
	errs := bindForm(c, &form)

	input := services.CreateRepairInput{
		CustomerName:  form.CustomerName,
		Phone:         form.Phone,
		Location:      form.Location,
		EquipmentType: form.EquipmentType,
		Description:   form.Description,
	}
	var err error
	if input.Image, err = optionalFile(c, "image"); err != nil {
		errs = mergeErrors(errs, map[string]string{"image": "No pudimos leer el archivo."})
	}
	if input.SecondImage, err = optionalFile(c, "second_image"); err != nil {
		errs = mergeErrors(errs, map[string]string{"second_image": "No pudimos leer el archivo."})
	}
	if input.Video, err = optionalFile(c, "video"); err != nil {
		errs = mergeErrors(errs, map[string]string{"video": "No pudimos leer el archivo."})
	}
	if errs != nil {
		renderRepairForm(c, http.StatusUnprocessableEntity, form, errs)
		return
	}

	repair, err := repairService().Create(c.Request.Context(), user, input)
	if fields, ok := validationFields(err); ok {
		renderRepairForm(c, http.StatusUnprocessableEntity, form, fields)
		return
	}
	if err != nil {
		c.Error(err)
		zap.L().Error("failed to create repair", zap.Uint("user_id", user.ID), zap.Error(err))
		renderRepairForm(c, http.StatusInternalServerError, form, map[string]string{"form": msgSaveFailed})
		return
	}

	zap.L().Info("repair created", zap.Uint("repair_id", repair.ID), zap.Uint("user_id", user.ID))
	redirectWithFlash(c, middleware.FlashSuccess, "¡Recibimos tu pedido! Te vamos a avisar cuando tengamos el presupuesto.", "/")
}

func renderRepairForm(c *gin.Context, status int, form repairForm, errs map[string]string) {
	render(c, status, "repair_form.html", gin.H{
		"Title":          "Nueva reparación",
		"Form":           form,
		"Errors":         errs,
		"Locations":      models.Locations,
		"EquipmentTypes": models.EquipmentTypes,
		"MaxVideoMB":     uploadLimits().VideoMB,
	})
}

// SetPriority handles POST /reparaciones/:id/prioridad/
func SetPriority(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var form priorityForm
	if errs := bindForm(c, &form); errs != nil {
		redirectWithFlash(c, middleware.FlashError, "La prioridad debe ser un número mayor a cero.", "/")
		return
	}

	err := repairService().SetPriority(c.Request.Context(), user, id, form.Priority)
	switch {
	case err == nil:
		redirectWithFlash(c, middleware.FlashSuccess, "Prioridad actualizada.", "/")
	case errors.Is(err, services.ErrPriorityLocked):
		redirectWithFlash(c, middleware.FlashError, "La prioridad de esta reparación ya no se puede cambiar.", "/")
	case errors.Is(err, services.ErrInvalidPriority):
		redirectWithFlash(c, middleware.FlashError, "La prioridad debe ser un número mayor a cero.", "/")
	case handleServiceError(c, err):
	default:
		serverError(c, "failed to set priority", err)
	}
}
