package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/taller-reparaciones/middleware"
	"github.com/kendall-kelly/taller-reparaciones/models"
	"github.com/kendall-kelly/taller-reparaciones/services"
	"go.uber.org/zap"
)

const (
	msgNotFound      = "No encontramos lo que buscabas."
	msgForbidden     = "No tenés permisos para acceder a esa sección."
	msgUnexpected    = "Ocurrió un error inesperado. Intentá de nuevo en unos minutos."
	msgSaveFailed    = "No pudimos guardar los datos. Intentá de nuevo."
	msgInvalidStatus = "Ese cambio de estado no está permitido."
)

// render executes a page template with the data every page needs.
func render(c *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	if user, err := middleware.GetCurrentUser(c); err == nil {
		data["CurrentUser"] = user
	}
	data["Flash"] = middleware.GetFlash(c)
	c.HTML(status, name, data)
}

func renderError(c *gin.Context, status int, message string) {
	render(c, status, "error.html", gin.H{
		"Title":   http.StatusText(status),
		"Message": message,
	})
}

// redirectWithFlash finishes a POST with a one-shot message.
func redirectWithFlash(c *gin.Context, level, message, location string) {
	middleware.SetFlash(c, level, message)
	c.Redirect(http.StatusSeeOther, location)
}

// currentUser returns the logged in user. Routes behind LoadCurrentUser
// always have one.
func currentUser(c *gin.Context) (models.User, bool) {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		c.Error(err)
		renderError(c, http.StatusUnauthorized, msgForbidden)
		return models.User{}, false
	}
	return *user, true
}

func parseID(c *gin.Context, param string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil || id == 0 {
		renderError(c, http.StatusNotFound, msgNotFound)
		return 0, false
	}
	return uint(id), true
}

// safeNext accepts only local absolute paths as redirect targets.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return "/"
	}
	return next
}

// handleServiceError maps the service errors shared by every page. It
// returns false when err is not one of them.
func handleServiceError(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, services.ErrNotFound):
		renderError(c, http.StatusNotFound, msgNotFound)
	case errors.Is(err, services.ErrForbidden):
		redirectWithFlash(c, middleware.FlashError, msgForbidden, "/")
	default:
		return false
	}
	return true
}

func serverError(c *gin.Context, msg string, err error) {
	c.Error(err)
	zap.L().Error(msg, zap.String("path", c.Request.URL.Path), zap.Error(err))
	renderError(c, http.StatusInternalServerError, msgUnexpected)
}

func validationFields(err error) (map[string]string, bool) {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		return verr.Fields, true
	}
	return nil, false
}
