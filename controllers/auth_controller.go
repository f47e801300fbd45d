package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/taller-reparaciones/config"
	"github.com/kendall-kelly/taller-reparaciones/middleware"
	"github.com/kendall-kelly/taller-reparaciones/models"
	"github.com/kendall-kelly/taller-reparaciones/services"
	"go.uber.org/zap"
)

const msgBadCredentials = "Usuario o contraseña incorrectos."

// ShowLogin handles GET /accounts/login/
func ShowLogin(c *gin.Context) {
	render(c, http.StatusOK, "login.html", gin.H{
		"Title": "Ingresar",
		"Next":  safeNext(c.Query("next")),
		"Form":  loginForm{},
	})
}

// Login handles POST /accounts/login/ - checks credentials and sets the
// session cookie
func Login(c *gin.Context) {
	var form loginForm
	errs := bindForm(c, &form)
	next := safeNext(form.Next)

	reject := func(status int, errs map[string]string) {
		form.Password = ""
		render(c, status, "login.html", gin.H{
			"Title":  "Ingresar",
			"Next":   next,
			"Form":   form,
			"Errors": errs,
		})
	}
	if errs != nil {
		reject(http.StatusUnprocessableEntity, errs)
		return
	}

	user, err := userService().Authenticate(c.Request.Context(), form.Username, form.Password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		reject(http.StatusUnauthorized, map[string]string{"form": msgBadCredentials})
		return
	}
	if err != nil {
		serverError(c, "login failed", err)
		return
	}

	// Without "remember me" the cookie lasts for the browser session only.
	maxAge := config.GetConfig().SessionTTL
	if !form.RememberMe {
		maxAge = 0
	}
	if !startSession(c, *user, maxAge) {
		return
	}
	c.Redirect(http.StatusSeeOther, next)
}

// Logout handles POST /accounts/logout/
func Logout(c *gin.Context) {
	middleware.ClearSessionCookie(c, config.GetConfig())
	redirectWithFlash(c, middleware.FlashInfo, "Cerraste la sesión.", middleware.LoginPath)
}

// ShowRegister handles GET /registrar/
func ShowRegister(c *gin.Context) {
	render(c, http.StatusOK, "register.html", gin.H{
		"Title": "Crear cuenta",
		"Form":  registerForm{},
	})
}

// Register handles POST /registrar/ - creates a customer account and logs it in
func Register(c *gin.Context) {
	var form registerForm
	errs := bindForm(c, &form)

	reject := func(status int, errs map[string]string) {
		render(c, status, "register.html", gin.H{
			"Title":  "Crear cuenta",
			"Form":   registerForm{Username: form.Username},
			"Errors": errs,
		})
	}
	if errs != nil {
		reject(http.StatusUnprocessableEntity, errs)
		return
	}

	user, err := userService().Register(c.Request.Context(), services.RegisterInput{
		Username:        form.Username,
		Password:        form.Password,
		PasswordConfirm: form.PasswordConfirm,
	})
	if fields, ok := validationFields(err); ok {
		reject(http.StatusUnprocessableEntity, fields)
		return
	}
	if errors.Is(err, services.ErrUsernameTaken) {
		reject(http.StatusUnprocessableEntity, map[string]string{"username": "Ya existe un usuario con ese nombre."})
		return
	}
	if err != nil {
		serverError(c, "registration failed", err)
		return
	}

	zap.L().Info("customer registered", zap.Uint("user_id", user.ID))
	if !startSession(c, *user, 0) {
		return
	}
	redirectWithFlash(c, middleware.FlashSuccess, "¡Bienvenido! Ya podés cargar tu primera reparación.", "/")
}

func startSession(c *gin.Context, user models.User, maxAge time.Duration) bool {
	cfg := config.GetConfig()
	token, _, err := services.NewTokenService(cfg).Issue(user)
	if err != nil {
		serverError(c, "failed to issue session token", err)
		return false
	}
	middleware.SetSessionCookie(c, cfg, token, maxAge)
	return true
}
