package controllers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/es"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	estranslations "github.com/go-playground/validator/v10/translations/es"
	"go.uber.org/zap"
)

var (
	translatorOnce sync.Once
	formTranslator ut.Translator
)

// spanishTranslator hooks Spanish messages and field labels into gin's
// validator. It runs before the first bind.
func spanishTranslator() ut.Translator {
	translatorOnce.Do(func() {
		locale := es.New()
		formTranslator, _ = ut.New(locale, locale).GetTranslator("es")

		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			if label := field.Tag.Get("label"); label != "" {
				return label
			}
			return formName(field)
		})
		if err := estranslations.RegisterDefaultTranslations(v, formTranslator); err != nil {
			zap.L().Warn("failed to register validation translations", zap.Error(err))
		}
	})
	return formTranslator
}

// bindForm binds the request form into obj and returns the problems keyed by
// form field name.
func bindForm(c *gin.Context, obj interface{}) map[string]string {
	trans := spanishTranslator()
	err := c.ShouldBind(obj)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"form": "Revisá los datos del formulario."}
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		key := fieldKey(obj, fe.StructField())
		if _, exists := out[key]; !exists {
			out[key] = fe.Translate(trans)
		}
	}
	return out
}

func fieldKey(obj interface{}, structField string) string {
	t := reflect.TypeOf(obj)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if f, ok := t.FieldByName(structField); ok {
		if name := formName(f); name != "" {
			return name
		}
	}
	return structField
}

func formName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("form"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

// mergeErrors adds the entries of extra that dst does not have yet.
func mergeErrors(dst, extra map[string]string) map[string]string {
	if len(extra) == 0 {
		return dst
	}
	if dst == nil {
		dst = map[string]string{}
	}
	for k, v := range extra {
		if _, exists := dst[k]; !exists {
			dst[k] = v
		}
	}
	return dst
}

// optionalFile returns the uploaded file of field, or nil when none was sent.
func optionalFile(c *gin.Context, field string) (*multipart.FileHeader, error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if fh.Filename == "" {
		return nil, nil
	}
	return fh, nil
}

// parseAmount accepts "1500", "1500.50" and "1500,50". An empty value is
// nil.
func parseAmount(raw string) (*float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	if err != nil {
		return nil, false
	}
	return &v, true
}

// parseDate reads a yyyy-mm-dd date input. An empty value is nil.
func parseDate(raw string) (*time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	t, err := time.ParseInLocation("2006-01-02", raw, time.Local)
	if err != nil {
		return nil, false
	}
	return &t, true
}

type loginForm struct {
	Username   string `form:"username" label:"Usuario" binding:"required,max=150"`
	Password   string `form:"password" label:"Contraseña" binding:"required"`
	RememberMe bool   `form:"remember_me"`
	Next       string `form:"next"`
}

type registerForm struct {
	Username        string `form:"username" label:"Usuario" binding:"required,max=150"`
	Password        string `form:"password" label:"Contraseña" binding:"required"`
	PasswordConfirm string `form:"password_confirm" label:"Confirmación" binding:"required"`
}

type repairForm struct {
	CustomerName  string `form:"customer_name" label:"Nombre" binding:"max=100"`
	Phone         string `form:"phone" label:"Teléfono" binding:"max=20"`
	Location      string `form:"location"`
	EquipmentType string `form:"equipment_type"`
	Description   string `form:"description" label:"Descripción" binding:"max=5000"`
}

type priorityForm struct {
	Priority int `form:"priority" label:"Prioridad" binding:"required,min=1"`
}

type repairFilterForm struct {
	Status        string `form:"status"`
	EquipmentType string `form:"equipment_type"`
	Query         string `form:"q" binding:"max=100"`
}

type bulkForm struct {
	IDs    []uint `form:"ids"`
	Status string `form:"status" label:"Estado" binding:"required"`
}

type quoteBulkForm struct {
	IDs      []uint `form:"ids"`
	Status   string `form:"status" label:"Estado" binding:"required"`
	RepairID uint   `form:"repair_id"`
}

type repairUpdateForm struct {
	Status            string `form:"status" label:"Estado" binding:"required"`
	EstimatedDelivery string `form:"estimated_delivery"`
	AdminComment      string `form:"admin_comment" label:"Comentario" binding:"max=2000"`
}

type quoteForm struct {
	Amount        string `form:"amount" label:"Monto" binding:"max=20"`
	Currency      string `form:"currency" label:"Moneda" binding:"omitempty,oneof=ARS USD"`
	InternalNotes string `form:"internal_notes" label:"Notas internas" binding:"max=2000"`
}

type invoiceForm struct {
	TotalAmount   string `form:"total_amount" label:"Monto total" binding:"required,max=20"`
	Currency      string `form:"currency" label:"Moneda" binding:"omitempty,oneof=ARS USD"`
	Link          string `form:"link" label:"Link" binding:"max=500"`
	InternalNotes string `form:"internal_notes" label:"Notas internas" binding:"max=2000"`
}
