package views

import (
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/kendall-kelly/taller-reparaciones/models"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed templates/*.html
var files embed.FS

var printer = message.NewPrinter(language.Spanish)

// Funcs are the helpers available to every template.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"statusLabel":      statusLabel,
		"quoteStatusLabel": func(s models.QuoteStatus) string { return s.Label() },
		"formatDate":       formatDate,
		"formatDateTime":   formatDateTime,
		"money":            money,
		"deref":            deref,
		"fieldError":       fieldError,
	}
}

// Templates parses the embedded page templates.
func Templates() (*template.Template, error) {
	tmpl, err := template.New("").Funcs(Funcs()).ParseFS(files, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return tmpl, nil
}

// MustTemplates is Templates for program start-up.
func MustTemplates() *template.Template {
	return template.Must(Templates())
}

func statusLabel(s models.RepairStatus) string {
	return s.Label()
}

func formatDate(v interface{}) string {
	if t, ok := timeValue(v); ok {
		return t.Format("02/01/2006")
	}
	return "-"
}

func formatDateTime(v interface{}) string {
	if t, ok := timeValue(v); ok {
		return t.Local().Format("02/01/2006 15:04")
	}
	return "-"
}

func timeValue(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil || t.IsZero() {
			return time.Time{}, false
		}
		return *t, true
	}
	return time.Time{}, false
}

// money formats an amount with Spanish separators, "ARS 1.234,50".
func money(amount interface{}, currency models.Currency) string {
	var v float64
	switch a := amount.(type) {
	case float64:
		v = a
	case *float64:
		if a == nil {
			return "-"
		}
		v = *a
	default:
		return "-"
	}
	return printer.Sprintf("%s %.2f", string(currency), v)
}

func deref(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case *string:
		if s != nil {
			return *s
		}
	}
	return ""
}

func fieldError(errs map[string]string, field string) string {
	if errs == nil {
		return ""
	}
	return errs[field]
}
