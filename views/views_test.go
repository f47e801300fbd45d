package views

import (
	"bytes"
	"testing"
	"time"

	"github.com/kendall-kelly/taller-reparaciones/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplatesParse(t *testing.T) {
	tmpl, err := Templates()
	require.NoError(t, err)

	for _, name := range []string{
		"login.html", "register.html", "home.html", "repair_form.html", "error.html",
		"staff_repairs.html", "staff_repair_detail.html", "staff_quotes.html",
		"quote_form.html", "invoice_form.html", "staff_finalized.html",
	} {
		assert.NotNil(t, tmpl.Lookup(name), name)
	}
}

func TestErrorPage(t *testing.T) {
	tmpl := MustTemplates()

	var buf bytes.Buffer
	require.NoError(t, tmpl.ExecuteTemplate(&buf, "error.html", map[string]interface{}{
		"Title":   "No encontrado",
		"Message": "La página <no> existe.",
	}))
	assert.Contains(t, buf.String(), "No encontrado")
	assert.Contains(t, buf.String(), "La página &lt;no&gt; existe.")
}

func TestMoney(t *testing.T) {
	amount := 1234.5

	assert.Equal(t, "ARS 45.000,00", money(45000.0, models.CurrencyARS))
	assert.Equal(t, "USD 1.234,50", money(&amount, models.CurrencyUSD))
	assert.Equal(t, "-", money((*float64)(nil), models.CurrencyARS))
	assert.Equal(t, "-", money("mil", models.CurrencyARS))
}

func TestFormatDate(t *testing.T) {
	day := time.Date(2026, 3, 9, 14, 30, 0, 0, time.Local)

	assert.Equal(t, "09/03/2026", formatDate(day))
	assert.Equal(t, "09/03/2026", formatDate(&day))
	assert.Equal(t, "-", formatDate((*time.Time)(nil)))
	assert.Equal(t, "-", formatDate(time.Time{}))
	assert.Equal(t, "09/03/2026 14:30", formatDateTime(day))
}

func TestDerefAndFieldError(t *testing.T) {
	name := "factura.pdf"

	assert.Equal(t, "factura.pdf", deref(&name))
	assert.Equal(t, "", deref((*string)(nil)))
	assert.Equal(t, "texto", deref("texto"))

	assert.Equal(t, "", fieldError(nil, "phone"))
	assert.Equal(t, "Este campo es obligatorio.", fieldError(map[string]string{"phone": "Este campo es obligatorio."}, "phone"))
	assert.Equal(t, "Recibimos tu pedido", statusLabel(models.StatusReceived))
}
