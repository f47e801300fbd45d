package models

// RepairStatus is the workflow state of a repair.
type RepairStatus string

const (
	StatusReceived       RepairStatus = "recibida"
	StatusPendingQuote   RepairStatus = "pendiente_presupuesto"
	StatusPendingPayment RepairStatus = "pendiente_pago"
	StatusInProgress     RepairStatus = "en_proceso"
	StatusReady          RepairStatus = "listo_para_entregar"
	StatusDelivered      RepairStatus = "entregado"
	StatusFinalized      RepairStatus = "finalizado"
)

// RepairStatuses lists every status in workflow order.
var RepairStatuses = []RepairStatus{
	StatusReceived,
	StatusPendingQuote,
	StatusPendingPayment,
	StatusInProgress,
	StatusReady,
	StatusDelivered,
	StatusFinalized,
}

var repairStatusLabels = map[RepairStatus]string{
	StatusReceived:       "Recibimos tu pedido",
	StatusPendingQuote:   "Estamos presupuestando el pedido",
	StatusPendingPayment: "Estamos a espera de tu aprobación y pago de seña",
	StatusInProgress:     "En proceso de reparación",
	StatusReady:          "Listo para entregar",
	StatusDelivered:      "Recibido por el cliente",
	StatusFinalized:      "Recibimos el pago final",
}

// PriorityEditableStatuses are the statuses in which a customer may reorder
// their repairs.
var PriorityEditableStatuses = []RepairStatus{
	StatusPendingQuote,
	StatusPendingPayment,
}

// Label returns the customer-facing description of the status.
func (s RepairStatus) Label() string {
	if label, ok := repairStatusLabels[s]; ok {
		return label
	}
	return string(s)
}

// Valid reports whether s is one of the known statuses.
func (s RepairStatus) Valid() bool {
	_, ok := repairStatusLabels[s]
	return ok
}

// PriorityEditable reports whether s allows the owner to change priority.
func (s RepairStatus) PriorityEditable() bool {
	for _, editable := range PriorityEditableStatuses {
		if s == editable {
			return true
		}
	}
	return false
}

// ParseRepairStatus converts a form value into a RepairStatus.
func ParseRepairStatus(value string) (RepairStatus, bool) {
	s := RepairStatus(value)
	return s, s.Valid()
}

// QuoteStatus is the state of a single quote.
type QuoteStatus string

const (
	QuotePending  QuoteStatus = "pendiente"
	QuoteSent     QuoteStatus = "enviado"
	QuoteApproved QuoteStatus = "aprobado"
	QuoteRejected QuoteStatus = "rechazado"
)

var QuoteStatuses = []QuoteStatus{QuotePending, QuoteSent, QuoteApproved, QuoteRejected}

var quoteStatusLabels = map[QuoteStatus]string{
	QuotePending:  "Pendiente",
	QuoteSent:     "Enviado",
	QuoteApproved: "Aprobado",
	QuoteRejected: "Rechazado",
}

func (s QuoteStatus) Label() string {
	if label, ok := quoteStatusLabels[s]; ok {
		return label
	}
	return string(s)
}

func (s QuoteStatus) Valid() bool {
	_, ok := quoteStatusLabels[s]
	return ok
}

// VisibleToCustomer reports whether the customer dashboard shows the quote.
func (s QuoteStatus) VisibleToCustomer() bool {
	return s != QuotePending
}

func ParseQuoteStatus(value string) (QuoteStatus, bool) {
	s := QuoteStatus(value)
	return s, s.Valid()
}

// Currency of quotes and invoices.
type Currency string

const (
	CurrencyARS Currency = "ARS"
	CurrencyUSD Currency = "USD"
)

var Currencies = []Currency{CurrencyARS, CurrencyUSD}

func (c Currency) Valid() bool {
	return c == CurrencyARS || c == CurrencyUSD
}

// Locations offered on the repair form.
var Locations = []string{
	"Dina Huapi",
	"Zona Este",
	"Centro",
	"Zona Gutierrez",
	"Km 3 al 8",
	"Km 9 al 18",
	"Km 19 al 26",
	"Circuito Chico",
	"Otro",
}

// EquipmentTypes offered on the repair form.
var EquipmentTypes = []string{"Surf", "Kite", "Foil", "SUP", "Accesorio", "Otro"}

func ValidLocation(v string) bool {
	return contains(Locations, v)
}

func ValidEquipmentType(v string) bool {
	return contains(EquipmentTypes, v)
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
