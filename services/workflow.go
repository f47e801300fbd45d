package services

import (
	"fmt"

	"github.com/kendall-kelly/taller-reparaciones/models"
)

// repairTransitions is the repair status state machine. A status may always
// be set to itself.
var repairTransitions = map[models.RepairStatus][]models.RepairStatus{
	models.StatusReceived:       {models.StatusPendingQuote, models.StatusPendingPayment, models.StatusInProgress},
	models.StatusPendingQuote:   {models.StatusPendingPayment, models.StatusInProgress},
	models.StatusPendingPayment: {models.StatusPendingQuote, models.StatusInProgress},
	models.StatusInProgress:     {models.StatusPendingPayment, models.StatusReady},
	models.StatusReady:          {models.StatusInProgress, models.StatusDelivered, models.StatusFinalized},
	models.StatusDelivered:      {models.StatusFinalized},
	models.StatusFinalized:      {models.StatusInProgress},
}

var quoteTransitions = map[models.QuoteStatus][]models.QuoteStatus{
	models.QuotePending: {models.QuoteSent, models.QuoteApproved, models.QuoteRejected},
	models.QuoteSent:    {models.QuoteApproved, models.QuoteRejected},
}

// TransitionError describes a rejected status change.
type TransitionError struct {
	RepairID uint
	From     string
	To       string
	Reason   string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("cannot change status from %s to %s", e.From, e.To)
	if e.RepairID != 0 {
		msg = fmt.Sprintf("repair %d: %s", e.RepairID, msg)
	}
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

func (e *TransitionError) Unwrap() error {
	return ErrIllegalTransition
}

// CanTransition reports whether the table allows from -> to.
func CanTransition(from, to models.RepairStatus) bool {
	if !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	for _, next := range repairTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses lists the statuses reachable from s, excluding s itself.
func NextStatuses(s models.RepairStatus) []models.RepairStatus {
	return append([]models.RepairStatus(nil), repairTransitions[s]...)
}

// AllowedStatuses lists what actor may move a repair in status s to, with s first.
func AllowedStatuses(actor models.User, s models.RepairStatus) []models.RepairStatus {
	out := []models.RepairStatus{s}
	for _, next := range repairTransitions[s] {
		if checkTransition(actor, 0, s, next) == nil {
			out = append(out, next)
		}
	}
	return out
}

// checkTransition applies the table plus the role rule: only superusers may
// take a repair out of finalizado.
func checkTransition(actor models.User, repairID uint, from, to models.RepairStatus) error {
	if !CanTransition(from, to) {
		return &TransitionError{RepairID: repairID, From: string(from), To: string(to)}
	}
	if from == models.StatusFinalized && to != from && !actor.IsSuperuser {
		return &TransitionError{RepairID: repairID, From: string(from), To: string(to), Reason: "superuser only"}
	}
	return nil
}

// CanTransitionQuote reports whether a quote may move from -> to.
func CanTransitionQuote(from, to models.QuoteStatus) bool {
	if !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	for _, next := range quoteTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// RepairStatusForQuote returns the repair status implied by marking a quote
// with status qs. ok is false when the repair is left untouched.
func RepairStatusForQuote(qs models.QuoteStatus) (models.RepairStatus, bool) {
	switch qs {
	case models.QuoteSent:
		return models.StatusPendingPayment, true
	case models.QuoteApproved:
		return models.StatusInProgress, true
	}
	return "", false
}
