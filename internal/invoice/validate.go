package invoice

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid marks operations refused by the validation gate.
var ErrInvalid = errors.New("invoice: validation failed")

const (
	MsgBusinessNameRequired = "Business name is required"
	MsgClientNameRequired   = "Client name is required"
	MsgLineItemRequired     = "At least one line item is required"
	MsgNegativeAmounts      = "Quantity and unit price must be non-negative"
)

// Validate returns human-readable problems with doc. An empty result means
// the document is valid.
func Validate(doc Document) []string {
	var errs []string
	if strings.TrimSpace(doc.Business.Name) == "" {
		errs = append(errs, MsgBusinessNameRequired)
	}
	if strings.TrimSpace(doc.Client.Name) == "" {
		errs = append(errs, MsgClientNameRequired)
	}
	if len(doc.LineItems) == 0 {
		errs = append(errs, MsgLineItemRequired)
	}
	for _, item := range doc.LineItems {
		if item.Quantity < 0 || item.UnitPrice < 0 {
			errs = append(errs, MsgNegativeAmounts)
		}
	}
	return errs
}

// ValidationError carries the messages that blocked a gated operation.
type ValidationError struct {
	Op       string
	Messages []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invoice: %s blocked: %s", e.Op, strings.Join(e.Messages, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }

// GatePolicy chooses which operations validation may block.
type GatePolicy string

const (
	GateAdvisory GatePolicy = "advisory"
	GateSave     GatePolicy = "save"
	GateExport   GatePolicy = "export"
	GateAll      GatePolicy = "all"
)

// Operations subject to the gate.
const (
	OpSave   = "save"
	OpExport = "export"
)

// ParseGatePolicy maps a configuration value to a policy.
func ParseGatePolicy(s string) (GatePolicy, error) {
	switch GatePolicy(s) {
	case "", GateAdvisory:
		return GateAdvisory, nil
	case GateSave, GateExport, GateAll:
		return GatePolicy(s), nil
	default:
		return "", fmt.Errorf("invoice: unknown validation gate %q", s)
	}
}

// Blocks reports whether the policy gates op.
func (p GatePolicy) Blocks(op string) bool {
	switch p {
	case GateAll:
		return op == OpSave || op == OpExport
	case GateSave:
		return op == OpSave
	case GateExport:
		return op == OpExport
	default:
		return false
	}
}

// Check validates doc for op and returns a *ValidationError when the policy
// blocks op and doc has problems.
func (p GatePolicy) Check(op string, doc Document) error {
	if !p.Blocks(op) {
		return nil
	}
	if msgs := Validate(doc); len(msgs) > 0 {
		return &ValidationError{Op: op, Messages: msgs}
	}
	return nil
}
