package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Column names exposed by the billing source's invoice detail tables.
const (
	FieldSessionType    = "Session Type"
	FieldReference      = "Reference"
	FieldUser           = "User"
	FieldSystemType     = "System Type"
	FieldSystem         = "System"
	FieldDate           = "Date"
	FieldStartTime      = "Start time"
	FieldFinalAmount    = "Final Amount"
	FieldDurationBooked = "Duration (booked)"
	FieldDurationUsed   = "Duration (used)"
	FieldNotes          = "Notes"
	FieldFee            = "Fee"
	FieldSubsidy        = "Subsidy"
	FieldGroup          = "Group"
	FieldDuration       = "Duration"
)

// Category identifies how a session is charged and summed.
type Category string

const (
	CategoryAutonomous Category = "Autonomous"
	CategoryAssisted   Category = "Assisted"
	CategoryTraining   Category = "Training"
)

// CategoryForLabel maps a raw `Session Type` label to a category. The match is
// a substring check because the source emits variants such as
// "assisted-remote". Unrecognised labels return ok=false and are dropped by
// the parser rather than failing the whole invoice.
func CategoryForLabel(label string) (Category, bool) {
	switch {
	case strings.Contains(label, "autonomous"):
		return CategoryAutonomous, true
	case strings.Contains(label, "assisted"):
		return CategoryAssisted, true
	case strings.Contains(label, "training"):
		return CategoryTraining, true
	default:
		return "", false
	}
}

// RoundCents rounds to 2 decimal places, half away from zero at the cent
// boundary. Downstream totals are compared against externally issued invoices
// computed with this exact rule, so it must not be replaced with banker's
// rounding.
func RoundCents(v float64) float64 {
	return math.Trunc(v*100+0.5) / 100
}

// FormatAmount renders a monetary value with exactly 2 decimal digits after
// applying the cent rounding rule.
func FormatAmount(v float64) string {
	return strconv.FormatFloat(RoundCents(v), 'f', 2, 64)
}

// Session is one usage record from an invoice detail table.
type Session interface {
	// TypeLabel returns the raw source label, e.g. "assisted-remote".
	TypeLabel() string
	// SessionCategory returns the derived category.
	SessionCategory() Category
	// Amount returns the charged amount after adjustments.
	Amount() float64
}

// SessionCore carries the fields common to every session category.
type SessionCore struct {
	Label         string
	Category      Category
	Reference     string
	User          string
	EquipmentType string
	EquipmentName string
	Date          string
	StartTime     string
	FinalAmount   float64
}

func (c *SessionCore) TypeLabel() string         { return c.Label }
func (c *SessionCore) SessionCategory() Category { return c.Category }
func (c *SessionCore) Amount() float64           { return c.FinalAmount }

// UsageSession is an autonomous or assisted session. Fee and Subsidy are
// post-hoc adjustments applied by facility staff; InitialAmount reconstructs
// the pre-adjustment charge for display and is always recomputed here, never
// read from the source.
type UsageSession struct {
	SessionCore
	BookedDuration string
	UsedDuration   string
	Notes          string
	Fee            float64
	Subsidy        float64
	InitialAmount  float64
}

// TrainingSession has a single duration and no adjustment concept.
type TrainingSession struct {
	SessionCore
	Duration string
}

func newSessionCore(fields map[string]string) (SessionCore, error) {
	label := fields[FieldSessionType]
	category, ok := CategoryForLabel(label)
	if !ok {
		return SessionCore{}, fmt.Errorf("%w: unknown session type %q", ErrValidation, label)
	}

	raw, ok := fields[FieldFinalAmount]
	if !ok || strings.TrimSpace(raw) == "" {
		return SessionCore{}, fmt.Errorf("%w: missing final amount", ErrValidation)
	}
	amount, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return SessionCore{}, fmt.Errorf("%w: final amount %q is not numeric", ErrValidation, raw)
	}

	return SessionCore{
		Label:         label,
		Category:      category,
		Reference:     fields[FieldReference],
		User:          fields[FieldUser],
		EquipmentType: fields[FieldSystemType],
		EquipmentName: fields[FieldSystem],
		Date:          fields[FieldDate],
		StartTime:     fields[FieldStartTime],
		FinalAmount:   amount,
	}, nil
}

// NewUsageSession builds an autonomous or assisted session from a row of named
// fields. The final amount must be present and numeric; fee and subsidy
// default to zero when absent or malformed.
func NewUsageSession(fields map[string]string) (*UsageSession, error) {
	core, err := newSessionCore(fields)
	if err != nil {
		return nil, err
	}

	fee := parseOptionalAmount(fields[FieldFee])
	subsidy := parseOptionalAmount(fields[FieldSubsidy])

	return &UsageSession{
		SessionCore:    core,
		BookedDuration: fields[FieldDurationBooked],
		UsedDuration:   fields[FieldDurationUsed],
		Notes:          fields[FieldNotes],
		Fee:            fee,
		Subsidy:        subsidy,
		InitialAmount:  core.FinalAmount - fee + subsidy,
	}, nil
}

// NewTrainingSession builds a training session from a row of named fields.
func NewTrainingSession(fields map[string]string) (*TrainingSession, error) {
	core, err := newSessionCore(fields)
	if err != nil {
		return nil, err
	}
	return &TrainingSession{
		SessionCore: core,
		Duration:    fields[FieldDuration],
	}, nil
}

// parseOptionalAmount tolerates empty or non-numeric adjustment columns; the
// source leaves them blank for sessions without adjustments.
func parseOptionalAmount(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return v
}
