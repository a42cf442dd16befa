package models

import (
	"encoding/csv"
	"fmt"
	"strings"
	"time"
)

// Recipient is a funding group resolved from the directory, plus the mutable
// invoice state the orchestrator fills in before hand-off to rendering and
// delivery. Identity fields mirror the `getgroup` record of the facility API.
type Recipient struct {
	GroupID          string
	GroupName        string
	HeadName         string
	HeadEmail        string
	DefaultGrantCode string
	Department       string
	Institution      string
	Address          string
	Affiliation      string
	IsExternal       bool
	IsActive         bool
	AdminName        string
	AdminEmail       string
	CreationDate     time.Time

	// Set by the orchestrator. ChargedGrantCode may differ from
	// DefaultGrantCode when a split code was billed.
	ChargedGrantCode string
	DocumentPath     string
	Charges          ChargeSummary
	AdminIsCC        bool
	SendOnlyToAdmin  bool
}

// RecipientFromRecord builds a Recipient from the two-line key/value table
// returned by the directory lookup: line 1 holds field names, line 2 the
// double-quote-wrapped values. Unknown field names are rejected so schema
// drift in the source surfaces immediately instead of silently losing data.
func RecipientFromRecord(record string) (*Recipient, error) {
	reader := csv.NewReader(strings.NewReader(record))
	reader.FieldsPerRecord = -1

	keys, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: group record header: %v", ErrValidation, err)
	}
	values, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: group record values: %v", ErrValidation, err)
	}
	if len(keys) != len(values) {
		return nil, fmt.Errorf("%w: group record has %d fields but %d values", ErrValidation, len(keys), len(values))
	}

	r := &Recipient{}
	for i, key := range keys {
		value := strings.TrimSpace(values[i])
		switch strings.TrimSpace(key) {
		case "unitlogin":
			r.GroupID = value
		case "unitname":
			r.GroupName = value
		case "headname":
			r.HeadName = value
		case "heademail":
			r.HeadEmail = value
		case "unitbcode":
			r.DefaultGrantCode = value
		case "department":
			r.Department = value
		case "institution":
			r.Institution = value
		case "address":
			r.Address = strings.ReplaceAll(value, "|", ", ")
		case "affiliation":
			r.Affiliation = value
		case "ext":
			r.IsExternal = value == "true"
		case "active":
			r.IsActive = value == "true"
		case "admname":
			r.AdminName = value
		case "admemail":
			r.AdminEmail = value
		case "creationdate":
			if value != "" {
				created, err := time.Parse("2006/01/02", value)
				if err != nil {
					return nil, fmt.Errorf("%w: creation date %q: %v", ErrValidation, value, err)
				}
				r.CreationDate = created
			}
		default:
			return nil, fmt.Errorf("%w: unknown group field %q", ErrValidation, key)
		}
	}

	if r.GroupID == "" {
		return nil, fmt.Errorf("%w: group record missing unitlogin", ErrValidation)
	}
	if r.HeadEmail == "" {
		return nil, fmt.Errorf("%w: group %s has no head email", ErrValidation, r.GroupID)
	}
	return r, nil
}
