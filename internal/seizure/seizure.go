// Package seizure models the meat-seizure record inspectors submit.
//
// The queue treats payloads as opaque JSON; this package gives the CLI and
// the local API a typed record to build and validate before enqueueing.
package seizure

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Species of the animal the seizure was made on.
type Species string

const (
	SpeciesBovine  Species = "bovine"
	SpeciesOvine   Species = "ovine"
	SpeciesCaprine Species = "caprine"
	SpeciesPorcine Species = "porcine"
	SpeciesCamelid Species = "camelid"
	SpeciesOther   Species = "other"
)

// Part is the seized carcass part or organ.
type Part string

const (
	PartCarcass Part = "carcass"
	PartLiver   Part = "liver"
	PartLung    Part = "lung"
	PartHeart   Part = "heart"
	PartKidney  Part = "kidney"
	PartSpleen  Part = "spleen"
	PartHead    Part = "head"
	PartOther   Part = "other"
)

// Type distinguishes partial from total seizures.
type Type string

const (
	TypePartial Type = "partial"
	TypeTotal   Type = "total"
)

// Unit of the seized quantity.
type Unit string

const (
	UnitKilogram Unit = "kg"
	UnitGram     Unit = "g"
	UnitPieces   Unit = "pieces"
)

var (
	allSpecies = []Species{SpeciesBovine, SpeciesOvine, SpeciesCaprine, SpeciesPorcine, SpeciesCamelid, SpeciesOther}
	allParts   = []Part{PartCarcass, PartLiver, PartLung, PartHeart, PartKidney, PartSpleen, PartHead, PartOther}
	allTypes   = []Type{TypePartial, TypeTotal}
	allUnits   = []Unit{UnitKilogram, UnitGram, UnitPieces}
)

// AllSpecies lists accepted species values.
func AllSpecies() []Species { return slices.Clone(allSpecies) }

// AllParts lists accepted seized part values.
func AllParts() []Part { return slices.Clone(allParts) }

// AllTypes lists accepted seizure types.
func AllTypes() []Type { return slices.Clone(allTypes) }

// AllUnits lists accepted units.
func AllUnits() []Unit { return slices.Clone(allUnits) }

// Seizure is the create payload accepted by POST /api/seizures.
type Seizure struct {
	SeizureDatetime time.Time `json:"seizure_datetime"`
	Species         Species   `json:"species"`
	SeizedPart      Part      `json:"seized_part"`
	SeizureType     Type      `json:"seizure_type"`
	Reason          string    `json:"reason"`
	Quantity        int       `json:"quantity"`
	Unit            Unit      `json:"unit"`
	Notes           string    `json:"notes,omitempty"`
	Photos          []string  `json:"photos,omitempty"`
}

// FieldError describes one invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every invalid field of a seizure.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "invalid seizure: " + strings.Join(parts, "; ")
}

// ErrorKind marks validation failures as permanent.
func (e *ValidationError) ErrorKind() string { return "validation" }

func (e *ValidationError) add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Normalize trims text fields, lowercases enum values and fills a missing
// seizure time with now.
func (s *Seizure) Normalize(now time.Time) {
	s.Species = Species(strings.ToLower(strings.TrimSpace(string(s.Species))))
	s.SeizedPart = Part(strings.ToLower(strings.TrimSpace(string(s.SeizedPart))))
	s.SeizureType = Type(strings.ToLower(strings.TrimSpace(string(s.SeizureType))))
	s.Unit = Unit(strings.ToLower(strings.TrimSpace(string(s.Unit))))
	s.Reason = strings.TrimSpace(s.Reason)
	s.Notes = strings.TrimSpace(s.Notes)
	if s.SeizureDatetime.IsZero() {
		s.SeizureDatetime = now
	}
	s.SeizureDatetime = s.SeizureDatetime.UTC()
}

// Validate checks the record against the values the server accepts.
func (s Seizure) Validate() error {
	verr := &ValidationError{}
	if !slices.Contains(allSpecies, s.Species) {
		verr.add("species", "must be one of %s", joinValues(allSpecies))
	}
	if !slices.Contains(allParts, s.SeizedPart) {
		verr.add("seized_part", "must be one of %s", joinValues(allParts))
	}
	if !slices.Contains(allTypes, s.SeizureType) {
		verr.add("seizure_type", "must be one of %s", joinValues(allTypes))
	}
	if strings.TrimSpace(s.Reason) == "" {
		verr.add("reason", "is required")
	}
	if s.Quantity <= 0 {
		verr.add("quantity", "must be positive")
	}
	if !slices.Contains(allUnits, s.Unit) {
		verr.add("unit", "must be one of %s", joinValues(allUnits))
	}
	for i, photo := range s.Photos {
		if strings.TrimSpace(photo) == "" {
			verr.add(fmt.Sprintf("photos[%d]", i), "must not be empty")
		}
	}
	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

// Payload normalizes, validates and encodes the seizure for the queue.
func (s Seizure) Payload(now time.Time) (json.RawMessage, error) {
	s.Normalize(now)
	if err := s.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode seizure: %w", err)
	}
	return data, nil
}

// Decode parses a queued payload back into a seizure.
func Decode(payload json.RawMessage) (Seizure, error) {
	var s Seizure
	if err := json.Unmarshal(payload, &s); err != nil {
		return Seizure{}, fmt.Errorf("decode seizure: %w", err)
	}
	return s, nil
}

// IsValidationError reports whether err carries field validation failures.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

var titleCaser = cases.Title(language.English)

// Label renders an enum value for display, e.g. "seized_part" values like
// "liver" become "Liver".
func Label[T ~string](value T) string {
	text := strings.ReplaceAll(string(value), "_", " ")
	if text == "" {
		return "-"
	}
	return titleCaser.String(text)
}

// Summary is a one-line description used in tables and notifications.
func (s Seizure) Summary() string {
	parts := []string{Label(s.Species), Label(s.SeizedPart)}
	if s.SeizureType != "" {
		parts = append(parts, "("+Label(s.SeizureType)+")")
	}
	summary := strings.Join(parts, " ")
	if s.Quantity > 0 {
		summary += fmt.Sprintf(" %d %s", s.Quantity, s.Unit)
	}
	return summary
}

func joinValues[T ~string](values []T) string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return strings.Join(out, ", ")
}
