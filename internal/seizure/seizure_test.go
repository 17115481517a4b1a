package seizure_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"fieldsync/internal/queue"
	"fieldsync/internal/seizure"
)

var fixedNow = time.Date(2026, 4, 12, 8, 15, 0, 0, time.UTC)

func validSeizure() seizure.Seizure {
	return seizure.Seizure{
		Species:     seizure.SpeciesBovine,
		SeizedPart:  seizure.PartLiver,
		SeizureType: seizure.TypePartial,
		Reason:      "Distomatose",
		Quantity:    3,
		Unit:        seizure.UnitKilogram,
	}
}

func TestPayloadNormalizesAndDefaultsTime(t *testing.T) {
	s := validSeizure()
	s.Species = " Bovine "
	s.Unit = "KG"

	payload, err := s.Payload(fixedNow)
	if err != nil {
		t.Fatalf("Payload: %v", err)
	}
	decoded, err := seizure.Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Species != seizure.SpeciesBovine || decoded.Unit != seizure.UnitKilogram {
		t.Fatalf("enums not normalized: %+v", decoded)
	}
	if !decoded.SeizureDatetime.Equal(fixedNow) {
		t.Fatalf("expected default time %v, got %v", fixedNow, decoded.SeizureDatetime)
	}
	if strings.Contains(string(payload), "notes") || strings.Contains(string(payload), "photos") {
		t.Fatalf("empty optional fields should be omitted: %s", payload)
	}
}

func TestValidateReportsEveryField(t *testing.T) {
	s := seizure.Seizure{
		Species:     "dragon",
		SeizedPart:  "tail",
		SeizureType: "some",
		Reason:      "  ",
		Quantity:    0,
		Unit:        "lb",
		Photos:      []string{""},
	}
	err := s.Validate()
	var verr *seizure.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	fields := map[string]bool{}
	for _, f := range verr.Fields {
		fields[f.Field] = true
	}
	for _, want := range []string{"species", "seized_part", "seizure_type", "reason", "quantity", "unit", "photos[0]"} {
		if !fields[want] {
			t.Errorf("missing error for %s in %v", want, err)
		}
	}
}

func TestValidationErrorIsPermanent(t *testing.T) {
	s := validSeizure()
	s.Quantity = -1
	_, err := s.Payload(fixedNow)
	if !seizure.IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if kind := queue.ClassifyFailure(err); kind != queue.FailurePermanent {
		t.Fatalf("validation errors must classify as permanent, got %s", kind)
	}
}

func TestSummaryAndLabels(t *testing.T) {
	s := validSeizure()
	if got := s.Summary(); got != "Bovine Liver (Partial) 3 kg" {
		t.Fatalf("unexpected summary %q", got)
	}
	if got := seizure.Label(seizure.Part("")); got != "-" {
		t.Fatalf("empty label should render as dash, got %q", got)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := seizure.Decode(json.RawMessage(`[1,2]`)); err == nil {
		t.Fatal("expected decode error for array payload")
	}
}
