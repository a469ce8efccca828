package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/crisisops/relief_backend/utils"
)

func TestParseDupCheckMethod(t *testing.T) {
	for _, valid := range []string{"name_lat_lng", "lat_lng"} {
		if _, err := ParseDupCheckMethod(valid); err != nil {
			t.Errorf("ParseDupCheckMethod(%q) returned %v", valid, err)
		}
	}
	_, err := ParseDupCheckMethod("fuzzy")
	if !errors.Is(err, utils.ErrorConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestParseDupHandler(t *testing.T) {
	for _, valid := range []string{"references", "references_and_work_type", "replace_all"} {
		if _, err := ParseDupHandler(valid); err != nil {
			t.Errorf("ParseDupHandler(%q) returned %v", valid, err)
		}
	}
	_, err := ParseDupHandler("merge")
	if !errors.Is(err, utils.ErrorConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestNormalizeHeader(t *testing.T) {
	cases := map[string]string{
		"Zip Code":     "zip_code",
		"zip-code":     "zip_code",
		"  Work Type ": "work_type",
		"Phone1":       "phone1",
	}
	for in, want := range cases {
		if got := NormalizeHeader(in); got != want {
			t.Errorf("NormalizeHeader(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMapRow(t *testing.T) {
	row := map[string]string{
		"name":         "Mary Johnson",
		"address":      "118 Oak Street",
		"city":         "Riverton",
		"zip_code":     "77801",
		"latitude":     "30.6213",
		"longitude":    "-96.3421",
		"status":       "Open, unassigned",
		"work_type":    "Flood",
		"request_date": "2026-05-02",
		"claimed_by":   "4",
		"flood_height": "3 ft",
		"pets":         "",
	}

	input := MapRow(row, 9)

	if input.EventId != 9 {
		t.Errorf("EventId = %d", input.EventId)
	}
	if input.Name != "Mary Johnson" || input.Address != "118 Oak Street" {
		t.Errorf("fixed fields not mapped: %+v", input)
	}
	if input.Latitude == nil || *input.Latitude != 30.6213 {
		t.Errorf("Latitude = %v", input.Latitude)
	}
	if input.Longitude == nil || *input.Longitude != -96.3421 {
		t.Errorf("Longitude = %v", input.Longitude)
	}
	if input.ClaimedBy != 4 {
		t.Errorf("ClaimedBy = %d", input.ClaimedBy)
	}
	if input.RequestDate == nil || input.RequestDate.Year() != 2026 || input.RequestDate.Month() != 5 {
		t.Errorf("RequestDate = %v", input.RequestDate)
	}
	if input.ExtraFields["flood_height"] != "3 ft" {
		t.Errorf("extra fields = %v", input.ExtraFields)
	}
	if _, ok := input.ExtraFields["pets"]; ok {
		t.Error("empty extras should not be kept")
	}
	if _, ok := input.ExtraFields["name"]; ok {
		t.Error("reserved columns must not leak into extras")
	}
}

func TestMapRowBadValuesDegrade(t *testing.T) {
	input := MapRow(map[string]string{
		"name":         "Pete",
		"latitude":     "not-a-number",
		"claimed_by":   "River County EOC",
		"request_date": "sometime in May",
	}, 1)

	if input.Latitude != nil {
		t.Errorf("unparseable latitude should be nil, got %v", input.Latitude)
	}
	if input.ClaimedBy != 0 {
		t.Errorf("non-numeric reference should be 0, got %d", input.ClaimedBy)
	}
	if input.RequestDate != nil {
		t.Errorf("unparseable date should be nil, got %v", input.RequestDate)
	}
}

func TestValidateRow(t *testing.T) {
	valid := MapRow(map[string]string{
		"name":      "Ana Ruiz",
		"address":   "12 Birch Road",
		"status":    "Open, unassigned",
		"work_type": "Flood",
	}, 1)
	if err := validateRow(valid); err != nil {
		t.Errorf("validateRow(valid) = %v", err)
	}

	missing := MapRow(map[string]string{
		"address": "99 Nowhere Road",
		"status":  "Open, unassigned",
	}, 1)
	err := validateRow(missing)
	if err == nil {
		t.Fatal("validateRow accepted a row without name and work type")
	}
	if !strings.Contains(err.Error(), "Name is required") ||
		!strings.Contains(err.Error(), "WorkType is required") {
		t.Errorf("validateRow error = %q", err)
	}
}

func TestReconcileRowRejectsInvalidRow(t *testing.T) {
	outcome := reconcileRow(context.Background(), 1, map[string]string{
		"address": "99 Nowhere Road",
		"status":  "Open, unassigned",
	}, MethodLatLng, HandlerReferences)
	if outcome.Kind != OutcomeRejected {
		t.Fatalf("kind = %q, want %q", outcome.Kind, OutcomeRejected)
	}
	if !strings.Contains(outcome.Reason, "required") {
		t.Errorf("reason = %q", outcome.Reason)
	}
}
