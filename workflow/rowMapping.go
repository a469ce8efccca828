package workflow

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/crisisops/relief_backend/models"
	"github.com/crisisops/relief_backend/utils"
	"github.com/go-playground/validator/v10"
)

// rowValidator applies the binding tags the HTTP layer enforces on direct
// submissions, so an imported row cannot create a record a form post
// could not.
var rowValidator = func() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	return v
}()

func validateRow(input *models.NewSite) error {
	err := rowValidator.Struct(input)
	if err == nil {
		return nil
	}
	problems := []string{}
	for field, tag := range utils.ProcessValidationErrors(err) {
		problems = append(problems, fmt.Sprintf("%s is %s", field, tag))
	}
	sort.Strings(problems)
	return fmt.Errorf("invalid row: %s", strings.Join(problems, ", "))
}

// reservedColumns are row keys bound to fixed schema fields. Everything
// else lands in the extra-field bag untouched.
var reservedColumns = map[string]bool{
	"case_number":  true,
	"name":         true,
	"phone1":       true,
	"phone2":       true,
	"address":      true,
	"city":         true,
	"county":       true,
	"state":        true,
	"zip_code":     true,
	"latitude":     true,
	"longitude":    true,
	"status":       true,
	"work_type":    true,
	"request_date": true,
	"claimed_by":   true,
	"reported_by":  true,
}

var requestDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"1/2/2006",
}

// MapRow turns one header-keyed row into site input. Keys are expected in
// lower snake case; NormalizeHeader produces them from raw header cells.
func MapRow(row map[string]string, eventId int) *models.NewSite {
	input := &models.NewSite{
		EventId:    eventId,
		CaseNumber: row["case_number"],
		Name:       row["name"],
		Phone1:     row["phone1"],
		Phone2:     row["phone2"],
		Address:    row["address"],
		City:       row["city"],
		County:     row["county"],
		State:      row["state"],
		ZipCode:    row["zip_code"],
		Status:     row["status"],
		WorkType:   row["work_type"],
		Latitude:   parseCoordinate(row["latitude"]),
		Longitude:  parseCoordinate(row["longitude"]),
		ClaimedBy:  parseReference(row["claimed_by"]),
		ReportedBy: parseReference(row["reported_by"]),
	}

	if t := parseRequestDate(row["request_date"]); t != nil {
		input.RequestDate = t
	}

	for key, value := range row {
		if reservedColumns[key] || value == "" {
			continue
		}
		if input.ExtraFields == nil {
			input.ExtraFields = models.ExtraFields{}
		}
		input.ExtraFields[key] = value
	}
	return input
}

// NormalizeHeader maps a raw header cell to a row key: "Zip Code" and
// "zip-code" both become "zip_code".
func NormalizeHeader(cell string) string {
	key := strings.ToLower(strings.TrimSpace(cell))
	key = strings.ReplaceAll(key, " ", "_")
	key = strings.ReplaceAll(key, "-", "_")
	return key
}

func parseCoordinate(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseReference(s string) int {
	if s == "" {
		return 0
	}
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return id
}

func parseRequestDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range requestDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
