package models

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/crisisops/relief_backend/utils"
)

// RedactedFieldPlaceholder replaces personally identifying columns in the
// redacted export until the viewing org claims the work order.
const RedactedFieldPlaceholder = "To see this field, claim the work order: http://bit.ly/csvclaim"

// FormatDetailsErrorValue is emitted when rendering the details summary
// fails; export of the remaining columns must not abort over it.
const FormatDetailsErrorValue = "[data error]"

var everyDigit = regexp.MustCompile(`\d`)

// detailsExclusions are extra-field keys left out of the details summary:
// core schema fields, derived shadows, and fields already shown in a
// dedicated export column.
var detailsExclusions = map[string]bool{
	"address_digits":                   true,
	"address_metaphone":                true,
	"assigned_to":                      true,
	"city_metaphone":                   true,
	"claim_for_org":                    true,
	"county":                           true,
	"county_metaphone":                 true,
	"cross_street":                     true,
	"damage_level":                     true,
	"date_closed":                      true,
	"do_not_work_before":               true,
	"event":                            true,
	"event_name":                       true,
	"first_responder":                  true,
	"flood_height":                     true,
	"floors_affected":                  true,
	"habitable":                        true,
	"hours_worked_per_volunteer":       true,
	"ignore_similar":                   true,
	"initials_of_resident_present":     true,
	"inspected_by":                     true,
	"landmark":                         true,
	"member_of_assessing_organization": true,
	"modified_by":                      true,
	"mold_amount":                      true,
	"name_metaphone":                   true,
	"num_trees_down":                   true,
	"older_than_60":                    true,
	"phone1":                           true, // shown in its own column
	"phone2":                           true, // shown in its own column
	"phone_normalised":                 true,
	"prepared_by":                      true,
	"priority":                         true,
	"release_form":                     true,
	"residence_type":                   true,
	"status_notes":                     true,
	"temporary_address":                true,
	"time_to_call":                     true,
	"total_loss":                       true,
	"total_volunteers":                 true,
	"unrestrained_animals":             true,
	"work_requested":                   true, // shown in its own column
	"zip_code":                         true, // shown in the address column
}

// CSVHeader is the fixed, ordered column schema shared by the full and
// redacted exports.
func CSVHeader() []string {
	return []string{
		"Event",
		"Case #",
		"Name",
		"Address",
		"City",
		"County",
		"State",
		"Zip",
		"Phone 1",
		"Phone 2",
		"Latitude",
		"Longitude",
		"Blurred Lat",
		"Blurred Lng",
		"Reported By",
		"Claimed By",
		"Requested Date",
		"Last Updated",
		"Status",
		"Work Type",
		"Work Requested",
		"Floors Affected",
		"Flood Height",
		"Amount of Mold",
		"Trees Down",
		"Hours Worked Per Volunteer",
		"Initials Of Resident Present",
		"Total Volunteers",
		"Status Notes",
		"Residence Type",
		"Older Than 60",
		"First Responder",
		"Details",
	}
}

// CSVRow renders the full export row. Org references are resolved to
// display names through the preloaded directory map.
func (s *Site) CSVRow(eventName string, orgNames map[int]string) []string {
	return []string{
		eventName,
		s.CaseNumber,
		s.Name,
		s.Address,
		s.City,
		s.County,
		s.State,
		s.ZipCode,
		s.Phone1,
		s.Phone2,
		formatCoordinate(s.Latitude),
		formatCoordinate(s.Longitude),
		formatCoordinate(s.BlurredLatitude),
		formatCoordinate(s.BlurredLongitude),
		orgNames[s.ReportedBy],
		orgNames[s.ClaimedBy],
		formatExportTime(s.RequestDate),
		formatExportTime(s.UpdatedAt),
		s.Status,
		s.WorkType,
		s.extra("work_requested"),
		s.extra("floors_affected"),
		s.extra("flood_height"),
		s.extra("mold_amount"),
		s.extra("num_trees_down"),
		s.extra("hours_worked_per_volunteer"),
		s.extra("initials_of_resident_present"),
		s.extra("total_volunteers"),
		s.extra("status_notes"),
		s.extra("residence_type"),
		s.extra("older_than_60"),
		s.extra("first_responder"),
		s.FormatDetails(),
	}
}

// RedactedCSVRow renders the same schema with identifying fields masked:
// name, both phones and the true coordinates become the claim prompt, and
// every digit in the address becomes an X. Blurred coordinates stay.
func (s *Site) RedactedCSVRow(eventName string, orgNames map[int]string) []string {
	row := s.CSVRow(eventName, orgNames)
	row[2] = RedactedFieldPlaceholder                     // name
	row[3] = everyDigit.ReplaceAllString(s.Address, "X")  // address
	row[8] = RedactedFieldPlaceholder                     // phone 1
	row[9] = RedactedFieldPlaceholder                     // phone 2
	row[10] = RedactedFieldPlaceholder                    // latitude
	row[11] = RedactedFieldPlaceholder                    // longitude
	return row
}

// FormatDetails renders the extra-field bag as a "Label: value" summary,
// skipping excluded keys and empty / "n" / "0" values. Keys are sorted so
// the summary is stable between exports. Failures degrade to a sentinel
// string; a bad bag must not sink the row.
func (s *Site) FormatDetails() (details string) {
	defer func() {
		if r := recover(); r != nil {
			details = FormatDetailsErrorValue
		}
	}()

	if len(s.ExtraFields) == 0 {
		return ""
	}

	keys := make([]string, 0, len(s.ExtraFields))
	for key := range s.ExtraFields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		if detailsExclusions[key] {
			continue
		}
		value := s.ExtraFields[key]
		if value == "" || value == "n" || value == "0" {
			continue
		}
		parts = append(parts, utils.HumanizeLabel(key)+": "+value)
	}
	return strings.Join(parts, ", ")
}

func (s *Site) extra(key string) string {
	if s.ExtraFields == nil {
		return ""
	}
	return s.ExtraFields[key]
}

func formatCoordinate(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatExportTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}
