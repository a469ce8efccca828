package models

import (
	"context"
	"fmt"
	"strings"

	"github.com/crisisops/relief_backend/config"
	"github.com/crisisops/relief_backend/utils"
	"gorm.io/gorm"
)

// addressNumberNoMatch is the LIKE sentinel used when the candidate's
// address carries no street number: it matches no stored address.
const addressNumberNoMatch = "xXx"

// DuplicateMatch describes one existing record that collides with a
// candidate on at least one detection signal.
type DuplicateMatch struct {
	ID         int    `json:"id"`
	CaseNumber string `json:"case_number"`
	EventId    int    `json:"event_id"`
	Address    string `json:"address"`
}

// DuplicateError blocks a save that collides with existing records. It is
// the expected failure mode of normal intake, not an exceptional one: a
// reviewer inspects the matches and either edits the record or resubmits
// with the check bypassed.
type DuplicateError struct {
	Matches []DuplicateMatch
}

func (e *DuplicateError) Error() string {
	cases := make([]string, 0, len(e.Matches))
	for _, m := range e.Matches {
		cases = append(cases, m.CaseNumber)
	}
	return fmt.Sprintf("possible duplicate of %d existing work order(s): %s",
		len(e.Matches), strings.Join(cases, ", "))
}

// FindDuplicates scans the candidate's event for records matching any
// detection signal. Callers outside a transaction; the save path uses
// findDuplicates against its own tx.
func FindDuplicates(db *gorm.DB, candidate *Site) ([]DuplicateMatch, error) {
	return findDuplicates(db, candidate)
}

// CheckDuplicates runs the matcher for unsaved input without persisting
// anything. Derived fields are computed on a throwaway record first.
func CheckDuplicates(ctx context.Context, input *NewSite) ([]DuplicateMatch, error) {
	if _, err := GetEvent(ctx, input.EventId); err != nil {
		return nil, err
	}
	site := mapNewSite(input)
	site.deriveSearchFields()
	return findDuplicates(config.GetDB().WithContext(ctx), site)
}

// Any one signal family is enough to flag a match:
//
//	rounded lat/lon pair
//	OR name metaphone
//	OR any phone, raw or normalized
//	OR (street number prefix AND address metaphone
//	    AND (city metaphone OR county metaphone OR zip))
func findDuplicates(db *gorm.DB, candidate *Site) ([]DuplicateMatch, error) {

	scope := db.Model(&Site{}).Where("event_id = ?", candidate.EventId)
	if candidate.ID != 0 {
		scope = scope.Where("id != ?", candidate.ID)
	}

	var signals []string
	var args []interface{}

	if candidate.Latitude != nil && candidate.Longitude != nil {
		signals = append(signals,
			"(latitude IS NOT NULL AND longitude IS NOT NULL AND ROUND(latitude, 4) = ROUND(?, 4) AND ROUND(longitude, 4) = ROUND(?, 4))")
		args = append(args, *candidate.Latitude, *candidate.Longitude)
	}

	if candidate.NameMetaphone != "" {
		signals = append(signals, "name_metaphone = ?")
		args = append(args, candidate.NameMetaphone)
	}

	phones := candidatePhones(candidate)
	if len(phones) > 0 {
		signals = append(signals,
			"(phone1 IN ? OR phone2 IN ? OR phone1_normalized IN ? OR phone2_normalized IN ?)")
		args = append(args, phones, phones, phones, phones)
	}

	addressNumber := addressNumberNoMatch
	if run, ok := utils.FirstDigitRun(candidate.Address); ok {
		addressNumber = run
	}
	signals = append(signals,
		"(address LIKE ? AND address_metaphone = ? AND (city_metaphone = ? OR county_metaphone = ? OR zip_code = ?))")
	args = append(args,
		addressNumber+"%",
		candidate.AddressMetaphone,
		candidate.CityMetaphone,
		candidate.CountyMetaphone,
		candidate.ZipCode,
	)

	var matches []DuplicateMatch
	err := scope.Where("("+strings.Join(signals, " OR ")+")", args...).
		Select("id", "case_number", "event_id", "address").
		Scan(&matches).Error
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// candidatePhones gathers every non-empty phone representation of the
// candidate. A blank phone must never act as a wildcard against other
// records with blank phones.
func candidatePhones(candidate *Site) []string {
	var phones []string
	for _, p := range []string{
		candidate.Phone1,
		candidate.Phone2,
		candidate.Phone1Normalized,
		candidate.Phone2Normalized,
	} {
		if strings.TrimSpace(p) != "" {
			phones = append(phones, p)
		}
	}
	return utils.UniqueSlice(phones)
}
