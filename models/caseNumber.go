package models

import (
	"fmt"
	"strconv"

	"github.com/crisisops/relief_backend/utils"
	"gorm.io/gorm"
)

// caseNumberSuffix extracts the embedded integer from a case number
// ("FL17" -> 17). Case numbers without a digit run contribute 0 to the
// running maximum.
func caseNumberSuffix(caseNumber string) int {
	run, ok := utils.FirstDigitRun(caseNumber)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(run)
	if err != nil {
		return 0
	}
	return n
}

// nextCaseNumber allocates the next human-facing case number for the
// event: max integer suffix across the event's existing case numbers,
// plus one, prefixed with the event's case label. Callers must hold the
// event posting lock; the read-max-then-increment sequence is only
// race-free under it.
func nextCaseNumber(tx *gorm.DB, event *Event) (string, error) {

	var caseNumbers []string
	if err := tx.Model(&Site{}).
		Where("event_id = ?", event.ID).
		Pluck("case_number", &caseNumbers).Error; err != nil {
		return "", err
	}

	max := 0
	for _, cn := range caseNumbers {
		if n := caseNumberSuffix(cn); n > max {
			max = n
		}
	}
	return fmt.Sprintf("%s%d", event.CaseLabel, max+1), nil
}
