package models

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/crisisops/relief_backend/config"
	"github.com/crisisops/relief_backend/utils"
	"gorm.io/gorm"
)

// ExtraFields is the open bag of domain attributes (flood height, trees
// down, volunteer counts...) that rides along with the fixed schema.
// Unrecognized keys are kept as-is so future columns survive a round trip.
type ExtraFields map[string]string

func (f ExtraFields) Value() (driver.Value, error) {
	if len(f) == 0 {
		return nil, nil
	}
	return json.Marshal(f)
}

func (f *ExtraFields) Scan(value interface{}) error {
	if value == nil {
		*f = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		if len(v) == 0 {
			*f = nil
			return nil
		}
		return json.Unmarshal(v, f)
	case string:
		if v == "" {
			*f = nil
			return nil
		}
		return json.Unmarshal([]byte(v), f)
	default:
		return fmt.Errorf("cannot scan %T into ExtraFields", value)
	}
}

// Site is one work-order record: a physical incident reported at an
// address within an event. The metaphone and normalized-phone columns are
// derived search shadows; they are recomputed from their source fields on
// every save and never written directly by callers.
type Site struct {
	ID         int    `gorm:"primary_key" json:"id"`
	EventId    int    `gorm:"index;not null" json:"event_id" binding:"required"`
	CaseNumber string `gorm:"size:20;index" json:"case_number"`

	Name   string `gorm:"size:200;not null" json:"name" binding:"required"`
	Phone1 string `gorm:"size:30;index" json:"phone1"`
	Phone2 string `gorm:"size:30;index" json:"phone2"`

	Address string   `gorm:"size:255;not null" json:"address" binding:"required"`
	City    string   `gorm:"size:100" json:"city"`
	County  string   `gorm:"size:100" json:"county"`
	State   string   `gorm:"size:50" json:"state"`
	ZipCode string   `gorm:"size:20" json:"zip_code"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`

	// Public-facing coordinates, fixed at creation (see applyBlurredCoordinates).
	BlurredLatitude  *float64 `json:"blurred_latitude"`
	BlurredLongitude *float64 `json:"blurred_longitude"`

	NameMetaphone    string `gorm:"size:200;index" json:"-"`
	CityMetaphone    string `gorm:"size:100" json:"-"`
	CountyMetaphone  string `gorm:"size:100" json:"-"`
	AddressMetaphone string `gorm:"size:255" json:"-"`
	Phone1Normalized string `gorm:"size:20;index" json:"-"`
	Phone2Normalized string `gorm:"size:20" json:"-"`

	Status      string    `gorm:"size:50;not null" json:"status" binding:"required"`
	WorkType    string    `gorm:"size:100;not null" json:"work_type" binding:"required"`
	RequestDate time.Time `json:"request_date"`

	ClaimedBy  int `gorm:"index" json:"claimed_by"`
	ReportedBy int `gorm:"index" json:"reported_by"`
	UserId     int `gorm:"index" json:"user_id"`

	ExtraFields ExtraFields `gorm:"type:json" json:"extra_fields"`

	// Request-scoped override; not persisted.
	SkipDuplicates bool `gorm:"-" json:"skip_duplicates"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSite struct {
	EventId    int    `json:"event_id" binding:"required"`
	CaseNumber string `json:"case_number"`

	Name   string `json:"name" binding:"required"`
	Phone1 string `json:"phone1"`
	Phone2 string `json:"phone2"`

	Address   string   `json:"address" binding:"required"`
	City      string   `json:"city"`
	County    string   `json:"county"`
	State     string   `json:"state"`
	ZipCode   string   `json:"zip_code"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`

	Status      string     `json:"status" binding:"required"`
	WorkType    string     `json:"work_type" binding:"required"`
	RequestDate *time.Time `json:"request_date"`

	ClaimedBy  int `json:"claimed_by"`
	ReportedBy int `json:"reported_by"`

	ExtraFields ExtraFields `json:"extra_fields"`

	SkipDuplicates bool `json:"skip_duplicates"`
}

func (s *Site) FullStreetAddress() string {
	return fmt.Sprintf("%s, %s, %s", s.Address, s.City, s.State)
}

// deriveSearchFields recomputes every derived column from its source field.
// Must run immediately before any persistence; stale shadows would make
// duplicate detection miss.
func (s *Site) deriveSearchFields() {
	s.NameMetaphone = utils.Metaphone(s.Name)
	s.CityMetaphone = utils.Metaphone(s.City)
	s.CountyMetaphone = utils.Metaphone(s.County)
	s.AddressMetaphone = utils.Metaphone(s.Address)
	s.Phone1Normalized = utils.NormalizePhone(s.Phone1)
	s.Phone2Normalized = utils.NormalizePhone(s.Phone2)
	if s.RequestDate.IsZero() {
		s.RequestDate = time.Now().UTC()
	}
}

func mapNewSite(input *NewSite) *Site {
	site := &Site{
		EventId:    input.EventId,
		CaseNumber: input.CaseNumber,
		Name:       input.Name,
		Phone1:     input.Phone1,
		Phone2:     input.Phone2,
		Address:    input.Address,
		City:       input.City,
		County:     input.County,
		State:      input.State,
		ZipCode:    input.ZipCode,
		Latitude:   input.Latitude,
		Longitude:  input.Longitude,
		Status:     input.Status,
		WorkType:   input.WorkType,
		ClaimedBy:  input.ClaimedBy,
		ReportedBy: input.ReportedBy,

		ExtraFields:    input.ExtraFields,
		SkipDuplicates: input.SkipDuplicates,
	}
	if input.RequestDate != nil {
		site.RequestDate = *input.RequestDate
	}
	return site
}

// CreateSite validates the event, derives search fields, blurs the
// coordinates, allocates a case number, runs the duplicate gate and
// persists. Everything after validation happens under the event's posting
// lock so that two concurrent submissions of the same incident cannot both
// slip past the gate or pull the same case number.
func CreateSite(ctx context.Context, input *NewSite) (*Site, error) {

	event, err := GetEvent(ctx, input.EventId)
	if err != nil {
		return nil, err
	}

	site := mapNewSite(input)
	if userId, ok := utils.GetUserIdFromContext(ctx); ok {
		site.UserId = userId
	}
	if site.ReportedBy == 0 {
		if orgId, ok := utils.GetOrganizationIdFromContext(ctx); ok {
			site.ReportedBy = orgId
		}
	}
	site.deriveSearchFields()
	site.applyBlurredCoordinates()

	skip := site.SkipDuplicates
	if v, ok := utils.GetSkipDuplicatesFromContext(ctx); ok && v {
		skip = true
	}

	// GET_LOCK is connection-scoped, not transaction-scoped: pin one
	// connection, take the lock on it, and release on that same connection
	// only after the transaction has committed. A competing writer can
	// then never run its duplicate scan or case-number read before this
	// row is visible.
	db := config.GetDB()
	err = db.Connection(func(conn *gorm.DB) error {
		if err := acquireEventPostingLock(conn, site.EventId); err != nil {
			return err
		}
		defer releaseEventPostingLock(conn, site.EventId)

		return conn.Transaction(func(tx *gorm.DB) error {
			if site.CaseNumber == "" {
				number, err := nextCaseNumber(tx.WithContext(ctx), event)
				if err != nil {
					return err
				}
				site.CaseNumber = number
			}

			if !skip {
				dups, err := findDuplicates(tx.WithContext(ctx), site)
				if err != nil {
					return err
				}
				if len(dups) > 0 {
					return &DuplicateError{Matches: dups}
				}
			}

			return tx.WithContext(ctx).Create(site).Error
		})
	})
	if err != nil {
		return nil, err
	}
	return site, nil
}

// UpdateSite re-derives search fields and, unless bypassed, re-runs the
// duplicate gate against every other record in the event. Blurred
// coordinates are only recomputed when the true coordinates changed.
func UpdateSite(ctx context.Context, id int, input *NewSite) (*Site, error) {

	existing, err := utils.FetchModel[Site](ctx, id)
	if err != nil {
		return nil, err
	}
	if input.EventId != 0 && input.EventId != existing.EventId {
		return nil, errors.New("a work order cannot move between events")
	}

	site := mapNewSite(input)
	site.ID = existing.ID
	site.EventId = existing.EventId
	site.UserId = existing.UserId
	if site.CaseNumber == "" {
		site.CaseNumber = existing.CaseNumber
	}
	site.deriveSearchFields()

	if coordinateChanged(existing.Latitude, site.Latitude) ||
		coordinateChanged(existing.Longitude, site.Longitude) {
		site.applyBlurredCoordinates()
	} else {
		site.BlurredLatitude = existing.BlurredLatitude
		site.BlurredLongitude = existing.BlurredLongitude
	}

	skip := site.SkipDuplicates
	if v, ok := utils.GetSkipDuplicatesFromContext(ctx); ok && v {
		skip = true
	}

	// Same pinned-connection discipline as CreateSite: the posting lock
	// must outlive the commit.
	db := config.GetDB()
	err = db.Connection(func(conn *gorm.DB) error {
		if err := acquireEventPostingLock(conn, site.EventId); err != nil {
			return err
		}
		defer releaseEventPostingLock(conn, site.EventId)

		return conn.Transaction(func(tx *gorm.DB) error {
			if !skip {
				dups, err := findDuplicates(tx.WithContext(ctx), site)
				if err != nil {
					return err
				}
				if len(dups) > 0 {
					return &DuplicateError{Matches: dups}
				}
			}

			return tx.WithContext(ctx).Model(existing).Select("*").
				Omit("id", "event_id", "user_id", "created_at").
				Updates(site).Error
		})
	})
	if err != nil {
		return nil, err
	}
	return utils.FetchModel[Site](ctx, id)
}

func coordinateChanged(before, after *float64) bool {
	if before == nil && after == nil {
		return false
	}
	if before == nil || after == nil {
		return true
	}
	return !utils.CoordinatesEqual(*before, *after)
}

func GetSite(ctx context.Context, id int) (*Site, error) {
	return utils.FetchModel[Site](ctx, id)
}

// ListSites returns an event's records under one of the fixed orderings
// used by the review screens.
func ListSites(ctx context.Context, eventId int, order string) ([]*Site, error) {

	orderClauses := map[string]string{
		"county":    "county",
		"state":     "state",
		"name_asc":  "name ASC",
		"name_desc": "name DESC",
		"date_asc":  "request_date ASC",
		"date_desc": "request_date DESC",
	}
	clause, ok := orderClauses[order]
	if !ok {
		clause = "case_number"
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx)
	if eventId > 0 {
		dbCtx = dbCtx.Where("event_id = ?", eventId)
	}
	var results []*Site
	if err := dbCtx.Order(clause).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
