package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/crisisops/relief_backend/config"
	"github.com/crisisops/relief_backend/models"
	"github.com/crisisops/relief_backend/utils"
	"github.com/sirupsen/logrus"
)

// DupCheckMethod selects how an incoming row is matched against existing
// sites before the row is applied.
type DupCheckMethod string

// DupHandler selects what happens to a matched site when a row hits one.
type DupHandler string

const (
	// MethodNameLatLng matches on exact name plus exact coordinates.
	MethodNameLatLng DupCheckMethod = "name_lat_lng"
	// MethodLatLng matches on exact coordinates alone.
	MethodLatLng DupCheckMethod = "lat_lng"

	// HandlerReferences refreshes only the org reference fields.
	HandlerReferences DupHandler = "references"
	// HandlerReferencesAndWorkType additionally refreshes the work type.
	HandlerReferencesAndWorkType DupHandler = "references_and_work_type"
	// HandlerReplaceAll overwrites every mutable field from the row.
	HandlerReplaceAll DupHandler = "replace_all"
)

func ParseDupCheckMethod(s string) (DupCheckMethod, error) {
	switch DupCheckMethod(s) {
	case MethodNameLatLng, MethodLatLng:
		return DupCheckMethod(s), nil
	}
	return "", fmt.Errorf("%w: unknown duplicate check method %q", utils.ErrorConfiguration, s)
}

func ParseDupHandler(s string) (DupHandler, error) {
	switch DupHandler(s) {
	case HandlerReferences, HandlerReferencesAndWorkType, HandlerReplaceAll:
		return DupHandler(s), nil
	}
	return "", fmt.Errorf("%w: unknown duplicate handler %q", utils.ErrorConfiguration, s)
}

type OutcomeKind string

const (
	OutcomeCreated  OutcomeKind = "created"
	OutcomeUpdated  OutcomeKind = "updated"
	OutcomeRejected OutcomeKind = "rejected"
)

// ReconciliationOutcome records what happened to a single incoming row.
// Row is the 1-based position within the submitted batch.
type ReconciliationOutcome struct {
	Row        int         `json:"row"`
	Kind       OutcomeKind `json:"kind"`
	SiteId     int         `json:"site_id,omitempty"`
	CaseNumber string      `json:"case_number,omitempty"`
	Reason     string      `json:"reason,omitempty"`
}

// ReconciliationSummary aggregates outcomes for the response payload.
type ReconciliationSummary struct {
	Created  int                     `json:"created"`
	Updated  int                     `json:"updated"`
	Rejected int                     `json:"rejected"`
	Outcomes []ReconciliationOutcome `json:"outcomes"`
}

const importLockTTL = 30 * time.Second

// Reconcile applies a batch of incoming rows against the existing site
// records. Method and handler are validated before any row is touched; a
// bad pair rejects the whole batch. Rows are then processed independently
// and each gets its own outcome, so one bad row never sinks the rest.
//
// A per-event redis lock serializes concurrent imports for the same event.
// Matching is deliberately unscoped across events: a record imported twice
// under different events is still the same physical site.
func Reconcile(ctx context.Context, eventId int, rows []map[string]string, method string, handler string) (*ReconciliationSummary, error) {
	logger := config.GetLogger()

	checkMethod, err := ParseDupCheckMethod(method)
	if err != nil {
		return nil, err
	}
	dupHandler, err := ParseDupHandler(handler)
	if err != nil {
		return nil, err
	}
	if _, err := models.GetEvent(ctx, eventId); err != nil {
		return nil, err
	}

	lock, err := obtainImportLock(ctx, eventId)
	if err != nil {
		return nil, err
	}
	if lock != nil {
		defer func() { _ = lock.Release(ctx) }()
	}

	summary := &ReconciliationSummary{}
	for i, row := range rows {
		outcome := reconcileRow(ctx, eventId, row, checkMethod, dupHandler)
		outcome.Row = i + 1
		switch outcome.Kind {
		case OutcomeCreated:
			summary.Created++
		case OutcomeUpdated:
			summary.Updated++
		case OutcomeRejected:
			summary.Rejected++
		}
		summary.Outcomes = append(summary.Outcomes, outcome)
	}

	fields := logrus.Fields{
		"event_id": eventId,
		"rows":     len(rows),
		"created":  summary.Created,
		"updated":  summary.Updated,
		"rejected": summary.Rejected,
	}
	if cid, ok := utils.GetCorrelationIdFromContext(ctx); ok {
		fields["correlation_id"] = cid
	}
	if name, ok := utils.GetUserNameFromContext(ctx); ok {
		fields["user"] = name
	}
	logger.WithFields(fields).Info("reconciliation finished")
	return summary, nil
}

func reconcileRow(ctx context.Context, eventId int, row map[string]string, method DupCheckMethod, handler DupHandler) ReconciliationOutcome {
	input := MapRow(row, eventId)
	if err := validateRow(input); err != nil {
		return ReconciliationOutcome{Kind: OutcomeRejected, Reason: err.Error()}
	}

	existing, err := searchDuplicate(ctx, input, method)
	if err != nil {
		return ReconciliationOutcome{Kind: OutcomeRejected, Reason: err.Error()}
	}

	if existing != nil {
		if err := applyHandler(ctx, existing, input, handler); err != nil {
			return ReconciliationOutcome{Kind: OutcomeRejected, SiteId: existing.ID, CaseNumber: existing.CaseNumber, Reason: err.Error()}
		}
		return ReconciliationOutcome{Kind: OutcomeUpdated, SiteId: existing.ID, CaseNumber: existing.CaseNumber}
	}

	site, err := models.CreateSite(ctx, input)
	if err != nil {
		var dup *models.DuplicateError
		if errors.As(err, &dup) {
			return ReconciliationOutcome{Kind: OutcomeRejected, Reason: dup.Error()}
		}
		return ReconciliationOutcome{Kind: OutcomeRejected, Reason: err.Error()}
	}
	return ReconciliationOutcome{Kind: OutcomeCreated, SiteId: site.ID, CaseNumber: site.CaseNumber}
}

// searchDuplicate looks for the row's exact-match counterpart. Both
// methods need coordinates; a row without them can only be created.
func searchDuplicate(ctx context.Context, input *models.NewSite, method DupCheckMethod) (*models.Site, error) {
	if input.Latitude == nil || input.Longitude == nil {
		return nil, nil
	}

	db := config.GetDB().WithContext(ctx)
	query := db.Where("latitude = ? AND longitude = ?", *input.Latitude, *input.Longitude)
	if method == MethodNameLatLng {
		query = query.Where("name = ?", input.Name)
	}

	var sites []models.Site
	if err := query.Limit(1).Find(&sites).Error; err != nil {
		return nil, err
	}
	if len(sites) == 0 {
		return nil, nil
	}
	return &sites[0], nil
}

func applyHandler(ctx context.Context, existing *models.Site, input *models.NewSite, handler DupHandler) error {
	db := config.GetDB().WithContext(ctx)

	switch handler {
	case HandlerReferences:
		return db.Model(existing).Updates(map[string]interface{}{
			"claimed_by":  input.ClaimedBy,
			"reported_by": input.ReportedBy,
		}).Error

	case HandlerReferencesAndWorkType:
		// Status stays untouched: field teams advance it between imports
		// and a re-import must not roll that back.
		return db.Model(existing).Updates(map[string]interface{}{
			"claimed_by":  input.ClaimedBy,
			"reported_by": input.ReportedBy,
			"work_type":   input.WorkType,
		}).Error

	case HandlerReplaceAll:
		// Full update path so derived columns are recomputed. The matched
		// site keeps its event; matching is cross-event but records never
		// migrate between events.
		replacement := *input
		replacement.EventId = existing.EventId
		replacement.CaseNumber = existing.CaseNumber
		replacement.SkipDuplicates = true
		_, err := models.UpdateSite(ctx, existing.ID, &replacement)
		return err
	}
	return fmt.Errorf("%w: unknown duplicate handler %q", utils.ErrorConfiguration, handler)
}

func obtainImportLock(ctx context.Context, eventId int) (*redislock.Lock, error) {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	if locker == nil {
		// Redis is optional; the per-event posting lock inside CreateSite
		// still serializes case number allocation.
		logger.Warnf("redis lock not ready; importing event %d without import lock", eventId)
		return nil, nil
	}
	lock, err := locker.Obtain(ctx, fmt.Sprintf("site-import:%d", eventId), importLockTTL, nil)
	if err == redislock.ErrNotObtained {
		return nil, errors.New("another import for this event is already running")
	} else if err != nil {
		config.LogError(logger, "workflow", "obtainImportLock", "Error obtaining import lock", eventId, err)
		return nil, err
	}
	return lock, nil
}
