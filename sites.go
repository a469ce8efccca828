package main

import (
	"bufio"
	"encoding/csv"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/crisisops/relief_backend/config"
	"github.com/crisisops/relief_backend/models"
	"github.com/crisisops/relief_backend/utils"
	"github.com/crisisops/relief_backend/workflow"
)

// respondError maps domain errors onto HTTP statuses. Duplicate hits are a
// conflict and carry the matched records so the client can offer a
// skip-and-resubmit flow.
func respondError(c *gin.Context, err error) {
	var dup *models.DuplicateError
	if errors.As(err, &dup) {
		c.JSON(http.StatusConflict, gin.H{
			"error":   dup.Error(),
			"matches": dup.Matches,
		})
		return
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(validationErrs)})
		return
	}

	switch {
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, utils.ErrorConfiguration):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func createEventHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewEvent
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		event, err := models.CreateEvent(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, event)
	}
}

func listEventsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		events, err := models.GetEvents(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, events)
	}
}

func getEventHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		event, err := models.GetEvent(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, event)
	}
}

func updateEventHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewEvent
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		event, err := models.UpdateEvent(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, event)
	}
}

func createUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewUser
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		user, err := models.CreateUser(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, user)
	}
}

func getUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		user, err := models.GetUser(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

func createOrganizationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewOrganization
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		org, err := models.CreateOrganization(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, org)
	}
}

func getOrganizationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		org, err := models.GetOrganization(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, org)
	}
}

func createSiteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewSite
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		site, err := models.CreateSite(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, site)
	}
}

func getSiteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		site, err := models.GetSite(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, site)
	}
}

func updateSiteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewSite
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		site, err := models.UpdateSite(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, site)
	}
}

func listSitesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		eventId, ok := pathId(c)
		if !ok {
			return
		}
		sites, err := models.ListSites(c.Request.Context(), eventId, c.Query("order"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, sites)
	}
}

// checkDuplicatesHandler runs the duplicate matcher without persisting
// anything, for pre-submission warnings in the intake form.
func checkDuplicatesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewSite
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		matches, err := models.CheckDuplicates(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"matches": matches})
	}
}

func eventStatsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		eventId, ok := pathId(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()

		statuses, err := models.StatusCounts(ctx, eventId)
		if err != nil {
			respondError(c, err)
			return
		}
		workTypes, err := models.WorkTypeCounts(ctx, eventId)
		if err != nil {
			respondError(c, err)
			return
		}
		statusValues, err := models.DistinctStatuses(ctx, eventId)
		if err != nil {
			respondError(c, err)
			return
		}
		workTypeValues, err := models.DistinctWorkTypes(ctx, eventId)
		if err != nil {
			respondError(c, err)
			return
		}
		today, err := models.TodaysCreateAndEditCount(ctx, eventId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"statuses":                 statuses,
			"work_types":               workTypes,
			"status_values":            statusValues,
			"work_type_values":         workTypeValues,
			"todays_creates_and_edits": today,
		})
	}
}

// importSitesHandler accepts a multipart CSV upload and reconciles it into
// the event. Legacy exports carry a banner line above the header; it is
// discarded before parsing.
func importSitesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		eventId, ok := pathId(c)
		if !ok {
			return
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			respondError(c, err)
			return
		}
		defer file.Close()

		rows, err := parseImportFile(file)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		summary, err := workflow.Reconcile(
			c.Request.Context(),
			eventId,
			rows,
			c.Query("dup_check_method"),
			c.Query("dup_handler"),
		)
		if err != nil {
			respondError(c, err)
			return
		}

		logger.Infof("import of %s finished for event %d", fileHeader.Filename, eventId)
		c.JSON(http.StatusOK, summary)
	}
}

// parseImportFile reads the upload into header-keyed rows. The first line
// is discarded unread, the second is the header. Ragged rows are padded
// with empties rather than rejected.
func parseImportFile(file io.Reader) ([]map[string]string, error) {
	buffered := bufio.NewReader(file)
	if _, err := buffered.ReadString('\n'); err != nil && err != io.EOF {
		return nil, err
	}

	reader := csv.NewReader(buffered)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.New("file has no header row")
	} else if err != nil {
		return nil, err
	}
	keys := make([]string, len(header))
	for i, cell := range header {
		keys[i] = workflow.NormalizeHeader(cell)
	}

	var rows []map[string]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}
		row := make(map[string]string, len(keys))
		for i, key := range keys {
			if key == "" {
				continue
			}
			if i < len(record) {
				row[key] = strings.TrimSpace(record[i])
			} else {
				row[key] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
