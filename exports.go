package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/crisisops/relief_backend/config"
	"github.com/crisisops/relief_backend/models"
	"github.com/xuri/excelize/v2"
)

type exportContext struct {
	eventName string
	orgNames  map[int]string
}

func loadExportContext(ctx context.Context, eventId int) (*exportContext, error) {
	event, err := models.GetEvent(ctx, eventId)
	if err != nil {
		return nil, err
	}
	orgNames, err := models.OrganizationNames(ctx)
	if err != nil {
		return nil, err
	}
	return &exportContext{eventName: event.Name, orgNames: orgNames}, nil
}

// exportCSVHandler streams an event's work orders as CSV, batch by batch,
// so a large event never buffers fully in memory. The redacted variant is
// safe to hand to organizations that have not claimed the records.
func exportCSVHandler(redacted bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		eventId, ok := pathId(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()

		ec, err := loadExportContext(ctx, eventId)
		if err != nil {
			respondError(c, err)
			return
		}

		filename := fmt.Sprintf("event_%d_sites.csv", eventId)
		if redacted {
			filename = fmt.Sprintf("event_%d_sites_redacted.csv", eventId)
		}
		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Header("Content-Disposition", "attachment; filename="+filename)
		c.Status(http.StatusOK)

		writer := csv.NewWriter(c.Writer)
		if err := writer.Write(models.CSVHeader()); err != nil {
			_ = c.Error(err)
			return
		}

		err = models.FindSitesInBatches(ctx, eventId, func(sites []models.Site) error {
			for i := range sites {
				var row []string
				if redacted {
					row = sites[i].RedactedCSVRow(ec.eventName, ec.orgNames)
				} else {
					row = sites[i].CSVRow(ec.eventName, ec.orgNames)
				}
				if err := writer.Write(row); err != nil {
					return err
				}
			}
			writer.Flush()
			return writer.Error()
		})
		if err != nil {
			// Headers are already out; all we can do is log and cut the stream.
			config.LogError(logger, "exports.go", "exportCSVHandler", "streaming export failed", eventId, err)
			return
		}

		writer.Flush()
	}
}

// exportExcelHandler builds a workbook with the same column schema as the
// full CSV export.
func exportExcelHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		eventId, ok := pathId(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()

		ec, err := loadExportContext(ctx, eventId)
		if err != nil {
			respondError(c, err)
			return
		}

		f := excelize.NewFile()
		sheetName := "Sheet1"
		if _, err := f.NewSheet(sheetName); err != nil {
			respondError(c, err)
			return
		}

		if err := writeExcelRow(f, sheetName, 1, models.CSVHeader()); err != nil {
			respondError(c, err)
			return
		}

		rowNo := 2
		err = models.FindSitesInBatches(ctx, eventId, func(sites []models.Site) error {
			for i := range sites {
				if err := writeExcelRow(f, sheetName, rowNo, sites[i].CSVRow(ec.eventName, ec.orgNames)); err != nil {
					return err
				}
				rowNo++
			}
			return nil
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=event_%d_sites.xlsx", eventId))
		if err := f.Write(c.Writer); err != nil {
			_ = c.Error(err)
		}
	}
}

func writeExcelRow(f *excelize.File, sheetName string, rowNo int, values []string) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, rowNo)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, v); err != nil {
			return err
		}
	}
	return nil
}
