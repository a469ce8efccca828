// import-sites reconciles a legacy CSV export into an event from the
// command line, without going through the HTTP surface.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//	  go run ./cmd/import-sites --event-id 1 --file sites.csv \
//	  --dup-check-method name_lat_lng --dup-handler references
//
// The file is expected in the legacy export layout: one banner line, then
// the header, then data rows.
package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/crisisops/relief_backend/config"
	"github.com/crisisops/relief_backend/workflow"
)

func main() {
	eventId := flag.Int("event-id", 0, "Required: target event id")
	filePath := flag.String("file", "", "Required: path to the CSV file")
	method := flag.String("dup-check-method", "name_lat_lng", "Duplicate check method: name_lat_lng or lat_lng")
	handler := flag.String("dup-handler", "references", "Duplicate handler: references, references_and_work_type or replace_all")
	flag.Parse()

	if *eventId <= 0 {
		fmt.Fprintln(os.Stderr, "--event-id is required")
		os.Exit(1)
	}
	if strings.TrimSpace(*filePath) == "" {
		fmt.Fprintln(os.Stderr, "--file is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	file, err := os.Open(*filePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open file: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	rows, err := readRows(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse file: %v\n", err)
		os.Exit(1)
	}

	summary, err := workflow.Reconcile(context.Background(), *eventId, rows, *method, *handler)
	if err != nil {
		fmt.Fprintf(os.Stderr, "import failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%d created, %d updated, %d rejected\n", summary.Created, summary.Updated, summary.Rejected)
	for _, outcome := range summary.Outcomes {
		if outcome.Kind == workflow.OutcomeRejected {
			fmt.Printf("row %d rejected: %s\n", outcome.Row, outcome.Reason)
		}
	}
}

func readRows(file io.Reader) ([]map[string]string, error) {
	buffered := bufio.NewReader(file)
	// Banner line above the header; discard.
	if _, err := buffered.ReadString('\n'); err != nil && err != io.EOF {
		return nil, err
	}

	reader := csv.NewReader(buffered)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("no header row: %w", err)
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
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
