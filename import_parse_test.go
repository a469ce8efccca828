package main

import (
	"strings"
	"testing"
)

func TestParseImportFileDiscardsBannerLine(t *testing.T) {
	file := strings.NewReader(
		"Legacy export generated 2026-05-02 -- do not edit\n" +
			"Name,Address,City,Zip Code,Work Type\n" +
			"Mary Johnson,118 Oak Street,Riverton,77801,Flood\n" +
			"Pete Alvarez,742 Cedar Lane,Riverton,77801,Trees\n")

	rows, err := parseImportFile(file)
	if err != nil {
		t.Fatalf("parseImportFile: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("row count = %d, want 2", len(rows))
	}
	if rows[0]["name"] != "Mary Johnson" || rows[0]["zip_code"] != "77801" {
		t.Errorf("first row = %v", rows[0])
	}
	if rows[1]["work_type"] != "Trees" {
		t.Errorf("second row = %v", rows[1])
	}
}

func TestParseImportFilePadsRaggedRows(t *testing.T) {
	file := strings.NewReader(
		"banner\n" +
			"Name,Address,City\n" +
			"Mary Johnson,118 Oak Street\n")

	rows, err := parseImportFile(file)
	if err != nil {
		t.Fatalf("parseImportFile: %v", err)
	}
	if rows[0]["city"] != "" {
		t.Errorf("missing cell should be empty, got %q", rows[0]["city"])
	}
}

func TestParseImportFileEmpty(t *testing.T) {
	if _, err := parseImportFile(strings.NewReader("banner only\n")); err == nil {
		t.Error("expected an error for a file without a header row")
	}
}

func TestParseImportFileQuotedCommas(t *testing.T) {
	file := strings.NewReader(
		"banner\n" +
			"Name,Status\n" +
			"Mary Johnson,\"Open, unassigned\"\n")

	rows, err := parseImportFile(file)
	if err != nil {
		t.Fatalf("parseImportFile: %v", err)
	}
	if rows[0]["status"] != "Open, unassigned" {
		t.Errorf("status = %q", rows[0]["status"])
	}
}
