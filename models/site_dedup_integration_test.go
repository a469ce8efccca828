package models_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/crisisops/relief_backend/config"
	"github.com/crisisops/relief_backend/models"
	"github.com/crisisops/relief_backend/utils"
	"github.com/crisisops/relief_backend/workflow"
)

// End-to-end semantics of intake: duplicate gate, case number sequencing,
// bypass and reconciliation. Requires Docker.
//
// Usage: INTEGRATION_TESTS=1 go test ./models -run SiteIntake -v

func TestSiteIntakeDuplicateGateAndCaseNumbers(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := setupIntegrationEnv(t)

	event, err := models.CreateEvent(ctx, &models.NewEvent{Name: "Test Flood", CaseLabel: "FL"})
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	first, err := models.CreateSite(ctx, &models.NewSite{
		EventId:   event.ID,
		Name:      "Mary Johnson",
		Phone1:    "(212) 555-0123",
		Address:   "118 Oak Street",
		City:      "Riverton",
		County:    "River",
		State:     "TX",
		ZipCode:   "77801",
		Latitude:  utils.NewFloat(30.6213),
		Longitude: utils.NewFloat(-96.3421),
		Status:    "Open, unassigned",
		WorkType:  "Flood",
	})
	if err != nil {
		t.Fatalf("CreateSite(first): %v", err)
	}
	if first.CaseNumber != "FL1" {
		t.Errorf("first case number = %q, want FL1", first.CaseNumber)
	}
	if first.BlurredLatitude == nil || first.BlurredLongitude == nil {
		t.Error("blurred coordinates missing after create")
	}

	// The posting lock is connection-scoped; a save must hand it back
	// before returning or a pooled connection keeps it and later saves
	// for the event stall for the full GET_LOCK timeout.
	var lockHolder *uint64
	lockName := fmt.Sprintf("site-posting:%d", event.ID)
	if err := config.GetDB().Raw("SELECT IS_USED_LOCK(?)", lockName).Scan(&lockHolder).Error; err != nil {
		t.Fatalf("IS_USED_LOCK: %v", err)
	}
	if lockHolder != nil {
		t.Fatalf("posting lock %s still held by connection %d after save", lockName, *lockHolder)
	}

	// Same name, different spelling, different address: the metaphone
	// signal alone must flag it.
	dupInput := &models.NewSite{
		EventId:  event.ID,
		Name:     "Mari Jonson",
		Address:  "9 Elm Court",
		City:     "Springdale",
		Status:   "Open, unassigned",
		WorkType: "Flood",
	}
	_, err = models.CreateSite(ctx, dupInput)
	var dup *models.DuplicateError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateError, got %v", err)
	}
	if len(dup.Matches) != 1 || dup.Matches[0].CaseNumber != "FL1" {
		t.Errorf("matches = %+v, want FL1", dup.Matches)
	}

	// Reviewer resubmits with the check bypassed.
	dupInput.SkipDuplicates = true
	second, err := models.CreateSite(ctx, dupInput)
	if err != nil {
		t.Fatalf("CreateSite(bypass): %v", err)
	}
	if second.CaseNumber != "FL2" {
		t.Errorf("bypassed case number = %q, want FL2", second.CaseNumber)
	}

	// Unrelated record passes clean and continues the sequence.
	third, err := models.CreateSite(ctx, &models.NewSite{
		EventId:   event.ID,
		Name:      "Pete Alvarez",
		Phone1:    "(212) 555-0188",
		Address:   "742 Cedar Lane",
		City:      "Riverton",
		State:     "TX",
		ZipCode:   "77801",
		Latitude:  utils.NewFloat(30.9055),
		Longitude: utils.NewFloat(-96.9122),
		Status:    "Open, unassigned",
		WorkType:  "Trees",
	})
	if err != nil {
		t.Fatalf("CreateSite(third): %v", err)
	}
	if third.CaseNumber != "FL3" {
		t.Errorf("third case number = %q, want FL3", third.CaseNumber)
	}

	// A differently formatted phone number still hits the normalized signal.
	matches, err := models.CheckDuplicates(ctx, &models.NewSite{
		EventId:  event.ID,
		Name:     "Somebody Else",
		Phone1:   "2125550188",
		Address:  "1 Nowhere Road",
		Status:   "Open, unassigned",
		WorkType: "Flood",
	})
	if err != nil {
		t.Fatalf("CheckDuplicates: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != third.ID {
		t.Errorf("phone matches = %+v, want site %d", matches, third.ID)
	}

	// An update that keeps the coordinates must keep the blurred pin.
	blurredBefore := *third.BlurredLatitude
	updated, err := models.UpdateSite(ctx, third.ID, &models.NewSite{
		EventId:   event.ID,
		Name:      "Pete Alvarez",
		Phone1:    "(212) 555-0188",
		Address:   "742 Cedar Lane",
		City:      "Riverton",
		State:     "TX",
		ZipCode:   "77801",
		Latitude:  utils.NewFloat(30.9055),
		Longitude: utils.NewFloat(-96.9122),
		Status:    "Open, assigned",
		WorkType:  "Trees",
	})
	if err != nil {
		t.Fatalf("UpdateSite: %v", err)
	}
	if updated.Status != "Open, assigned" {
		t.Errorf("status = %q after update", updated.Status)
	}
	if updated.BlurredLatitude == nil || *updated.BlurredLatitude != blurredBefore {
		t.Errorf("blurred latitude drifted on a coordinate-preserving edit: %v -> %v", blurredBefore, updated.BlurredLatitude)
	}
}

func TestSiteIntakeReconciliation(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := setupIntegrationEnv(t)

	event, err := models.CreateEvent(ctx, &models.NewEvent{Name: "Import Flood", CaseLabel: "IF"})
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	org, err := models.CreateOrganization(ctx, &models.NewOrganization{Name: "Hands On Relief"})
	if err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}

	rows := []map[string]string{
		{
			"name":      "Mary Johnson",
			"address":   "118 Oak Street",
			"city":      "Riverton",
			"latitude":  "30.6213",
			"longitude": "-96.3421",
			"status":    "Open, unassigned",
			"work_type": "Flood",
		},
		{
			"name":      "Pete Alvarez",
			"address":   "742 Cedar Lane",
			"city":      "Riverton",
			"latitude":  "30.9055",
			"longitude": "-96.9122",
			"status":    "Open, unassigned",
			"work_type": "Trees",
		},
	}

	// A misconfigured pair must reject the whole batch up front.
	if _, err := workflow.Reconcile(ctx, event.ID, rows, "name_lat_lng", "merge"); !errors.Is(err, utils.ErrorConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}

	summary, err := workflow.Reconcile(ctx, event.ID, rows, "name_lat_lng", "references")
	if err != nil {
		t.Fatalf("Reconcile(initial): %v", err)
	}
	if summary.Created != 2 || summary.Updated != 0 {
		t.Fatalf("initial import: %+v", summary)
	}

	// Re-importing the same file with a claimer set matches every row and
	// refreshes references instead of creating duplicates.
	for _, row := range rows {
		row["claimed_by"] = fmt.Sprint(org.ID)
	}
	summary, err = workflow.Reconcile(ctx, event.ID, rows, "name_lat_lng", "references")
	if err != nil {
		t.Fatalf("Reconcile(repeat): %v", err)
	}
	if summary.Updated != 2 || summary.Created != 0 {
		t.Fatalf("repeat import: %+v", summary)
	}

	sites, err := models.ListSites(ctx, event.ID, "")
	if err != nil {
		t.Fatalf("ListSites: %v", err)
	}
	if len(sites) != 2 {
		t.Fatalf("site count = %d, want 2", len(sites))
	}
	for _, s := range sites {
		if s.ClaimedBy != org.ID {
			t.Errorf("site %s claimed_by = %d, want %d", s.CaseNumber, s.ClaimedBy, org.ID)
		}
	}
}

func TestSiteIntakeReconciliationPolicies(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := setupIntegrationEnv(t)

	event, err := models.CreateEvent(ctx, &models.NewEvent{Name: "Policy Flood", CaseLabel: "PF"})
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	org, err := models.CreateOrganization(ctx, &models.NewOrganization{Name: "Rebuild Together"})
	if err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}

	// Two rows sharing coordinates in one batch: under lat_lng the second
	// matches the record the first just created.
	batch := []map[string]string{
		{
			"name":      "Ana Ruiz",
			"address":   "12 Birch Road",
			"city":      "Riverton",
			"latitude":  "31.1001",
			"longitude": "-97.2002",
			"status":    "Open, unassigned",
			"work_type": "Flood",
		},
		{
			"name":      "A. Ruiz",
			"address":   "12 Birch Rd",
			"city":      "Riverton",
			"latitude":  "31.1001",
			"longitude": "-97.2002",
			"status":    "Open, unassigned",
			"work_type": "Flood",
		},
	}
	summary, err := workflow.Reconcile(ctx, event.ID, batch, "lat_lng", "references")
	if err != nil {
		t.Fatalf("Reconcile(lat_lng): %v", err)
	}
	if summary.Created != 1 || summary.Updated != 1 {
		t.Fatalf("lat_lng batch: %+v", summary)
	}
	if summary.Outcomes[0].Kind != workflow.OutcomeCreated ||
		summary.Outcomes[1].Kind != workflow.OutcomeUpdated ||
		summary.Outcomes[1].SiteId != summary.Outcomes[0].SiteId {
		t.Fatalf("lat_lng outcomes: %+v", summary.Outcomes)
	}
	siteId := summary.Outcomes[0].SiteId
	caseBefore := summary.Outcomes[0].CaseNumber

	// references_and_work_type refreshes the work type and org references
	// but must leave the status field teams have since advanced alone.
	row := map[string]string{
		"name":       "Ana Ruiz",
		"address":    "12 Birch Road",
		"city":       "Riverton",
		"latitude":   "31.1001",
		"longitude":  "-97.2002",
		"status":     "Closed",
		"work_type":  "Trees",
		"claimed_by": fmt.Sprint(org.ID),
	}
	summary, err = workflow.Reconcile(ctx, event.ID, []map[string]string{row}, "lat_lng", "references_and_work_type")
	if err != nil {
		t.Fatalf("Reconcile(references_and_work_type): %v", err)
	}
	if summary.Updated != 1 {
		t.Fatalf("references_and_work_type: %+v", summary)
	}
	got, err := models.GetSite(ctx, siteId)
	if err != nil {
		t.Fatalf("GetSite: %v", err)
	}
	if got.WorkType != "Trees" || got.ClaimedBy != org.ID {
		t.Errorf("references not refreshed: work_type=%q claimed_by=%d", got.WorkType, got.ClaimedBy)
	}
	if got.Status != "Open, unassigned" {
		t.Errorf("re-import clobbered status: %q", got.Status)
	}

	// replace_all rewrites the record; the matched site keeps its case
	// number and event.
	replaceRow := map[string]string{
		"name":      "Ana R. Ruiz",
		"phone1":    "(212) 555-0777",
		"address":   "12 Birch Road",
		"city":      "Riverton",
		"state":     "TX",
		"latitude":  "31.1001",
		"longitude": "-97.2002",
		"status":    "Closed",
		"work_type": "Debris",
	}
	summary, err = workflow.Reconcile(ctx, event.ID, []map[string]string{replaceRow}, "lat_lng", "replace_all")
	if err != nil {
		t.Fatalf("Reconcile(replace_all): %v", err)
	}
	if summary.Updated != 1 {
		t.Fatalf("replace_all: %+v", summary)
	}
	got, err = models.GetSite(ctx, siteId)
	if err != nil {
		t.Fatalf("GetSite after replace: %v", err)
	}
	if got.Name != "Ana R. Ruiz" || got.Status != "Closed" || got.WorkType != "Debris" {
		t.Errorf("replace_all did not replace fields: %+v", got)
	}
	if got.CaseNumber != caseBefore || got.EventId != event.ID {
		t.Errorf("replace_all moved the record: case=%q event=%d", got.CaseNumber, got.EventId)
	}

	// A row missing required fields is rejected, not half-created.
	bad := map[string]string{
		"address": "99 Nowhere Road",
		"status":  "Open, unassigned",
	}
	summary, err = workflow.Reconcile(ctx, event.ID, []map[string]string{bad}, "lat_lng", "references")
	if err != nil {
		t.Fatalf("Reconcile(bad row): %v", err)
	}
	if summary.Rejected != 1 || summary.Created != 0 {
		t.Fatalf("bad row: %+v", summary)
	}
	if !strings.Contains(summary.Outcomes[0].Reason, "required") {
		t.Errorf("rejection reason = %q", summary.Outcomes[0].Reason)
	}
	sites, err := models.ListSites(ctx, event.ID, "")
	if err != nil {
		t.Fatalf("ListSites: %v", err)
	}
	if len(sites) != 1 {
		t.Fatalf("site count = %d, want 1", len(sites))
	}
}

// setupIntegrationEnv starts fresh MySQL and Redis containers, wires env
// for the config package, migrates the schema and returns a user context.
func setupIntegrationEnv(t *testing.T) context.Context {
	t.Helper()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "relief_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx := context.Background()
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")
	return ctx
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("relief-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("relief-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=relief_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
