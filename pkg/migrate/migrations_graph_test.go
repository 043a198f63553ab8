package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rafaelcoron/uplevel-backend/pkg/migrate"
)

func TestEdgesMigrationEnforcesSingleActiveEdge(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_distributor_edges.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no distributor edges migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS distributor_edges",
		"CHECK (level >= 0)",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_distributor_edges_active_distributor",
		"WHERE is_active",
		"CREATE INDEX IF NOT EXISTS ix_distributor_edges_upline",
		"DROP TABLE IF EXISTS distributor_edges",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestPlansMigrationEnforcesSingleActiveRate(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_commission_plans.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no commission plans migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_commission_plans_name_version",
		"CHECK (percentage >= 0 AND percentage <= 100)",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_commission_rates_active_plan_level",
		"CHECK (expires_at IS NULL OR expires_at > assigned_at)",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationsDirectoryValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("ValidateDir failed: %v", err)
	}
}
