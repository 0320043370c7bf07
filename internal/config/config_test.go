package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	c := Load()
	if c.AppPort != "8080" {
		t.Fatalf("AppPort = %q", c.AppPort)
	}
	if c.LedgerBackend != "memory" {
		t.Fatalf("LedgerBackend = %q", c.LedgerBackend)
	}
	if c.TargetLTVPercent.String() != "80" {
		t.Fatalf("TargetLTVPercent = %s", c.TargetLTVPercent)
	}
	if c.WatcherInterval != time.Minute || c.ExpiryLeadTime != time.Hour {
		t.Fatalf("watcher timings = %v / %v", c.WatcherInterval, c.ExpiryLeadTime)
	}
	if !c.AutomationEnabled {
		t.Fatal("automation should default on")
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LEDGER_BACKEND", "mysql")
	t.Setenv("MYSQL_HOST", "db.internal")
	t.Setenv("MYSQL_PORT", "3307")
	t.Setenv("TARGET_LTV_PERCENT", "70")
	t.Setenv("EXPIRY_LEAD_TIME", "30m")
	t.Setenv("AUTOMATION_ENABLED", "false")

	c := Load()
	if c.LedgerBackend != "mysql" || c.MySQLHost != "db.internal" {
		t.Fatalf("mysql override not applied: %+v", c)
	}
	if c.TargetLTVPercent.String() != "70" {
		t.Fatalf("TargetLTVPercent = %s", c.TargetLTVPercent)
	}
	if c.ExpiryLeadTime != 30*time.Minute {
		t.Fatalf("ExpiryLeadTime = %v", c.ExpiryLeadTime)
	}
	if c.AutomationEnabled {
		t.Fatal("automation should be off")
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	want := "creditshaft:creditshaft@tcp(db.internal:3307)/creditshaft?multiStatements=true&parseTime=true&charset=utf8mb4,utf8"
	if got := c.MySQLDSN(); got != want {
		t.Fatalf("dsn = %q", got)
	}
}

func TestValidate_Rejections(t *testing.T) {
	base := Load()

	c := *base
	c.LedgerBackend = "postgres"
	if err := c.Validate(); err == nil {
		t.Fatal("unknown backend accepted")
	}

	c = *base
	c.LedgerBackend = "mysql"
	c.MySQLPort = "notaport"
	if err := c.Validate(); err == nil {
		t.Fatal("bad mysql port accepted")
	}

	c = *base
	c.LiquidationThresholdPercent = c.TargetLTVPercent.Sub(c.TargetLTVPercent) // zero
	if err := c.Validate(); err == nil {
		t.Fatal("threshold below target accepted")
	}
}
