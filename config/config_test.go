package config

import (
	"crypto/tls"
	"strings"
	"testing"

	"github.com/finlix/backend/internal/models"
	"github.com/finlix/backend/internal/policy"
)

func validConfig() Config {
	return Config{
		StoreDriver:         "memory",
		AuthMode:            "hmac",
		JWTSecret:           "s",
		RegistrationMode:    "create",
		AdminLoanStatuses:   "Pending,Approved,Rejected",
		ManagerLoanStatuses: "Pending,Reviewing,Approved,Rejected",
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("AUTH_MODE", "hmac")
	t.Setenv("AUTH_JWT_SECRET", "dev-secret")

	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Port != "8080" || c.MongoDB != "finlix_db" || c.RegistrationMode != "create" || c.EventsStream != "loan:events" {
		t.Fatalf("defaults not applied: %+v", c)
	}
	if c.UserCacheTTL.Seconds() != 60 {
		t.Fatalf("USER_CACHE_TTL default = %v", c.UserCacheTTL)
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := map[string]func(*Config){
		"MONGO_URI":             func(c *Config) { c.StoreDriver = "mongo" },
		"POSTGRES_URI":          func(c *Config) { c.StoreDriver = "postgres" },
		"STORE_DRIVER":          func(c *Config) { c.StoreDriver = "sqlite" },
		"FIREBASE_PROJECT_ID":   func(c *Config) { c.AuthMode = "firebase" },
		"AUTH_JWT_SECRET":       func(c *Config) { c.JWTSecret = "" },
		"REGISTRATION_MODE":     func(c *Config) { c.RegistrationMode = "merge" },
		"policy override":       func(c *Config) { c.PolicyOverrides = "users.list" },
		"ADMIN_LOAN_STATUSES":   func(c *Config) { c.AdminLoanStatuses = "Pending,Bogus" },
		"MANAGER_LOAN_STATUSES": func(c *Config) { c.ManagerLoanStatuses = "Approved,approved" },
	}
	for want, mutate := range cases {
		c := validConfig()
		mutate(&c)
		err := c.Validate()
		if err == nil {
			t.Errorf("%s: expected validation error", want)
			continue
		}
		if want != "policy override" && !strings.Contains(err.Error(), want) {
			t.Errorf("%s: error %q does not name the key", want, err)
		}
	}
}

func TestValidateLeavesOwnerTargetsOpen(t *testing.T) {
	c := validConfig()
	c.OwnerLoanTargetStatuses = "Cancelled,Withdrawn"
	if err := c.Validate(); err != nil {
		t.Fatalf("owner targets must not be checked against the status domain: %v", err)
	}
}

func TestMongoTLSConfig(t *testing.T) {
	t.Setenv("MONGO_FORCE_TLS_CONFIG", "true")
	t.Setenv("MONGO_INSECURE_TLS", "true")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("AUTH_MODE", "hmac")
	t.Setenv("AUTH_JWT_SECRET", "dev-secret")

	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	tc := mongoTLSConfig(c)
	if tc == nil || !tc.InsecureSkipVerify || tc.MinVersion != tls.VersionTLS12 || tc.MaxVersion != tls.VersionTLS12 {
		t.Fatalf("unexpected tls config %+v", tc)
	}

	if mongoTLSConfig(validConfig()) != nil {
		t.Fatal("tls config must be nil unless forced")
	}
}

func TestLoanRulesFromConfig(t *testing.T) {
	c := validConfig()
	c.OwnerLoanTargetStatuses = "Cancelled"
	c.AdminLoanStatuses = "Approved"

	rules := c.LoanRules()
	if rules.OwnerTargets.Allows(models.LoanApproved) || !rules.OwnerTargets.Allows("Cancelled") {
		t.Fatalf("owner targets: %v", rules.OwnerTargets.Values())
	}
	if rules.AdminStatuses.Allows(models.LoanPending) {
		t.Fatalf("admin statuses: %v", rules.AdminStatuses.Values())
	}

	c.ManagerLoanStatuses = "Pending,Approved,Rejected"
	if c.LoanRules().ManagerStatuses.Allows(models.LoanReviewing) {
		t.Fatal("manager set override must drop Reviewing")
	}
	if !validConfig().LoanRules().ManagerStatuses.Allows(models.LoanReviewing) {
		t.Fatal("default manager set must allow Reviewing")
	}

	c.PolicyOverrides = "loans.admin_delete=role:admin"
	table, err := c.PolicyTable()
	if err != nil {
		t.Fatalf("policy table: %v", err)
	}
	if table.Gate(policy.ActionAdminDeleteLoan) != policy.RequireRole(models.RoleAdmin) {
		t.Fatalf("override missing: %v", table.Gate(policy.ActionAdminDeleteLoan))
	}
}
