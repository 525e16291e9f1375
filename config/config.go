package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/finlix/backend/internal/policy"
)

type Config struct {
	Port       string `envconfig:"PORT" default:"8080"`
	GinMode    string `envconfig:"GIN_MODE" default:"release"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`
	ServiceEnv string `envconfig:"SERVICE_ENV" default:"dev"`

	// mongo | postgres | memory
	StoreDriver string `envconfig:"STORE_DRIVER" default:"mongo"`
	MongoURI    string `envconfig:"MONGO_URI"`
	MongoDB     string `envconfig:"MONGO_DB" default:"finlix_db"`
	PostgresURI string `envconfig:"POSTGRES_URI"`

	// pins Mongo TLS to 1.2; some Atlas networks need it
	MongoForceTLS    bool `envconfig:"MONGO_FORCE_TLS_CONFIG"`
	MongoInsecureTLS bool `envconfig:"MONGO_INSECURE_TLS"`

	RedisAddr    string        `envconfig:"REDIS_ADDR"`
	UserCacheTTL time.Duration `envconfig:"USER_CACHE_TTL" default:"60s"`

	// firebase | hmac
	AuthMode          string `envconfig:"AUTH_MODE" default:"firebase"`
	FirebaseProjectID string `envconfig:"FIREBASE_PROJECT_ID"`
	JWTSecret         string `envconfig:"AUTH_JWT_SECRET"`
	JWTIssuer         string `envconfig:"AUTH_JWT_ISSUER"`
	JWTAudience       string `envconfig:"AUTH_JWT_AUDIENCE"`

	// create | upsert
	RegistrationMode        string `envconfig:"REGISTRATION_MODE" default:"create"`
	PolicyOverrides         string `envconfig:"POLICY_OVERRIDES"`
	OwnerLoanTargetStatuses string `envconfig:"OWNER_LOAN_TARGET_STATUSES"`
	AdminLoanStatuses       string `envconfig:"ADMIN_LOAN_STATUSES" default:"Pending,Approved,Rejected"`
	ManagerLoanStatuses     string `envconfig:"MANAGER_LOAN_STATUSES" default:"Pending,Reviewing,Approved,Rejected"`

	EventsStream  string `envconfig:"EVENTS_STREAM" default:"loan:events"`
	EventsWorkers int    `envconfig:"EVENTS_WORKERS" default:"2"`

	GCSBucket string `envconfig:"GCS_BUCKET"`

	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load reads the first .env found in the working directory or its parents,
// then the process environment.
func Load() (Config, error) {
	loadDotenv()

	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return c, err
	}
	return c, c.Validate()
}

func loadDotenv() {
	for _, p := range []string{".env", filepath.Join("..", ".env"), filepath.Join("..", "..", ".env")} {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			return
		}
	}
}

func (c Config) Validate() error {
	switch c.StoreDriver {
	case "mongo":
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required when STORE_DRIVER=mongo")
		}
	case "postgres":
		if c.PostgresURI == "" {
			return fmt.Errorf("POSTGRES_URI is required when STORE_DRIVER=postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.AuthMode {
	case "firebase":
		if c.FirebaseProjectID == "" {
			return fmt.Errorf("FIREBASE_PROJECT_ID is required when AUTH_MODE=firebase")
		}
	case "hmac":
		if c.JWTSecret == "" {
			return fmt.Errorf("AUTH_JWT_SECRET is required when AUTH_MODE=hmac")
		}
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.AuthMode)
	}

	switch c.RegistrationMode {
	case "create", "upsert":
	default:
		return fmt.Errorf("unknown REGISTRATION_MODE %q", c.RegistrationMode)
	}

	// owner targets stay open; privileged routes may only write known statuses
	for key, raw := range map[string]string{
		"ADMIN_LOAN_STATUSES":   c.AdminLoanStatuses,
		"MANAGER_LOAN_STATUSES": c.ManagerLoanStatuses,
	} {
		for _, st := range policy.ParseStatusSet(raw).Values() {
			if !policy.LoanStatuses.Allows(st) {
				return fmt.Errorf("%s: unknown loan status %q", key, st)
			}
		}
	}

	if _, err := c.PolicyTable(); err != nil {
		return err
	}
	return nil
}

// PolicyTable is the default route table with POLICY_OVERRIDES applied.
func (c Config) PolicyTable() (policy.Table, error) {
	return policy.DefaultTable().WithOverrides(c.PolicyOverrides)
}

func (c Config) LoanRules() policy.LoanRules {
	rules := policy.DefaultLoanRules()
	rules.OwnerTargets = policy.ParseStatusSet(c.OwnerLoanTargetStatuses)
	if s := policy.ParseStatusSet(c.AdminLoanStatuses); !s.Unrestricted() {
		rules.AdminStatuses = s
	}
	if s := policy.ParseStatusSet(c.ManagerLoanStatuses); !s.Unrestricted() {
		rules.ManagerStatuses = s
	}
	return rules
}
