package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable.  Signing is selected once per deployment and
// never mixed: every token in a store is signed the same way (or not at
// all).
type Config struct {
	Env           string // application environment (e.g. "dev", "prod")
	Port          string // HTTP port to listen on
	StoreBackend  string // "mysql" or "memory"
	DBUser        string // database username
	DBPass        string // database password (optional)
	DBHost        string // database host address
	DBPort        string // database port number
	DBName        string // database name
	JWTSecret     string // secret used to sign principal JWTs
	AccessTTLMin  int    // access token time-to-live in minutes
	BcryptCost    int    // bcrypt cost for password verification helpers
	PublicBaseURL string // base URL used to build redemption links

	SigningMode    string // token signing strategy: none | hmac | rsa
	SigningSecret  string // HMAC secret (required when mode=hmac)
	SigningKeyPath string // PEM private key path (required when mode=rsa)

	RequireIdentity   bool    // gate confirmation behind identity verification
	IdentityThreshold float64 // detector confidence threshold for acceptance
	DetectorURL       string  // endpoint of the external identity detector
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  The MySQL variables
// are only required when STORE_BACKEND is mysql.
func Load() Config {
	cfg := Config{
		Env:           must("APP_ENV"),
		Port:          must("APP_PORT"),
		StoreBackend:  envStr("STORE_BACKEND", "mysql"),
		JWTSecret:     must("JWT_SECRET"),
		AccessTTLMin:  mustInt("ACCESS_TOKEN_TTL_MIN"),
		BcryptCost:    envInt("BCRYPT_COST", 12),
		PublicBaseURL: envStr("PUBLIC_BASE_URL", "http://localhost:8080"),

		SigningMode:    envStr("SIGNING_MODE", "none"),
		SigningSecret:  os.Getenv("SIGNING_SECRET"),
		SigningKeyPath: os.Getenv("SIGNING_KEY_PATH"),

		RequireIdentity:   envBool("IDENTITY_GATE_REQUIRED", true),
		IdentityThreshold: envFloat("IDENTITY_CONFIDENCE_THRESHOLD", 0.70),
		DetectorURL:       envStr("DETECTOR_URL", "http://localhost:9090/detect"),
	}
	if cfg.StoreBackend == "mysql" {
		cfg.DBUser = must("DB_USER")
		cfg.DBPass = os.Getenv("DB_PASS") // empty allowed
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = must("DB_PORT")
		cfg.DBName = must("DB_NAME")
	}
	return cfg
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
