// Package config resolves process settings once from SSI_-namespaced
// environment variables. A .env file is loaded when present. Settings
// are immutable for the lifetime of an investigation.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/rawblock/scam-investigator/pkg/models"
)

// LLMSettings selects the provider and the per-role models.
type LLMSettings struct {
	Provider       string
	APIKey         string
	BaseURL        string
	Model          string
	CheapModel     string
	VisionModel    string
	OllamaURL      string
	Temperature    float64
	MaxTokens      int
	TokenBudget    int
	RequestTimeout time.Duration
}

// BrowserSettings drives session creation.
type BrowserSettings struct {
	Headless      bool
	UserAgent     string
	NavTimeout    time.Duration
	StepTimeout   time.Duration
	HAREnabled    bool
	VideoEnabled  bool
	DownloadLimit int64
}

// StealthSettings controls fingerprint and proxy behaviour.
type StealthSettings struct {
	RandomizeFingerprint bool
	ApplyStealthScripts  bool
	ProxyURLs            string // comma separated
	CaptchaStrategy      string // "wait" or "stuck"
	CaptchaWaitSeconds   int
}

// AgentSettings tunes the controller budgets.
type AgentSettings struct {
	MaxActionsPerSite     int
	StuckThreshold        int
	StuckThresholdPer     map[string]int
	MaxRepeatedActions    int
	BlankPageMaxRetries   int
	DOMInspectionEnabled  bool
	OverlayDismissEnabled bool
	DOMDirectThreshold    int
	DOMAssistedThreshold  int
}

// EvidenceSettings configures output and the object-store backend.
type EvidenceSettings struct {
	OutputDir      string
	StorageBackend string // "local" or "gcs"
	GCSBucket      string
	GCSPrefix      string
}

// StoreSettings selects the scan store backend.
type StoreSettings struct {
	Backend     string // "sqlite" or "cloudsql"
	SQLitePath  string
	PostgresDSN string
}

// CostSettings bounds per-investigation spend.
type CostSettings struct {
	Enabled   bool
	BudgetUSD float64
}

// OSINTSettings carries recon provider keys.
type OSINTSettings struct {
	VirusTotalAPIKey string
	URLScanAPIKey    string
	ProviderQPS      float64
	Timeout          time.Duration
}

// APISettings secures the HTTP surface.
type APISettings struct {
	AuthToken      string
	AllowedOrigins string // comma separated; empty or "*" allows all
	RatePerMin     int
	RateBurst      int
}

// Settings is the resolved process configuration.
type Settings struct {
	Mode     models.ScanMode
	LLM      LLMSettings
	Browser  BrowserSettings
	Stealth  StealthSettings
	Agent    AgentSettings
	Evidence EvidenceSettings
	Store    StoreSettings
	Cost     CostSettings
	OSINT    OSINTSettings
	API      APISettings
	Port     string
}

// Load resolves settings from the environment. A .env file in the
// working directory is merged in first when present.
func Load() (*Settings, error) {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded settings from .env")
	}

	s := &Settings{
		Mode: models.ScanMode(getEnvOrDefault("SSI_MODE", string(models.ModeFull))),
		LLM: LLMSettings{
			Provider:       getEnvOrDefault("SSI_LLM_PROVIDER", "hosted"),
			APIKey:         os.Getenv("SSI_LLM_API_KEY"),
			BaseURL:        os.Getenv("SSI_LLM_BASE_URL"),
			Model:          getEnvOrDefault("SSI_LLM_MODEL", "claude-sonnet-4-20250514"),
			CheapModel:     os.Getenv("SSI_LLM_CHEAP_MODEL"),
			VisionModel:    os.Getenv("SSI_LLM_VISION_MODEL"),
			OllamaURL:      getEnvOrDefault("SSI_LLM_OLLAMA_URL", "http://localhost:11434"),
			Temperature:    envFloat("SSI_LLM_TEMPERATURE", 0.2),
			MaxTokens:      envInt("SSI_LLM_MAX_TOKENS", 4096),
			TokenBudget:    envInt("SSI_LLM_TOKEN_BUDGET", 200000),
			RequestTimeout: envDuration("SSI_LLM_TIMEOUT", 120*time.Second),
		},
		Browser: BrowserSettings{
			Headless:      envBool("SSI_BROWSER_HEADLESS", true),
			UserAgent:     os.Getenv("SSI_BROWSER_USER_AGENT"),
			NavTimeout:    envDuration("SSI_BROWSER_NAV_TIMEOUT", 45*time.Second),
			StepTimeout:   envDuration("SSI_BROWSER_STEP_TIMEOUT", 30*time.Second),
			HAREnabled:    envBool("SSI_BROWSER_HAR", true),
			VideoEnabled:  envBool("SSI_BROWSER_VIDEO", false),
			DownloadLimit: int64(envInt("SSI_BROWSER_DOWNLOAD_LIMIT_BYTES", 25<<20)),
		},
		Stealth: StealthSettings{
			RandomizeFingerprint: envBool("SSI_STEALTH_RANDOMIZE_FINGERPRINT", true),
			ApplyStealthScripts:  envBool("SSI_STEALTH_SCRIPTS", true),
			ProxyURLs:            os.Getenv("SSI_STEALTH_PROXY_URLS"),
			CaptchaStrategy:      getEnvOrDefault("SSI_CAPTCHA_STRATEGY", "stuck"),
			CaptchaWaitSeconds:   envInt("SSI_CAPTCHA_WAIT_SECONDS", 30),
		},
		Agent: AgentSettings{
			MaxActionsPerSite:     envInt("SSI_AGENT_MAX_ACTIONS_PER_SITE", 40),
			StuckThreshold:        envInt("SSI_AGENT_STUCK_THRESHOLD", 15),
			StuckThresholdPer:     envStateMap("SSI_AGENT_STUCK_THRESHOLDS"),
			MaxRepeatedActions:    envInt("SSI_AGENT_MAX_REPEATED_ACTIONS", 3),
			BlankPageMaxRetries:   envInt("SSI_AGENT_BLANK_PAGE_MAX_RETRIES", 3),
			DOMInspectionEnabled:  envBool("SSI_AGENT_DOM_INSPECTION", true),
			OverlayDismissEnabled: envBool("SSI_AGENT_OVERLAY_DISMISS", true),
			DOMDirectThreshold:    envInt("SSI_AGENT_DOM_DIRECT_THRESHOLD", 75),
			DOMAssistedThreshold:  envInt("SSI_AGENT_DOM_ASSISTED_THRESHOLD", 40),
		},
		Evidence: EvidenceSettings{
			OutputDir:      getEnvOrDefault("SSI_EVIDENCE_OUTPUT_DIR", "./investigations"),
			StorageBackend: getEnvOrDefault("SSI_EVIDENCE_STORAGE_BACKEND", "local"),
			GCSBucket:      os.Getenv("SSI_EVIDENCE_GCS_BUCKET"),
			GCSPrefix:      os.Getenv("SSI_EVIDENCE_GCS_PREFIX"),
		},
		Store: StoreSettings{
			Backend:     getEnvOrDefault("SSI_STORE_BACKEND", "sqlite"),
			SQLitePath:  getEnvOrDefault("SSI_STORE_SQLITE_PATH", "./scans.db"),
			PostgresDSN: os.Getenv("SSI_STORE_POSTGRES_DSN"),
		},
		Cost: CostSettings{
			Enabled:   envBool("SSI_COST_ENABLED", true),
			BudgetUSD: envFloat("SSI_COST_BUDGET_USD", 5.0),
		},
		OSINT: OSINTSettings{
			VirusTotalAPIKey: os.Getenv("SSI_OSINT_VIRUSTOTAL_API_KEY"),
			URLScanAPIKey:    os.Getenv("SSI_OSINT_URLSCAN_API_KEY"),
			ProviderQPS:      envFloat("SSI_OSINT_PROVIDER_QPS", 1),
			Timeout:          envDuration("SSI_OSINT_TIMEOUT", 15*time.Second),
		},
		API: APISettings{
			AuthToken:      os.Getenv("SSI_API_AUTH_TOKEN"),
			AllowedOrigins: os.Getenv("SSI_API_ALLOWED_ORIGINS"),
			RatePerMin:     envInt("SSI_API_RATE_PER_MIN", 60),
			RateBurst:      envInt("SSI_API_RATE_BURST", 20),
		},
		Port: getEnvOrDefault("SSI_PORT", "8089"),
	}

	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) validate() error {
	switch s.Mode {
	case models.ModePassive, models.ModeActive, models.ModeFull:
	default:
		return fmt.Errorf("SSI_MODE must be passive, active or full, got %q", s.Mode)
	}
	switch s.Store.Backend {
	case "sqlite", "cloudsql":
	default:
		return fmt.Errorf("SSI_STORE_BACKEND must be sqlite or cloudsql, got %q", s.Store.Backend)
	}
	if s.Store.Backend == "cloudsql" && s.Store.PostgresDSN == "" {
		return fmt.Errorf("SSI_STORE_POSTGRES_DSN is required for the cloudsql backend")
	}
	switch s.Evidence.StorageBackend {
	case "local", "gcs":
	default:
		return fmt.Errorf("SSI_EVIDENCE_STORAGE_BACKEND must be local or gcs, got %q", s.Evidence.StorageBackend)
	}
	if s.Evidence.StorageBackend == "gcs" && s.Evidence.GCSBucket == "" {
		return fmt.Errorf("SSI_EVIDENCE_GCS_BUCKET is required for the gcs backend")
	}
	return nil
}

// RequireEnv reads a required environment variable and exits if it is
// not set.
func RequireEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		log.Fatalf("Required environment variable %s is not set", key)
	}
	return val
}

// getEnvOrDefault returns the env var value or a safe default for
// non-secret settings.
func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Ignoring %s=%q: %v", key, raw, err)
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("Ignoring %s=%q: %v", key, raw, err)
		return fallback
	}
	return f
}

func envBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("Ignoring %s=%q: %v", key, raw, err)
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("Ignoring %s=%q: %v", key, raw, err)
		return fallback
	}
	return d
}

// envStateMap parses per-state overrides of the form
// "FILL_REGISTER=20,EXTRACT_WALLETS=10".
func envStateMap(key string) map[string]int {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	out := make(map[string]int)
	for _, pair := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			log.Printf("Ignoring malformed entry %q in %s", pair, key)
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			log.Printf("Ignoring %s entry %q: %v", key, pair, err)
			continue
		}
		out[strings.TrimSpace(k)] = n
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
