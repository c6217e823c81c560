package main

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"domainflip/internal/api"
	"domainflip/internal/availability"
	"domainflip/internal/search"
	"domainflip/internal/suggest"
)

func main() {
	configureLogging()

	baseDir, err := os.Getwd()
	if err != nil {
		logrus.Fatalf("determine working directory: %v", err)
	}

	dataDir := filepath.Join(baseDir, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		logrus.Fatalf("create data directory: %v", err)
	}

	aiCfg := suggest.Config{
		APIKey:  os.Getenv("OPENAI_API_KEY"),
		Model:   os.Getenv("OPENAI_MODEL"),
		BaseURL: os.Getenv("OPENAI_BASE_URL"),
		Timeout: envDuration("OPENAI_TIMEOUT", 0),
	}
	if temp := os.Getenv("OPENAI_TEMPERATURE"); temp != "" {
		if v, err := strconv.ParseFloat(temp, 64); err == nil {
			aiCfg.Temperature = v
		}
	}

	registrarCfg := availability.RegistrarConfig{
		APIKey:   os.Getenv("REGISTRAR_API_KEY"),
		BaseURL:  os.Getenv("REGISTRAR_API_URL"),
		Timeout:  envDuration("REGISTRAR_TIMEOUT", 0),
		CacheTTL: envDuration("REGISTRAR_CACHE_TTL", 0),
	}
	rdapCfg := availability.RDAPConfig{
		BaseURL: os.Getenv("RDAP_BASE_URL"),
		Timeout: envDuration("RDAP_TIMEOUT", 0),
	}

	defaults := search.DefaultCosts()
	costs := search.Costs{
		Search:          envInt("COST_SEARCH", defaults.Search),
		WildcardExplore: envInt("COST_WILDCARD", defaults.WildcardExplore),
		AISuggest:       envInt("COST_AI_SUGGEST", defaults.AISuggest),
		ScorePreview:    envInt("COST_PREVIEW", defaults.ScorePreview),
	}

	allowedOrigins := []string{
		"http://localhost:1000",
		"http://127.0.0.1:1000",
	}
	if raw := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); raw != "" {
		allowedOrigins = allowedOrigins[:0]
		for _, origin := range strings.Split(raw, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				allowedOrigins = append(allowedOrigins, origin)
			}
		}
	}

	cfg := api.Config{
		DBPath:              filepath.Join(dataDir, "domainflip.db"),
		AllowedOrigins:      allowedOrigins,
		Registrar:           registrarCfg,
		RDAP:                rdapCfg,
		SimulationMode:      envBool("SIMULATION_MODE"),
		ResolverConcurrency: envInt("RESOLVER_CONCURRENCY", availability.DefaultConcurrency),
		MaxCandidates:       envInt("MAX_CANDIDATES", 24),
		TLDsPerName:         envInt("TLDS_PER_NAME", 3),
		MaxResults:          envInt("MAX_RESULTS", 15),
		DefaultCredits:      envInt("DEFAULT_CREDITS", 10),
		LedgerBackend:       os.Getenv("LEDGER_BACKEND"),
		RedisAddr:           envString("REDIS_ADDR", "localhost:6379"),
		AIConfig:            aiCfg,
		DisableAI:           envBool("DISABLE_AI"),
		Costs:               costs,
		PurchaseURLTemplate: os.Getenv("PURCHASE_URL_TEMPLATE"),
	}

	if override := strings.TrimSpace(os.Getenv("DOMAINFLIP_DB_PATH")); override != "" {
		cfg.DBPath = override
	}

	server, err := api.NewServer(cfg)
	if err != nil {
		logrus.Fatalf("create server: %v", err)
	}
	defer server.Close()

	router, err := server.Router()
	if err != nil {
		logrus.Fatalf("configure router: %v", err)
	}

	port := envString("PORT", "2000")

	logrus.Infof("starting domainflip backend on :%s", port)
	if err := router.Run(":" + port); err != nil {
		logrus.Fatalf("server exited: %v", err)
	}
}

func configureLogging() {
	if strings.EqualFold(strings.TrimSpace(os.Getenv("LOG_FORMAT")), "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level := logrus.InfoLevel
	if raw := strings.TrimSpace(os.Getenv("LOG_LEVEL")); raw != "" {
		if parsed, err := logrus.ParseLevel(raw); err == nil {
			level = parsed
		}
	}
	logrus.SetLevel(level)
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val >= 0 {
			return val
		}
	}
	return fallback
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return err == nil && v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
