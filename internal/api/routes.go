package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"domainflip/internal/availability"
	"domainflip/internal/discovery"
	"domainflip/internal/ledger"
	"domainflip/internal/metrics"
	"domainflip/internal/search"
	"domainflip/internal/store"
	"domainflip/internal/suggest"
)

// Ledger backends selectable through Config.LedgerBackend.
const (
	LedgerSQLite = "sqlite"
	LedgerRedis  = "redis"
	LedgerMemory = "memory"
)

// Config defines server dependencies.
type Config struct {
	DBPath              string
	SilentDB            bool
	AllowedOrigins      []string
	Registrar           availability.RegistrarConfig
	RDAP                availability.RDAPConfig
	SimulationMode      bool
	ResolverConcurrency int
	MaxCandidates       int
	TLDsPerName         int
	MaxResults          int
	DefaultCredits      int
	LedgerBackend       string
	RedisAddr           string
	AIConfig            suggest.Config
	DisableAI           bool
	Costs               search.Costs
	PurchaseURLTemplate string
}

// Server wires HTTP handlers with the discovery pipeline and persistence.
type Server struct {
	db             *store.Database
	redis          *redis.Client
	gate           *ledger.Gate
	search         *search.Service
	expander       *discovery.Expander
	notifier       *SearchNotifier
	metrics        *metrics.Metrics
	links          PurchaseLinkBuilder
	audit          availability.AuditLog
	allowedOrigins []string
	ledgerBackend  string
	simulation     bool
	maxResults     int
	aiEnabled      bool
}

// NewServer constructs the API server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("db path required")
	}
	db, err := store.Open(cfg.DBPath, cfg.SilentDB)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	notifier := NewSearchNotifier()

	server := &Server{
		db:             db,
		notifier:       notifier,
		metrics:        m,
		audit:          db,
		allowedOrigins: cfg.AllowedOrigins,
		simulation:     cfg.SimulationMode,
		maxResults:     cfg.MaxResults,
	}

	primary, secondary, err := buildAuthorities(cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	ledgerStore, err := server.buildLedgerStore(cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	server.gate = ledger.NewGate(ledgerStore, cfg.DefaultCredits, m)

	var suggester suggest.Suggester = suggest.ExpanderSuggester{}
	if cfg.DisableAI {
		logrus.Info("AI suggester disabled via configuration")
	} else if client, err := suggest.NewOpenAIClient(cfg.AIConfig); err == nil {
		suggester = suggest.WithFallback(client, suggest.ExpanderSuggester{})
		server.aiEnabled = true
		logrus.Info("AI suggester enabled")
	} else if errors.Is(err, suggest.ErrDisabled) {
		logrus.Info("AI suggester using keyword expansion - no OpenAI key configured")
	} else {
		_ = db.Close()
		return nil, fmt.Errorf("ai client: %w", err)
	}

	server.expander = discovery.NewExpander()
	if cfg.MaxCandidates > 0 {
		server.expander.MaxCandidates = cfg.MaxCandidates
	}
	if cfg.TLDsPerName > 0 {
		server.expander.TLDsPerName = cfg.TLDsPerName
	}

	resolver := availability.NewResolver(availability.Config{
		PrimaryTimeout:   cfg.Registrar.Timeout,
		SecondaryTimeout: cfg.RDAP.Timeout,
		Concurrency:      cfg.ResolverConcurrency,
	}, primary, secondary, db, m)

	links, err := NewPurchaseLinks(cfg.PurchaseURLTemplate)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("purchase links: %w", err)
	}
	server.links = links

	costs := cfg.Costs
	if costs == (search.Costs{}) {
		costs = search.DefaultCosts()
	}
	server.search = search.NewService(search.Config{
		Costs:      costs,
		MaxResults: cfg.MaxResults,
	}, search.Deps{
		Expander:  server.expander,
		Resolver:  resolver,
		Gate:      server.gate,
		Suggester: suggester,
		History:   db,
		Notifier:  notifier,
		Metrics:   m,
	})
	return server, nil
}

func buildAuthorities(cfg Config) (availability.PrimaryAuthority, availability.SecondaryAuthority, error) {
	if cfg.SimulationMode {
		logrus.Warn("SIMULATION MODE: availability answers are synthetic and must not be used for real purchases")
		sim := availability.NewSimulatedAuthority()
		return sim, sim, nil
	}

	var primary availability.PrimaryAuthority
	if strings.TrimSpace(cfg.Registrar.APIKey) == "" {
		logrus.Warn("registrar lookup disabled - no API key configured; every candidate will resolve unavailable")
	} else {
		client, err := availability.NewHTTPRegistrar(cfg.Registrar)
		if err != nil {
			return nil, nil, fmt.Errorf("registrar client: %w", err)
		}
		primary = client
		logrus.WithFields(logrus.Fields{
			"ttl":     cfg.Registrar.CacheTTL,
			"timeout": cfg.Registrar.Timeout,
		}).Info("registrar lookup enabled")
	}
	return primary, availability.NewRDAPClient(cfg.RDAP), nil
}

func (s *Server) buildLedgerStore(cfg Config) (ledger.Store, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.LedgerBackend))
	if backend == "" {
		backend = LedgerSQLite
	}
	s.ledgerBackend = backend

	switch backend {
	case LedgerSQLite:
		return s.db, nil
	case LedgerMemory:
		logrus.Warn("credit ledger kept in memory; balances reset on restart")
		return ledger.NewMemoryStore(), nil
	case LedgerRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect redis ledger at %s: %w", cfg.RedisAddr, err)
		}
		s.redis = client
		logrus.WithField("addr", cfg.RedisAddr).Info("credit ledger backed by redis")
		return ledger.NewRedisStore(client, "domainflip:credits"), nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.LedgerBackend)
	}
}

// Close releases the server's connections.
func (s *Server) Close() error {
	s.notifier.Close()
	var errs []error
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	errs = append(errs, s.db.Close())
	return errors.Join(errs...)
}

// Router configures gin routes.
func (s *Server) Router() (*gin.Engine, error) {
	r := gin.Default()

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowCredentials = true
	if len(s.allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.allowedOrigins
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", headerUserID, headerUserRole}
	corsCfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	r.Use(cors.New(corsCfg))

	r.GET("/api/healthz", s.handleHealth)
	r.GET("/api/config", s.handleConfig)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := r.Group("/api", s.requirePrincipal)
	{
		api.POST("/search", s.handleSearch)
		api.GET("/search/stream", s.handleSearchStream)
		api.POST("/suggest", s.handleSuggest)
		api.GET("/score", s.handleScore)
		api.GET("/credits", s.handleCredits)
		api.GET("/history", s.handleHistory)
	}

	admin := api.Group("/admin", s.requireAdmin)
	{
		admin.POST("/credits", s.handleGrantCredits)
		admin.GET("/validation-logs", s.handleValidationLogs)
	}

	return r, nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleConfig(c *gin.Context) {
	tlds := s.expander.TLDs
	if s.expander.TLDsPerName > 0 && s.expander.TLDsPerName < len(tlds) {
		tlds = tlds[:s.expander.TLDsPerName]
	}
	c.JSON(http.StatusOK, ConfigResponse{
		TLDs:           tlds,
		MaxCandidates:  s.expander.MaxCandidates,
		MaxResults:     s.maxResultsOrDefault(),
		SimulationMode: s.simulation,
		AIEnabled:      s.aiEnabled,
		LedgerBackend:  s.ledgerBackend,
		Costs:          s.search.Costs(),
	})
}

func (s *Server) handleSearch(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	resp, err := s.search.Search(c.Request.Context(), search.Request{
		Pattern:            req.pattern(),
		Principal:          principalFrom(c),
		IncludeUnavailable: req.IncludeUnavailable,
	})
	s.renderSearch(c, resp, err)
}

func (s *Server) handleSuggest(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	resp, err := s.search.Suggest(c.Request.Context(), search.Request{
		Pattern:            req.pattern(),
		Principal:          principalFrom(c),
		IncludeUnavailable: req.IncludeUnavailable,
	})
	s.renderSearch(c, resp, err)
}

func (s *Server) renderSearch(c *gin.Context, resp search.Response, err error) {
	switch {
	case errors.Is(err, discovery.ErrEmptyKeyword), errors.Is(err, discovery.ErrNoCandidates):
		s.renderError(c, http.StatusBadRequest, err)
		return
	case errors.Is(err, suggest.ErrDisabled):
		s.renderError(c, http.StatusServiceUnavailable, errors.New("suggestions are currently unavailable"))
		return
	case err != nil:
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	if s.renderOutcome(c, resp.Outcome) {
		return
	}
	c.JSON(http.StatusOK, s.toSearchResponse(c.Request.Context(), resp))
}

// renderOutcome writes the error response for a denied gate outcome and reports whether it did.
func (s *Server) renderOutcome(c *gin.Context, outcome ledger.Outcome) bool {
	switch outcome.Status {
	case ledger.StatusOK, ledger.StatusBypassed:
		return false
	case ledger.StatusInsufficientCredits:
		c.JSON(http.StatusPaymentRequired, InsufficientCreditsResponse{
			Error:            "insufficient credits",
			AvailableCredits: outcome.AvailableCredits,
			RequiredCredits:  outcome.RequiredCredits,
		})
	case ledger.StatusLedgerUnavailable:
		s.renderError(c, http.StatusServiceUnavailable, errors.New("could not verify credits, please retry"))
	default:
		s.renderError(c, http.StatusInternalServerError, fmt.Errorf("unexpected credit outcome %q", outcome.Status))
	}
	return true
}

func (s *Server) handleScore(c *gin.Context) {
	domain := strings.TrimSpace(c.Query("domain"))
	result, outcome, err := s.search.ScorePreview(c.Request.Context(), domain, principalFrom(c))
	if err != nil {
		if errors.Is(err, discovery.ErrEmptyKeyword) {
			s.renderError(c, http.StatusBadRequest, errors.New("domain is required"))
			return
		}
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	if s.renderOutcome(c, outcome) {
		return
	}
	c.JSON(http.StatusOK, ScoreResponse{Domain: domain, FlipScore: result.FlipScore, TrendStrength: result.TrendStrength})
}

func (s *Server) handleCredits(c *gin.Context) {
	p := principalFrom(c)
	balance, err := s.gate.Balance(c.Request.Context(), p.UserID)
	if err != nil {
		s.renderError(c, http.StatusServiceUnavailable, errors.New("could not verify credits, please retry"))
		return
	}
	resp := CreditsResponse{Balance: balance, Admin: p.IsAdmin()}
	if s.ledgerBackend == LedgerSQLite {
		txns, err := s.db.ListLedgerTransactions(c.Request.Context(), p.UserID, 20)
		if err != nil {
			logrus.WithError(err).WithField("user_id", p.UserID).Warn("list ledger transactions")
		}
		resp.Transactions = txns
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGrantCredits(c *gin.Context) {
	var req GrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		s.renderError(c, http.StatusBadRequest, errors.New("user_id is required"))
		return
	}
	reason := firstNonEmpty(req.Reason, "admin_grant")
	balance, err := s.gate.Grant(c.Request.Context(), req.UserID, req.Amount, reason)
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount):
		s.renderError(c, http.StatusBadRequest, err)
	case err != nil:
		logrus.WithError(err).WithField("user_id", req.UserID).Error("grant credits")
		s.renderError(c, http.StatusServiceUnavailable, errors.New("could not update credits, please retry"))
	default:
		c.JSON(http.StatusOK, balance)
	}
}

func (s *Server) handleValidationLogs(c *gin.Context) {
	page, pageSize := pagination(c, 50)
	rows, total, err := s.db.ListValidationLogs(c.Request.Context(), store.ValidationLogQuery{
		Domain: c.Query("domain"),
		Source: c.Query("source"),
		Status: c.Query("status"),
		Offset: page * pageSize,
		Limit:  pageSize,
	})
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	if rows == nil {
		rows = []store.ValidationLog{}
	}
	c.JSON(http.StatusOK, ValidationLogsResponse{Items: rows, Total: total})
}

func (s *Server) handleHistory(c *gin.Context) {
	page, pageSize := pagination(c, 20)
	p := principalFrom(c)
	rows, total, err := s.db.ListSearchHistory(c.Request.Context(), p.UserID, page*pageSize, pageSize)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	items := make([]HistoryDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, HistoryFromModel(row))
	}
	c.JSON(http.StatusOK, HistoryResponse{Items: items, Total: total})
}

func (s *Server) handleSearchStream(c *gin.Context) {
	upgrader := websocket.Upgrader{
		HandshakeTimeout:  5 * time.Second,
		EnableCompression: true,
		CheckOrigin: func(r *http.Request) bool {
			if len(s.allowedOrigins) == 0 {
				return true
			}
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			for _, allowed := range s.allowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			return false
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("upgrade websocket")
		return
	}

	p := principalFrom(c)
	client := s.notifier.Register(conn, p)
	fields := logrus.Fields{"remote": conn.RemoteAddr().String(), "user_id": p.UserID}
	logrus.WithFields(fields).Info("search websocket connected")
	defer s.notifier.Unregister(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithFields(fields).Info("search websocket closed")
			} else {
				logrus.WithError(err).WithFields(fields).Warn("search websocket unexpected close")
			}
			break
		}
	}
}

func (s *Server) renderError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

func (s *Server) maxResultsOrDefault() int {
	if s.maxResults > 0 {
		return s.maxResults
	}
	return 15
}

func pagination(c *gin.Context, defaultSize int) (int, int) {
	page, _ := strconv.Atoi(c.Query("page"))
	if page < 0 {
		page = 0
	}
	pageSize, _ := strconv.Atoi(firstNonEmpty(c.Query("pageSize"), c.Query("page_size")))
	if pageSize <= 0 || pageSize > 500 {
		pageSize = defaultSize
	}
	return page, pageSize
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
