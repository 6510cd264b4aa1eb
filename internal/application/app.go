package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"jobmatchly/internal/config"
	"jobmatchly/internal/domain/ports/adapter"
	aiAdapters "jobmatchly/internal/infra/adapters/ai"
	"jobmatchly/internal/infra/adapters/email"
	payAdapters "jobmatchly/internal/infra/adapters/payment"
	"jobmatchly/internal/infra/api"
	pg "jobmatchly/internal/infra/db/postgres"
	"jobmatchly/internal/infra/i18n"
	red "jobmatchly/internal/infra/redis"
	"jobmatchly/internal/infra/render"
	"jobmatchly/internal/infra/sched"
	"jobmatchly/internal/infra/worker"
	"jobmatchly/internal/usecase"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
)

// App is the composition root shared by the server and the admin CLI.
type App struct {
	Config *config.Config

	Pool  *pgxpool.Pool
	Redis *red.Client

	Users     usecase.UserUseCase
	Credits   usecase.CreditUseCase
	Purchases usecase.PurchaseUseCase
	Tailor    usecase.TailorUseCase
	Documents usecase.DocumentUseCase
	Wizard    usecase.WizardUseCase

	Auth       *api.AuthManager
	Translator *i18n.Translator
	Reconciler *sched.PaymentReconciler
	Receipts   *worker.Pool
	// Sandbox is set only when the sandbox gateway is configured.
	Sandbox *payAdapters.SandboxGateway

	log *zerolog.Logger
	// bg tracks background loops so Close waits for them.
	bg sync.WaitGroup
}

// New connects to Postgres and Redis and builds every use case.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, log: logger}

	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	a.Pool = pool

	rc, err := red.NewClient(ctx, cfg.Redis)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}
	a.Redis = rc

	tr, err := i18n.NewTranslator(i18n.LocalesFS, cfg.Email.Language)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("i18n: %w", err)
	}
	a.Translator = tr

	// ---- Repositories ----
	userRepo := pg.NewUserRepo(pool)
	cachedUsers := pg.NewUserRepoCacheDecorator(userRepo, rc, 5*time.Minute)
	purchaseRepo := pg.NewPurchaseRepo(pool)
	eventRepo := pg.NewPurchaseEventRepo(pool)
	ledgerRepo := pg.NewLedgerRepo(pool)
	docRepo := pg.NewDocumentRepo(pool)
	tm := pg.NewTxManager(pool)
	wizardRepo := red.NewWizardStateRepo(rc, cfg.Redis.TTL)

	// ---- Adapters ----
	gateway, err := a.newGateway(cfg.Payment)
	if err != nil {
		a.Close()
		return nil, err
	}
	ai, err := newAI(ctx, cfg.AI, cfg.Runtime.Dev, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	receipts, err := newReceiptSender(cfg.Email, tr, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Receipts = worker.NewPool("receipts", cfg.Workers.Receipts, logger)

	// ---- Use cases ----
	a.Users = usecase.NewUserUseCase(userRepo, ledgerRepo, tm, cfg.Credits.SignupCredits, logger)
	a.Credits = usecase.NewCreditUseCase(userRepo, ledgerRepo, tm, logger)
	a.Purchases = usecase.NewPurchaseUseCase(userRepo, purchaseRepo, eventRepo, ledgerRepo, tm,
		gateway, red.NewLocker(rc), receipts, a.Receipts, usecase.PurchaseOptions{}, logger)
	a.Tailor = usecase.NewTailorUseCase(a.Credits, docRepo, ai, red.NewRateLimiter(rc), usecase.TailorOptions{
		Model:           cfg.AI.DefaultModel,
		MaxPromptTokens: cfg.AI.MaxPromptTokens,
		PerMinute:       cfg.Credits.TailorPerMinute,
	}, logger)
	a.Documents = usecase.NewDocumentUseCase(docRepo, render.NewPDFRenderer(), logger)
	// The wizard only checks that the user exists, so a cached read is fine.
	a.Wizard = usecase.NewWizardUseCase(cachedUsers, wizardRepo, logger)

	a.Reconciler = sched.NewPaymentReconciler(a.Purchases, purchaseRepo, cfg.Workers, logger)
	a.Auth = api.NewAuthManager(cfg.Security.AdminJWTSecret, !cfg.Runtime.Dev, "", cfg.Security.AdminTokenTTL)
	return a, nil
}

func (a *App) newGateway(cfg config.PaymentConfig) (adapter.PaymentGateway, error) {
	switch strings.ToLower(cfg.Provider) {
	case "sandbox":
		a.Sandbox = payAdapters.NewSandboxGateway(cfg.BaseURL)
		a.log.Warn().Msg("payment provider is the in-memory sandbox")
		return a.Sandbox, nil
	case "rest":
		gw, err := payAdapters.NewRESTGateway(cfg)
		if err != nil {
			return nil, fmt.Errorf("payment gateway: %w", err)
		}
		return gw, nil
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.Provider)
	}
}

// newAI routes by model name across the configured providers, falls back
// between them, and caps concurrent calls.
func newAI(ctx context.Context, cfg config.AIConfig, dev bool, logger *zerolog.Logger) (adapter.AIServiceAdapter, error) {
	byProvider := map[string]adapter.AIServiceAdapter{}
	var order []string

	if cfg.OpenAIKey != "" {
		oa, err := aiAdapters.NewOpenAIAdapter(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.DefaultModel, cfg.MaxOutputTokens)
		if err != nil {
			return nil, fmt.Errorf("openai adapter: %w", err)
		}
		byProvider["openai"] = oa
		order = append(order, "openai")
	}
	if cfg.GeminiKey != "" {
		gm, err := aiAdapters.NewGeminiAdapter(ctx, cfg.GeminiKey, cfg.GeminiURL, "", cfg.MaxOutputTokens)
		if err != nil {
			return nil, fmt.Errorf("gemini adapter: %w", err)
		}
		byProvider["gemini"] = gm
		order = append(order, "gemini")
	}

	if len(order) == 0 {
		if !dev {
			return nil, errors.New("no AI provider configured: set ai.openai_key or ai.gemini_key")
		}
		logger.Warn().Msg("no AI provider configured; using the echo adapter")
		return aiAdapters.NewNoopAIAdapter(), nil
	}

	defaultProvider := order[0]
	modelToProvider := map[string]string{}
	if strings.HasPrefix(strings.ToLower(cfg.DefaultModel), "gemini") {
		modelToProvider[cfg.DefaultModel] = "gemini"
		if _, ok := byProvider["gemini"]; ok {
			defaultProvider = "gemini"
		}
	}
	var fallback []string
	for _, p := range order {
		if p != defaultProvider {
			fallback = append(fallback, p)
		}
	}
	logger.Info().Strs("providers", order).Str("default", defaultProvider).Str("model", cfg.DefaultModel).Msg("AI adapters ready")

	multi := aiAdapters.NewMultiAIAdapter(defaultProvider, byProvider, modelToProvider, fallback, logger)
	return aiAdapters.NewLimitedAI(multi, cfg.ConcurrentLimit), nil
}

func newReceiptSender(cfg config.EmailConfig, tr *i18n.Translator, logger *zerolog.Logger) (adapter.ReceiptSender, error) {
	if cfg.SMTPHost == "" {
		logger.Warn().Msg("smtp not configured; receipts are logged only")
		return email.NewLogReceiptSender(logger), nil
	}
	s, err := email.NewSMTPReceiptSender(cfg, tr)
	if err != nil {
		return nil, fmt.Errorf("smtp: %w", err)
	}
	return s, nil
}

// Start runs the background workers until ctx is done. The receipt pool
// outlives ctx so Close can drain receipts already queued.
func (a *App) Start(ctx context.Context) {
	a.Receipts.Start(context.WithoutCancel(ctx))
	a.bg.Add(2)
	go func() {
		defer a.bg.Done()
		a.Reconciler.Start(ctx)
	}()
	go func() {
		defer a.bg.Done()
		if a.Pool != nil {
			pg.ReportPoolStats(ctx, a.Pool, 15*time.Second)
		}
	}()
}

// Handler builds the HTTP API on top of the use cases.
func (a *App) Handler() *api.Server {
	opts := api.Options{
		WebhookSecret:  a.Config.Payment.WebhookSecret,
		RequestTimeout: a.Config.Server.RequestTimeout,
		Translator:     a.Translator,
	}
	if a.Sandbox != nil {
		opts.Sandbox = a.Sandbox
	}
	return api.NewServer(api.Services{
		Users:     a.Users,
		Credits:   a.Credits,
		Purchases: a.Purchases,
		Tailor:    a.Tailor,
		Documents: a.Documents,
		Wizard:    a.Wizard,
	}, a.Auth, opts, a.log)
}

// Close waits for the background loops started by Start, then drains the
// receipt queue and releases connections. Cancel Start's context first.
func (a *App) Close() {
	a.bg.Wait()
	if a.Receipts != nil {
		a.Receipts.Stop()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}
