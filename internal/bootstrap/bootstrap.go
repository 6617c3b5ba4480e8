// Package bootstrap wires the application: configuration, logging, storage,
// the token issuer and the HTTP services, with graceful shutdown.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	domainauth "github.com/NjengaIWJ/tetea-jamii/internal/domain/auth"
	domaincontent "github.com/NjengaIWJ/tetea-jamii/internal/domain/content"
	domainlimiter "github.com/NjengaIWJ/tetea-jamii/internal/domain/limiter"
	domainmail "github.com/NjengaIWJ/tetea-jamii/internal/domain/mail"
	domainmedia "github.com/NjengaIWJ/tetea-jamii/internal/domain/media"
	platformconfig "github.com/NjengaIWJ/tetea-jamii/internal/platform/config"
	platformerrors "github.com/NjengaIWJ/tetea-jamii/internal/platform/errors"
	platformlogging "github.com/NjengaIWJ/tetea-jamii/internal/platform/logging"
	platformstorage "github.com/NjengaIWJ/tetea-jamii/internal/platform/storage"
	httptransport "github.com/NjengaIWJ/tetea-jamii/internal/transport/http"
	httpcms "github.com/NjengaIWJ/tetea-jamii/internal/transport/http/cms"
	httpsession "github.com/NjengaIWJ/tetea-jamii/internal/transport/http/session"
)

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

type appState struct {
	config     *platformconfig.Config
	configPath string
	logger     *platformlogging.Logger
	db         *gorm.DB
	limiter    domainlimiter.Limiter
	mediaHost  domainmedia.Host
	mailer     *domainmail.Dispatcher
	issuer     *domainauth.Issuer
	content    *domaincontent.Service
}

// Run drives the whole service lifecycle: init graph, HTTP server, signal
// handling and graceful shutdown.
func Run(ctx context.Context) error {
	state := &appState{}

	if err := executeInitSteps(ctx, InitGraph(), state); err != nil {
		return err
	}

	logger := state.logger
	logger.InfoTag("boot", "initialisation complete, starting services")

	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	signalCtx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(rootCtx)

	if _, err := startHTTPServer(state, group, groupCtx); err != nil {
		cancel()
		return err
	}

	if err := waitForShutdown(signalCtx, cancel, logger, group); err != nil {
		return err
	}

	if state.mailer != nil {
		state.mailer.Wait()
	}
	logger.InfoTag("boot", "all services stopped")
	logger.Close()
	return nil
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(platformerrors.KindBootstrap, "execute init steps", "nil bootstrap state")
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(
					platformerrors.KindBootstrap,
					step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep),
				)
			}
		}
		if step.Execute == nil {
			return platformerrors.New(platformerrors.KindBootstrap, step.ID, "missing execute function")
		}
		if err := step.Execute(ctx, state); err != nil {
			var typed *platformerrors.Error
			if errors.As(err, &typed) {
				return err
			}
			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

// InitGraph declares the initialisation steps and their dependencies.
func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init",
			Title:     "Initialise logging",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initLoggingStep,
		},
		{
			ID:        "storage:open",
			Title:     "Open database",
			DependsOn: []string{"config:load", "logging:init"},
			Kind:      platformerrors.KindStorage,
			Execute:   openStorageStep,
		},
		{
			ID:        "limiter:init",
			Title:     "Initialise login limiter",
			DependsOn: []string{"config:load", "logging:init"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initLimiterStep,
		},
		{
			ID:        "media:init-host",
			Title:     "Initialise media host",
			DependsOn: []string{"config:load", "logging:init"},
			Kind:      platformerrors.KindMedia,
			Execute:   initMediaHostStep,
		},
		{
			ID:        "mail:init",
			Title:     "Initialise mail dispatcher",
			DependsOn: []string{"config:load", "logging:init"},
			Kind:      platformerrors.KindMail,
			Execute:   initMailStep,
		},
		{
			ID:        "auth:init-issuer",
			Title:     "Initialise token issuer",
			DependsOn: []string{"storage:open", "limiter:init"},
			Kind:      platformerrors.KindAuth,
			Execute:   initIssuerStep,
		},
		{
			ID:        "content:init-service",
			Title:     "Initialise content service",
			DependsOn: []string{"storage:open", "media:init-host"},
			Kind:      platformerrors.KindContent,
			Execute:   initContentStep,
		},
	}
}

func loadConfigStep(_ context.Context, state *appState) error {
	result, err := platformconfig.NewLoader().Load()
	if err != nil {
		return err
	}
	state.config = result.Config
	state.configPath = result.Path
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	logger, err := platformlogging.New(platformlogging.Config{
		Level:    state.config.Log.Level,
		Dir:      state.config.Log.Dir,
		Filename: state.config.Log.File,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "logging:init", "failed to initialise logging", err)
	}
	state.logger = logger

	source := state.configPath
	if source == "" {
		source = "defaults+env"
	}
	logger.InfoTag("boot", "logging ready [%s] config from %s", state.config.Log.Level, source)
	return nil
}

func openStorageStep(_ context.Context, state *appState) error {
	db, err := platformstorage.Open(state.config.Storage.DSN)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "storage:open", "failed to open database", err)
	}
	state.db = db
	state.logger.InfoTag("boot", "database ready at %s", state.config.Storage.DSN)
	return nil
}

func initLimiterStep(_ context.Context, state *appState) error {
	cfg := state.config.Limiter
	if !cfg.Enabled || cfg.Addr == "" {
		state.limiter = domainlimiter.Noop{}
		state.logger.InfoTag("boot", "login limiter disabled")
		return nil
	}

	lim, err := domainlimiter.NewRedis(domainlimiter.RedisConfig{
		Addr:        cfg.Addr,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DB:          cfg.DB,
		Prefix:      cfg.Prefix,
		MaxFailures: cfg.MaxFailures,
		BlockFor:    cfg.BlockFor,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "limiter:init", "failed to connect login limiter", err)
	}
	state.limiter = lim
	state.logger.InfoTag("boot", "login limiter ready at %s", cfg.Addr)
	return nil
}

func initMediaHostStep(ctx context.Context, state *appState) error {
	cfg := state.config.Media
	if cfg.Bucket == "" {
		// no object store configured; serve uploads from the static dir
		dir := state.config.Web.StaticDir + "/uploads"
		baseURL := cfg.PublicURL
		if baseURL == "" {
			baseURL = "/uploads"
		}
		host, err := domainmedia.NewDiskHost(dir, baseURL)
		if err != nil {
			return platformerrors.Wrap(platformerrors.KindMedia, "media:init-host", "failed to initialise disk media host", err)
		}
		state.mediaHost = host
		state.logger.InfoTag("boot", "media host ready (disk: %s)", dir)
		return nil
	}

	host, err := domainmedia.NewS3Host(ctx, cfg, state.logger)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindMedia, "media:init-host", "failed to initialise media host", err)
	}
	state.mediaHost = host
	state.logger.InfoTag("boot", "media host ready (bucket: %s)", cfg.Bucket)
	return nil
}

func initMailStep(_ context.Context, state *appState) error {
	var sender domainmail.Sender
	if state.config.Mail.Host != "" {
		smtp, err := domainmail.NewSMTPSender(state.config.Mail)
		if err != nil {
			return platformerrors.Wrap(platformerrors.KindMail, "mail:init", "failed to initialise mail sender", err)
		}
		sender = smtp
	} else {
		state.logger.WarnTag("boot", "no mail host configured, contact form disabled")
		return nil
	}

	dispatcher, err := domainmail.NewDispatcher(EventBus.New(), sender, state.logger)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindMail, "mail:init", "failed to initialise mail dispatcher", err)
	}
	state.mailer = dispatcher
	state.logger.InfoTag("boot", "mail dispatcher ready (%s)", state.config.Mail.Host)
	return nil
}

func initIssuerStep(ctx context.Context, state *appState) error {
	signer, err := domainauth.NewTokenSigner(state.config.Auth.Secret, state.config.Auth.TokenExpiry)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindAuth, "auth:init-issuer", "failed to create token signer", err)
	}

	issuer, err := domainauth.NewIssuer(domainauth.Options{
		DB:      state.db,
		Signer:  signer,
		Limiter: state.limiter,
		Logger:  state.logger,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindAuth, "auth:init-issuer", "failed to create token issuer", err)
	}
	state.issuer = issuer

	auth := state.config.Auth
	if err := issuer.SeedAdmin(ctx, auth.SeedUsername, auth.SeedEmail, auth.SeedPassword); err != nil {
		return platformerrors.Wrap(platformerrors.KindAuth, "auth:init-issuer", "failed to seed admin account", err)
	}
	return nil
}

func initContentStep(_ context.Context, state *appState) error {
	cfg := state.config.Media
	svc, err := domaincontent.NewService(domaincontent.Options{
		DB:   state.db,
		Host: state.mediaHost,
		Processor: &domainmedia.Processor{
			MaxFileSize:  cfg.MaxFileSize,
			MaxFileCount: cfg.MaxFileCount,
			MaxDimension: cfg.MaxDimension,
			Quality:      cfg.Quality,
		},
		Logger: state.logger,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindContent, "content:init-service", "failed to create content service", err)
	}
	state.content = svc
	return nil
}

func startHTTPServer(state *appState, g *errgroup.Group, groupCtx context.Context) (*http.Server, error) {
	config := state.config
	logger := state.logger

	httpRouter, err := httptransport.Build(httptransport.Options{
		Config: config,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	router := httpRouter.Engine

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			httptransport.RespondError(c, http.StatusNotFound, "api Not found", gin.H{})
			return
		}
		c.File(config.Web.StaticDir + "/index.html")
	})

	secured := httpRouter.API.Group("")
	secured.Use(httptransport.AuthRequired(state.issuer))

	sessionService, err := httpsession.NewService(state.issuer, config, logger)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "session:new-service", "failed to create session service", err)
	}
	if err := sessionService.Register(groupCtx, httpRouter.Root, secured); err != nil {
		return nil, err
	}

	cmsService, err := httpcms.NewService(state.content, state.mailer, logger)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "cms:new-service", "failed to create cms service", err)
	}
	if err := cmsService.Register(groupCtx, httpRouter.API, secured); err != nil {
		return nil, err
	}

	addr := config.Server.IP + ":" + strconv.Itoa(config.Server.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	g.Go(func() error {
		logger.InfoTag("HTTP", "server listening on http://localhost:%d", config.Server.Port)

		go func() {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.ErrorTag("HTTP", "server shutdown failed: %v", err)
			} else {
				logger.InfoTag("HTTP", "server shut down cleanly")
			}
		}()

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorTag("HTTP", "server failed: %v", err)
			return err
		}
		return nil
	})

	return httpServer, nil
}

func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	logger *platformlogging.Logger,
	g *errgroup.Group,
) error {
	<-ctx.Done()
	logger.InfoTag("boot", "shutdown signal received (%v), cleaning up", context.Cause(ctx))

	cancel()

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.ErrorTag("boot", "error during shutdown: %v", err)
			return err
		}
	case <-time.After(15 * time.Second):
		logger.ErrorTag("boot", "shutdown timed out, forcing exit")
		return errors.New("shutdown timed out")
	}
	return nil
}
