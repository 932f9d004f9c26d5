package main

import (
	"context"
	"errors"
	"fmt"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"schmagent/internal/pkg/chatModel"
	"schmagent/internal/pkg/chatSession"
	"schmagent/internal/pkg/clipboard"
	"schmagent/internal/pkg/config"
	"schmagent/internal/pkg/console"
	"schmagent/internal/pkg/cookies"
	"schmagent/internal/pkg/history"
	"schmagent/internal/pkg/httpHandlers"
	"schmagent/internal/pkg/sessions"
	"schmagent/internal/pkg/settings"
	"schmagent/internal/pkg/web"
	"schmagent/internal/pkg/websocketServer"
	webAssets "schmagent/web"
	"syscall"
	"time"
)

// Linux configuration examples
// SCHMAGENT_PORT=321 ./schmagent
// ./schmagent --Port 123 --Mode terminal

const applicationName = "schmagent"
const serverShutdownTimeout = 5 * time.Second
const staticRoot = "static"
const templatesDir = "templates"
const uiUrlPrefix = "/chat"
const defaultUiUrl = "index.html"
const cookieMaxAge = 24 * time.Hour
const defaultEnvFile = ".env"

const (
	modeWeb      = "web"
	modeTerminal = "terminal"
)

type application struct {
	appConfig *applicationConfig
	settings  *settings.Config
	model     chatModel.ChatModel
	clipboard *clipboard.Manager
	store     *history.Store
}

func main() {
	setupZerolog()

	log.Info().Msg("Parsing configuration")
	appConfig, err := parseApplicationConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		log.Fatal().Err(err).Msg("configuration parsing failed")
	}

	if appConfig.Mode != modeWeb && appConfig.Mode != modeTerminal {
		log.Fatal().Str("mode", appConfig.Mode).Msg("unknown mode, expected web or terminal")
	}

	cfg, err := settings.Load(settings.DefaultPaths())
	if err != nil {
		log.Fatal().Err(err).Msg("settings.Load() failed")
	}
	zerolog.SetGlobalLevel(cfg.LogLevel())
	if err := cfg.Validate(); err != nil {
		log.Warn().Err(err).Msg("settings contain invalid values")
	}

	log.Info().Msg("Starting up")

	app := &application{appConfig: appConfig, settings: cfg}
	app.store = openHistory(cfg)

	app.model = chatModel.New(cfg)
	app.model.SetSystemPrompt(chatModel.DefaultSystemPrompt)
	log.Info().Str("provider", app.model.Provider()).Str("model", app.model.Info().Model).Msg("chat model ready")

	app.clipboard = clipboard.New(cfg.Settings().Security)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cfg.Watch(ctx, app.onSettingsChanged); err != nil {
		log.Warn().Err(err).Msg("settings changes will not be picked up until restart")
	}

	switch appConfig.Mode {
	case modeTerminal:
		err = app.runTerminal(ctx)
	default:
		err = app.runWeb(ctx)
	}

	app.close()
	if err != nil {
		log.Fatal().Err(err).Msg("application failed")
	}
	log.Info().Msg("Application stopped")
}

// parseApplicationConfig loads the dotenv file named by SCHMAGENT_ENVFILE (default .env) before the flags are
// parsed, so SCHMAGENT_* values from it reach the flags. A different --EnvFile is loaded afterwards and only
// affects the settings.
func parseApplicationConfig(args []string) (*applicationConfig, error) {
	envFile := defaultEnvFile
	if value := os.Getenv(config.EnvPrefix(applicationName) + "_ENVFILE"); value != "" {
		envFile = value
	}
	loadEnvFile(envFile)

	appConfig := &applicationConfig{}
	if err := config.ParseArgs(appConfig, applicationName, args); err != nil {
		return nil, err
	}

	if appConfig.EnvFile != envFile {
		loadEnvFile(appConfig.EnvFile)
	}
	return appConfig, nil
}

func loadEnvFile(path string) {
	if path == "" {
		return
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Debug().Str("path", path).Msg("no dotenv file")
			return
		}
		log.Warn().Err(err).Str("path", path).Msg("godotenv.Load() failed")
		return
	}
	log.Info().Str("path", path).Msg("dotenv file loaded")
}

func openHistory(cfg *settings.Config) *history.Store {
	sessionSettings := cfg.Settings().Session
	if !sessionSettings.Persistence {
		return nil
	}

	store, err := history.Open(cfg.Paths().HistoryDatabase())
	if err != nil {
		log.Error().Err(err).Msg("history.Open() failed, conversations will not be saved")
		return nil
	}

	removed, err := store.Prune(context.Background(), sessionSettings.MaxHistorySessions)
	if err != nil {
		log.Error().Err(err).Msg("history.Prune() failed")
	} else if removed > 0 {
		log.Info().Int64("removed", removed).Msg("old conversations pruned")
	}
	return store
}

func (instance *application) onSettingsChanged(changed settings.Settings) {
	zerolog.SetGlobalLevel(instance.settings.LogLevel())
	instance.clipboard.Configure(changed.Security)
}

func (instance *application) conversationStore() chatSession.ConversationStore {
	if instance.store == nil {
		return nil
	}
	return instance.store
}

func (instance *application) conversationLister() httpHandlers.ConversationLister {
	if instance.store == nil {
		return nil
	}
	return instance.store
}

func (instance *application) historyLimit() int {
	return instance.settings.GetInt("session", "message_history_limit", 50)
}

func (instance *application) runTerminal(ctx context.Context) error {
	repl, err := console.New(console.Options{
		Model:          instance.model,
		ResponseWait:   instance.appConfig.ResponseTimeout,
		HistoryLimit:   instance.historyLimit(),
		History:        instance.conversationStore(),
		ConversationID: uuid.NewString(),
		Clipboard:      instance.clipboard,
		Input:          os.Stdin,
		Output:         os.Stdout,
	})
	if err != nil {
		return err
	}
	return repl.Run(ctx)
}

func (instance *application) runWeb(ctx context.Context) error {
	templates, err := web.TemplateParseFSRecursive(webAssets.TemplateFS, templatesDir, ".gohtml", nil)
	if err != nil {
		return fmt.Errorf("template parsing failed: %w", err)
	}

	secretKey, err := cookies.RandomSecretKey()
	if err != nil {
		return err
	}
	codec := cookies.NewCodec(secretKey, cookieMaxAge, instance.appConfig.SecureCookie)

	sessionManager := sessions.New(func(id uuid.UUID, responseFunc chatSession.ChatBlockResponseFunc) (chatSession.ChatSession, error) {
		return chatSession.New(chatSession.Options{
			Model:          instance.model,
			ResponseWait:   instance.appConfig.ResponseTimeout,
			HistoryLimit:   instance.historyLimit(),
			History:        instance.conversationStore(),
			ConversationID: id.String(),
		}, responseFunc)
	})
	notificationServer := websocketServer.New(codec.GetIdFromCookie)
	handlers := httpHandlers.New(httpHandlers.Dependencies{
		Templates:          templates,
		SessionManager:     sessionManager,
		NotificationServer: notificationServer,
		Cookies:            codec,
		Settings:           instance.settings,
		Model:              instance.model,
		Clipboard:          instance.clipboard,
		History:            instance.conversationLister(),
	})

	router, err := newRouter(handlers, notificationServer, instance.appConfig.SimulatedDelay)
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", instance.appConfig.Host, instance.appConfig.Port))
	if err != nil {
		return fmt.Errorf("net.Listen failed: %w", err)
	}
	server := startHttpServer(listener, router)
	log.Info().Str("url", fmt.Sprintf("http://%s%s", listener.Addr(), uiUrlPrefix)).Msg("web interface ready")

	<-ctx.Done()
	log.Info().Msg("Application stopping")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server.Shutdown failed")
	}
	sessionManager.Shutdown()
	return nil
}

func newRouter(handlers *httpHandlers.ChatHandlers, notificationServer websocketServer.WebsocketServer,
	simulatedDelay int) (http.Handler, error) {

	httpLogger := httplog.NewLogger("schmagent-api", httplog.Options{
		LogLevel: slog.LevelDebug,
		JSON:     true,
		Concise:  true,
	})

	staticHandler, err := web.StaticHandler(webAssets.StaticFS, staticRoot, uiUrlPrefix, defaultUiUrl)
	if err != nil {
		return nil, fmt.Errorf("static assets failed: %w", err)
	}

	router := chi.NewRouter()
	router.Use(httplog.RequestLogger(httpLogger))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:*",
			"http://127.0.0.1:*",
		},
	}))

	router.Handle(uiUrlPrefix+"*", staticHandler)
	router.HandleFunc("/api/notifications", notificationServer.Handler)

	router.Handle("GET /api/main", web.Handler{Request: handlers.Main, SimulatedDelay: simulatedDelay})
	router.Handle("POST /api/ask", web.Handler{Request: handlers.Ask, SimulatedDelay: simulatedDelay})
	router.Handle("POST /api/paste", web.Handler{Request: handlers.Paste, SimulatedDelay: simulatedDelay})
	router.Handle("POST /api/keys", web.Handler{Request: handlers.SaveKey, SimulatedDelay: simulatedDelay})
	router.Handle("GET /api/settings", web.Handler{Request: handlers.Settings, SimulatedDelay: simulatedDelay})
	router.Handle("GET /api/history", web.Handler{Request: handlers.History, SimulatedDelay: simulatedDelay})

	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, uiUrlPrefix, http.StatusPermanentRedirect)
	})

	return router, nil
}

func startHttpServer(listener net.Listener, handler http.Handler) *http.Server {
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Msg("Server is about to start")

		err := server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server.Serve failed")
		}

		log.Info().Msg("Server stopped")
	}()
	return server
}

func (instance *application) close() {
	instance.clipboard.Close()
	if instance.store != nil {
		if err := instance.store.Close(); err != nil {
			log.Error().Err(err).Msg("history.Close() failed")
		}
	}
}

func setupZerolog() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = zerolog.New(os.Stderr).
		With().
		Timestamp().
		Logger()
}
