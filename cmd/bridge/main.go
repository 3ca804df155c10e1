// Command bridge runs the telephony-to-realtime voice bridge: it answers
// provider call webhooks, accepts the media stream, and relays each call to
// the conversational speech service.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/voxbridge/realtime"
	"github.com/voxbridge/realtime/internal/bridge"
	"github.com/voxbridge/realtime/internal/logging"
	"github.com/voxbridge/realtime/internal/persona"
	"github.com/voxbridge/realtime/internal/store"
	"github.com/voxbridge/realtime/internal/webhook"
)

func main() {
	_ = godotenv.Load()

	log, err := newLogger()
	if err != nil {
		os.Stderr.WriteString("logger init failed: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Fatal("bridge exited", zap.Error(err))
	}
}

func run(log *zap.Logger) error {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return errors.New("OPENAI_API_KEY is required")
	}
	model := envOr("REALTIME_MODEL", "gpt-4o-realtime-preview")

	st, err := store.Open(envOr("DB_PATH", "data/bridge.db"))
	if err != nil {
		return err
	}
	defer st.Close()

	p := defaultPersona()
	if path := os.Getenv("PERSONA_FILE"); path != "" {
		p, err = persona.Load(path)
		if err != nil {
			return err
		}
	}
	log.Info("persona loaded", zap.String("name", p.Name), zap.String("voice", p.Voice))

	clientLog := logging.NewClientAdapter(log.Named("realtime"))
	newVoice := func() (bridge.Voice, error) {
		client, err := realtime.NewClient(realtime.Config{
			URL:        os.Getenv("REALTIME_URL"), // empty means the hosted endpoint
			Credential: realtime.Bearer(apiKey),
			Session:    p.SessionConfig(model),
			Logger:     clientLog,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	manager := bridge.NewManager(newVoice, st, p.Greeting, log.Named("bridge"))
	srv := webhook.NewServer(webhook.Config{
		AuthToken:  os.Getenv("PROVIDER_AUTH_TOKEN"),
		PublicHost: os.Getenv("PUBLIC_HOST"),
	}, st, manager, log.Named("webhook"))

	addr := envOr("BRIDGE_ADDR", ":8080")
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	manager.Shutdown(store.StatusCompleted)
	return nil
}

// newLogger builds the process logger: a size-rotated JSON file when
// LOG_FILE is set, the console logger otherwise.
func newLogger() (*zap.Logger, error) {
	level := os.Getenv("LOG_LEVEL")
	if file := os.Getenv("LOG_FILE"); file != "" {
		return logging.NewFile(level, logging.FileConfig{
			Filename:   file,
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 14,
			Compress:   true,
		}), nil
	}
	return logging.New(level)
}

func defaultPersona() *persona.Persona {
	return &persona.Persona{
		Name:             "assistant",
		Instructions:     "You are a friendly phone assistant. Keep answers short; the caller is on a phone line.",
		Greeting:         "Hello! How can I help you today?",
		TranscribeCaller: true,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
