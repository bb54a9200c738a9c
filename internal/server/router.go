package server

import (
	"context"
	"net/http"
	"time"

	"github.com/SWAYAM31220/lootspy/internal/log"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter serves the liveness page, the store health check and metrics.
func NewRouter(store Pinger, metrics http.Handler, logger *log.Logger) *chi.Mux {
	logger = logger.Named("http")
	r := chi.NewRouter()
	r.Use(httprate.Limit(100, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Userbot running"))
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			logger.Error("Store health check failed", zap.Error(err))
			http.Error(w, "Store unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("OK"))
	})

	r.Method(http.MethodGet, "/metrics", metrics)
	return r
}

// Serve runs srv until ctx is done, then shuts it down.
func Serve(ctx context.Context, srv *http.Server, logger *log.Logger) error {
	errc := make(chan error, 1)
	go func() {
		logger.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
		return err
	}
	return nil
}
