package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"example.com/pegboard/internal/auth"
	"example.com/pegboard/internal/config"
	"example.com/pegboard/internal/httpapi"
	"example.com/pegboard/internal/lobby"
	"example.com/pegboard/internal/room"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg config.Config
	log *slog.Logger

	db  *pgxpool.Pool
	rdb *redis.Client

	rooms *room.Service
	srv   *http.Server
}

func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	a := &App{cfg: cfg, log: log}

	store, err := a.lobbyStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	// --- Lobby ---
	tokens := auth.NewService([]byte(cfg.Lobby.Secret))
	counter := lobby.NewCounter(store, log.With("component", "lobby"))
	if cfg.Lobby.ResetOnStart {
		if err := counter.Reset(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	var presence lobby.Presence = lobby.Local{Counter: counter}
	if cfg.Lobby.URL != "" {
		presence = lobby.NewClient(cfg.Lobby.URL, tokens, cfg.Lobby.TokenTTL, cfg.Lobby.Timeout)
		log.Info("presence goes to remote lobby", "url", cfg.Lobby.URL)
	}

	// --- Rooms ---
	a.rooms = room.NewService(room.Options{
		Presence:        presence,
		Logger:          log,
		PresenceTimeout: cfg.Lobby.Timeout,
	}, cfg.Game.RoomIdleTTL)

	a.srv = &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           a.routes(counter, tokens),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}
	return a, nil
}

func (a *App) routes(counter *lobby.Counter, tokens *auth.Service) chi.Router {
	r := httpapi.NewRouter(a.log)
	room.NewHandler(a.rooms, a.log, a.cfg.Game.SendBuffer).RegisterRoutes(r)
	lobby.NewHandler(counter, a.log).RegisterRoutes(r, httpapi.RequireScope(tokens, auth.ScopePresence))
	return r
}

// lobbyStore connects only the backend the config selects.
func (a *App) lobbyStore(ctx context.Context) (lobby.Store, error) {
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	switch a.cfg.Lobby.Backend {
	case config.BackendPostgres:
		dbpool, err := pgxpool.New(ctx, a.cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("pgxpool: %w", err)
		}
		a.db = dbpool
		if err := dbpool.Ping(pingCtx); err != nil {
			return nil, fmt.Errorf("postgres ping: %w", err)
		}
		return lobby.NewPostgresStore(dbpool), nil

	case config.BackendRedis:
		a.rdb = redis.NewClient(&redis.Options{
			Addr: a.cfg.Redis.Addr,
			DB:   a.cfg.Redis.DB,
		})
		if err := a.rdb.Ping(pingCtx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping (%s db=%d): %w", a.cfg.Redis.Addr, a.cfg.Redis.DB, err)
		}
		return lobby.NewRedisStore(a.rdb), nil

	default:
		return lobby.NewMemoryStore(), nil
	}
}

// Handler exposes the router, mainly for tests.
func (a *App) Handler() http.Handler { return a.srv.Handler }

func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	a.log.Info("http server starting", "addr", a.cfg.HTTP.Addr, "lobby_backend", a.cfg.Lobby.Backend)

	g.Go(func() error {
		err := a.srv.ListenAndServe()
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		return a.rooms.RunCleanup(gctx, a.cfg.Game.CleanupInterval)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		a.log.Info("http server shutting down")
		_ = a.srv.Shutdown(shutdownCtx)
		return nil
	})

	err := g.Wait()
	a.Close()
	return err
}

// Close stops every room, then releases the backends. Best effort.
func (a *App) Close() {
	if a.rooms != nil {
		a.rooms.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
}
