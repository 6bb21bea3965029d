package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/backoffice-session/activity"
	"github.com/jrsteele09/backoffice-session/backend/rest"
	"github.com/jrsteele09/backoffice-session/internal/config"
	"github.com/jrsteele09/backoffice-session/profilecache"
	"github.com/jrsteele09/backoffice-session/session"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// app holds the wired collaborators shared by every command.
type app struct {
	client    *rest.Client
	cache     profilecache.Store
	heartbeat *activity.Heartbeat
	manager   *session.Manager
	redis     *redis.Client
}

func newApp(c config.Config) (*app, error) {
	client, err := rest.New(c.GetBackendURL(), c.GetBackendAPIKey(), rest.WithSessionFile(c.GetSessionFile()))
	if err != nil {
		return nil, fmt.Errorf("backend client: %w", err)
	}

	a := &app{client: client}
	if a.cache, err = a.newCache(c); err != nil {
		return nil, err
	}

	a.heartbeat, err = activity.New(client, activity.WithInterval(c.GetHeartbeatInterval()))
	if err != nil {
		return nil, fmt.Errorf("heartbeat: %w", err)
	}

	a.manager, err = session.NewManager(session.Deps{
		Auth:     client,
		Profiles: client,
		Cache:    a.cache,
		Activity: a.heartbeat,
	}, session.WithFetchTimeout(c.GetProfileFetchTimeout()))
	if err != nil {
		return nil, fmt.Errorf("session manager: %w", err)
	}
	return a, nil
}

func (a *app) newCache(c config.Config) (profilecache.Store, error) {
	if c.GetCacheKind() != config.CacheRedis {
		store, err := profilecache.NewFileStore(c.GetCacheFile())
		if err != nil {
			return nil, fmt.Errorf("profile cache: %w", err)
		}
		return store, nil
	}

	a.redis = redis.NewClient(&redis.Options{Addr: c.GetRedisAddr()})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := a.redis.Ping(ctx).Err(); err != nil {
		_ = a.redis.Close()
		return nil, fmt.Errorf("redis %s: %w", c.GetRedisAddr(), err)
	}
	store, err := profilecache.NewRedisStore(a.redis, profilecache.WithKey(c.GetRedisKey()))
	if err != nil {
		return nil, fmt.Errorf("profile cache: %w", err)
	}
	return store, nil
}

// start bootstraps the manager and waits, up to timeout, for it to settle.
func (a *app) start(ctx context.Context, timeout time.Duration) error {
	a.manager.Start(ctx)
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := a.manager.WaitReady(waitCtx); err != nil {
		return errors.New("session did not finish loading, try again")
	}
	return nil
}

func (a *app) close() {
	a.manager.Close()
	a.heartbeat.Wait()
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close redis client")
		}
	}
}
