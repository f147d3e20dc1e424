// Package health implementa los checks de liveness/readiness.
package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/socialid/internal/cache"
	"github.com/dropDatabas3/socialid/internal/store/core"
)

type Service struct {
	Repo  core.Repository
	Cache cache.Client

	Version string
	Env     string
}

type Status struct {
	Status  string            `json:"status"`
	Version string            `json:"version,omitempty"`
	Env     string            `json:"env,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// Live: el proceso responde. Sin dependencias.
func (s *Service) Live() Status {
	return Status{Status: "ok", Version: s.Version, Env: s.Env}
}

// Ready chequea DB y cache en paralelo. Cualquier fallo degrada el
// status a "degraded" pero igual reporta cada check.
func (s *Service) Ready(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var mu sync.Mutex
	checks := map[string]string{"db": "ok", "cache": "ok"}
	set := func(name string, err error) {
		if err == nil {
			return
		}
		mu.Lock()
		checks[name] = err.Error()
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		set("db", s.Repo.Ping(gctx))
		return nil
	})
	g.Go(func() error {
		set("cache", s.Cache.Ping(gctx))
		return nil
	})
	_ = g.Wait()

	st := Status{Status: "ok", Version: s.Version, Env: s.Env, Checks: checks}
	for _, v := range checks {
		if v != "ok" {
			st.Status = "degraded"
			break
		}
	}
	return st
}
