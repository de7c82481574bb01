// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command wafproxy runs the reverse-proxy WAF core: normalizer, IP fast
// paths, rate limiter, rule engine, router, and forward proxy wired behind
// a single HTTP listener, with administrative endpoints optionally split
// onto their own address.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"wafproxy/internal/config"
	"wafproxy/internal/limiter"
	"wafproxy/internal/logging"
	"wafproxy/internal/middleware"
	"wafproxy/internal/proxy"
	"wafproxy/internal/werr"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the WAF configuration file")
	addr := flag.String("addr", ":8080", "public HTTP listen address")
	adminAddr := flag.String("admin-addr", "", "if set, serve /healthz, /readyz, /metrics on this separate address instead of the public listener")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	idleEvictAfter := flag.Duration("idle-evict-after", 5*time.Minute, "how long an untouched, full rate-limit bucket survives before eviction")
	evictScanInterval := flag.Duration("evict-scan-interval", time.Minute, "how often the rate-limiter eviction sweep runs")
	flag.Parse()

	log := logging.New(*logLevel)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Error("failed to load configuration")
		if we, ok := err.(*werr.Error); ok && we.Kind == werr.ConfigFatal {
			return 2
		}
		return 1
	}
	configs := config.NewStore(cfg)

	rpm := cfg.RateLimits.RequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}
	limiterStore := limiter.NewStore(rpm, cfg.RateLimits.Shards)
	reaper := limiter.NewReaper(limiterStore, *evictScanInterval, *idleEvictAfter)
	reaper.Start()
	defer reaper.Stop()

	transportSettings := proxySettingsFrom(cfg.ProxySettings)
	forwarder := proxy.New(proxy.NewTransport(transportSettings), transportSettings.RequestTimeout)

	orchestrator, err := middleware.New(configs, limiterStore, forwarder, log)
	if err != nil {
		log.WithError(err).Error("failed to initialize orchestrator")
		return 2
	}

	ready := &middleware.Ready{}

	var adminServer *http.Server
	var publicHandler http.Handler
	if *adminAddr != "" {
		publicHandler = orchestrator
		adminServer = &http.Server{Addr: *adminAddr, Handler: middleware.AdminRouter(ready)}
	} else {
		publicHandler = middleware.PublicRouter(ready, orchestrator)
	}

	publicServer := &http.Server{Addr: *addr, Handler: publicHandler}

	errCh := make(chan error, 2)
	go func() {
		log.Infof("wafproxy listening on %s", *addr)
		if err := publicServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("public listener: %w", err)
		}
	}()
	if adminServer != nil {
		go func() {
			log.Infof("wafproxy admin endpoints listening on %s", *adminAddr)
			if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("admin listener: %w", err)
			}
		}()
	}

	ready.Set(true)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.Infof("received %s, shutting down", sig)
	case err := <-errCh:
		log.WithError(err).Error("listener failed")
		ready.Set(false)
		shutdown(publicServer, adminServer, log)
		return 1
	}

	ready.Set(false)
	shutdown(publicServer, adminServer, log)
	return 0
}

func shutdown(publicServer, adminServer *http.Server, log *logrus.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = publicServer.Shutdown(ctx)
	if adminServer != nil {
		_ = adminServer.Shutdown(ctx)
	}
	log.Info("wafproxy stopped")
}

func proxySettingsFrom(p config.ProxySettings) proxy.TransportSettings {
	s := proxy.DefaultTransportSettings()
	if p.DialTimeoutMS > 0 {
		s.DialTimeout = time.Duration(p.DialTimeoutMS) * time.Millisecond
	}
	if p.ResponseHeaderTimeoutMS > 0 {
		s.ResponseHeaderTimeout = time.Duration(p.ResponseHeaderTimeoutMS) * time.Millisecond
	}
	if p.IdleConnTimeoutMS > 0 {
		s.IdleConnTimeout = time.Duration(p.IdleConnTimeoutMS) * time.Millisecond
	}
	if p.MaxIdleConns > 0 {
		s.MaxIdleConns = p.MaxIdleConns
	}
	if p.MaxIdleConnsPerHost > 0 {
		s.MaxIdleConnsPerHost = p.MaxIdleConnsPerHost
	}
	if p.RequestTimeoutMS > 0 {
		s.RequestTimeout = time.Duration(p.RequestTimeoutMS) * time.Millisecond
	}
	return s
}
