package main

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/bugsnag/panicwrap"
	"github.com/juggernaut-live/roster/data/events"
	"github.com/juggernaut-live/roster/data/query"
	"github.com/juggernaut-live/roster/internal/api/rest"
	"github.com/juggernaut-live/roster/internal/configure"
	"github.com/juggernaut-live/roster/internal/global"
	"github.com/juggernaut-live/roster/internal/health"
	"github.com/juggernaut-live/roster/internal/monitoring"
	"github.com/juggernaut-live/roster/internal/pprof"
	"github.com/juggernaut-live/roster/internal/svc/prometheus"
	"github.com/juggernaut-live/roster/internal/svc/redis"
	"github.com/juggernaut-live/roster/internal/svc/roster"
	"go.uber.org/zap"
)

var (
	Version = "development"
	Unix    = ""
	Time    = "unknown"
	User    = "unknown"
)

func init() {
	if i, err := strconv.Atoi(Unix); err == nil {
		Time = time.Unix(int64(i), 0).Format(time.RFC3339)
	}
}

func main() {
	config := configure.New()

	exitStatus, err := panicwrap.BasicWrap(func(s string) {
		zap.S().Errorw("panic detected",
			"panic", s,
		)
	})
	if err != nil {
		zap.S().Errorw("failed to setup panic handler",
			"error", err,
		)
		os.Exit(2)
	}

	if exitStatus >= 0 {
		os.Exit(exitStatus)
	}

	if !config.NoHeader {
		zap.S().Info("Juggernaut Roster")
		zap.S().Infof("Version: %s", Version)
		zap.S().Infof("build.Time: %s", Time)
		zap.S().Infof("build.User: %s", User)
	}

	zap.S().Debugf("MaxProcs: %d", runtime.GOMAXPROCS(0))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	gCtx, cancel := global.WithCancel(global.New(context.Background(), config))

	{
		ctx, cancel := global.WithTimeout(gCtx, time.Second*15)
		gCtx.Inst().Redis, err = redis.Setup(ctx, redis.SetupOptions{
			Username:   config.Redis.Username,
			Password:   config.Redis.Password,
			Database:   config.Redis.Database,
			Addresses:  config.Redis.Addresses,
			Sentinel:   config.Redis.Sentinel,
			MasterName: config.Redis.MasterName,
		})
		cancel()
		if err != nil {
			zap.S().Fatalw("failed to connect to redis",
				"error", err,
			)
		}
	}

	{
		gCtx.Inst().Events = events.New(events.Options{
			Redis: gCtx.Inst().Redis,
			Key:   config.Juggernaut.Key,
		})
	}

	{
		gCtx.Inst().Prometheus = prometheus.New(prometheus.Options{
			Labels: config.Monitoring.Labels.ToPrometheus(),
		})
	}

	{
		store := roster.NewRedisStore(gCtx.Inst().Redis, config.Roster.KeyPrefix)

		gCtx.Inst().Roster = roster.New(roster.Options{
			Events:      gCtx.Inst().Events,
			Store:       store,
			UserMetaKey: config.Roster.UserMetaKey,
			SignedIn:    announceHook(gCtx, "signed_in"),
			SignedOut:   announceHook(gCtx, "signed_out"),
			Prometheus:  gCtx.Inst().Prometheus,
		})

		gCtx.Inst().Query = query.New(store)
	}

	wg := sync.WaitGroup{}

	if gCtx.Config().Health.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-health.New(gCtx)
		}()
	}

	if gCtx.Config().Monitoring.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-monitoring.New(gCtx)
		}()
	}

	if gCtx.Config().PProf.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-pprof.New(gCtx)
		}()
	}

	if gCtx.Config().Http.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := rest.New(gCtx); err != nil {
				zap.S().Errorw("rest server terminated",
					"error", err,
				)
			}
		}()
	}

	go func() {
		if err := gCtx.Inst().Roster.Run(gCtx); err != nil {
			zap.S().Errorw("roster terminated",
				"error", err,
			)
		}

		// Either a clean upstream termination or a fatal store/decode
		// failure; restart supervision is external.
		sig <- syscall.SIGTERM
	}()

	done := make(chan struct{})
	go func() {
		<-sig
		cancel()

		go func() {
			select {
			case <-time.After(time.Minute):
			case <-sig:
			}
			zap.S().Fatal("force shutdown")
		}()

		zap.S().Info("shutting down")

		wg.Wait()

		if gCtx.Inst().Redis != nil {
			_ = gCtx.Inst().Redis.Close()
		}

		close(done)
	}()

	zap.S().Info("roster running")

	<-done

	os.Exit(0)
}

func announceHook(gCtx global.Context, event string) func(ctx context.Context, userID string) {
	announce := gCtx.Config().Roster.AnnounceChannel

	return func(ctx context.Context, userID string) {
		zap.S().Infow("presence change",
			"event", event,
			"user_id", userID,
		)

		if announce == "" {
			return
		}

		err := gCtx.Inst().Events.PublishOne(ctx, announce, map[string]string{
			"event":   event,
			"user_id": userID,
		})
		if err != nil {
			zap.S().Warnw("failed to announce presence change",
				"error", err,
				"event", event,
				"user_id", userID,
			)
		}
	}
}
