package rest

import (
	"fmt"
	"net"
	"time"

	"github.com/fasthttp/router"
	"github.com/juggernaut-live/roster/internal/global"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

type HttpServer struct {
	listener net.Listener
	router   *router.Router
}

// New binds the inspection API and serves until the global context is
// cancelled.
func New(gctx global.Context) error {
	var err error

	port := gctx.Config().Http.Port
	if port == 0 {
		port = 80
	}

	s := HttpServer{}

	s.listener, err = net.Listen("tcp", fmt.Sprintf("%s:%d", gctx.Config().Http.Addr, port))
	if err != nil {
		return err
	}

	s.router = router.New()
	s.setupRoutes(gctx)

	srv := &fasthttp.Server{
		Handler: func(ctx *fasthttp.RequestCtx) {
			start := time.Now()

			defer func() {
				if err := recover(); err != nil {
					zap.S().Errorw("panic in rest request handler",
						"panic", err,
						"status", ctx.Response.StatusCode(),
						"duration", int(time.Since(start)/time.Millisecond),
						"method", string(ctx.Method()),
						"path", string(ctx.Path()),
					)
				} else {
					mills := time.Since(start) / time.Millisecond
					status := ctx.Response.StatusCode()

					logFn := zap.S().Debugw
					if mills >= 500 {
						logFn = zap.S().Infow
					}
					if status >= 500 {
						logFn = zap.S().Errorw
					}

					logFn("rest request",
						"status", status,
						"duration", int(mills),
						"method", string(ctx.Method()),
						"path", string(ctx.Path()),
					)
				}
			}()

			ctx.Response.Header.Set("Content-Type", "application/json")

			s.router.Handler(ctx)
		},
		ReadTimeout:        time.Second * 30,
		IdleTimeout:        time.Second * 10,
		ReadBufferSize:     int(32 * 1024),
		MaxRequestBodySize: int(1 * 1024 * 1024),
		CloseOnShutdown:    true,
	}

	go func() {
		<-gctx.Done()

		_ = srv.Shutdown()
	}()

	zap.S().Infow("Http enabled",
		"addr", s.listener.Addr().String(),
	)

	return srv.Serve(s.listener)
}
