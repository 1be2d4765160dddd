package rest

import (
	"github.com/juggernaut-live/roster/data/events"
	"github.com/juggernaut-live/roster/internal/global"
	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func (s *HttpServer) setupRoutes(gctx global.Context) {
	s.router.GET("/v3/roster/online", s.onlineUsers(gctx))
	s.router.GET("/v3/roster/online/{user}", s.userPresence(gctx))
	s.router.POST("/v3/publish", s.publish(gctx))
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}

	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(b)
}

func (s *HttpServer) onlineUsers(gctx global.Context) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		users, err := gctx.Inst().Query.OnlineUsers(ctx)
		if err != nil {
			zap.S().Errorw("failed to list online users",
				"error", err,
			)
			writeJSON(ctx, fasthttp.StatusInternalServerError, errorResponse{Error: "store unavailable"})

			return
		}

		if users == nil {
			users = []string{}
		}

		writeJSON(ctx, fasthttp.StatusOK, map[string]interface{}{"online": users})
	}
}

func (s *HttpServer) userPresence(gctx global.Context) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, _ := ctx.UserValue("user").(string)
		if user == "" {
			writeJSON(ctx, fasthttp.StatusBadRequest, errorResponse{Error: "missing user id"})

			return
		}

		p, err := gctx.Inst().Query.UserPresence(ctx, user)
		if err != nil {
			zap.S().Errorw("failed to query user presence",
				"error", err,
				"user_id", user,
			)
			writeJSON(ctx, fasthttp.StatusInternalServerError, errorResponse{Error: "store unavailable"})

			return
		}

		writeJSON(ctx, fasthttp.StatusOK, p)
	}
}

type publishRequest struct {
	Channels []string    `json:"channels"`
	Data     interface{} `json:"data"`
	Except   []string    `json:"except,omitempty"`
}

func (s *HttpServer) publish(gctx global.Context) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var req publishRequest
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
			writeJSON(ctx, fasthttp.StatusBadRequest, errorResponse{Error: "invalid publish body"})

			return
		}

		if len(req.Channels) == 0 {
			writeJSON(ctx, fasthttp.StatusBadRequest, errorResponse{Error: "missing channels"})

			return
		}

		err := gctx.Inst().Events.Publish(ctx, req.Channels, req.Data, events.PublishOptions{
			Except: req.Except,
		})
		if err != nil {
			zap.S().Errorw("failed to relay publish",
				"error", err,
			)
			writeJSON(ctx, fasthttp.StatusInternalServerError, errorResponse{Error: "broker unavailable"})

			return
		}

		ctx.SetStatusCode(fasthttp.StatusNoContent)
	}
}
