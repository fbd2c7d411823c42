package echoapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/alumnet/alumnet/core"
	"github.com/alumnet/alumnet/core/realtime"
)

const maxFrameSize = 64 << 10

const malformedFrameMsg = "malformed frame"

type socketApi struct {
	conf     *core.Config
	logger   core.Logger
	hub      *realtime.Hub
	upgrader websocket.Upgrader
}

func registerSocketAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := socketApi{
		conf:   deps.Conf,
		logger: deps.Logger,
		hub:    deps.Hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(deps.Conf.Server.AllowedOrigins),
		},
	}

	g.GET("/ws", api.serve)
	g.GET("/online", api.online, jwt)
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get(echo.HeaderOrigin)
		return origin == "" || core.ContainsString(allowed, "*") || core.ContainsString(allowed, origin)
	}
}

// serve upgrades the request and pumps frames until the socket closes.
// The token comes from the `token` query param or cookie since browsers cannot set headers on upgrades.
func (api *socketApi) serve(ctx echo.Context) error {
	raw := ctx.QueryParam(tokenCookieName)
	if raw == "" {
		if cookie, err := ctx.Cookie(tokenCookieName); err == nil {
			raw = cookie.Value
		}
	}
	if raw == "" {
		return errUnauthorized
	}
	claims, err := parseToken(api.conf, raw)
	if err != nil {
		return err
	}

	ws, err := api.upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		// the upgrader already replied
		api.logger.Warn(fmt.Sprintf("realtime: upgrade failed: %v", err))
		return nil
	}

	conn := realtime.NewQueueConn(api.conf.Realtime.SendBuffer)
	client := realtime.Client{Conn: conn, UserID: claims.Subject, IsAdmin: claims.IsAdmin}

	done := make(chan struct{})
	go api.writePump(ws, conn, done)
	api.readPump(ws, client)

	api.hub.Disconnect(client)
	conn.Close()
	<-done
	return nil
}

func (api *socketApi) readPump(ws *websocket.Conn, client realtime.Client) {
	pongTimeout := api.conf.Realtime.PongTimeout

	ws.SetReadLimit(maxFrameSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				api.logger.Warn(fmt.Sprintf("realtime: %s closed unexpectedly: %v", client.Conn.ID(), err))
			}
			return
		}

		var frame realtime.Frame
		if err = json.Unmarshal(data, &frame); err != nil || frame.Event == "" {
			_ = client.Conn.Send(realtime.EventError, realtime.FrameError{Error: malformedFrameMsg})
			continue
		}
		api.hub.Handle(client, frame)
		if frame.Event == realtime.EventDisconnect {
			return
		}
	}
}

func (api *socketApi) writePump(ws *websocket.Conn, conn *realtime.QueueConn, done chan<- struct{}) {
	writeTimeout := api.conf.Realtime.WriteTimeout
	ticker := time.NewTicker(api.conf.Realtime.PongTimeout * 9 / 10)
	defer func() {
		ticker.Stop()
		_ = ws.Close()
		close(done)
	}()

	for {
		select {
		case frame, ok := <-conn.Queue():
			_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := ws.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (api *socketApi) online(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, OnlineResponse{Users: api.hub.Registry().OnlineUsers()})
}

type OnlineResponse struct {
	Users []string `json:"users"`
}
