package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/alumnet/alumnet/core"
	"github.com/alumnet/alumnet/core/event"
	"github.com/alumnet/alumnet/core/fund"
	"github.com/alumnet/alumnet/core/group"
	"github.com/alumnet/alumnet/core/job"
	"github.com/alumnet/alumnet/core/message"
	"github.com/alumnet/alumnet/core/payment"
	"github.com/alumnet/alumnet/core/post"
	"github.com/alumnet/alumnet/core/project"
	"github.com/alumnet/alumnet/core/realtime"
	"github.com/alumnet/alumnet/core/user"
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator

		UserSvc    user.Service
		GroupSvc   group.Service
		MessageSvc message.Service
		ProjectSvc project.Service
		FundSvc    fund.Service
		PaymentSvc payment.Service
		PostSvc    post.Service
		JobSvc     job.Service
		EventSvc   event.Service
		Hub        *realtime.Hub
	}

	Server interface {
		http.Handler
		Start()
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
		Shutdown(ctx context.Context) error
		Close() error
	}

	server struct {
		deps     ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(deps ServerDeps) Server {
	s := &server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = conf.TestMode
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     conf.Server.AllowedOrigins,
		AllowCredentials: true,
	}))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	jwt := newJWTMiddleware(conf)

	registerUserAPI(v1, jwt, s.deps)
	registerGroupAPI(v1, jwt, s.deps)
	registerMessageAPI(v1, jwt, s.deps)
	registerProjectAPI(v1, jwt, s.deps)
	registerFundAPI(v1, jwt, s.deps)
	registerPostAPI(v1, jwt, s.deps)
	registerJobAPI(v1, jwt, s.deps)
	registerEventAPI(v1, jwt, s.deps)
	registerPaymentAPI(v1, jwt, s.deps, payment.KindDonation, "/donations")
	registerPaymentAPI(v1, jwt, s.deps, payment.KindFunding, "/fundings")
	registerSocketAPI(v1, jwt, s.deps)
}

func (s *server) Start() {
	s.deps.Logger.Info("API listening on " + s.deps.Conf.Server.Address)
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *server) Errors() <-chan error { return s.errors }

func (s *server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (s *server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
