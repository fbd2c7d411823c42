package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	echoapi "github.com/alumnet/alumnet/apps/api/echo"
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
	appfs "github.com/alumnet/alumnet/fs"
	emailsvc "github.com/alumnet/alumnet/services/email"
	"github.com/alumnet/alumnet/services/imagehost"
	logsvc "github.com/alumnet/alumnet/services/logger"
	"github.com/alumnet/alumnet/services/razorpay"
	"github.com/alumnet/alumnet/storage/database"
	inmemdb "github.com/alumnet/alumnet/storage/database/inmem"
	sqlxrepos "github.com/alumnet/alumnet/storage/database/sqlx"
)

const memoryEngine = "memory"

// repositories is the storage picked by database.engine.
type repositories struct {
	users    user.Repository
	groups   group.Repository
	messages message.Repository
	projects project.Repository
	funds    fund.Repository
	payments payment.Repository
	posts    post.Repository
	jobs     job.Repository
	events   event.Repository
}

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	local, err := logsvc.NewLocalLogger(conf)
	if err != nil {
		log.Fatalf("building local logger: %v", err)
	}
	logger := logsvc.NewRollbarLogger(local.Named("API"), conf)
	logger.Enable(!conf.Debug)
	defer func() { _ = logger.Sync() }()

	dbLogger := logsvc.NewRollbarLogger(local.Named("DB"), conf)

	// set up DB & repos
	repos, closeDB, err := setUpStorage(conf, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up storage: %v", err), err)
	}
	defer func() {
		if err = closeDB(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(logger, conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(logger, conf)
	}

	images, err := setUpImageHost(conf, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up image host: %v", err), err)
	}

	usrSvc := user.NewService(repos.users, mailSvc, images, conf)
	paymentSvc := payment.NewService(repos.payments, razorpay.NewClient(logger, conf), usrSvc, logger, conf)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	project.InitValidators(validate, translator)

	core.ParseEmailTemplates(appfs.Templates, appfs.EmailTemplatesDir, conf.Debug, logger)

	user.LoadCommonPasswords(appfs.CommonPasswords, logger)

	registry := realtime.NewRegistry()

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.Publish("online_users", expvar.Func(func() interface{} { return len(registry.OnlineUsers()) }))

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			Validate:   validate,
			Translator: translator,
			UserSvc:    usrSvc,
			GroupSvc:   group.NewService(repos.groups, images),
			MessageSvc: message.NewService(repos.messages),
			ProjectSvc: project.NewService(repos.projects),
			FundSvc:    fund.NewService(repos.funds, images),
			PaymentSvc: paymentSvc,
			PostSvc:    post.NewService(repos.posts, images),
			JobSvc:     job.NewService(repos.jobs, images),
			EventSvc:   event.NewService(repos.events, images),
			Hub:        realtime.NewHub(registry, logger),
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpStorage(conf *core.Config, logger core.Logger) (repositories, func() error, error) {
	if conf.Database.Engine == memoryEngine {
		logger.Warn("using the in-memory database: nothing will be persisted")
		repos := inmemdb.NewRepositories(inmemdb.NewDB())
		return repositories{
			users:    repos.Users,
			groups:   repos.Groups,
			messages: repos.Messages,
			projects: repos.Projects,
			funds:    repos.Funds,
			payments: repos.Payments,
			posts:    repos.Posts,
			jobs:     repos.Jobs,
			events:   repos.Events,
		}, func() error { return nil }, nil
	}

	db, err := setUpDB(conf)
	if err != nil {
		return repositories{}, nil, err
	}
	repos := sqlxrepos.NewRepositories(db)
	return repositories{
		users:    repos.Users,
		groups:   repos.Groups,
		messages: repos.Messages,
		projects: repos.Projects,
		funds:    repos.Funds,
		payments: repos.Payments,
		posts:    repos.Posts,
		jobs:     repos.Jobs,
		events:   repos.Events,
	}, db.Close, nil
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// setUpImageHost falls back to an in-process uploader in debug when cloudinary is not configured.
func setUpImageHost(conf *core.Config, logger core.Logger) (core.ImageUploader, error) {
	if conf.Debug && conf.Cloudinary.CloudName == "" {
		logger.Warn("cloudinary is not configured: images will not be hosted")
		return imagehost.NewUploaderMock(), nil
	}
	return imagehost.NewCloudinaryUploader(logger, conf)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
