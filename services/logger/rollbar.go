package logsvc

import (
	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"go.uber.org/zap"

	"github.com/alumnet/alumnet/core"
	"github.com/alumnet/alumnet/core/user"
)

// RollbarLogger reports to Rollbar and mirrors every entry to a local zap logger.
type RollbarLogger struct {
	local *zap.SugaredLogger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(local *zap.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{local: local.Sugar()}
}

// NewLocalLogger builds the zap logger used as local sink: development encoding in debug, JSON otherwise.
func NewLocalLogger(conf *core.Config) (*zap.Logger, error) {
	if conf.TestMode {
		return zap.NewNop(), nil
	}
	if conf.Debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// NewTestLogger returns a logger that reports nowhere.
func NewTestLogger() *RollbarLogger {
	rollbar.SetEnabled(false)
	return &RollbarLogger{local: zap.NewNop().Sugar()}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

func (l RollbarLogger) Sync() error {
	rollbar.Wait()
	return l.local.Sync()
}

// expected fmt: msg | error, map[string]interface{}, user.User
func (l RollbarLogger) prepare(msg string, args []interface{}) ([]interface{}, []interface{}) {
	var usrSet bool
	reportArgs := make([]interface{}, 0, len(args)+1)
	reportArgs = append(reportArgs, msg)
	fields := make([]interface{}, 0, 2*len(args))
	for _, arg := range args {
		switch a := arg.(type) {
		case user.User:
			if !usrSet { // only set one User
				rollbar.SetPerson(a.ID, a.Username, a.Email)
				fields = append(fields, "user_id", a.ID)
				usrSet = true
			}
		case error:
			reportArgs = append(reportArgs, a)
			fields = append(fields, "error", a)
		case map[string]interface{}:
			reportArgs = append(reportArgs, a)
			for k, v := range a {
				fields = append(fields, k, v)
			}
		default:
			reportArgs = append(reportArgs, a)
			fields = append(fields, "extra", a)
		}
	}
	if !usrSet {
		rollbar.ClearPerson()
	}
	return reportArgs, fields
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	reportArgs, fields := l.prepare(msg, args)
	rollbar.Debug(reportArgs...)
	l.local.Debugw(msg, fields...)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	reportArgs, fields := l.prepare(msg, args)
	rollbar.Info(reportArgs...)
	l.local.Infow(msg, fields...)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	reportArgs, fields := l.prepare(msg, args)
	rollbar.Warning(reportArgs...)
	l.local.Warnw(msg, fields...)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	reportArgs, fields := l.prepare(msg, args)
	rollbar.Error(reportArgs...)
	l.local.Errorw(msg, fields...)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	reportArgs, fields := l.prepare(msg, args)
	rollbar.Critical(reportArgs...)
	rollbar.Wait()
	l.local.Fatalw(msg, fields...)
}
