package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string
		Address                   string
		DebugHost                 string
		AllowedOrigins            []string
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		ShutdownTimeout           time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	RazorpayConfig struct {
		KeyID     string
		KeySecret string
		BaseURL   string
		Currency  string
	}

	CloudinaryConfig struct {
		CloudName string
		APIKey    string
		APISecret string
		Folder    string
	}

	RealtimeConfig struct {
		WriteTimeout time.Duration
		PongTimeout  time.Duration
		SendBuffer   int
	}

	Config struct {
		Env      string
		Build    string
		Debug    bool
		TestMode bool
		WorkDir  string

		AppName                   string
		SecretKey                 string
		FrontendBaseURL           string
		PasswordResetTimeoutDelta time.Duration
		OTPExpirationDelta        time.Duration
		RollbarToken              string
		SendgridApiKey            string
		defaultFromEmail          string

		Server     ServerConfig
		Database   DatabaseConfig
		Razorpay   RazorpayConfig
		Cloudinary CloudinaryConfig
		Realtime   RealtimeConfig
	}
)

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, strconv.Itoa(db.Port))
}

func (conf *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(conf.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: conf.AppName, Address: conf.defaultFromEmail}
	}
	return *addr
}

// NewConfig reads the configuration from the environment (prefixed with $ENV) and the optional
// config/.env.<env> file found in the working directory.
func NewConfig() *Config {
	v := viper.New()

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("config.os.Getwd(): %v", err)
	}

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("build", "develop")
	v.SetDefault("debug", env == "DEV" || env == "TEST")
	v.SetDefault("testMode", env == "TEST")
	v.SetDefault("workDir", wd)
	v.SetDefault("appName", "Alumnet")
	v.SetDefault("secretKey", "c9#n1-x@u$r!e4p2zq(fj7h=5dw+m0k*g8a&)oy3tbv6l_s")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "Alumnet <noreply@localhost>")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("otpExpirationDelta", 10*time.Minute)
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.allowedOrigins", []string{"http://localhost:3000"})
	v.SetDefault("server.jwtExpirationDelta", 24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "alumnet")
	v.SetDefault("database.user", "alumnet")
	v.SetDefault("database.password", "alumnet")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("razorpay.keyID", "")
	v.SetDefault("razorpay.keySecret", "")
	v.SetDefault("razorpay.baseURL", "https://api.razorpay.com")
	v.SetDefault("razorpay.currency", "INR")

	v.SetDefault("cloudinary.cloudName", "")
	v.SetDefault("cloudinary.apiKey", "")
	v.SetDefault("cloudinary.apiSecret", "")
	v.SetDefault("cloudinary.folder", "alumnet")

	v.SetDefault("realtime.writeTimeout", 10*time.Second)
	v.SetDefault("realtime.pongTimeout", 60*time.Second)
	v.SetDefault("realtime.sendBuffer", 64)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}

	// e.g. DEV_SERVER_ADDRESS overrides server.address
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Config{
		Env:      env,
		Build:    v.GetString("build"),
		Debug:    v.GetBool("debug"),
		TestMode: v.GetBool("testMode"),
		WorkDir:  v.GetString("workDir"),

		AppName:                   v.GetString("appName"),
		SecretKey:                 v.GetString("secretKey"),
		FrontendBaseURL:           v.GetString("frontendBaseURL"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		OTPExpirationDelta:        v.GetDuration("otpExpirationDelta"),
		RollbarToken:              v.GetString("rollbarToken"),
		SendgridApiKey:            v.GetString("sendgridApiKey"),
		defaultFromEmail:          v.GetString("defaultFromEmail"),

		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			Address:                   v.GetString("server.address"),
			DebugHost:                 v.GetString("server.debugHost"),
			AllowedOrigins:            v.GetStringSlice("server.allowedOrigins"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Razorpay: RazorpayConfig{
			KeyID:     v.GetString("razorpay.keyID"),
			KeySecret: v.GetString("razorpay.keySecret"),
			BaseURL:   v.GetString("razorpay.baseURL"),
			Currency:  v.GetString("razorpay.currency"),
		},
		Cloudinary: CloudinaryConfig{
			CloudName: v.GetString("cloudinary.cloudName"),
			APIKey:    v.GetString("cloudinary.apiKey"),
			APISecret: v.GetString("cloudinary.apiSecret"),
			Folder:    v.GetString("cloudinary.folder"),
		},
		Realtime: RealtimeConfig{
			WriteTimeout: v.GetDuration("realtime.writeTimeout"),
			PongTimeout:  v.GetDuration("realtime.pongTimeout"),
			SendBuffer:   v.GetInt("realtime.sendBuffer"),
		},
	}
}

// NewTestConfig returns the configuration used by tests: TEST env, no TLS, known secrets.
func NewTestConfig() *Config {
	conf := NewConfig()
	conf.Env = "TEST"
	conf.Debug = false
	conf.TestMode = true
	conf.SecretKey = "test-secret"
	conf.Razorpay.KeyID = "rzp_test_key"
	conf.Razorpay.KeySecret = "rzp_test_secret"
	return conf
}
