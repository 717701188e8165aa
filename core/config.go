package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Conf is the process-wide configuration, loaded once on init.
var Conf *Config

type (
	ServerConfig struct {
		Address       string
		Host          string
		SecureCookies bool
		RestoreWait   time.Duration // max time a request waits for session restore before rendering a loading page

		ShutdownTimeout time.Duration
		DebugAddress    string // serves /debug/vars and /debug/pprof when set
	}

	APIConfig struct {
		BaseURL string
		Timeout time.Duration
	}

	SessionConfig struct {
		CookieName   string
		ProfileStore string // memory | redis | postgres
		ProfileTTL   time.Duration
		RedisURL     string
		DatabaseURL  string
		TokenFile    string // used by portalctl
	}

	Config struct {
		Env          string
		Build        string
		AppName      string
		Debug        bool
		TestMode     bool
		RollbarToken string

		Server  ServerConfig
		API     APIConfig
		Session SessionConfig
	}
)

func init() {
	Conf = LoadConfig(viper.New())
}

// LoadConfig reads the configuration from defaults, the optional `config/.env.<env>` file and the environment.
func LoadConfig(v *viper.Viper) *Config {
	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Masomo")
	v.SetDefault("build", "dev")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.secureCookies", false)
	v.SetDefault("server.restoreWait", 2*time.Second)
	v.SetDefault("server.shutdownTimeout", 10*time.Second)
	v.SetDefault("server.debugAddress", "")
	v.SetDefault("api.baseURL", "http://localhost:3000/api")
	v.SetDefault("api.timeout", 15*time.Second)
	v.SetDefault("session.cookieName", "token")
	v.SetDefault("session.profileStore", "memory")
	v.SetDefault("session.profileTTL", 24*time.Hour)
	v.SetDefault("session.redisURL", "redis://localhost:6379/0")
	v.SetDefault("session.databaseURL", "")
	v.SetDefault("session.tokenFile", defaultTokenFile())

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:          env,
		Build:        v.GetString("build"),
		AppName:      v.GetString("appName"),
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		RollbarToken: v.GetString("rollbarToken"),
		Server: ServerConfig{
			Address:       v.GetString("server.address"),
			Host:          v.GetString("server.host"),
			SecureCookies: v.GetBool("server.secureCookies"),
			RestoreWait:   v.GetDuration("server.restoreWait"),

			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
			DebugAddress:    v.GetString("server.debugAddress"),
		},
		API: APIConfig{
			BaseURL: strings.TrimRight(v.GetString("api.baseURL"), "/"),
			Timeout: v.GetDuration("api.timeout"),
		},
		Session: SessionConfig{
			CookieName:   v.GetString("session.cookieName"),
			ProfileStore: strings.ToLower(v.GetString("session.profileStore")),
			ProfileTTL:   v.GetDuration("session.profileTTL"),
			RedisURL:     v.GetString("session.redisURL"),
			DatabaseURL:  v.GetString("session.databaseURL"),
			TokenFile:    v.GetString("session.tokenFile"),
		},
	}
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "masomo", "portal.json")
}
