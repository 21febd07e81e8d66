package core

import (
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env      string // DEV (default), TEST, QA, PROD
		Debug    bool
		TestMode bool
		AppName  string
		Build    string

		SecretKey          []byte
		FrontendBaseURL    string
		DefaultFromName    string
		DefaultFromAddr    string
		SendgridAPIKey     string
		RollbarToken       string
		JWTExpirationDelta time.Duration

		Hosted   HostedConfig
		Realtime RealtimeConfig
		Server   ServerConfig
		Database DatabaseConfig
	}

	// HostedConfig points the SDK at the hosted Taskora backend.
	HostedConfig struct {
		BaseURL string
		APIKey  string
	}

	RealtimeConfig struct {
		URL string
	}

	ServerConfig struct {
		Host string
		Port string
	}

	DatabaseConfig struct {
		Engine     string
		Name       string
		User       string
		Password   string
		Host       string
		Port       string
		DisableTLS bool
	}
)

func (c DatabaseConfig) Address() string {
	return c.Host + ":" + c.Port
}

func (c *Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: c.DefaultFromName, Address: c.DefaultFromAddr}
}

// LoadConfig reads configuration from the environment (and an optional
// config/.env.<env> file) into a Config. Callers own the returned value;
// there is no package-level instance.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Taskora")
	v.SetDefault("build", "dev")
	v.SetDefault("secretKey", "n0t-4-r3al-s3cr3t-ch4ng3-m3-1n-pr0d")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromName", "Taskora")
	v.SetDefault("defaultFromAddr", "noreply@localhost")
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("hosted.baseURL", "http://localhost:8008")
	v.SetDefault("hosted.apiKey", "")
	v.SetDefault("realtime.url", "ws://localhost:8008/realtime/v1")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8008")
	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.name", "taskora")
	v.SetDefault("database.user", "taskora")
	v.SetDefault("database.password", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.disableTLS", true)

	env := os.Getenv("ENV")
	if env == "" {
		env = "DEV"
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "checking %s", dotEnvPath)
	}
	v.AutomaticEnv()

	conf := &Config{
		Env:                env,
		Debug:              v.GetBool("debug"),
		TestMode:           env == "TEST",
		AppName:            v.GetString("appName"),
		Build:              v.GetString("build"),
		SecretKey:          []byte(v.GetString("secretKey")),
		FrontendBaseURL:    v.GetString("frontendBaseURL"),
		DefaultFromName:    v.GetString("defaultFromName"),
		DefaultFromAddr:    v.GetString("defaultFromAddr"),
		SendgridAPIKey:     v.GetString("sendgridApiKey"),
		RollbarToken:       v.GetString("rollbarToken"),
		JWTExpirationDelta: v.GetDuration("jwtExpirationDelta"),
		Hosted: HostedConfig{
			BaseURL: v.GetString("hosted.baseURL"),
			APIKey:  v.GetString("hosted.apiKey"),
		},
		Realtime: RealtimeConfig{
			URL: v.GetString("realtime.url"),
		},
		Server: ServerConfig{
			Host: v.GetString("server.host"),
			Port: v.GetString("server.port"),
		},
		Database: DatabaseConfig{
			Engine:     v.GetString("database.engine"),
			Name:       v.GetString("database.name"),
			User:       v.GetString("database.user"),
			Password:   v.GetString("database.password"),
			Host:       v.GetString("database.host"),
			Port:       v.GetString("database.port"),
			DisableTLS: v.GetBool("database.disableTLS"),
		},
	}
	return conf, nil
}
