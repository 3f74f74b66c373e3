package core

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	DBEnginePostgres = "postgres"
	DBEngineInMem    = "inmem"
)

type (
	Config struct {
		Debug        bool
		TestMode     bool
		Env          string // DEV (local; default), TEST, QA, PROD
		Build        string
		AppName      string
		SecretKey    string
		WorkDir      string
		RollbarToken string

		Server   ServerConfig
		Database DatabaseConfig
		OCR      OCRConfig
	}

	ServerConfig struct {
		Host                      string
		Addr                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	OCRConfig struct {
		Languages     []string
		DPI           int
		MaxUploadSize string // echo body limit, eg. "10M"
	}
)

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, db.Port)
}

// NewConfig loads the configuration from the environment.
// `config/.env.<env>` is loaded first when it exists; real env vars take precedence.
func NewConfig() *Config {
	conf, err := LoadConfig(".")
	if err != nil {
		panic(err)
	}
	return conf
}

// LoadConfig loads the configuration using workDir as the project root.
func LoadConfig(workDir string) (*Config, error) {
	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}

	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err = godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "checking %s", dotEnvPath)
	}

	v := viper.New()
	v.SetTypeByDefaultValue(true)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// defaults
	v.SetDefault("debug", env == "DEV" || env == "TEST")
	v.SetDefault("app.name", "Alama")
	v.SetDefault("build", "develop")
	v.SetDefault("secret.key", "xk9-w2(e)r8n$+57=dz&uo!h2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("rollbar.token", "")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.debug.host", ":4000")
	v.SetDefault("server.shutdown.timeout", 5*time.Second)
	v.SetDefault("jwt.expiration.delta", 7*24*time.Hour)
	v.SetDefault("jwt.refresh.expiration.delta", 4*time.Hour)
	v.SetDefault("db.engine", DBEnginePostgres)
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.name", "alama")
	v.SetDefault("db.user", "alama")
	v.SetDefault("db.password", "alama")
	v.SetDefault("db.admin.user", "postgres")
	v.SetDefault("db.admin.password", "postgres")
	v.SetDefault("db.disable.tls", env == "DEV" || env == "TEST")
	v.SetDefault("ocr.languages", "eng+fra")
	v.SetDefault("ocr.dpi", 300)
	v.SetDefault("ocr.max.upload.size", "10M")

	conf := &Config{
		Debug:        v.GetBool("debug"),
		TestMode:     env == "TEST",
		Env:          env,
		Build:        v.GetString("build"),
		AppName:      v.GetString("app.name"),
		SecretKey:    v.GetString("secret.key"),
		WorkDir:      workDir,
		RollbarToken: v.GetString("rollbar.token"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			Addr:                      v.GetString("server.addr"),
			DebugHost:                 v.GetString("server.debug.host"),
			ShutdownTimeout:           v.GetDuration("server.shutdown.timeout"),
			JWTExpirationDelta:        v.GetDuration("jwt.expiration.delta"),
			JWTRefreshExpirationDelta: v.GetDuration("jwt.refresh.expiration.delta"),
		},
		Database: DatabaseConfig{
			Engine:        strings.ToLower(v.GetString("db.engine")),
			Host:          v.GetString("db.host"),
			Port:          v.GetString("db.port"),
			Name:          v.GetString("db.name"),
			User:          v.GetString("db.user"),
			Password:      v.GetString("db.password"),
			AdminUser:     v.GetString("db.admin.user"),
			AdminPassword: v.GetString("db.admin.password"),
			DisableTLS:    v.GetBool("db.disable.tls"),
		},
		OCR: OCRConfig{
			Languages:     splitLanguages(v.GetString("ocr.languages")),
			DPI:           v.GetInt("ocr.dpi"),
			MaxUploadSize: v.GetString("ocr.max.upload.size"),
		},
	}

	switch conf.Database.Engine {
	case DBEnginePostgres, DBEngineInMem:
	default:
		return nil, fmt.Errorf("unknown DB_ENGINE %q", conf.Database.Engine)
	}
	return conf, nil
}

// splitLanguages splits tesseract style language lists: "eng+fra" or "eng,fra".
func splitLanguages(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == '+' || r == ',' || r == ' ' })
	if len(fields) == 0 {
		return nil
	}
	return fields
}
