package core

import (
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Debug    bool
	TestMode bool
	AppName  string
	Env      string // DEV (local; default), TEST, QA, PROD
	Build    string

	Server struct {
		Host      string
		Addr      string
		DebugAddr string
	}

	Database struct {
		Engine        string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          string
		DisableTLS    bool
	}

	Canvas struct {
		BaseURL string
		Token   string
	}

	AI struct {
		URL         string
		Model       string
		APIKey      string
		MaxTokens   int
		Temperature float64
	}

	DownloadDir    string
	SyncStaleAfter time.Duration

	RollbarToken string
}

func (conf *Config) DatabaseAddress() string {
	return net.JoinHostPort(conf.Database.Host, conf.Database.Port)
}

// Validate rejects fatal configuration gaps at startup. A missing remote
// credential turns every sync into a guaranteed failure, so it is not left to
// surface as a runtime fetch error.
func (conf *Config) Validate() error {
	if conf.TestMode {
		return nil
	}
	if conf.Canvas.BaseURL == "" {
		return fmt.Errorf("config: Canvas base URL not configured")
	}
	if conf.Canvas.Token == "" {
		return fmt.Errorf("config: Canvas API token not configured")
	}
	if conf.AI.URL == "" {
		return fmt.Errorf("config: AI model URL not configured")
	}
	if conf.AI.Model == "" {
		return fmt.Errorf("config: AI model name not configured")
	}
	return nil
}

func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "AiGrader")
	v.SetDefault("build", "dev")
	v.SetDefault("serverHost", "localhost")
	v.SetDefault("serverAddr", ":8000")
	v.SetDefault("serverDebugAddr", ":4000")
	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbName", "aigrader")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", "5432")
	v.SetDefault("dbDisableTLS", true)
	v.SetDefault("canvasBaseURL", "https://snow.instructure.com")
	v.SetDefault("aiMaxTokens", 500)
	v.SetDefault("aiTemperature", 0.3)
	v.SetDefault("downloadDir", filepath.Join(Getwd(), "downloads"))
	v.SetDefault("syncStaleAfter", time.Hour)

	env := os.Getenv("ENV")
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err = godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		Debug:          v.GetBool("debug"),
		TestMode:       v.GetBool("testMode"),
		AppName:        v.GetString("appName"),
		Env:            env,
		Build:          v.GetString("build"),
		DownloadDir:    v.GetString("downloadDir"),
		SyncStaleAfter: v.GetDuration("syncStaleAfter"),
		RollbarToken:   v.GetString("rollbarToken"),
	}
	conf.Server.Host = v.GetString("serverHost")
	conf.Server.Addr = v.GetString("serverAddr")
	conf.Server.DebugAddr = v.GetString("serverDebugAddr")
	conf.Database.Engine = v.GetString("dbEngine")
	conf.Database.Name = v.GetString("dbName")
	conf.Database.User = v.GetString("dbUser")
	conf.Database.Password = v.GetString("dbPassword")
	conf.Database.AdminUser = v.GetString("dbAdminUser")
	conf.Database.AdminPassword = v.GetString("dbAdminPassword")
	conf.Database.Host = v.GetString("dbHost")
	conf.Database.Port = v.GetString("dbPort")
	conf.Database.DisableTLS = v.GetBool("dbDisableTLS")
	conf.Canvas.BaseURL = strings.TrimRight(v.GetString("canvasBaseURL"), "/")
	conf.Canvas.Token = v.GetString("canvasApiToken")
	conf.AI.URL = v.GetString("aiModelURL")
	conf.AI.Model = v.GetString("aiModelName")
	conf.AI.APIKey = v.GetString("openAiApiKey")
	conf.AI.MaxTokens = v.GetInt("aiMaxTokens")
	conf.AI.Temperature = v.GetFloat64("aiTemperature")
	return conf
}
