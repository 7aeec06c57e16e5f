package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

const defaultPath = "config.yaml"

type Config struct {
	Log       Log       `yaml:"log"`
	Server    Server    `yaml:"server"`
	Data      Data      `yaml:"data"`
	DB        DB        `yaml:"db"`
	Redis     Redis     `yaml:"redis"`
	GreenAPI  GreenAPI  `yaml:"green_api"`
	OpenAI    OpenAI    `yaml:"openai"`
	Proxy     Proxy     `yaml:"proxy"`
	Objection Objection `yaml:"objection"`
	Engine    Engine    `yaml:"engine"`
	Dialog    Dialog    `yaml:"dialog"`
}

type Server struct {
	// Control surface listen address
	Listen string `yaml:"listen" example:":3000" validate:"required"`
}

type Data struct {
	// Directory for transcripts and other local state
	Dir string `yaml:"dir" example:"data" validate:"required"`
}

type OpenAI struct {
	Classifier ModelConfig `yaml:"classifier" validate:"required"`
	Normalizer ModelConfig `yaml:"normalizer" validate:"required"`
	Objection  ModelConfig `yaml:"objection"`
}

type ModelConfig struct {
	// OpenAI base url
	BaseURL string `yaml:"base_url" example:"https://api.openai.com/v1" validate:"required"`
	// OpenAI token
	Token string `yaml:"token" example:"sk-proj-abc123456789DEF789ghi012JKL345mno678PQR901stu234VWX" validate:"required"`
	// OpenAI model
	Model string `yaml:"model" example:"gpt-4o" validate:"required"`
}

type Proxy struct {
	// Route LLM traffic through a SOCKS5 proxy
	Enabled bool `yaml:"enabled" example:"true"`
	// SOCKS5 proxy host
	Host string `yaml:"host" example:"127.0.0.1" validate:"required_if=Enabled true"`
	// SOCKS5 proxy port
	Port int `yaml:"port" example:"1080" validate:"required_if=Enabled true"`
}

type GreenAPI struct {
	// GREEN-API host
	BaseURL string `yaml:"base_url" example:"https://api.green-api.com" validate:"required,url"`
	// Instance id
	IDInstance string `yaml:"id_instance" example:"1101000001" validate:"required"`
	// Instance API token
	APITokenInstance string `yaml:"api_token_instance" example:"d75b3a66374942c5b3c019c698abc2067e151558acbd412345" validate:"required"`
	// Inbound mode: long-poll notifications or pull the recent messages journal
	Mode string `yaml:"mode" example:"notifications" validate:"oneof=notifications journal"`
	// Long-poll timeout for receiveNotification
	PollTimeout time.Duration `yaml:"poll_timeout" example:"30s"`
	// Window for lastIncomingMessages in journal mode
	JournalMinutes int `yaml:"journal_minutes" example:"5"`
	// Pause between journal pulls
	JournalInterval time.Duration `yaml:"journal_interval" example:"3s"`
	// HTTP timeout for regular calls (long-poll gets poll_timeout on top)
	Timeout time.Duration `yaml:"timeout" example:"15s"`
}

type Objection struct {
	// Answer objections from the knowledge base before classifying
	Enabled bool `yaml:"enabled" example:"true"`
	// Path to the YAML knowledge base
	KnowledgeBase string `yaml:"knowledge_base" example:"objections.yaml" validate:"required_if=Enabled true"`
	// Number of knowledge base entries handed to the model
	TopK int `yaml:"top_k" example:"3"`
}

type Engine struct {
	// Transition table version
	Profile string `yaml:"profile" example:"v2" validate:"oneof=v1 v2"`
	// Maximum number of concurrently running sessions
	MaxSessions int `yaml:"max_sessions" example:"5" validate:"gte=1"`
	// Greet the contact immediately after start instead of waiting for a message
	GreetOnStart *bool `yaml:"greet_on_start" example:"true"`
	// Drop stale notifications once at startup, before any session reads the queue
	DrainOnStart *bool `yaml:"drain_on_start" example:"true"`
	// Delay before a regular reply
	ReplyDelay time.Duration `yaml:"reply_delay" example:"1500ms"`
	// Delay before a follow-up question
	QuestionDelay time.Duration `yaml:"question_delay" example:"2s"`
	// Pause after a failed poll cycle
	ErrorBackoff time.Duration `yaml:"error_backoff" example:"5s"`
	// Inbound duplicate suppression window
	InboundWindow time.Duration `yaml:"inbound_window" example:"5s"`
	// Outbound duplicate suppression window
	OutboundWindow time.Duration `yaml:"outbound_window" example:"10s"`
	// Number of gateway message ids remembered
	RecentIDs int `yaml:"recent_ids" example:"100"`
}

type Dialog struct {
	// Company name used in the qualifying question
	CompanyName string `yaml:"company_name" example:"Capital Mars"`
	// Phrases that end the conversation without asking the classifier
	OptOutPhrases []string `yaml:"opt_out_phrases" example:"[\"стоп\", \"не пишите\"]"`
	// Phrases that pause the conversation without asking the classifier
	PausePhrases []string `yaml:"pause_phrases" example:"[\"подождите\", \"не сейчас\"]"`
}

type Redis struct {
	// Optional redis url for shared duplicate suppression
	URL string `yaml:"url" example:"redis://localhost:6379/0"`
}

type Log struct {
	// Minimal console level: debug, info, warn, error
	Level string `yaml:"level" example:"info" validate:"omitempty,oneof=debug info warn error"`
	// Telegram logging config
	Telegram TelegramLog `yaml:"telegram"`
}

type TelegramLog struct {
	// Chat bot token, obtain it via BotFather
	Token string `yaml:"token" example:"1234567890:ABCdefGHIjklMNopQRstUVwxyZ-123456789"`
	// Chat ID to send messages to
	ChatID string `yaml:"chat_id" example:"1001234567890"`
}

type DB struct {
	// Database driver: mysql in production, sqlite for local runs
	Driver string `yaml:"driver" example:"mysql" validate:"oneof=mysql sqlite"`
	// MySQL username
	User string `yaml:"user" example:"bot"`
	// MySQL password
	Pass string `yaml:"pass"`
	// MySQL host
	Host string `yaml:"host" example:"localhost:3306" validate:"required_if=Driver mysql"`
	// Database name, or file path for sqlite
	Database string `yaml:"database" example:"realty" validate:"required"`
}

func (e Engine) GreetsOnStart() bool {
	return e.GreetOnStart == nil || *e.GreetOnStart
}

func (e Engine) DrainsOnStart() bool {
	return e.DrainOnStart == nil || *e.DrainOnStart
}

func Load() (*Config, error) {
	return LoadFile(defaultPath)
}

func LoadFile(path string) (*Config, error) {
	var result Config

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, oops.Errorf("failed to read .env file: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Errorf("failed to read config file: %w", err)
	}

	if err = yaml.Unmarshal(data, &result); err != nil {
		return nil, oops.Errorf("failed to parse YAML config: %w", err)
	}

	applyEnv(&result)
	applyDefaults(&result)

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(result); err != nil {
		return nil, oops.Errorf("failed to validate config: %w", err)
	}

	return &result, nil
}

// applyEnv lets the variable names of the old deployment override secrets.
func applyEnv(cfg *Config) {
	setString := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	setString(&cfg.GreenAPI.IDInstance, "ID_INSTANCE")
	setString(&cfg.GreenAPI.APITokenInstance, "API_TOKEN_INSTANCE")

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		for _, model := range []*ModelConfig{&cfg.OpenAI.Classifier, &cfg.OpenAI.Normalizer, &cfg.OpenAI.Objection} {
			if model.Token == "" {
				model.Token = key
			}
		}
	}

	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.DB.Host = host
		if port := os.Getenv("DB_PORT"); port != "" {
			cfg.DB.Host = host + ":" + port
		}
	}
	setString(&cfg.DB.Database, "DB_DATABASE")
	setString(&cfg.DB.User, "DB_USERNAME")
	setString(&cfg.DB.Pass, "DB_PASSWORD")

	setString(&cfg.Proxy.Host, "PROXY_HOST")
	if port, err := strconv.Atoi(os.Getenv("PROXY_PORT")); err == nil {
		cfg.Proxy.Port = port
	}
	if cfg.Proxy.Host != "" && cfg.Proxy.Port != 0 {
		cfg.Proxy.Enabled = true
	}
	if strings.EqualFold(os.Getenv("USE_PROXY"), "false") {
		cfg.Proxy.Enabled = false
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Listen = ":" + port
	}
	setString(&cfg.Redis.URL, "REDIS_URL")
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":3000"
	}
	if cfg.Data.Dir == "" {
		cfg.Data.Dir = "data"
	}
	if cfg.DB.Driver == "" {
		cfg.DB.Driver = "mysql"
	}
	if cfg.GreenAPI.BaseURL == "" {
		cfg.GreenAPI.BaseURL = "https://api.green-api.com"
	}
	if cfg.GreenAPI.Mode == "" {
		cfg.GreenAPI.Mode = "notifications"
	}
	if cfg.GreenAPI.PollTimeout == 0 {
		cfg.GreenAPI.PollTimeout = 30 * time.Second
	}
	if cfg.GreenAPI.JournalMinutes == 0 {
		cfg.GreenAPI.JournalMinutes = 5
	}
	if cfg.GreenAPI.JournalInterval == 0 {
		cfg.GreenAPI.JournalInterval = 3 * time.Second
	}
	if cfg.GreenAPI.Timeout == 0 {
		cfg.GreenAPI.Timeout = 15 * time.Second
	}
	inheritModel(&cfg.OpenAI.Objection, cfg.OpenAI.Classifier)
	if cfg.Objection.TopK == 0 {
		cfg.Objection.TopK = 3
	}
	if cfg.Engine.Profile == "" {
		cfg.Engine.Profile = "v2"
	}
	if cfg.Engine.MaxSessions == 0 {
		cfg.Engine.MaxSessions = 5
	}
	if cfg.Engine.ReplyDelay == 0 {
		cfg.Engine.ReplyDelay = 1500 * time.Millisecond
	}
	if cfg.Engine.QuestionDelay == 0 {
		cfg.Engine.QuestionDelay = 2 * time.Second
	}
	if cfg.Engine.ErrorBackoff == 0 {
		cfg.Engine.ErrorBackoff = 5 * time.Second
	}
	if cfg.Engine.InboundWindow == 0 {
		cfg.Engine.InboundWindow = 5 * time.Second
	}
	if cfg.Engine.OutboundWindow == 0 {
		cfg.Engine.OutboundWindow = 10 * time.Second
	}
	if cfg.Engine.RecentIDs == 0 {
		cfg.Engine.RecentIDs = 100
	}
	if cfg.Dialog.CompanyName == "" {
		cfg.Dialog.CompanyName = "Capital Mars"
	}
}

func inheritModel(dst *ModelConfig, src ModelConfig) {
	if dst.BaseURL == "" {
		dst.BaseURL = src.BaseURL
	}
	if dst.Token == "" {
		dst.Token = src.Token
	}
	if dst.Model == "" {
		dst.Model = src.Model
	}
}
