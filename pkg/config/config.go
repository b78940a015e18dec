package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/go-go-golems/helpdesk-chat/pkg/logging"
	"github.com/go-go-golems/helpdesk-chat/pkg/persistence/sessionstore"
	"github.com/go-go-golems/helpdesk-chat/pkg/redisstream"
	"github.com/go-go-golems/helpdesk-chat/pkg/sessionlist"
)

const (
	AppName   = "helpdesk-chat"
	EnvPrefix = "HELPDESK_CHAT"
)

type APISettings struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

type ArticleSettings struct {
	// BaseURL is where external "Article #N" references link to.
	BaseURL string `yaml:"base_url"`
}

type SessionListSettings struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	Limit        int           `yaml:"limit"`
}

type Config struct {
	API          APISettings           `yaml:"api"`
	Articles     ArticleSettings       `yaml:"articles"`
	SessionStore sessionstore.Settings `yaml:"session_store"`
	Events       redisstream.Settings  `yaml:"events"`
	SessionList  SessionListSettings   `yaml:"session_list"`
	Log          logging.Settings      `yaml:"log"`
	Offline      bool                  `yaml:"offline"`
}

func Default() *Config {
	storePath := ""
	if dir, err := os.UserConfigDir(); err == nil {
		storePath = filepath.Join(dir, AppName, "session.yaml")
	}
	return &Config{
		API:          APISettings{Timeout: 60 * time.Second},
		SessionStore: sessionstore.Settings{Backend: sessionstore.BackendFile, Path: storePath, RedisKey: sessionstore.DefaultKey},
		Events:       redisstream.DefaultSettings(),
		SessionList:  SessionListSettings{PollInterval: sessionlist.DefaultPollInterval, Limit: sessionlist.DefaultLimit},
		Log:          logging.DefaultSettings(),
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/helpdesk-chat/config.yaml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "could not get config dir")
	}
	return filepath.Join(dir, AppName, "config.yaml"), nil
}

// Load reads defaults, then the YAML file at path, then environment
// overrides. A missing file is not an error when path is the default one.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err == nil {
			path = p
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, errors.Wrapf(err, "failed to parse config %s", path)
			}
		case os.IsNotExist(err) && !explicit:
		default:
			return nil, errors.Wrapf(err, "failed to read config %s", path)
		}
	}

	if err := ApplyEnv(cfg, NewEnv()); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewEnv returns a viper instance that resolves keys such as
// "api.base_url" from HELPDESK_CHAT_API_BASE_URL.
func NewEnv() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// EnvName is the variable consulted for a config key.
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// ApplyEnv overrides cfg with every key set in env.
func ApplyEnv(cfg *Config, env *viper.Viper) error {
	strs := map[string]*string{
		"api.base_url":             &cfg.API.BaseURL,
		"api.token":                &cfg.API.Token,
		"articles.base_url":        &cfg.Articles.BaseURL,
		"session_store.backend":    &cfg.SessionStore.Backend,
		"session_store.path":       &cfg.SessionStore.Path,
		"session_store.redis_addr": &cfg.SessionStore.RedisAddr,
		"session_store.redis_key":  &cfg.SessionStore.RedisKey,
		"events.redis_addr":        &cfg.Events.Addr,
		"events.group":             &cfg.Events.Group,
		"events.consumer":          &cfg.Events.Consumer,
		"log.level":                &cfg.Log.Level,
		"log.format":               &cfg.Log.Format,
		"log.file":                 &cfg.Log.File,
	}
	for key, dst := range strs {
		if env.IsSet(key) {
			*dst = strings.TrimSpace(env.GetString(key))
		}
	}

	durations := map[string]*time.Duration{
		"api.timeout":                &cfg.API.Timeout,
		"session_list.poll_interval": &cfg.SessionList.PollInterval,
	}
	for key, dst := range durations {
		if !env.IsSet(key) {
			continue
		}
		d, err := cast.ToDurationE(strings.TrimSpace(env.GetString(key)))
		if err != nil {
			return errors.Wrapf(err, "invalid %s", EnvName(key))
		}
		*dst = d
	}

	bools := map[string]*bool{
		"events.redis_enabled": &cfg.Events.Enabled,
		"offline":              &cfg.Offline,
	}
	for key, dst := range bools {
		if !env.IsSet(key) {
			continue
		}
		b, err := cast.ToBoolE(strings.TrimSpace(env.GetString(key)))
		if err != nil {
			return errors.Wrapf(err, "invalid %s", EnvName(key))
		}
		*dst = b
	}

	if env.IsSet("session_list.limit") {
		n, err := cast.ToIntE(strings.TrimSpace(env.GetString("session_list.limit")))
		if err != nil {
			return errors.Wrapf(err, "invalid %s", EnvName("session_list.limit"))
		}
		cfg.SessionList.Limit = n
	}
	return nil
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if !c.Offline && strings.TrimSpace(c.API.BaseURL) == "" {
		return errors.New("api.base_url is required unless offline mode is enabled")
	}
	if c.API.Timeout < 0 {
		return errors.New("api.timeout must not be negative")
	}
	switch strings.ToLower(strings.TrimSpace(c.SessionStore.Backend)) {
	case "", sessionstore.BackendMemory:
	case sessionstore.BackendFile, sessionstore.BackendSQLite:
		if strings.TrimSpace(c.SessionStore.Path) == "" {
			return errors.Errorf("session_store.path is required for the %s backend", c.SessionStore.Backend)
		}
	case sessionstore.BackendRedis:
		if strings.TrimSpace(c.SessionStore.RedisAddr) == "" {
			return errors.New("session_store.redis_addr is required for the redis backend")
		}
	default:
		return errors.Errorf("unknown session_store.backend %q", c.SessionStore.Backend)
	}
	if c.Events.Enabled && strings.TrimSpace(c.Events.Addr) == "" {
		return errors.New("events.redis_addr is required when redis events are enabled")
	}
	if c.SessionList.PollInterval <= 0 {
		return errors.New("session_list.poll_interval must be positive")
	}
	if c.SessionList.Limit <= 0 {
		return errors.New("session_list.limit must be positive")
	}
	return nil
}
