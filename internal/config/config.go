package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type Config struct {
    BaseDir    string       `json:"base_dir" yaml:"base_dir" mapstructure:"base_dir"`
    HooksDir   string       `json:"hooks_dir" yaml:"hooks_dir" mapstructure:"hooks_dir"`
    ExportDir  string       `json:"export_dir" yaml:"export_dir" mapstructure:"export_dir"` // default destination for TUI exports
    LogFile    string       `json:"log_file,omitempty" yaml:"log_file,omitempty" mapstructure:"log_file"`
    LogJournal bool         `json:"log_journal,omitempty" yaml:"log_journal,omitempty" mapstructure:"log_journal"`
    Debug      bool         `json:"debug" yaml:"debug" mapstructure:"debug"`
    Server     ServerConfig `json:"server" yaml:"server" mapstructure:"server"`
    // OpenAI settings are accepted for compatibility with existing config files; nothing reads them.
    OpenAI     OpenAIConfig `json:"openai" yaml:"openai" mapstructure:"openai"`
}

type ServerConfig struct {
    Host string `json:"host" yaml:"host" mapstructure:"host"`
    Port int    `json:"port" yaml:"port" mapstructure:"port"`
}

type OpenAIConfig struct {
    APIKey string `json:"api_key" yaml:"api_key" mapstructure:"api_key"`
    Model  string `json:"model" yaml:"model" mapstructure:"model"`
}

// Addr is the listen address of the HTTP service.
func (s ServerConfig) Addr() string {
    return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func Default() Config {
    return Config{
        BaseDir:   ".",
        HooksDir:  filepath.Join(UserHome(), ".config", "kanban-task-man", "hooks"),
        // CWD by default; app will fallback to "." when empty
        ExportDir: "",
        Debug:     false,
        Server:    ServerConfig{Host: "0.0.0.0", Port: 3003},
        OpenAI:    OpenAIConfig{Model: "gpt-3.5-turbo"},
    }
}

// Load reads path (JSON or YAML, chosen by extension) on top of out and applies
// environment overrides. A missing file still applies the environment and then
// returns an error satisfying os.IsNotExist, so callers can ignore it.
func Load(path string, out *Config) error {
    v := viper.New()
    v.SetDefault("base_dir", out.BaseDir)
    v.SetDefault("hooks_dir", out.HooksDir)
    v.SetDefault("export_dir", out.ExportDir)
    v.SetDefault("log_file", out.LogFile)
    v.SetDefault("log_journal", out.LogJournal)
    v.SetDefault("debug", out.Debug)
    v.SetDefault("server.host", out.Server.Host)
    v.SetDefault("server.port", out.Server.Port)
    v.SetDefault("openai.api_key", out.OpenAI.APIKey)
    v.SetDefault("openai.model", out.OpenAI.Model)
    _ = v.BindEnv("base_dir", "KANBAN_BASE_DIR")
    _ = v.BindEnv("hooks_dir", "KANBAN_HOOKS_DIR")
    _ = v.BindEnv("server.host", "HOST")
    _ = v.BindEnv("server.port", "PORT")

    var statErr error
    if path != "" {
        if _, err := os.Stat(path); err != nil {
            statErr = err
        } else {
            v.SetConfigFile(path)
            if t := configType(path); t != "" { v.SetConfigType(t) }
            if err := v.ReadInConfig(); err != nil {
                return fmt.Errorf("read config %s: %w", path, err)
            }
        }
    }

    var c Config
    if err := v.Unmarshal(&c); err != nil {
        return fmt.Errorf("decode config: %w", err)
    }
    if c.OpenAI.Model == "" {
        c.OpenAI.Model = "gpt-3.5-turbo"
    }
    if c.BaseDir != "" {
        abs, err := ExpandPath(c.BaseDir)
        if err != nil { return err }
        c.BaseDir = abs
    }
    *out = c
    return statErr
}

func Save(path string, c Config) error {
    if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
        return err
    }
    var (
        b   []byte
        err error
    )
    if configType(path) == "yaml" {
        b, err = yaml.Marshal(c)
    } else {
        b, err = json.MarshalIndent(c, "", "  ")
    }
    if err != nil {
        return err
    }
    return os.WriteFile(path, b, 0o644)
}

func configType(path string) string {
    switch strings.ToLower(filepath.Ext(path)) {
    case ".yaml", ".yml":
        return "yaml"
    case ".json":
        return "json"
    }
    return ""
}

// ExpandPath resolves a leading ~ and returns an absolute, cleaned path.
func ExpandPath(p string) (string, error) {
    if p == "~" || strings.HasPrefix(p, "~/") || strings.HasPrefix(p, `~\`) {
        p = filepath.Join(UserHome(), p[1:])
    }
    return filepath.Abs(p)
}

func UserHome() string {
    if h, err := os.UserHomeDir(); err == nil {
        return h
    }
    if runtime.GOOS == "windows" {
        if h := os.Getenv("USERPROFILE"); h != "" {
            return h
        }
    }
    return "."
}

func EnsureDir(path string) error {
    if path == "" {
        return errors.New("empty path")
    }
    return os.MkdirAll(path, 0o755)
}

// DefaultPath is the config file looked up when --config is not given.
func DefaultPath() string {
    return filepath.Join(UserHome(), ".config", "kanban-task-man.json")
}
