package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dkeye/Tutor/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type TransportConfig struct {
	AppID       string        `mapstructure:"app_id"`
	Token       string        `mapstructure:"token"`
	Channel     string        `mapstructure:"channel"`
	SignalURL   string        `mapstructure:"signal_url"`
	ICEServers  []string      `mapstructure:"ice_servers"`
	JoinTimeout time.Duration `mapstructure:"join_timeout"`
}

type HotkeyConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Device  string `mapstructure:"device"`
	Trigger string `mapstructure:"trigger"`
}

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Host       string        `mapstructure:"host"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`

	Role       string   `mapstructure:"role"`
	AutoJoin   []string `mapstructure:"auto_join"`
	TickRate   float64  `mapstructure:"tick_rate"`
	CursorRate float64  `mapstructure:"cursor_rate"`

	Transport TransportConfig `mapstructure:"transport"`
	Hotkey    HotkeyConfig    `mapstructure:"hotkey"`

	// role -> purpose -> uid; empty means the built-in partition
	UIDs map[string]map[string]uint32 `mapstructure:"uids"`
}

// Load reads path, or config/config.<CONFIG_ENV>.yaml when path is empty.
// Any key can be overridden by TUTOR_<KEY> with dots as underscores.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if path == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		path = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(path)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("TUTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("mode", "release")
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("port", 8090)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "tutor-local")
	v.SetDefault("log_level", "info")
	v.SetDefault("role", string(domain.RoleStudent))
	v.SetDefault("auto_join", []string{})
	v.SetDefault("tick_rate", 60.0)
	v.SetDefault("cursor_rate", 30.0)
	v.SetDefault("transport.app_id", "")
	v.SetDefault("transport.token", "")
	v.SetDefault("transport.channel", "")
	v.SetDefault("transport.signal_url", "ws://127.0.0.1:8080/api/ws/rtc")
	v.SetDefault("transport.ice_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("transport.join_timeout", "10s")
	v.SetDefault("hotkey.enabled", false)
	v.SetDefault("hotkey.device", "")
	v.SetDefault("hotkey.trigger", "f5")

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", path).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", path).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Str("role", cfg.Role).Int("port", cfg.Port).Msg("config ready")
	return &cfg, nil
}

func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate fails fast on anything that would only surface after start.
func (c *Config) Validate() error {
	switch c.Mode {
	case "debug", "release", "test":
	default:
		return &domain.ConfigError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", c.Mode)}
	}
	if c.Port <= 0 || c.Port > 65535 {
		return &domain.ConfigError{Field: "port", Reason: "out of range"}
	}
	if c.TickRate <= 0 {
		return &domain.ConfigError{Field: "tick_rate", Reason: "must be positive"}
	}
	if c.CursorRate <= 0 {
		return &domain.ConfigError{Field: "cursor_rate", Reason: "must be positive"}
	}
	if c.Transport.JoinTimeout <= 0 {
		return &domain.ConfigError{Field: "transport.join_timeout", Reason: "must be positive"}
	}
	u, err := url.Parse(c.Transport.SignalURL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return &domain.ConfigError{Field: "transport.signal_url", Reason: "must be a ws:// or wss:// url"}
	}
	_, err = c.RoleConfig()
	return err
}

// UIDTable converts the configured partition, falling back to the built-in one.
func (c *Config) UIDTable() (domain.UIDTable, error) {
	if len(c.UIDs) == 0 {
		return domain.DefaultUIDTable(), nil
	}
	table := make(domain.UIDTable, len(c.UIDs))
	for roleName, purposes := range c.UIDs {
		role := domain.Role(roleName)
		if !role.Valid() {
			return nil, &domain.ConfigError{Field: "uids." + roleName, Reason: "unknown role"}
		}
		table[role] = make(map[domain.Purpose]domain.UID, len(purposes))
		for name, uid := range purposes {
			p, ok := domain.ParsePurpose(name)
			if !ok {
				return nil, &domain.ConfigError{Field: "uids." + roleName + "." + name, Reason: "unknown purpose"}
			}
			table[role][p] = domain.UID(uid)
		}
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

// RoleConfig builds the controller parameters for the configured role.
func (c *Config) RoleConfig() (domain.RoleConfig, error) {
	table, err := c.UIDTable()
	if err != nil {
		return domain.RoleConfig{}, err
	}
	rc, err := domain.NewRoleConfig(domain.Role(c.Role), table)
	if err != nil {
		return domain.RoleConfig{}, err
	}
	for _, name := range c.AutoJoin {
		p, ok := domain.ParsePurpose(name)
		if !ok {
			return domain.RoleConfig{}, &domain.ConfigError{Field: "auto_join", Reason: fmt.Sprintf("unknown purpose %q", name)}
		}
		if _, ok := rc.Local[p]; !ok {
			return domain.RoleConfig{}, fmt.Errorf("auto_join %s for %s: %w", name, c.Role, domain.ErrPurposeNotConfigured)
		}
		rc.AutoJoin = append(rc.AutoJoin, p)
	}
	rc.JoinTimeout = c.Transport.JoinTimeout
	rc.CursorRate = c.CursorRate
	return rc, nil
}
