package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/chargedesk/internal/common"
	"github.com/Veraticus/chargedesk/internal/engine"
	"github.com/Veraticus/chargedesk/internal/lifecycle"
	"github.com/Veraticus/chargedesk/internal/sheets"
	"github.com/Veraticus/chargedesk/internal/window"
)

// Record store backends.
const (
	BackendSheets = "sheets"
	BackendSQLite = "sqlite"
)

// Notify selects where notifications go. Empty settings disable a channel.
type Notify struct {
	PushbulletToken string
	FCMCredentials  string
	FCMTopic        string
}

// Desk is the validated application configuration.
type Desk struct {
	Sheets         sheets.Config
	Notify         Notify
	Backend        string
	DatabasePath   string
	ServerAddr     string
	SessionKey     string
	SessionTTL     time.Duration
	Engine         engine.Config
	CacheRetention time.Duration
	Policy         lifecycle.Policy
}

// SetDefaults registers the default for every desk key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("storage.backend", BackendSheets)
	v.SetDefault("database.path", "~/.local/share/desk/desk.db")
	v.SetDefault("desk.timezone", "Asia/Karachi")
	v.SetDefault("desk.retention_minutes", 5)
	v.SetDefault("desk.night_shift.start_hour", 19)
	v.SetDefault("desk.night_shift.end_hour", 6)
	v.SetDefault("cache.retention_minutes", 60)
	v.SetDefault("notify.fcm_topic", "managers")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.session_ttl_minutes", 720)
}

// LoadDesk loads the desk configuration from the global Viper instance.
func LoadDesk() (*Desk, error) {
	return LoadDeskFrom(viper.GetViper())
}

// LoadDeskFrom loads and validates the desk configuration from v.
func LoadDeskFrom(v *viper.Viper) (*Desk, error) {
	SetDefaults(v)

	loc, err := time.LoadLocation(v.GetString("desk.timezone"))
	if err != nil {
		return nil, fmt.Errorf("%w: desk.timezone: %w", common.ErrInvalidConfig, err)
	}

	eng := engine.DefaultConfig()
	eng.Location = loc
	eng.Retention = time.Duration(v.GetInt("desk.retention_minutes")) * time.Minute
	eng.Shift = window.NightShift{
		StartHour: v.GetInt("desk.night_shift.start_hour"),
		EndHour:   v.GetInt("desk.night_shift.end_hour"),
		Location:  loc,
	}
	eng.Agents = v.GetStringSlice("desk.agents")
	eng.LLCs = v.GetStringSlice("desk.llcs")
	eng.Providers = v.GetStringSlice("desk.providers")
	eng.StrictCharges = v.GetBool("desk.strict_charges")

	if err := eng.Shift.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}
	if eng.Retention < 0 {
		return nil, fmt.Errorf("%w: desk.retention_minutes cannot be negative", common.ErrInvalidConfig)
	}

	cfg := &Desk{
		Sheets:         sheetsConfig(v),
		Engine:         eng,
		Backend:        v.GetString("storage.backend"),
		DatabasePath:   ExpandPath(v.GetString("database.path")),
		CacheRetention: time.Duration(v.GetInt("cache.retention_minutes")) * time.Minute,
		ServerAddr:     v.GetString("server.addr"),
		SessionKey:     v.GetString("server.session_key"),
		SessionTTL:     time.Duration(v.GetInt("server.session_ttl_minutes")) * time.Minute,
		Policy: lifecycle.Policy{
			AllowChargeBackReopen: v.GetBool("desk.allow_chargeback_reopen"),
			AllowChargedReopen:    v.GetBool("desk.allow_charged_reopen"),
		},
		Notify: Notify{
			PushbulletToken: v.GetString("notify.pushbullet_token"),
			FCMCredentials:  ExpandPath(v.GetString("notify.fcm_credentials")),
			FCMTopic:        v.GetString("notify.fcm_topic"),
		},
	}
	cfg.Sheets.TimeZone = loc.String()

	switch cfg.Backend {
	case BackendSheets:
		if err := cfg.Sheets.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
		}
	case BackendSQLite:
		if cfg.DatabasePath == "" {
			return nil, fmt.Errorf("%w: database.path is required for the sqlite backend", common.ErrMissingConfig)
		}
	default:
		return nil, fmt.Errorf("%w: unknown storage.backend %q", common.ErrInvalidConfig, cfg.Backend)
	}

	return cfg, nil
}

// ExpandPath expands a leading ~ and any $VAR references in path.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return os.ExpandEnv(path)
}
