package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/chargedesk/internal/common"
)

func clearSheetsEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH",
		"GOOGLE_SHEETS_CLIENT_ID",
		"GOOGLE_SHEETS_CLIENT_SECRET",
		"GOOGLE_SHEETS_REFRESH_TOKEN",
		"GOOGLE_SHEETS_SPREADSHEET_ID",
		"GOOGLE_SHEETS_WORKSHEET",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDeskFrom(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]any
		wantErr error
		check   func(t *testing.T, cfg *Desk)
	}{
		{
			name: "sqlite defaults",
			values: map[string]any{
				"storage.backend": BackendSQLite,
				"desk.timezone":   "UTC",
			},
			check: func(t *testing.T, cfg *Desk) {
				assert.Equal(t, 5*time.Minute, cfg.Engine.Retention)
				assert.Equal(t, 19, cfg.Engine.Shift.StartHour)
				assert.Equal(t, 6, cfg.Engine.Shift.EndHour)
				assert.Equal(t, time.UTC, cfg.Engine.Location)
				assert.Equal(t, time.Hour, cfg.CacheRetention)
				assert.Equal(t, ":8080", cfg.ServerAddr)
				assert.Empty(t, cfg.SessionKey)
				assert.Equal(t, 12*time.Hour, cfg.SessionTTL)
				assert.False(t, cfg.Policy.AllowChargeBackReopen)
				assert.Equal(t, "managers", cfg.Notify.FCMTopic)
			},
		},
		{
			name: "sheets with service account",
			values: map[string]any{
				"desk.timezone":                "UTC",
				"sheets.service_account_path":  "/tmp/sa.json",
				"sheets.spreadsheet_id":        "sheet-123",
				"sheets.worksheet":             "Transactions",
				"desk.agents":                  []string{"Ali", "Sara"},
				"desk.allow_chargeback_reopen": true,
				"desk.night_shift.start_hour":  20,
				"desk.night_shift.end_hour":    4,
			},
			check: func(t *testing.T, cfg *Desk) {
				assert.Equal(t, BackendSheets, cfg.Backend)
				assert.Equal(t, "sheet-123", cfg.Sheets.SpreadsheetID)
				assert.Equal(t, "Transactions", cfg.Sheets.Worksheet)
				assert.Equal(t, "Users", cfg.Sheets.UsersWorksheet)
				assert.Equal(t, []string{"Ali", "Sara"}, cfg.Engine.Agents)
				assert.True(t, cfg.Policy.AllowChargeBackReopen)
				assert.Equal(t, 20, cfg.Engine.Shift.StartHour)
				assert.Equal(t, 4, cfg.Engine.Shift.EndHour)
			},
		},
		{
			name:    "sheets without credentials",
			values:  map[string]any{"desk.timezone": "UTC"},
			wantErr: common.ErrInvalidConfig,
		},
		{
			name: "unknown backend",
			values: map[string]any{
				"desk.timezone":   "UTC",
				"storage.backend": "postgres",
			},
			wantErr: common.ErrInvalidConfig,
		},
		{
			name: "bad timezone",
			values: map[string]any{
				"storage.backend": BackendSQLite,
				"desk.timezone":   "Not/AZone",
			},
			wantErr: common.ErrInvalidConfig,
		},
		{
			name: "same shift hours",
			values: map[string]any{
				"storage.backend":             BackendSQLite,
				"desk.timezone":               "UTC",
				"desk.night_shift.start_hour": 6,
			},
			wantErr: common.ErrInvalidConfig,
		},
		{
			name: "negative retention",
			values: map[string]any{
				"storage.backend":        BackendSQLite,
				"desk.timezone":          "UTC",
				"desk.retention_minutes": -1,
			},
			wantErr: common.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearSheetsEnv(t)
			v := viper.New()
			for k, val := range tt.values {
				v.Set(k, val)
			}

			cfg, err := LoadDeskFrom(v)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestSheetsConfigEnvFallback(t *testing.T) {
	clearSheetsEnv(t)
	t.Setenv("GOOGLE_SHEETS_SPREADSHEET_ID", "from-env")
	t.Setenv("GOOGLE_SHEETS_WORKSHEET", "EnvTab")

	v := viper.New()
	v.Set("sheets.client_id", "id")
	cfg := sheetsConfig(v)

	assert.Equal(t, "from-env", cfg.SpreadsheetID)
	assert.Equal(t, "EnvTab", cfg.Worksheet)
	assert.Equal(t, "id", cfg.ClientID)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("DESK_TEST_DIR", "/srv/desk")

	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "~", want: home},
		{in: "~/desk.db", want: filepath.Join(home, "desk.db")},
		{in: "$DESK_TEST_DIR/desk.db", want: "/srv/desk/desk.db"},
		{in: "/abs/path", want: "/abs/path"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandPath(tt.in))
		})
	}
}
