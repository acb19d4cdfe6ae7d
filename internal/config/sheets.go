// Package config provides configuration utilities for the application.
package config

import (
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/chargedesk/internal/sheets"
)

// LoadSheetsConfig loads Google Sheets configuration from Viper and environment variables.
// It follows this precedence:
// 1. Viper configuration (from config file or DESK_ env vars)
// 2. Direct environment variables (GOOGLE_SHEETS_*)
// 3. Default values
func LoadSheetsConfig() (*sheets.Config, error) {
	config := sheetsConfig(viper.GetViper())

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// sheetsConfig reads the sheets settings without validating them; a desk
// running on the local database does not need them.
func sheetsConfig(v *viper.Viper) sheets.Config {
	config := sheets.DefaultConfig()

	// Load from Viper first
	if s := v.GetString("sheets.service_account_path"); s != "" {
		config.ServiceAccountPath = ExpandPath(s)
	}
	if s := v.GetString("sheets.client_id"); s != "" {
		config.ClientID = s
	}
	if s := v.GetString("sheets.client_secret"); s != "" {
		config.ClientSecret = s
	}
	if s := v.GetString("sheets.refresh_token"); s != "" {
		config.RefreshToken = s
	}
	if s := v.GetString("sheets.spreadsheet_id"); s != "" {
		config.SpreadsheetID = s
	}
	if s := v.GetString("sheets.worksheet"); s != "" {
		config.Worksheet = s
	}
	if s := v.GetString("sheets.users_worksheet"); s != "" {
		config.UsersWorksheet = s
	}
	if s := v.GetString("desk.timezone"); s != "" {
		config.TimeZone = s
	}
	if v.IsSet("sheets.retry_attempts") {
		config.RetryAttempts = v.GetInt("sheets.retry_attempts")
	}
	if v.IsSet("sheets.timeout_seconds") {
		config.Timeout = time.Duration(v.GetInt("sheets.timeout_seconds")) * time.Second
	}

	// Override with direct environment variables if not set
	if config.ServiceAccountPath == "" {
		if s := os.Getenv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH"); s != "" {
			config.ServiceAccountPath = ExpandPath(s)
		}
	}
	if config.ClientID == "" {
		config.ClientID = os.Getenv("GOOGLE_SHEETS_CLIENT_ID")
	}
	if config.ClientSecret == "" {
		config.ClientSecret = os.Getenv("GOOGLE_SHEETS_CLIENT_SECRET")
	}
	if config.RefreshToken == "" {
		config.RefreshToken = os.Getenv("GOOGLE_SHEETS_REFRESH_TOKEN")
	}
	if config.SpreadsheetID == "" {
		config.SpreadsheetID = os.Getenv("GOOGLE_SHEETS_SPREADSHEET_ID")
	}
	if config.Worksheet == "Sheet1" {
		if s := os.Getenv("GOOGLE_SHEETS_WORKSHEET"); s != "" {
			config.Worksheet = s
		}
	}

	return config
}
