package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/Veraticus/chargedesk/internal/common"
	"github.com/Veraticus/chargedesk/internal/metrics"
	"github.com/Veraticus/chargedesk/internal/model"
	"github.com/Veraticus/chargedesk/internal/service"
)

// lastColumn bounds every read. Sheets has no "whole row" A1 range.
const lastColumn = "ZZ"

// valueInput keeps IDs such as "00123" and charges such as "$5.00" as text.
const valueInput = "RAW"

// Table is a service.Table backed by one worksheet of a spreadsheet.
type Table struct {
	service *sheets.Service
	base    *slog.Logger
	logger  *slog.Logger
	sheetID *int64
	config  Config
	mu      sync.Mutex
}

var _ service.Table = (*Table)(nil)

// NewTable connects to Google Sheets and returns a table over
// config.Worksheet.
func NewTable(ctx context.Context, config Config, logger *slog.Logger) (*Table, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	srv, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return NewTableWithService(srv, config, logger), nil
}

// NewTableWithService wraps an existing Sheets client.
func NewTableWithService(srv *sheets.Service, config Config, logger *slog.Logger) *Table {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	return &Table{
		service: srv,
		config:  config,
		base:    logger,
		logger:  logger.With("worksheet", config.Worksheet),
	}
}

// Worksheet returns a table over another tab of the same spreadsheet,
// sharing the client.
func (t *Table) Worksheet(name string) *Table {
	config := t.config
	config.Worksheet = name
	return NewTableWithService(t.service, config, t.base)
}

// createSheetsService creates a Google Sheets API service.
func createSheetsService(ctx context.Context, config Config) (*sheets.Service, error) {
	var tokenSource oauth2.TokenSource

	if config.ServiceAccountPath != "" {
		jsonKey, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}

		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}

		tokenSource = jwtConfig.TokenSource(ctx)
	} else {
		client := &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{sheets.SpreadsheetsScope},
		}

		token := &oauth2.Token{
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
		}

		tokenSource = client.TokenSource(ctx, token)
	}

	httpClient := oauth2.NewClient(ctx, tokenSource)
	srv, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}

	return srv, nil
}

// ReadAll implements service.Table. Reads are idempotent, so transient
// failures are retried with backoff.
func (t *Table) ReadAll(ctx context.Context) (model.Sheet, error) {
	retryOpts := service.RetryOptions{
		MaxAttempts:  t.config.RetryAttempts,
		InitialDelay: t.config.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}

	var values [][]any
	err := common.WithRetry(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, t.config.Timeout)
		defer cancel()

		resp, err := t.service.Spreadsheets.Values.Get(t.config.SpreadsheetID, t.rangeFor("A1:"+lastColumn)).
			Context(callCtx).
			Do()
		if err != nil {
			return t.storeError("read", err)
		}
		values = resp.Values
		return nil
	}, retryOpts)
	if err != nil {
		return model.Sheet{}, err
	}

	sheet := model.Sheet{}
	if len(values) == 0 {
		return sheet, nil
	}
	sheet.Header = toStrings(values[0])
	sheet.Rows = make([][]string, 0, len(values)-1)
	for _, row := range values[1:] {
		sheet.Rows = append(sheet.Rows, toStrings(row))
	}

	t.logger.Debug("read worksheet", "rows", len(sheet.Rows))
	return sheet, nil
}

// Append implements service.Table. It is never retried: a timed out append
// may still have landed.
func (t *Table) Append(ctx context.Context, row []string) error {
	callCtx, cancel := context.WithTimeout(ctx, t.config.Timeout)
	defer cancel()

	_, err := t.service.Spreadsheets.Values.Append(t.config.SpreadsheetID, t.rangeFor("A1"), valueRange(row)).
		ValueInputOption(valueInput).
		InsertDataOption("INSERT_ROWS").
		Context(callCtx).
		Do()
	if err != nil {
		return t.storeError("append", err)
	}

	t.logger.Debug("appended row", "cells", len(row))
	return nil
}

// Update implements service.Table.
func (t *Table) Update(ctx context.Context, position int, row []string) error {
	if position < model.HeaderOffset+1 {
		return fmt.Errorf("%w: %d", common.ErrInvalidPosition, position)
	}

	callCtx, cancel := context.WithTimeout(ctx, t.config.Timeout)
	defer cancel()

	_, err := t.service.Spreadsheets.Values.Update(t.config.SpreadsheetID, t.rangeFor(fmt.Sprintf("A%d", position)), valueRange(row)).
		ValueInputOption(valueInput).
		Context(callCtx).
		Do()
	if err != nil {
		return t.storeError("update", err)
	}

	t.logger.Debug("updated row", "position", position)
	return nil
}

// Delete implements service.Table.
func (t *Table) Delete(ctx context.Context, position int) error {
	if position < model.HeaderOffset+1 {
		return fmt.Errorf("%w: %d", common.ErrInvalidPosition, position)
	}

	callCtx, cancel := context.WithTimeout(ctx, t.config.Timeout)
	defer cancel()

	sheetID, err := t.worksheetID(callCtx)
	if err != nil {
		return err
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(position - 1),
					EndIndex:   int64(position),
				},
			},
		}},
	}
	if _, err := t.service.Spreadsheets.BatchUpdate(t.config.SpreadsheetID, req).Context(callCtx).Do(); err != nil {
		return t.storeError("delete", err)
	}

	t.logger.Debug("deleted row", "position", position)
	return nil
}

// worksheetID resolves the numeric sheet ID of the worksheet, which
// structural requests need instead of its title.
func (t *Table) worksheetID(ctx context.Context) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sheetID != nil {
		return *t.sheetID, nil
	}

	spreadsheet, err := t.service.Spreadsheets.Get(t.config.SpreadsheetID).
		Fields("sheets.properties").
		Context(ctx).
		Do()
	if err != nil {
		return 0, t.storeError("lookup", err)
	}

	for _, s := range spreadsheet.Sheets {
		if s.Properties != nil && s.Properties.Title == t.config.Worksheet {
			id := s.Properties.SheetId
			t.sheetID = &id
			return id, nil
		}
	}
	return 0, t.storeError("lookup", fmt.Errorf("worksheet %q not found", t.config.Worksheet))
}

func (t *Table) rangeFor(cells string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(t.config.Worksheet, "'", "''"), cells)
}

func (t *Table) storeError(op string, err error) error {
	metrics.StoreErrors.WithLabelValues(op).Inc()
	t.logger.Warn("sheets call failed", "op", op, "error", err)
	return common.NewStoreIOError(op, err, transient(err))
}

// transient reports whether a Sheets API failure is worth retrying.
func transient(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func valueRange(row []string) *sheets.ValueRange {
	cells := make([]any, len(row))
	for i, c := range row {
		cells[i] = c
	}
	return &sheets.ValueRange{Values: [][]any{cells}}
}

func toStrings(row []any) []string {
	out := make([]string, len(row))
	for i, v := range row {
		if v == nil {
			continue
		}
		out[i] = fmt.Sprint(v)
	}
	return out
}
