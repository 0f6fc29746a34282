// Package gsheets implements rangestore.Store on the Google Sheets v4 API.
package gsheets

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/dvloznov/sheetledger/internal/auth"
	"github.com/dvloznov/sheetledger/internal/logger"
	"github.com/dvloznov/sheetledger/internal/rangestore"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	valueInputUserEntered = "USER_ENTERED"
	insertDataInsertRows  = "INSERT_ROWS"
	renderFormattedValue  = "FORMATTED_VALUE"
)

// Config selects the credentials used when a request carries no user token.
type Config struct {
	// CredentialsFile is a service account key. Empty means Application Default Credentials.
	CredentialsFile string
	ApplicationName string
}

// Client talks to the Sheets API. Calls whose context carries a user token
// (see auth.WithGoogleToken) act as that user; others use the fallback
// credentials from Config.
type Client struct {
	cfg Config

	mu       sync.Mutex
	fallback *sheets.Service
}

// New creates a client. Fallback credentials are resolved on first use.
func New(cfg Config) *Client {
	return &Client{cfg: cfg}
}

func (c *Client) service(ctx context.Context) (*sheets.Service, error) {
	opts := []option.ClientOption{}
	if c.cfg.ApplicationName != "" {
		opts = append(opts, option.WithUserAgent(c.cfg.ApplicationName))
	}

	if tok, ok := auth.GoogleTokenFromContext(ctx); ok {
		opts = append(opts, option.WithTokenSource(oauth2.StaticTokenSource(tok)))
		svc, err := sheets.NewService(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("service: user token: %w", err)
		}
		return svc, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fallback != nil {
		return c.fallback, nil
	}

	if c.cfg.CredentialsFile != "" {
		b, err := os.ReadFile(c.cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("service: reading credentials file: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, b, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("service: parsing credentials: %w", err)
		}
		opts = append(opts, option.WithCredentials(creds))
	} else {
		opts = append(opts, option.WithScopes(sheets.SpreadsheetsScope))
	}

	// The fallback outlives the request that created it.
	svc, err := sheets.NewService(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("service: default credentials: %w", err)
	}
	log := logger.FromContext(ctx)
	log.Debug().
		Bool("credentials_file", c.cfg.CredentialsFile != "").
		Msg("Initialized fallback Sheets service")
	c.fallback = svc
	return svc, nil
}

// GetValues implements rangestore.Store.
func (c *Client) GetValues(ctx context.Context, spreadsheetID, rng string) (rangestore.Grid, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return nil, rangestore.Wrap("GetValues", rng, err)
	}
	resp, err := svc.Spreadsheets.Values.Get(spreadsheetID, rng).
		ValueRenderOption(renderFormattedValue).
		Context(ctx).
		Do()
	if err != nil {
		return nil, rangestore.Wrap("GetValues", rng, err)
	}
	return toGrid(resp.Values), nil
}

// UpdateValues implements rangestore.Store.
func (c *Client) UpdateValues(ctx context.Context, spreadsheetID, rng string, values rangestore.Grid) error {
	svc, err := c.service(ctx)
	if err != nil {
		return rangestore.Wrap("UpdateValues", rng, err)
	}
	_, err = svc.Spreadsheets.Values.Update(spreadsheetID, rng, &sheets.ValueRange{Values: fromGrid(values)}).
		ValueInputOption(valueInputUserEntered).
		Context(ctx).
		Do()
	return rangestore.Wrap("UpdateValues", rng, err)
}

// AppendValues implements rangestore.Store.
func (c *Client) AppendValues(ctx context.Context, spreadsheetID, rng string, values rangestore.Grid) error {
	svc, err := c.service(ctx)
	if err != nil {
		return rangestore.Wrap("AppendValues", rng, err)
	}
	_, err = svc.Spreadsheets.Values.Append(spreadsheetID, rng, &sheets.ValueRange{Values: fromGrid(values)}).
		ValueInputOption(valueInputUserEntered).
		InsertDataOption(insertDataInsertRows).
		Context(ctx).
		Do()
	return rangestore.Wrap("AppendValues", rng, err)
}

// GetSpreadsheetMetadata implements rangestore.Store.
func (c *Client) GetSpreadsheetMetadata(ctx context.Context, spreadsheetID string) ([]rangestore.SheetMeta, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return nil, rangestore.Wrap("GetSpreadsheetMetadata", "", err)
	}
	ss, err := svc.Spreadsheets.Get(spreadsheetID).
		Fields("sheets.properties").
		Context(ctx).
		Do()
	if err != nil {
		return nil, rangestore.Wrap("GetSpreadsheetMetadata", "", err)
	}
	return toMeta(ss.Sheets), nil
}

func toMeta(in []*sheets.Sheet) []rangestore.SheetMeta {
	out := make([]rangestore.SheetMeta, 0, len(in))
	for _, sh := range in {
		if sh == nil || sh.Properties == nil {
			continue
		}
		out = append(out, rangestore.SheetMeta{
			SheetID: sh.Properties.SheetId,
			Title:   sh.Properties.Title,
			Index:   int(sh.Properties.Index),
		})
	}
	return out
}

func toGrid(values [][]interface{}) rangestore.Grid {
	if len(values) == 0 {
		return nil
	}
	out := make(rangestore.Grid, len(values))
	for i, row := range values {
		cells := make([]string, len(row))
		for j, v := range row {
			if v != nil {
				cells[j] = fmt.Sprint(v)
			}
		}
		out[i] = cells
	}
	return out
}

func fromGrid(g rangestore.Grid) [][]interface{} {
	out := make([][]interface{}, len(g))
	for i, row := range g {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		out[i] = cells
	}
	return out
}

var _ rangestore.Store = (*Client)(nil)
