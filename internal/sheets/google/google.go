package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"carteira/internal/core"
	ports "carteira/internal/sheets"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	// Base name without year (e.g. "Ledger"); records go to "<year> <base>".
	sheetBase string
}

// Ensure interface conformance
var _ ports.LedgerExporter = (*Client)(nil)

type Config struct {
	SpreadsheetID   string
	SheetName       string // base name, default "Ledger"
	CredentialsJSON []byte
}

// New creates a Sheets client from explicit settings. Extra options are
// passed to the Sheets service (endpoint overrides in tests).
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	base := strings.TrimSpace(cfg.SheetName)
	if base == "" {
		base = "Ledger"
	}
	if len(cfg.CredentialsJSON) > 0 {
		opts = append([]goption.ClientOption{
			goption.WithCredentialsJSON(cfg.CredentialsJSON),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}, opts...)
	}
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: cfg.SpreadsheetID, sheetBase: base}, nil
}

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID and one of GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS.
// Optional: GOOGLE_SHEET_NAME (default "Ledger").
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	creds, err := credentialsFromEnv(ctx)
	if err != nil {
		return nil, err
	}
	return New(ctx, Config{
		SpreadsheetID:   spreadsheetID,
		SheetName:       os.Getenv("GOOGLE_SHEET_NAME"),
		CredentialsJSON: creds,
	})
}

func credentialsFromEnv(ctx context.Context) ([]byte, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		return []byte(serviceAccountJSON), nil
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// AppendTransactions appends txs to the yearly sheet of their date, one
// Values.Append call per year. Installments that cross a year boundary are
// split across sheets.
func (c *Client) AppendTransactions(ctx context.Context, txs []core.Transaction) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if len(txs) == 0 {
		return "", nil
	}

	byYear := map[int][][]any{}
	for _, t := range txs {
		y := t.Date.Year()
		if t.Date.IsZero() {
			y = time.Now().Year()
		}
		byYear[y] = append(byYear[y], ports.Row(t))
	}
	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)

	refs := make([]string, 0, len(years))
	for _, y := range years {
		sheet := yearPrefixedName(c.sheetBase, y)
		rng := fmt.Sprintf("%s!A:K", sheet)
		vr := &gsheet.ValueRange{Values: byYear[y]}
		resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
			ValueInputOption("USER_ENTERED").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).Do()
		if err != nil {
			return strings.Join(refs, ","), fmt.Errorf("append %d rows to %s: %w", len(byYear[y]), sheet, classifyAPIError(err))
		}
		ref := sheet
		if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
			ref = resp.Updates.UpdatedRange
		}
		refs = append(refs, ref)
	}
	return strings.Join(refs, ","), nil
}

// classifyAPIError marks client errors other than throttling as rejected.
func classifyAPIError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != http.StatusTooManyRequests {
		return fmt.Errorf("%w: %w", ports.ErrRejected, err)
	}
	return err
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
