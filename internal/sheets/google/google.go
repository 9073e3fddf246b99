package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"corredo/internal/cache"
	"corredo/internal/core"
	"corredo/internal/log"
	ports "corredo/internal/sheets"
)

const (
	columnRange   = "A:G"
	idColumnTTL   = 30 * time.Second
	idColumnKey   = "ids"
	valueInputRaw = "RAW"
)

var header = []interface{}{"item_id", "name", "quantity", "unit_price", "total", "purchased_at", "labels"}

// Client mirrors purchases into one sheet of a spreadsheet, one row per item.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger

	// Column A (item ids) is read before every write; keep it briefly.
	ids *cache.LRUCache[[]string]
}

// Ensure interface conformance
var (
	_ ports.PurchaseLedger = (*Client)(nil)
	_ ports.PurchaseLister = (*Client)(nil)
)

// Options selects the target sheet and the service account credentials.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// OptionsFromEnv reads GOOGLE_SPREADSHEET_ID, GOOGLE_SHEET_NAME and
// GOOGLE_SERVICE_ACCOUNT_JSON / GOOGLE_SERVICE_ACCOUNT_FILE /
// GOOGLE_APPLICATION_CREDENTIALS.
func OptionsFromEnv() Options {
	file := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	return Options{
		SpreadsheetID:   strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID")),
		SheetName:       strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME")),
		CredentialsJSON: strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")),
		CredentialsFile: file,
	}
}

// New creates a client authenticated with a service account. Extra client
// options are appended after the credentials.
func New(ctx context.Context, opts Options, logger *log.Logger, extra ...goption.ClientOption) (*Client, error) {
	if opts.SpreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	var clientOpts []goption.ClientOption
	switch {
	case opts.CredentialsJSON != "":
		clientOpts = append(clientOpts, goption.WithCredentialsJSON([]byte(opts.CredentialsJSON)))
	case opts.CredentialsFile != "":
		data, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		clientOpts = append(clientOpts, goption.WithCredentialsJSON(data))
	case len(extra) == 0:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	clientOpts = append(clientOpts, goption.WithScopes(gsheet.SpreadsheetsScope))
	clientOpts = append(clientOpts, extra...)

	svc, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return newClient(svc, opts, logger), nil
}

func newClient(svc *gsheet.Service, opts Options, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Discard()
	}
	name := opts.SheetName
	if name == "" {
		name = "Acquisti"
	}
	return &Client{
		svc:           svc,
		spreadsheetID: opts.SpreadsheetID,
		sheetName:     name,
		logger:        logger.WithComponent(log.ComponentSheets),
		ids:           cache.NewLRUCache[[]string](1, idColumnTTL),
	}
}

func (c *Client) rng(r string) string {
	return fmt.Sprintf("'%s'!%s", c.sheetName, r)
}

// itemIDs returns column A, header included.
func (c *Client) itemIDs(ctx context.Context) ([]string, error) {
	if ids, ok := c.ids.Get(idColumnKey); ok {
		return ids, nil
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.rng("A:A")).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read item ids: %w", err)
	}
	ids := make([]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		ids = append(ids, strings.TrimSpace(firstString(row)))
	}
	c.ids.Set(idColumnKey, ids)
	return ids, nil
}

// findRow returns the zero based row index of itemID, or -1.
func findRow(ids []string, itemID int64) int {
	want := strconv.FormatInt(itemID, 10)
	for i, v := range ids {
		if i > 0 && v == want {
			return i
		}
	}
	return -1
}

// RecordPurchase writes the item's row, replacing an existing one.
func (c *Client) RecordPurchase(ctx context.Context, it core.ShoppingItem) error {
	row, err := ports.RowFromItem(it)
	if err != nil {
		return err
	}
	ids, err := c.itemIDs(ctx)
	if err != nil {
		return err
	}
	defer c.ids.Purge()

	if len(ids) == 0 {
		vr := &gsheet.ValueRange{Values: [][]interface{}{header}}
		if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, c.rng("A1:G1"), vr).
			ValueInputOption(valueInputRaw).Context(ctx).Do(); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	vr := &gsheet.ValueRange{Values: [][]interface{}{encodeRow(row)}}
	if i := findRow(ids, it.ID); i >= 0 {
		target := c.rng(fmt.Sprintf("A%d:G%d", i+1, i+1))
		if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, target, vr).
			ValueInputOption(valueInputRaw).Context(ctx).Do(); err != nil {
			return fmt.Errorf("update purchase row: %w", err)
		}
		c.logger.InfoContext(ctx, "Purchase row updated", log.FieldItemID, it.ID, "row", i+1)
		return nil
	}

	if _, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.rng(columnRange), vr).
		ValueInputOption(valueInputRaw).InsertDataOption("INSERT_ROWS").Context(ctx).Do(); err != nil {
		return fmt.Errorf("append purchase row: %w", err)
	}
	c.logger.InfoContext(ctx, "Purchase row appended", log.FieldItemID, it.ID,
		log.FieldAmountCents, row.Total.Cents)
	return nil
}

// RemovePurchase deletes the item's row; a missing row is not an error.
func (c *Client) RemovePurchase(ctx context.Context, itemID int64) error {
	ids, err := c.itemIDs(ctx)
	if err != nil {
		return err
	}
	i := findRow(ids, itemID)
	if i < 0 {
		return nil
	}
	defer c.ids.Purge()

	sheetID, err := c.sheetID(ctx)
	if err != nil {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(i),
					EndIndex:   int64(i + 1),
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete purchase row: %w", err)
	}
	c.logger.InfoContext(ctx, "Purchase row removed", log.FieldItemID, itemID, "row", i+1)
	return nil
}

func (c *Client) sheetID(ctx context.Context) (int64, error) {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == c.sheetName {
			return s.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", c.sheetName)
}

// ListPurchases reads every ledger row, skipping the header and rows that
// cannot be parsed.
func (c *Client) ListPurchases(ctx context.Context) ([]ports.PurchaseRow, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.rng(columnRange)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read purchases: %w", err)
	}
	out := make([]ports.PurchaseRow, 0, len(resp.Values))
	for i, raw := range resp.Values {
		if i == 0 {
			continue
		}
		row, err := decodeRow(raw)
		if err != nil {
			c.logger.WarnContext(ctx, "Skipping malformed purchase row", "row", i+1, log.FieldError, err)
			continue
		}
		out = append(out, row)
	}
	return out, nil
}
