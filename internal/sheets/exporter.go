// Package sheets exports extraction results to a Google Sheets spreadsheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"docdash/internal/extraction"
	"docdash/internal/logger"
)

// ErrInvalidSheetURL is returned when no spreadsheet ID can be found.
var ErrInvalidSheetURL = errors.New("invalid Google Sheets URL format")

var spreadsheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)

var bareIDPattern = regexp.MustCompile(`^[a-zA-Z0-9-_]{20,}$`)

// Exporter writes extraction results into tabs of one spreadsheet.
type Exporter struct {
	service       *sheets.Service
	spreadsheetID string
	log           zerolog.Logger
}

// Summary describes what an export wrote.
type Summary struct {
	Sheet  string
	Rows   int
	Tables int
	Fields int
}

// NewExporter opens the spreadsheet at sheetURL with the service account from
// GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS, falling back to
// application default credentials.
func NewExporter(ctx context.Context, sheetURL string) (*Exporter, error) {
	const op = "NewExporter"

	spreadsheetID, err := SpreadsheetID(sheetURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	creds, err := credentialsJSON()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var client *http.Client
	if creds != nil {
		config, err := google.JWTConfigFromJSON(creds, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to parse credentials: %w", op, err)
		}
		client = config.Client(ctx)
	} else {
		client, err = google.DefaultClient(ctx, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("%s: no Google credentials available: %w", op, err)
		}
	}

	return newExporter(ctx, spreadsheetID, option.WithHTTPClient(client))
}

func newExporter(ctx context.Context, spreadsheetID string, options ...option.ClientOption) (*Exporter, error) {
	service, err := sheets.NewService(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Exporter{
		service:       service,
		spreadsheetID: spreadsheetID,
		log:           logger.WithComponent("sheets"),
	}, nil
}

// SpreadsheetID extracts the spreadsheet ID from a Google Sheets URL. A bare
// ID is accepted as is.
func SpreadsheetID(sheetURL string) (string, error) {
	sheetURL = strings.TrimSpace(sheetURL)

	if matches := spreadsheetIDPattern.FindStringSubmatch(sheetURL); len(matches) == 2 {
		return matches[1], nil
	}
	if bareIDPattern.MatchString(sheetURL) {
		return sheetURL, nil
	}

	return "", ErrInvalidSheetURL
}

// Export writes result into the tab sheetName, creating it when missing.
// Each table is written under a "Table N" label row, followed by a
// Field/Value section for the schema. Existing content in the written range
// is overwritten.
func (e *Exporter) Export(ctx context.Context, sheetName string, result *extraction.Result) (*Summary, error) {
	const op = "Export"

	sheetID, err := e.ensureSheet(ctx, sheetName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	values, labels := resultRows(result)
	if len(values) == 0 {
		values = [][]any{{"No tables or fields extracted"}}
	}

	_, err = e.service.Spreadsheets.Values.Update(
		e.spreadsheetID,
		quoteSheet(sheetName)+"!A1",
		&sheets.ValueRange{Values: values},
	).ValueInputOption("USER_ENTERED").Context(ctx).Do()

	if err != nil {
		return nil, fmt.Errorf("%s: failed to write values: %w", op, err)
	}

	if err := e.formatLabels(ctx, sheetID, labels); err != nil {
		e.log.Warn().Err(err).Msg("Failed to format labels, continuing anyway")
	}

	summary := &Summary{
		Sheet:  sheetName,
		Rows:   len(values),
		Tables: len(result.Tables),
		Fields: len(result.Schema),
	}

	e.log.Info().
		Str("sheet", sheetName).
		Int("rows", summary.Rows).
		Int("tables", summary.Tables).
		Int("fields", summary.Fields).
		Msg("Exported result to Google Sheet")

	return summary, nil
}

func (e *Exporter) ensureSheet(ctx context.Context, sheetName string) (int64, error) {
	spreadsheet, err := e.service.Spreadsheets.Get(e.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("failed to get spreadsheet: %w", err)
	}

	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == sheetName {
			return sheet.Properties.SheetId, nil
		}
	}

	e.log.Info().Str("sheet", sheetName).Msg("Creating new sheet")

	resp, err := e.service.Spreadsheets.BatchUpdate(e.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: sheetName}}},
		},
	}).Context(ctx).Do()

	if err != nil {
		return 0, fmt.Errorf("failed to create sheet: %w", err)
	}

	if len(resp.Replies) == 0 || resp.Replies[0].AddSheet == nil {
		return 0, fmt.Errorf("failed to create sheet: empty reply")
	}

	return resp.Replies[0].AddSheet.Properties.SheetId, nil
}

// formatLabels makes the given rows bold.
func (e *Exporter) formatLabels(ctx context.Context, sheetID int64, rows []int64) error {
	if len(rows) == 0 {
		return nil
	}

	requests := make([]*sheets.Request, 0, len(rows))
	for _, row := range rows {
		requests = append(requests, &sheets.Request{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:       sheetID,
					StartRowIndex: row,
					EndRowIndex:   row + 1,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{Bold: true},
					},
				},
				Fields: "userEnteredFormat.textFormat.bold",
			},
		})
	}

	_, err := e.service.Spreadsheets.BatchUpdate(e.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Context(ctx).Do()

	return err
}

// resultRows lays out the tables and schema of result as sheet rows and
// returns the indexes of the label rows.
func resultRows(result *extraction.Result) ([][]any, []int64) {
	var (
		values [][]any
		labels []int64
	)

	if result == nil {
		return nil, nil
	}

	section := func(label string) {
		if len(values) > 0 {
			values = append(values, []any{})
		}
		labels = append(labels, int64(len(values)))
		values = append(values, []any{label})
	}

	for i, table := range result.Tables {
		section(fmt.Sprintf("Table %d", i+1))
		for _, row := range table.Data {
			cells := make([]any, len(row))
			for j, cell := range row {
				if cell == nil {
					cells[j] = ""
				} else {
					cells[j] = fmt.Sprint(cell)
				}
			}
			values = append(values, cells)
		}
	}

	if len(result.Schema) > 0 {
		section("Field")
		values[len(values)-1] = []any{"Field", "Value"}
		for _, key := range slices.Sorted(maps.Keys(result.Schema)) {
			values = append(values, []any{key, result.Schema[key]})
		}
	}

	return values, labels
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// credentialsJSON follows the same precedence as the Vision and Document AI
// clients: inline JSON first, then the credentials file.
func credentialsJSON() ([]byte, error) {
	if credsJSON := os.Getenv("GOOGLE_CREDENTIALS"); credsJSON != "" {
		return []byte(credsJSON), nil
	}
	if credsFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credsFile != "" {
		creds, err := os.ReadFile(credsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		return creds, nil
	}
	return nil, nil
}
