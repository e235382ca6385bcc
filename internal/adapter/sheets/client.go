package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/riverwatch-service/internal/domain"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// ErrUnavailable is returned when the sheet exists but holds no rows.
var ErrUnavailable = errors.New("sheet has no data")

// Client reads a range from a Google Sheets spreadsheet.
// It implements pipeline.Source.
type Client struct {
	values        *sheets.SpreadsheetsValuesService
	spreadsheetID string
	readRange     string
	timeout       time.Duration
	logger        *slog.Logger
}

// Options configures a Client. Exactly one of APIKey or AccessToken is
// normally set; AccessToken wins when both are present.
type Options struct {
	SpreadsheetID string
	Range         string
	APIKey        string
	AccessToken   string
	Timeout       time.Duration
}

// NewClient creates a Sheets client. Extra client options are applied after
// the credentials, which lets tests point the client at a local server.
func NewClient(ctx context.Context, opts Options, logger *slog.Logger, extra ...option.ClientOption) (*Client, error) {
	var clientOpts []option.ClientOption
	switch {
	case opts.AccessToken != "":
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.AccessToken})
		clientOpts = append(clientOpts, option.WithTokenSource(ts))
	case opts.APIKey != "":
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	clientOpts = append(clientOpts, extra...)

	svc, err := sheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{
		values:        svc.Spreadsheets.Values,
		spreadsheetID: opts.SpreadsheetID,
		readRange:     opts.Range,
		timeout:       opts.Timeout,
		logger:        logger,
	}, nil
}

// Fetch returns the configured range as a RawTable.
func (c *Client) Fetch(ctx context.Context) (domain.RawTable, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	vr, err := c.values.Get(c.spreadsheetID, c.readRange).
		MajorDimension("ROWS").
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return domain.RawTable{}, fmt.Errorf("sheets values.get: %w", err)
	}

	if len(vr.Values) == 0 {
		return domain.RawTable{}, ErrUnavailable
	}

	c.logger.Debug("sheet fetched", "range", vr.Range, "rows", len(vr.Values))
	return domain.RawTable{Rows: toStrings(vr.Values)}, nil
}

// toStrings renders every cell as a string. FORMATTED_VALUE already returns
// strings, but numbers can still appear when the render option is overridden.
func toStrings(values [][]any) [][]string {
	rows := make([][]string, len(values))
	for i, row := range values {
		cells := make([]string, len(row))
		for j, v := range row {
			switch x := v.(type) {
			case nil:
				cells[j] = ""
			case string:
				cells[j] = x
			default:
				cells[j] = fmt.Sprint(x)
			}
		}
		rows[i] = cells
	}
	return rows
}
