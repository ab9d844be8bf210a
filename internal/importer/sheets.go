package importer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"taxledger/internal/core"
)

// SheetsFetcher reads sheets://spreadsheetId/range references, for example
// sheets://1AbC.../Transactions!A1:F.
type SheetsFetcher struct {
	svc *gsheet.Service
}

func NewSheetsFetcher(ctx context.Context, opts ...goption.ClientOption) (*SheetsFetcher, error) {
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &SheetsFetcher{svc: svc}, nil
}

func (f *SheetsFetcher) Fetch(ctx context.Context, ref Ref) (Document, error) {
	resp, err := f.svc.Spreadsheets.Values.Get(ref.Host, ref.Path).Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && (gerr.Code == http.StatusNotFound || gerr.Code == http.StatusBadRequest) {
			return Document{}, core.NewValidationError("fileRef", ref.String()+": "+gerr.Message)
		}
		return Document{}, fmt.Errorf("read range %s: %w", ref.Path, err)
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, r := range resp.Values {
		row := toStrings(r)
		if isBlank(row) {
			continue
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return Document{}, core.NewValidationError("fileRef", ref.String()+" is empty")
	}
	return Document{Name: ref.Path, MIMEType: "text/tab-separated-values", Rows: rows}, nil
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func isBlank(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}
