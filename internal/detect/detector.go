// Package detect finds the tabs of a spreadsheet that look like transaction
// ledgers and derives a column schema from their header rows.
package detect

import (
	"context"
	"fmt"
	"sort"

	"github.com/dvloznov/sheetledger/internal/domain"
	"github.com/dvloznov/sheetledger/internal/logger"
	"github.com/dvloznov/sheetledger/internal/rangestore"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds the header reads in flight for one detection.
const DefaultConcurrency = 4

// Candidate is a sheet that scored above zero.
type Candidate struct {
	SheetName    string           `json:"sheet_name"`
	Confidence   int              `json:"confidence"`
	InferredType domain.SheetType `json:"inferred_type"`
}

// Detection is the outcome of scanning a spreadsheet. Sheets whose headers
// could not be read score 0: they are never candidates and are listed in
// Skipped instead.
type Detection struct {
	Candidates []Candidate                  `json:"candidates"`
	Skipped    []*domain.DetectionReadError `json:"-"`
}

// Detector scores sheets and builds schemas.
type Detector struct {
	store       rangestore.Store
	concurrency int
}

// NewDetector creates a detector reading through store. A concurrency below
// 1 uses DefaultConcurrency.
func NewDetector(store rangestore.Store, concurrency int) *Detector {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Detector{store: store, concurrency: concurrency}
}

// DetectSheets scores every tab of the spreadsheet. Failing to list the tabs
// is fatal; failing to read one tab's headers is not.
func (d *Detector) DetectSheets(ctx context.Context, spreadsheetID string) (*Detection, error) {
	log := logger.FromContext(ctx)

	sheets, err := d.store.GetSpreadsheetMetadata(ctx, spreadsheetID)
	if err != nil {
		return nil, fmt.Errorf("DetectSheets: %w", rangestore.Wrap("GetSpreadsheetMetadata", "", err))
	}

	headers := make([][]string, len(sheets))
	readErrs := make([]error, len(sheets))

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i, sheet := range sheets {
		g.Go(func() error {
			headers[i], readErrs[i] = d.readHeaders(ctx, spreadsheetID, sheet.Title)
			return nil
		})
	}
	_ = g.Wait()

	result := &Detection{Candidates: []Candidate{}}
	for i, sheet := range sheets {
		if readErrs[i] != nil {
			log.Warn().
				Err(readErrs[i]).
				Str("spreadsheet_id", spreadsheetID).
				Str("sheet", sheet.Title).
				Msg("Could not read sheet headers, skipping")
			result.Skipped = append(result.Skipped, &domain.DetectionReadError{SheetName: sheet.Title, Err: readErrs[i]})
			continue
		}

		confidence := Confidence(sheet.Title, headers[i])
		if confidence <= 0 {
			continue
		}
		result.Candidates = append(result.Candidates, Candidate{
			SheetName:    sheet.Title,
			Confidence:   confidence,
			InferredType: InferSheetType(sheet.Title, headers[i]),
		})
	}

	sort.SliceStable(result.Candidates, func(a, b int) bool {
		return result.Candidates[a].Confidence > result.Candidates[b].Confidence
	})

	log.Info().
		Str("spreadsheet_id", spreadsheetID).
		Int("sheets", len(sheets)).
		Int("candidates", len(result.Candidates)).
		Int("skipped", len(result.Skipped)).
		Msg("Detected sheets")

	return result, nil
}

// DetectSchema reads the header row of one sheet and builds its schema.
func (d *Detector) DetectSchema(ctx context.Context, spreadsheetID, sheetName string) (domain.SheetSchema, error) {
	headers, err := d.readHeaders(ctx, spreadsheetID, sheetName)
	if err != nil {
		return domain.SheetSchema{}, fmt.Errorf("DetectSchema: %w", err)
	}
	return BuildSchema("", headers), nil
}

func (d *Detector) readHeaders(ctx context.Context, spreadsheetID, sheetName string) ([]string, error) {
	rng := rangestore.HeaderRange(sheetName)
	grid, err := d.store.GetValues(ctx, spreadsheetID, rng)
	if err != nil {
		return nil, rangestore.Wrap("GetValues", rng, err)
	}
	if len(grid) == 0 {
		return nil, nil
	}
	return grid[0], nil
}
