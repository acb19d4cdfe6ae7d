package sheets

import (
	"context"

	"google.golang.org/api/sheets/v4"
)

// FormatHeader bolds and freezes the header row. It is cosmetic; callers
// should log failures rather than abort.
func (t *Table) FormatHeader(ctx context.Context) error {
	callCtx, cancel := context.WithTimeout(ctx, t.config.Timeout)
	defer cancel()

	sheetID, err := t.worksheetID(callCtx)
	if err != nil {
		return err
	}

	requests := []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:       sheetID,
					StartRowIndex: 0,
					EndRowIndex:   1,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{
							Bold: true,
						},
					},
				},
				Fields: "userEnteredFormat.textFormat",
			},
		},
		{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId: sheetID,
					GridProperties: &sheets.GridProperties{
						FrozenRowCount: 1,
					},
				},
				Fields: "gridProperties.frozenRowCount",
			},
		},
	}

	batchUpdate := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}

	if _, err := t.service.Spreadsheets.BatchUpdate(t.config.SpreadsheetID, batchUpdate).Context(callCtx).Do(); err != nil {
		return t.storeError("format", err)
	}
	return nil
}
