package presenter

import (
	"fmt"
	"io"

	"quiz-host/internal/domain"

	"github.com/skip2/go-qrcode"
	"github.com/xuri/excelize/v2"
)

// PodiumSheet is the worksheet name used by ExportPodium.
const PodiumSheet = "Podium"

// JoinQRCode encodes the player join link as a PNG.
func JoinQRCode(url string, size int) ([]byte, error) {
	if size <= 0 {
		size = 320
	}
	png, err := qrcode.Encode(url, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode join qr: %w", err)
	}
	return png, nil
}

// ExportPodium writes the final ranking as an xlsx workbook.
func ExportPodium(w io.Writer, title string, entries []domain.ScoreEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", PodiumSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	rows := [][]any{{"Quiz", title}, {"Rank", "Nickname", "Score"}}
	for _, e := range entries {
		rows = append(rows, []any{e.Rank, e.Nickname, e.Score})
	}
	for i, row := range rows {
		for j, value := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(PodiumSheet, cell, value); err != nil {
				return fmt.Errorf("write %s: %w", cell, err)
			}
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
