package ui

import (
	"fmt"
	"io"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"go.uber.org/zap"
)

type exportKind struct {
	ext   string
	write func(board *PadWidget, w io.Writer) error
}

var (
	exportPNG = exportKind{ext: ".png", write: func(b *PadWidget, w io.Writer) error { return b.Pad().ExportPNG(w) }}
	exportPDF = exportKind{ext: ".pdf", write: func(b *PadWidget, w io.Writer) error { return b.Pad().ExportPDF(w) }}
)

func exportFileName(board *PadWidget, kind exportKind) string {
	id := board.Pad().ID()
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("scribble-%s%s", id, kind.ext)
}

func saveExport(board *PadWidget, win fyne.Window, kind exportKind) {
	if board.Pad() == nil {
		return
	}
	d := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil {
			dialog.ShowError(err, win)
			return
		}
		if writer == nil {
			return // cancelled
		}
		writeExport(board, writer, kind)
	}, win)
	d.SetFileName(exportFileName(board, kind))
	d.SetFilter(storage.NewExtensionFileFilter([]string{kind.ext}))
	d.Show()
}

func writeExport(board *PadWidget, writer fyne.URIWriteCloser, kind exportKind) {
	defer func() {
		if err := writer.Close(); err != nil {
			board.logger.Warn("closing export", zap.Error(err))
		}
	}()
	if err := kind.write(board, writer); err != nil {
		board.logger.Error("export failed", zap.String("uri", writer.URI().String()), zap.Error(err))
		return
	}
	board.logger.Info("exported drawing", zap.String("uri", writer.URI().String()))
}
