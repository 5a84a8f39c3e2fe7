package pdf

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/go-pdf/fpdf"
	"go.uber.org/zap"

	"storefront/internal/domain"
)

const (
	DocumentTitle = "Ultimate Digital Bundle - Deliverable"
	emptyContent  = "No content"
)

// Packager renders deliverables as PDF files under a downloads directory
// that is served at URLPrefix.
type Packager struct {
	dir       string
	urlPrefix string
	logger    *zap.Logger
}

func NewPackager(dir, urlPrefix string, l *zap.Logger) *Packager {
	return &Packager{dir: dir, urlPrefix: urlPrefix, logger: l}
}

func FileName(orderID string) string {
	return fmt.Sprintf("bundle-%s.pdf", orderID)
}

// Package writes the artifact through a temp file and renames it into place,
// so the stable path only ever holds a complete document.
func (p *Packager) Package(ctx context.Context, order *domain.Order, content string) (domain.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return domain.Artifact{}, fmt.Errorf("%w: %v", domain.ErrPackaging, err)
	}
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return domain.Artifact{}, fmt.Errorf("%w: create downloads dir: %v", domain.ErrPackaging, err)
	}

	name := FileName(order.ID)
	target := filepath.Join(p.dir, name)

	tmp, err := os.CreateTemp(p.dir, ".bundle-*.pdf.tmp")
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("%w: create temp file: %v", domain.ErrPackaging, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	doc := render(order, content)
	if err := doc.Output(tmp); err != nil {
		tmp.Close()
		return domain.Artifact{}, fmt.Errorf("%w: render pdf: %v", domain.ErrPackaging, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return domain.Artifact{}, fmt.Errorf("%w: flush pdf: %v", domain.ErrPackaging, err)
	}
	if err := tmp.Close(); err != nil {
		return domain.Artifact{}, fmt.Errorf("%w: close pdf: %v", domain.ErrPackaging, err)
	}
	if err := ctx.Err(); err != nil {
		return domain.Artifact{}, fmt.Errorf("%w: %v", domain.ErrPackaging, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return domain.Artifact{}, fmt.Errorf("%w: move pdf into place: %v", domain.ErrPackaging, err)
	}
	committed = true

	p.logger.Info("Deliverable packaged", zap.String("order_id", order.ID), zap.String("file", target))
	return domain.Artifact{
		FilePath:     target,
		DownloadPath: path.Join(p.urlPrefix, name),
	}, nil
}

func render(order *domain.Order, content string) *fpdf.Fpdf {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetCreationDate(order.CreatedAt)
	doc.SetModificationDate(order.CreatedAt)
	doc.SetCatalogSort(true)
	doc.SetTitle(DocumentTitle, true)
	doc.SetMargins(20, 20, 20)
	doc.SetAutoPageBreak(true, 20)
	doc.AddPage()

	tr := doc.UnicodeTranslatorFromDescriptor("")

	doc.SetFont("Helvetica", "BU", 20)
	doc.MultiCell(0, 10, tr(DocumentTitle), "", "L", false)
	doc.Ln(6)

	doc.SetFont("Helvetica", "", 12)
	doc.CellFormat(0, 8, tr("Order ID: "+order.ID), "", 1, "L", false, 0, "")
	doc.Ln(6)

	if content == "" {
		content = emptyContent
	}
	doc.SetFont("Helvetica", "", 14)
	doc.MultiCell(0, 7, tr(content), "", "L", false)
	return doc
}
