package documents

import (
	"bytes"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PageEstimator derives a page count for a downloaded document when the
// server provides none. The estimate feeds cost reconciliation, so it is
// pluggable pending calibration against real billing data.
type PageEstimator interface {
	EstimatePages(content []byte) int
}

// SizeEstimator approximates pages from byte size. The default ratio is the
// uncalibrated ~50KB/page heuristic inherited from observed PACER documents.
type SizeEstimator struct {
	BytesPerPage int64
}

// NewSizeEstimator returns the default size-based estimator.
func NewSizeEstimator() SizeEstimator {
	return SizeEstimator{BytesPerPage: 50 * 1024}
}

// EstimatePages implements PageEstimator. Always at least one page for
// non-empty content.
func (e SizeEstimator) EstimatePages(content []byte) int {
	if len(content) == 0 {
		return 0
	}

	perPage := e.BytesPerPage
	if perPage <= 0 {
		perPage = 50 * 1024
	}

	pages := int((int64(len(content)) + perPage - 1) / perPage)
	if pages < 1 {
		pages = 1
	}
	return pages
}

// PDFEstimator reads the real page count from PDF payloads and falls back
// to the size heuristic for anything it cannot parse.
type PDFEstimator struct {
	Fallback PageEstimator
}

// NewPDFEstimator returns a PDF-aware estimator with the default fallback.
func NewPDFEstimator() PDFEstimator {
	return PDFEstimator{Fallback: NewSizeEstimator()}
}

// EstimatePages implements PageEstimator.
func (e PDFEstimator) EstimatePages(content []byte) int {
	if bytes.HasPrefix(content, []byte("%PDF")) {
		conf := model.NewDefaultConfiguration()
		ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(content), conf)
		if err == nil && ctx.PageCount > 0 {
			return ctx.PageCount
		}
	}

	if e.Fallback != nil {
		return e.Fallback.EstimatePages(content)
	}
	return NewSizeEstimator().EstimatePages(content)
}
