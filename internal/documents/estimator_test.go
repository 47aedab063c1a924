package documents

import (
	"bytes"
	"testing"
)

func TestSizeEstimator(t *testing.T) {
	e := NewSizeEstimator()

	tests := []struct {
		name string
		size int
		want int
	}{
		{"empty content", 0, 0},
		{"single byte", 1, 1},
		{"exactly one page", 50 * 1024, 1},
		{"one byte over", 50*1024 + 1, 2},
		{"ten pages", 10 * 50 * 1024, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := bytes.Repeat([]byte{'x'}, tt.size)
			if got := e.EstimatePages(content); got != tt.want {
				t.Errorf("EstimatePages(%d bytes) = %d, want %d", tt.size, got, tt.want)
			}
		})
	}
}

func TestSizeEstimatorZeroRatioUsesDefault(t *testing.T) {
	e := SizeEstimator{}
	if got := e.EstimatePages(bytes.Repeat([]byte{'x'}, 60*1024)); got != 2 {
		t.Errorf("EstimatePages = %d, want 2 with the default ratio", got)
	}
}

func TestPDFEstimatorFallsBackForNonPDF(t *testing.T) {
	e := PDFEstimator{Fallback: SizeEstimator{BytesPerPage: 1024}}

	content := bytes.Repeat([]byte{'x'}, 3*1024)
	if got := e.EstimatePages(content); got != 3 {
		t.Errorf("EstimatePages = %d, want 3 from the size fallback", got)
	}
}

func TestPDFEstimatorFallsBackForCorruptPDF(t *testing.T) {
	e := PDFEstimator{Fallback: SizeEstimator{BytesPerPage: 1024}}

	// Carries the magic bytes but nothing parseable behind them.
	content := append([]byte("%PDF-1.7\n"), bytes.Repeat([]byte{0}, 2*1024)...)
	if got := e.EstimatePages(content); got != 3 {
		t.Errorf("EstimatePages = %d, want 3 from the size fallback", got)
	}
}

func TestPDFEstimatorNilFallback(t *testing.T) {
	e := PDFEstimator{}
	if got := e.EstimatePages(bytes.Repeat([]byte{'x'}, 10)); got != 1 {
		t.Errorf("EstimatePages = %d, want 1 from the default fallback", got)
	}
}
