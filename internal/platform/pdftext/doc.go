// Package pdftext is the built-in text-layer engine of the document analyzer.
//
// It reads the embedded text of each page with github.com/ledongthuc/pdf,
// classifies documents whose text layer is too sparse as scanned (OCR mode),
// and renders text-mode results as markdown with one section per page.
package pdftext
