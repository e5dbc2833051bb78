package domain

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParseStrategy(t *testing.T) {
	tests := []struct {
		input   string
		want    ParseStrategy
		wantErr bool
	}{
		{"", StrategyAuto, false},
		{"auto", StrategyAuto, false},
		{"TXT", StrategyText, false},
		{" ocr ", StrategyOCR, false},
		{"layout", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseParseStrategy(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrValidation))
				assert.True(t, errors.Is(err, ErrInvalidStrategy))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestValidateUpload(t *testing.T) {
	pdf := []byte("%PDF-1.7\n...")

	tests := []struct {
		name     string
		filename string
		data     []byte
		wantErr  error
	}{
		{"valid_pdf", "paper.pdf", pdf, nil},
		{"uppercase_extension", "PAPER.PDF", pdf, nil},
		{"empty_filename_is_synthesized_later", "", pdf, nil},
		{"empty_payload", "paper.pdf", nil, ErrEmptyPayload},
		{"zero_length_payload", "paper.pdf", []byte{}, ErrEmptyPayload},
		{"image_extension", "scan.png", []byte{0x89, 0x50, 0x4E, 0x47}, ErrUnsupportedType},
		{"no_extension", "paper", pdf, ErrUnsupportedType},
		{"pdf_extension_wrong_content", "paper.pdf", []byte("hello world"), ErrUnsupportedType},
		{"leading_junk_before_header", "paper.pdf", append(bytes.Repeat([]byte{0x00}, 1000), pdf...), nil},
		{"header_beyond_first_kib", "paper.pdf", append(bytes.Repeat([]byte(" "), 1024), pdf...), ErrUnsupportedType},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateUpload(tc.filename, tc.data)
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tc.wantErr), "got %v", err)
			assert.True(t, errors.Is(err, ErrValidation), "upload rejections must be validation errors")
		})
	}
}

func TestFileStem(t *testing.T) {
	assert.Equal(t, "report", FileStem("report.pdf"))
	assert.Equal(t, "archive", FileStem("archive.tar.gz"))
	assert.Equal(t, "report", FileStem("/tmp/upload/report.pdf"))
	assert.Equal(t, "document", FileStem(""))
	assert.Equal(t, "noext", FileStem("noext"))
}
