package extract

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildDOCX(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` + body + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestRegistry_TypeFor(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		name    string
		want    domain.DocumentType
		wantErr bool
	}{
		{"notes.txt", domain.DocumentTypeText, false},
		{"README.MD", domain.DocumentTypeText, false},
		{"table.csv", domain.DocumentTypeText, false},
		{"report.docx", domain.DocumentTypeStructured, false},
		{"paper.pdf", domain.DocumentTypeStructured, false},
		{"page.htm", domain.DocumentTypeStructured, false},
		{"image.png", "", true},
		{"Makefile", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.TypeFor(tt.name)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrUnsupportedType)
				assert.False(t, r.Supports(tt.name))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, r.Supports(tt.name))
		})
	}
}

func TestRegistry_ExtractText(t *testing.T) {
	r := NewRegistry()

	raw := append([]byte{0xEF, 0xBB, 0xBF}, []byte("line one\r\nline two\rline three")...)
	got, err := r.Extract("notes.txt", raw, domain.DocumentTypeText)

	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\nline three", got)
}

func TestRegistry_TextTypeIgnoresExtension(t *testing.T) {
	got, err := NewRegistry().Extract("weird.bin", []byte("plain"), domain.DocumentTypeText)

	require.NoError(t, err)
	assert.Equal(t, "plain", got)
}

func TestRegistry_StructuredWithoutFormat(t *testing.T) {
	r := NewRegistry()

	_, err := r.Extract("notes.txt", []byte("x"), domain.DocumentTypeStructured)
	assert.True(t, domain.IsCode(err, domain.ErrCodeUnsupportedType))

	_, err = r.Extract("notes.txt", []byte("x"), domain.DocumentType("binary"))
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestRegistry_ExtractDOCX(t *testing.T) {
	raw := buildDOCX(t, `<w:p><w:r><w:t>The capital of France</w:t></w:r><w:r><w:t xml:space="preserve"> is Paris.</w:t></w:r></w:p>`+
		`<w:p></w:p>`+
		`<w:p><w:r><w:t>Second</w:t><w:tab/><w:t>paragraph</w:t></w:r></w:p>`)

	got, err := NewRegistry().Extract("doc.docx", raw, domain.DocumentTypeStructured)

	require.NoError(t, err)
	assert.Equal(t, "The capital of France is Paris.\nSecond\tparagraph", got)
}

func TestDOCX_Errors(t *testing.T) {
	_, err := DOCX([]byte("not a zip"))
	assert.Error(t, err)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err = zw.Create("other.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = DOCX(buf.Bytes())
	assert.ErrorIs(t, err, ErrNoDocumentPart)
}

func TestRegistry_ExtractHTML(t *testing.T) {
	raw := []byte(`<html><head><title>t</title><style>p{color:red}</style></head>
<body><h1>Geography</h1><script>var x = 1;</script>
<p>The capital of   France is <b>Paris</b>.</p><ul><li>one</li><li>two</li></ul></body></html>`)

	got, err := NewRegistry().Extract("page.html", raw, domain.DocumentTypeStructured)

	require.NoError(t, err)
	assert.Equal(t, "Geography\nThe capital of France is Paris.\none\ntwo", got)
}

func TestPDF_InvalidInput(t *testing.T) {
	_, err := NewRegistry().Extract("broken.pdf", []byte("not a pdf"), domain.DocumentTypeStructured)
	assert.Error(t, err)
	assert.False(t, domain.IsCode(err, domain.ErrCodeUnsupportedType))
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	r.Register(".RST", domain.DocumentTypeText, Text)

	typ, err := r.TypeFor("guide.rst")
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentTypeText, typ)
	assert.Contains(t, r.Extensions(), ".rst")
}
