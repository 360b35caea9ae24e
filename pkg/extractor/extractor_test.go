package extractor

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/docbot/internal/types"
	"github.com/xuri/excelize/v2"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		path string
		want Kind
	}{
		{"/docs/report.pdf", KindPDF},
		{"/docs/REPORT.PDF", KindPDF},
		{"/docs/letter.docx", KindDOCX},
		{"/docs/letter.DocX", KindDOCX},
		{"/docs/budget.xlsx", KindXLSX},
		{"/docs/legacy.xls", KindXLS},
		{"/docs/report.txt", KindSkip},
		{"/docs/letter.doc", KindSkip},
		{"/docs/no-extension", KindSkip},
		{"/docs.pdf/readme.md", KindSkip},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.path))
		})
	}
}

func TestExtractSkipsUnsupported(t *testing.T) {
	e := New()

	text, kind, err := e.Extract("/docs/report.txt", []byte("plain text"))
	require.NoError(t, err)
	assert.Equal(t, KindSkip, kind)
	assert.Empty(t, text)
	assert.False(t, e.Supported("/docs/report.txt"))
	assert.True(t, e.Supported("/docs/REPORT.PDF"))
}

func TestJoinPages(t *testing.T) {
	tests := []struct {
		name  string
		pages []string
		want  string
	}{
		{"second page empty", []string{"Foo", ""}, "Foo\n"},
		{"two pages", []string{"Foo", "Bar"}, "Foo\nBar\n"},
		{"first page empty", []string{"", "Bar"}, "Bar\n"},
		{"no text", []string{"", ""}, ""},
		{"no pages", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, joinPages(tt.pages))
		})
	}
}

func TestExtractPDF(t *testing.T) {
	data, err := os.ReadFile("testdata/sample.pdf")
	require.NoError(t, err)

	text, kind, err := New().Extract("/docs/sample.pdf", data)
	require.NoError(t, err)
	assert.Equal(t, KindPDF, kind)

	assert.True(t, strings.HasPrefix(text, " A Simple PDF File  This is a small demonstration .pdf file - "))
	assert.Contains(t, text, "Even more. Continued on page 2 ...\n Simple PDF File 2  ...continued from page 1.")
	assert.True(t, strings.HasSuffix(text, "The end, and just as well. \n"))
	assert.Equal(t, 2, strings.Count(text, "\n"))
}

func TestExtractPDFInvalid(t *testing.T) {
	_, kind, err := New().Extract("/docs/broken.pdf", []byte("not a pdf"))
	require.Error(t, err)
	assert.Equal(t, KindPDF, kind)
	assert.True(t, types.IsKind(err, types.ExtractionFault))
	assert.Contains(t, err.Error(), "/docs/broken.pdf")
}

func buildDOCX(t *testing.T, body string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)

	_, err = fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>%s<w:sectPr/></w:body></w:document>`, body)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	return buf.Bytes()
}

func para(runs ...string) string {
	var sb strings.Builder
	sb.WriteString("<w:p>")
	for _, r := range runs {
		sb.WriteString(`<w:r><w:t xml:space="preserve">` + r + `</w:t></w:r>`)
	}
	sb.WriteString("</w:p>")
	return sb.String()
}

func TestExtractDOCX(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "paragraphs",
			body: para("Hello") + para("World"),
			want: "Hello\nWorld",
		},
		{
			name: "runs are concatenated",
			body: para("Hel", "lo ", "there"),
			want: "Hello there",
		},
		{
			name: "empty paragraph keeps its line",
			body: para("A") + "<w:p/>" + para("B"),
			want: "A\n\nB",
		},
		{
			name: "tabs and breaks",
			body: `<w:p><w:pPr><w:tabs><w:tab w:val="left" w:pos="720"/></w:tabs></w:pPr><w:r><w:t>a</w:t><w:tab/><w:t>b</w:t><w:br/><w:t>c</w:t></w:r></w:p>`,
			want: "a\tb\nc",
		},
		{
			name: "table paragraphs are not body paragraphs",
			body: para("Before") + `<w:tbl><w:tr><w:tc>` + para("Cell") + `</w:tc></w:tr></w:tbl>` + para("After"),
			want: "Before\nAfter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, kind, err := New().Extract("/docs/Letter.DOCX", buildDOCX(t, tt.body))
			require.NoError(t, err)
			assert.Equal(t, KindDOCX, kind)
			assert.Equal(t, tt.want, text)
		})
	}
}

func TestExtractDOCXInvalid(t *testing.T) {
	_, _, err := New().Extract("/docs/letter.docx", []byte("PK?"))
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.ExtractionFault))

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err = zw.Create("word/styles.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, _, err = New().Extract("/docs/letter.docx", buf.Bytes())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "word/document.xml")
}

func buildXLSX(t *testing.T, rows ...[]interface{}) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		row := row
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestExtractXLSX(t *testing.T) {
	tests := []struct {
		name string
		rows [][]interface{}
		want string
	}{
		{
			name: "header and one row",
			rows: [][]interface{}{{"a", "b"}, {1, 2}},
			want: "a,b\n1,2\n",
		},
		{
			name: "header only",
			rows: [][]interface{}{{"name", "qty"}},
			want: "name,qty\n",
		},
		{
			name: "short rows are padded",
			rows: [][]interface{}{{"a", "b", "c"}, {1}},
			want: "a,b,c\n1,,\n",
		},
		{
			name: "unnamed header and quoting",
			rows: [][]interface{}{{"item", ""}, {"x, y", 3}},
			want: "item,Unnamed: 1\n\"x, y\",3\n",
		},
		{
			name: "repeated header names",
			rows: [][]interface{}{{"qty", "qty", "qty"}, {1, 2, 3}},
			want: "qty,qty.1,qty.2\n1,2,3\n",
		},
		{
			name: "blank rows dropped",
			rows: [][]interface{}{{"a"}, {""}, {"z"}},
			want: "a\nz\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, kind, err := New().Extract("/docs/Budget.XLSX", buildXLSX(t, tt.rows...))
			require.NoError(t, err)
			assert.Equal(t, KindXLSX, kind)
			assert.Equal(t, tt.want, text)
		})
	}
}

func TestExtractXLSXFirstSheetOnly(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"first"}))
	_, err := f.NewSheet("Other")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Other", "A1", &[]interface{}{"second"}))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	text, _, err := New().Extract("/docs/book.xlsx", buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "first\n", text)
}

func TestExtractExcelInvalid(t *testing.T) {
	for _, path := range []string{"/docs/bad.xlsx", "/docs/bad.xls"} {
		t.Run(path, func(t *testing.T) {
			_, _, err := New().Extract(path, []byte("garbage"))
			require.Error(t, err)
			assert.True(t, types.IsKind(err, types.ExtractionFault))
		})
	}
}

func TestExtractXLS(t *testing.T) {
	data, err := os.ReadFile("testdata/table.xls")
	require.NoError(t, err)

	text, kind, err := New().Extract("/docs/legacy.XLS", data)
	require.NoError(t, err)
	assert.Equal(t, KindXLS, kind)

	want := "Code,Name,Description\n"
	for i := 1; i <= 11; i++ {
		want += fmt.Sprintf("code%d,name%d,description%d\n", i, i, i)
	}
	assert.Equal(t, want, text)
}

func TestSheetToCSV(t *testing.T) {
	text, err := sheetToCSV(nil)
	require.NoError(t, err)
	assert.Empty(t, text)

	text, err = sheetToCSV([][]string{{"a", "b"}, {"1", "2"}})
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", text)

	text, err = sheetToCSV([][]string{{"Total", "Total", "", "Total"}, {"1", "2", "3", "4"}})
	require.NoError(t, err)
	assert.Equal(t, "Total,Total.1,Unnamed: 2,Total.2\n1,2,3,4\n", text)
}

func TestDedupNames(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"unique", []string{"a", "b"}, []string{"a", "b"}},
		{"repeated", []string{"a", "a", "a"}, []string{"a", "a.1", "a.2"}},
		{"generated name taken", []string{"a", "a", "a.1"}, []string{"a", "a.1", "a.1.1"}},
		{"existing suffix first", []string{"a.1", "a", "a"}, []string{"a.1", "a", "a.1.1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			names := append([]string(nil), tt.in...)
			dedupNames(names)
			assert.Equal(t, tt.want, names)
		})
	}
}
