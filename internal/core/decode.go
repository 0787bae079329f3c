package core

// decode.go turns raw file bytes into header-keyed rows.
//
// Three formats are supported:
//   - CSV: BOM stripped, invalid UTF-8 replaced, read with encoding/csv
//   - XLSX: first sheet, streamed with excelize's row iterator
//   - XLS: first sheet of a BIFF workbook
//
// The first non-blank row is the header. Rows are produced lazily through
// RowReader; blank rows are skipped and never reach the validator.

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// Format is the declared tabular format of an upload.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
)

// Accepted MIME types for uploads.
const (
	MIMECSV  = "text/csv"
	MIMEXLS  = "application/vnd.ms-excel"
	MIMEXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var formatByExt = map[string]Format{
	".csv":  FormatCSV,
	".xlsx": FormatXLSX,
	".xls":  FormatXLS,
}

// DetectFormat resolves the format of an upload from its file name and
// declared content type. A recognised extension wins over the MIME type
// because browsers label CSV files as application/vnd.ms-excel on Windows.
func DetectFormat(fileName, contentType string) (Format, error) {
	mt := contentType
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		mt = parsed
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	byExt, extOK := formatByExt[ext]

	switch mt {
	case MIMECSV, MIMEXLS, MIMEXLSX:
		if extOK {
			return byExt, nil
		}
		switch mt {
		case MIMECSV:
			return FormatCSV, nil
		case MIMEXLSX:
			return FormatXLSX, nil
		default:
			return FormatXLS, nil
		}
	case "", "application/octet-stream", "text/plain":
		if extOK {
			return byExt, nil
		}
	}
	return "", UnsupportedFileTypeError(fileName, contentType)
}

// Row is one decoded data row keyed by lower-cased header name.
type Row struct {
	Line   int
	Fields map[string]string
}

// Get returns the raw value of the named column, or "" if absent.
func (r Row) Get(name string) string {
	return r.Fields[strings.ToLower(name)]
}

// RowReader is a lazy, finite, non-restartable sequence of rows.
// Next returns io.EOF once the input is exhausted.
type RowReader interface {
	Header() []string
	Next() (Row, error)
	Close() error
}

// DecodeOptions tunes decoding.
type DecodeOptions struct {
	// StrictWidth rejects CSV records whose field count differs from the header.
	StrictWidth bool
}

// Decode opens data in the given format and reads its header row.
func Decode(data []byte, format Format, opts DecodeOptions) (RowReader, error) {
	switch format {
	case FormatCSV:
		return newCSVReader(data, opts)
	case FormatXLSX:
		return newXLSXReader(data)
	case FormatXLS:
		return newXLSReader(data)
	default:
		return nil, &IngestError{Kind: ErrUnsupportedFileType, Message: fmt.Sprintf("unknown format %q", format)}
	}
}

// headerIndex maps lower-cased header names to column positions.
type headerIndex struct {
	names []string
	pos   map[string]int
}

func newHeaderIndex(cells []string) headerIndex {
	h := headerIndex{names: make([]string, 0, len(cells)), pos: make(map[string]int, len(cells))}
	for i, c := range cells {
		name := CleanCell(c)
		h.names = append(h.names, name)
		key := strings.ToLower(name)
		if key == "" {
			continue
		}
		if _, dup := h.pos[key]; !dup {
			h.pos[key] = i
		}
	}
	return h
}

func (h headerIndex) row(line int, cells []string) Row {
	fields := make(map[string]string, len(h.pos))
	for key, i := range h.pos {
		if i < len(cells) {
			fields[key] = cells[i]
		} else {
			fields[key] = ""
		}
	}
	return Row{Line: line, Fields: fields}
}

// --- CSV ---

type csvReader struct {
	r      *csv.Reader
	header headerIndex
}

func newCSVReader(data []byte, opts DecodeOptions) (*csvReader, error) {
	data = sanitizeUTF8(bytes.TrimPrefix(data, utf8BOM))

	r := csv.NewReader(bytes.NewReader(data))
	r.LazyQuotes = true
	if !opts.StrictWidth {
		r.FieldsPerRecord = -1
	}

	cr := &csvReader{r: r}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return nil, DecodeError(0, "empty file", nil)
		}
		if err != nil {
			return nil, csvDecodeError(err)
		}
		if isEmptyRow(rec) {
			continue
		}
		cr.header = newHeaderIndex(rec)
		return cr, nil
	}
}

func (c *csvReader) Header() []string { return c.header.names }

func (c *csvReader) Next() (Row, error) {
	for {
		rec, err := c.r.Read()
		if err == io.EOF {
			return Row{}, io.EOF
		}
		if err != nil {
			return Row{}, csvDecodeError(err)
		}
		if isEmptyRow(rec) {
			continue
		}
		line, _ := c.r.FieldPos(0)
		return c.header.row(line, rec), nil
	}
}

func (c *csvReader) Close() error { return nil }

func csvDecodeError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return DecodeError(pe.Line, "invalid csv", pe.Err)
	}
	return DecodeError(0, "invalid csv", err)
}

// --- XLSX ---

type xlsxReader struct {
	file   *excelize.File
	rows   *excelize.Rows
	header headerIndex
	line   int
}

func newXLSXReader(data []byte) (*xlsxReader, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, DecodeError(0, "invalid xlsx workbook", err)
	}
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		_ = f.Close()
		return nil, DecodeError(0, "empty file", nil)
	}
	rows, err := f.Rows(sheets[0])
	if err != nil {
		_ = f.Close()
		return nil, DecodeError(0, "invalid xlsx sheet", err)
	}

	x := &xlsxReader{file: f, rows: rows}
	cells, err := x.nextNonEmpty()
	if err != nil {
		_ = x.Close()
		if err == io.EOF {
			return nil, DecodeError(0, "empty file", nil)
		}
		return nil, err
	}
	x.header = newHeaderIndex(cells)
	return x, nil
}

func (x *xlsxReader) nextNonEmpty() ([]string, error) {
	for x.rows.Next() {
		x.line++
		cells, err := x.rows.Columns()
		if err != nil {
			return nil, DecodeError(x.line, "invalid xlsx row", err)
		}
		if !isEmptyRow(cells) {
			return cells, nil
		}
	}
	if err := x.rows.Error(); err != nil {
		return nil, DecodeError(x.line, "invalid xlsx sheet", err)
	}
	return nil, io.EOF
}

func (x *xlsxReader) Header() []string { return x.header.names }

func (x *xlsxReader) Next() (Row, error) {
	cells, err := x.nextNonEmpty()
	if err != nil {
		return Row{}, err
	}
	return x.header.row(x.line, cells), nil
}

func (x *xlsxReader) Close() error {
	rerr := x.rows.Close()
	if err := x.file.Close(); err != nil {
		return err
	}
	return rerr
}

// --- XLS ---

type xlsReader struct {
	sheet  *xls.WorkSheet
	header headerIndex
	next   int
}

func newXLSReader(data []byte) (r *xlsReader, err error) {
	// The BIFF parser panics on some truncated streams.
	defer func() {
		if p := recover(); p != nil {
			r, err = nil, DecodeError(0, "invalid xls workbook", fmt.Errorf("%v", p))
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, DecodeError(0, "invalid xls workbook", err)
	}
	if wb.NumSheets() == 0 {
		return nil, DecodeError(0, "empty file", nil)
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, DecodeError(0, "empty file", nil)
	}

	x := &xlsReader{sheet: sheet}
	_, cells, ok := x.nextNonEmpty()
	if !ok {
		return nil, DecodeError(0, "empty file", nil)
	}
	x.header = newHeaderIndex(cells)
	return x, nil
}

func (x *xlsReader) nextNonEmpty() (int, []string, bool) {
	for x.next <= int(x.sheet.MaxRow) {
		i := x.next
		x.next++
		row := sheetRow(x.sheet, i)
		if row == nil {
			continue
		}
		cells := xlsCells(row)
		if !isEmptyRow(cells) {
			return i + 1, cells, true
		}
	}
	return 0, nil, false
}

// sheetRow returns nil for row indexes with no records. WorkSheet.Row
// dereferences the missing entry instead.
func sheetRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}

// xlsMaxCols is the BIFF8 column limit.
const xlsMaxCols = 256

// xlsCells reads a row up to its last non-empty cell. Rows written without
// a ROW record report LastCol 0, so the width is found by scanning.
func xlsCells(row *xls.Row) []string {
	cells := make([]string, max(row.LastCol(), xlsMaxCols))
	last := 0
	for c := range cells {
		cells[c] = row.Col(c)
		if cells[c] != "" {
			last = c + 1
		}
	}
	return cells[:last]
}

func (x *xlsReader) Header() []string { return x.header.names }

func (x *xlsReader) Next() (Row, error) {
	line, cells, ok := x.nextNonEmpty()
	if !ok {
		return Row{}, io.EOF
	}
	return x.header.row(line, cells), nil
}

func (x *xlsReader) Close() error { return nil }

// --- helpers ---

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// sanitizeUTF8 replaces invalid UTF-8 sequences with U+FFFD.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune(utf8.RuneError)
		} else {
			buf.Write(data[:size])
		}
		data = data[size:]
	}

	return buf.Bytes()
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
