// Package fileio reads account records from input files and writes the
// validation reports of a run.
package fileio

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Sternrassler/account-validator/pkg/validation"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// DefaultCurrency is applied when a row carries none.
const DefaultCurrency = "KES"

// ErrUnsupportedFormat is returned for file extensions Parse cannot read.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// requiredColumns must appear in tabular headers, matched case-insensitively
// with "_" or " " as separator.
var requiredColumns = []string{"account_number", "bank_code"}

// row is one input entry with normalised (lower-case, underscored) keys.
type row struct {
	fields map[string]string
	line   int
}

// Parse reads the records in path. The format is chosen by extension:
// .csv, .json, .xml or .xlsx. Record indexes are assigned in file order.
func Parse(path string) ([]validation.Record, error) {
	logger := log.With().Str("component", "parser").Str("file", path).Logger()

	var (
		rows []row
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		rows, err = readCSV(path)
	case ".json":
		rows, err = readJSON(path)
	case ".xml":
		rows, err = readXML(path)
	case ".xlsx":
		rows, err = readXLSX(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	records := make([]validation.Record, 0, len(rows))
	for _, r := range rows {
		rec, err := toRecord(r)
		if err != nil {
			logger.Warn().Int("row", r.line).Err(err).Msg("Skipping row")
			continue
		}
		rec.Index = len(records)
		rec.Source = validation.Source{File: filepath.Base(path), Row: r.line}
		records = append(records, rec)
	}

	logger.Info().Int("records", len(records)).Msg("Parsed input file")
	return records, nil
}

func toRecord(r row) (validation.Record, error) {
	rec := validation.Record{
		AccountNumber:   strings.TrimSpace(r.fields["account_number"]),
		BankCode:        strings.TrimSpace(r.fields["bank_code"]),
		ReferenceID:     strings.TrimSpace(r.fields["reference_id"]),
		AccountName:     strings.TrimSpace(r.fields["account_name"]),
		Currency:        strings.TrimSpace(r.fields["currency"]),
		PhoneNumber:     strings.TrimSpace(r.fields["phone_number"]),
		TransactionType: strings.TrimSpace(r.fields["transaction_type"]),
	}
	if rec.Currency == "" {
		rec.Currency = DefaultCurrency
	}
	if s := strings.TrimSpace(r.fields["amount"]); s != "" {
		amount, err := decimal.NewFromString(s)
		if err != nil {
			return rec, fmt.Errorf("invalid amount %q: %w", s, err)
		}
		rec.Amount = amount
	}
	return rec, nil
}

func normalizeKey(k string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(k)), " ", "_")
}

// tableRows converts a header row and data rows into rows. Blank lines are
// dropped; line numbers are 1-based and count the header.
func tableRows(header []string, data [][]string) ([]row, error) {
	keys := make([]string, len(header))
	present := make(map[string]bool, len(header))
	for i, h := range header {
		keys[i] = normalizeKey(strings.TrimPrefix(h, "\ufeff"))
		present[keys[i]] = true
	}

	var missing []string
	for _, c := range requiredColumns {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	// PesaLink exports carry only "Account Number" and "Bank Code".
	pesalink := len(header) == 2 &&
		strings.TrimSpace(header[0]) == "Account Number" && strings.TrimSpace(header[1]) == "Bank Code"

	rows := make([]row, 0, len(data))
	for i, values := range data {
		line := i + 2
		fields := make(map[string]string, len(keys))
		blank := true
		for j, v := range values {
			if j >= len(keys) {
				break
			}
			if strings.TrimSpace(v) != "" {
				blank = false
			}
			fields[keys[j]] = v
		}
		if blank {
			continue
		}

		if pesalink {
			fields["reference_id"] = fmt.Sprintf("PL-%d", line)
		} else if strings.TrimSpace(fields["reference_id"]) == "" {
			fields["reference_id"] = fmt.Sprintf("REF-%d", line)
		}
		rows = append(rows, row{fields: fields, line: line})
	}
	return rows, nil
}

func readCSV(path string) ([]row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, errors.New("empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	data, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return tableRows(header, data)
}

func readXLSX(path string) ([]row, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}

	all, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(all) == 0 {
		return nil, errors.New("empty sheet")
	}
	return tableRows(all[0], all[1:])
}

func readJSON(path string) ([]row, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var wrapped struct {
		Accounts []map[string]any `json:"accounts"`
	}
	var entries []map[string]any

	trimmed := strings.TrimSpace(string(data))
	switch {
	case strings.HasPrefix(trimmed, "["):
		if err := decodeJSON(data, &entries); err != nil {
			return nil, err
		}
	case strings.HasPrefix(trimmed, "{"):
		if err := decodeJSON(data, &wrapped); err != nil {
			return nil, err
		}
		if wrapped.Accounts == nil {
			return nil, errors.New(`expected an array of accounts or an object with an "accounts" key`)
		}
		entries = wrapped.Accounts
	default:
		return nil, errors.New(`expected an array of accounts or an object with an "accounts" key`)
	}

	rows := make([]row, 0, len(entries))
	for i, e := range entries {
		fields := make(map[string]string, len(e))
		for k, v := range e {
			if v == nil {
				continue
			}
			fields[normalizeKey(k)] = fmt.Sprint(v)
		}
		if strings.TrimSpace(fields["reference_id"]) == "" {
			fields["reference_id"] = fmt.Sprintf("REF-%d", i+1)
		}
		rows = append(rows, row{fields: fields, line: i + 1})
	}
	return rows, nil
}

func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}

type xmlNode struct {
	XMLName  xml.Name
	Text     string    `xml:",chardata"`
	Children []xmlNode `xml:",any"`
}

func (n xmlNode) collect(name string, out *[]xmlNode) {
	if strings.EqualFold(n.XMLName.Local, name) {
		*out = append(*out, n)
		return
	}
	for _, c := range n.Children {
		c.collect(name, out)
	}
}

func readXML(path string) ([]row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var root xmlNode
	if err := xml.NewDecoder(f).Decode(&root); err != nil {
		return nil, fmt.Errorf("decode xml: %w", err)
	}

	var accounts []xmlNode
	root.collect("account", &accounts)
	if len(accounts) == 0 {
		return nil, errors.New("no account elements found")
	}

	rows := make([]row, 0, len(accounts))
	for i, a := range accounts {
		fields := make(map[string]string, len(a.Children))
		for _, c := range a.Children {
			fields[normalizeKey(c.XMLName.Local)] = strings.TrimSpace(c.Text)
		}
		if fields["reference_id"] == "" {
			fields["reference_id"] = fmt.Sprintf("REF-%d", i+1)
		}
		rows = append(rows, row{fields: fields, line: i + 1})
	}
	return rows, nil
}
