package fileio

import (
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/Sternrassler/account-validator/pkg/validation"
	"github.com/rs/zerolog/log"
)

// Report keys returned by WriteReports.
const (
	ReportSummary         = "summary"
	ReportValid           = "valid"
	ReportInvalid         = "invalid"
	ReportError           = "error"
	ReportAll             = "all"
	ReportPesaLinkValid   = "pesalink_valid"
	ReportPesaLinkInvalid = "pesalink_invalid"
	ReportStatistics      = "statistics"
)

// maxExamples bounds the sample accounts kept per code in statistics.json.
const maxExamples = 5

var resultColumns = []string{
	"account_number", "bank_code", "reference_id", "status", "validation_status",
	"original_name", "validated_name", "bank_name", "currency",
	"error_code", "error_message", "attempts", "validated_at",
}

var summaryColumns = []string{"category", "count", "percentage"}

// table is a header plus rows of string cells, rendered as csv, json or xml.
type table struct {
	columns []string
	rows    [][]string

	// xml element names
	root, item string
}

// WriteReports writes the report set of a run into dir and returns the path
// of each file by report key. Per-kind reports are only written when the kind
// has outcomes. format is csv, json or xml; PesaLink and statistics files are
// always csv and json.
func WriteReports(dir, format, runID string, rs validation.ResultSet) (map[string]string, error) {
	switch format {
	case "csv", "json", "xml":
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	logger := log.With().Str("component", "reporter").Str("run_id", runID).Logger()

	suffix := time.Now().Format("20060102_150405")
	if runID != "" {
		id := runID
		if len(id) > 8 {
			id = id[:8]
		}
		suffix += "_" + id
	}
	name := func(prefix, ext string) string {
		return filepath.Join(dir, fmt.Sprintf("%s_%s.%s", prefix, suffix, ext))
	}

	files := make(map[string]string)
	write := func(key, path string, t table, f string) error {
		if err := writeTable(path, f, t); err != nil {
			return fmt.Errorf("write %s report: %w", key, err)
		}
		files[key] = path
		return nil
	}

	if err := write(ReportSummary, name("summary", format), summaryTable(rs.Summary), format); err != nil {
		return files, err
	}

	parts := []struct {
		key, prefix string
		outcomes    []validation.Outcome
	}{
		{ReportValid, "valid_accounts", rs.Valid},
		{ReportInvalid, "invalid_accounts", rs.Invalid},
		{ReportError, "error_accounts", rs.Errored},
		{ReportAll, "all_accounts", rs.All()},
	}
	for _, p := range parts {
		if len(p.outcomes) == 0 && p.key != ReportAll {
			continue
		}
		if err := write(p.key, name(p.prefix, format), resultTable(p.outcomes), format); err != nil {
			return files, err
		}
	}

	if err := write(ReportPesaLinkValid, name("pesalink_valid", "csv"), pesalinkTable(rs.Valid), "csv"); err != nil {
		return files, err
	}
	if err := write(ReportPesaLinkInvalid, name("pesalink_invalid", "csv"), pesalinkTable(rs.Invalid), "csv"); err != nil {
		return files, err
	}

	statsPath := name("statistics", "json")
	if err := writeJSONFile(statsPath, BuildStatistics(runID, rs)); err != nil {
		return files, fmt.Errorf("write statistics: %w", err)
	}
	files[ReportStatistics] = statsPath

	logger.Info().Int("files", len(files)).Str("dir", dir).Msg("Reports written")
	return files, nil
}

func resultTable(outcomes []validation.Outcome) table {
	t := table{columns: resultColumns, root: "validation_results", item: "result"}
	for _, o := range outcomes {
		t.rows = append(t.rows, []string{
			o.Record.AccountNumber,
			o.Record.BankCode,
			o.Record.ReferenceID,
			string(o.Kind),
			statusLabel(o.Kind),
			o.Record.AccountName,
			o.HolderName,
			o.BankName,
			o.Currency,
			o.Code(),
			o.Detail,
			strconv.Itoa(o.Attempts),
			o.ValidatedAt.UTC().Format(time.RFC3339),
		})
	}
	return t
}

func statusLabel(k validation.Kind) string {
	switch k {
	case validation.KindValid:
		return "Valid"
	case validation.KindInvalid:
		return "Invalid"
	default:
		return "Error"
	}
}

func summaryTable(s validation.Summary) table {
	t := table{columns: summaryColumns, root: "summary", item: "entry"}
	add := func(category string, count int, pct float64) {
		t.rows = append(t.rows, []string{category, strconv.Itoa(count), strconv.FormatFloat(pct, 'f', 2, 64)})
	}
	add("Total Accounts", s.Total, 100)
	add("Valid Accounts", s.Valid, s.ValidPercent)
	add("Invalid Accounts", s.Invalid, s.InvalidPercent)
	add("Error Accounts", s.Errored, s.ErrorPercent)

	for _, c := range sortedCodes(s.Codes) {
		add("Error Code: "+c.Code, c.Count, percent(c.Count, s.Total))
	}
	return t
}

func pesalinkTable(outcomes []validation.Outcome) table {
	t := table{columns: []string{"Account Number", "Bank Code"}}
	for _, o := range outcomes {
		t.rows = append(t.rows, []string{o.Record.AccountNumber, o.Record.BankCode})
	}
	return t
}

func writeTable(path, format string, t table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	switch format {
	case "json":
		err = encodeJSON(f, t)
	case "xml":
		err = encodeXML(f, t)
	default:
		err = encodeCSV(f, t)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

func encodeCSV(w io.Writer, t table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.columns); err != nil {
		return err
	}
	if err := cw.WriteAll(t.rows); err != nil {
		return err
	}
	return cw.Error()
}

func encodeJSON(w io.Writer, t table) error {
	items := make([]json.RawMessage, 0, len(t.rows))
	for _, r := range t.rows {
		item, err := orderedObject(t.columns, r)
		if err != nil {
			return err
		}
		items = append(items, item)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(items)
}

// orderedObject encodes one row as a JSON object keeping column order.
func orderedObject(columns, values []string) (json.RawMessage, error) {
	buf := []byte{'{'}
	for i, c := range columns {
		if i > 0 {
			buf = append(buf, ',')
		}
		k, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(values[i])
		if err != nil {
			return nil, err
		}
		buf = append(buf, k...)
		buf = append(buf, ':')
		buf = append(buf, v...)
	}
	return append(buf, '}'), nil
}

func encodeXML(w io.Writer, t table) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")

	root := xml.StartElement{Name: xml.Name{Local: t.root}}
	if err := enc.EncodeToken(root); err != nil {
		return err
	}
	for _, r := range t.rows {
		item := xml.StartElement{Name: xml.Name{Local: t.item}}
		if err := enc.EncodeToken(item); err != nil {
			return err
		}
		for i, c := range t.columns {
			if r[i] == "" {
				continue
			}
			if err := enc.EncodeElement(r[i], xml.StartElement{Name: xml.Name{Local: c}}); err != nil {
				return err
			}
		}
		if err := enc.EncodeToken(item.End()); err != nil {
			return err
		}
	}
	if err := enc.EncodeToken(root.End()); err != nil {
		return err
	}
	return enc.Flush()
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// CodeCount is one entry of the error code histogram.
type CodeCount struct {
	Code  string
	Count int
}

// sortedCodes orders codes by descending count, then by name.
func sortedCodes(codes map[string]int) []CodeCount {
	out := make([]CodeCount, 0, len(codes))
	for c, n := range codes {
		out = append(out, CodeCount{Code: c, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Code < out[j].Code
	})
	return out
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}
