package fileio

import (
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/Sternrassler/account-validator/pkg/validation"
)

func sampleResultSet() validation.ResultSet {
	rec := func(i int, acct, bank string) validation.Record {
		return validation.Record{Index: i, AccountNumber: acct, BankCode: bank, ReferenceID: "R"}
	}
	return validation.Aggregate([]validation.Outcome{
		validation.NewValid(rec(0, "1234567890", "01"), "Jane Doe", "Test Bank", "KES"),
		validation.NewInvalid(rec(1, "5555555555", "01"), validation.ReasonAccountClosed, ""),
		validation.NewInvalid(rec(2, "6666666666", "02"), validation.ReasonAccountClosed, "closed"),
		validation.NewErrored(rec(3, "7777777777", "02"), validation.ErrorKindAPI, "server error"),
	})
}

func TestWriteReports_CSV(t *testing.T) {
	dir := t.TempDir()
	files, err := WriteReports(dir, "csv", "0123456789abcdef", sampleResultSet())
	if err != nil {
		t.Fatalf("WriteReports() error = %v", err)
	}

	for _, key := range []string{ReportSummary, ReportValid, ReportInvalid, ReportError, ReportAll,
		ReportPesaLinkValid, ReportPesaLinkInvalid, ReportStatistics} {
		path, ok := files[key]
		if !ok {
			t.Errorf("missing report %q", key)
			continue
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("report %q not written: %v", key, err)
		}
		if !strings.Contains(path, "_01234567.") {
			t.Errorf("report %q path %q lacks run id", key, path)
		}
	}

	all := readCSVFile(t, files[ReportAll])
	if len(all) != 5 {
		t.Fatalf("all report rows = %d, want 5 (header + 4)", len(all))
	}
	if all[0][0] != "account_number" {
		t.Errorf("header = %v", all[0])
	}
	// Input order.
	for i, want := range []string{"1234567890", "5555555555", "6666666666", "7777777777"} {
		if all[i+1][0] != want {
			t.Errorf("row %d account = %q, want %q", i, all[i+1][0], want)
		}
	}

	pl := readCSVFile(t, files[ReportPesaLinkInvalid])
	if len(pl) != 3 || pl[0][0] != "Account Number" || pl[0][1] != "Bank Code" {
		t.Errorf("pesalink invalid = %v", pl)
	}

	summary := readCSVFile(t, files[ReportSummary])
	found := false
	for _, r := range summary {
		if r[0] == "Error Code: ACCOUNT_CLOSED" && r[1] == "2" && r[2] == "50.00" {
			found = true
		}
	}
	if !found {
		t.Errorf("summary missing ACCOUNT_CLOSED breakdown: %v", summary)
	}
}

func TestWriteReports_SkipsEmptyKinds(t *testing.T) {
	rs := validation.Aggregate([]validation.Outcome{
		validation.NewValid(validation.Record{AccountNumber: "1", BankCode: "01"}, "", "", ""),
	})

	files, err := WriteReports(t.TempDir(), "json", "", rs)
	if err != nil {
		t.Fatalf("WriteReports() error = %v", err)
	}
	if _, ok := files[ReportInvalid]; ok {
		t.Error("invalid report should be skipped when there are no invalid outcomes")
	}
	if _, ok := files[ReportError]; ok {
		t.Error("error report should be skipped when there are no errored outcomes")
	}
	if _, ok := files[ReportPesaLinkInvalid]; !ok {
		t.Error("pesalink invalid file is always written")
	}
}

func TestWriteReports_JSON(t *testing.T) {
	files, err := WriteReports(t.TempDir(), "json", "run", sampleResultSet())
	if err != nil {
		t.Fatalf("WriteReports() error = %v", err)
	}

	data, err := os.ReadFile(files[ReportInvalid])
	if err != nil {
		t.Fatal(err)
	}
	var rows []map[string]string
	if err := json.Unmarshal(data, &rows); err != nil {
		t.Fatalf("invalid report is not JSON: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0]["error_code"] != "ACCOUNT_CLOSED" || rows[0]["validation_status"] != "Invalid" {
		t.Errorf("row = %v", rows[0])
	}
	if rows[0]["error_message"] != validation.ReasonAccountClosed.Description() {
		t.Errorf("error_message = %q", rows[0]["error_message"])
	}
}

func TestWriteReports_XML(t *testing.T) {
	files, err := WriteReports(t.TempDir(), "xml", "run", sampleResultSet())
	if err != nil {
		t.Fatalf("WriteReports() error = %v", err)
	}

	data, err := os.ReadFile(files[ReportValid])
	if err != nil {
		t.Fatal(err)
	}
	var doc struct {
		XMLName xml.Name `xml:"validation_results"`
		Results []struct {
			AccountNumber string `xml:"account_number"`
			ValidatedName string `xml:"validated_name"`
		} `xml:"result"`
	}
	if err := xml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("valid report is not XML: %v", err)
	}
	if len(doc.Results) != 1 || doc.Results[0].ValidatedName != "Jane Doe" {
		t.Errorf("results = %+v", doc.Results)
	}
}

func TestWriteReports_UnsupportedFormat(t *testing.T) {
	_, err := WriteReports(t.TempDir(), "yaml", "", sampleResultSet())
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestBuildStatistics(t *testing.T) {
	st := BuildStatistics("run-1", sampleResultSet())

	if st.TotalAccounts != 4 || st.ValidAccounts != 1 || st.InvalidAccounts != 2 || st.ErrorAccounts != 1 {
		t.Errorf("totals = %+v", st)
	}

	b := st.Banks["02"]
	if b == nil || b.Total != 2 || b.Invalid != 1 || b.Error != 1 || b.ErrorPercent != 50 {
		t.Errorf("bank 02 = %+v", b)
	}

	c := st.ErrorCodes["ACCOUNT_CLOSED"]
	if c == nil || c.Count != 2 || c.Percentage != 50 || len(c.Examples) != 2 {
		t.Errorf("ACCOUNT_CLOSED = %+v", c)
	}
	if _, ok := st.ErrorCodes[""]; ok {
		t.Error("valid outcomes must not be counted as codes")
	}
}

func readCSVFile(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return rows
}
