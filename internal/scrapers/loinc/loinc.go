package loinc

import (
	"bytes"
	"context"
	"dph-tracker/internal/telemetry"
	"dph-tracker/lib/htmlutil"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

const (
	DefaultURL    = "https://loinc.org/sars-cov-2-and-covid-19/"
	DefaultOutput = "sars_cov2_loinc_codes.csv"
)

const (
	report_client_fetch_codes = "client.fetch-codes"
	report_client_parse_row   = "client.parse-row"
)

const (
	CaseConfirmed    = "confirmed"
	CaseSurveillance = "surveillance"
	CodeTypeLOINC    = "LOINC"
)

// column positions in the LOINC table
const (
	versionColumn   = 0
	descrColumn     = 2
	shortNameColumn = 11
)

// Code is a single row of the LOINC SARS-CoV-2 table.
type Code struct {
	Version   string
	Code      string
	ShortName string
	Descr     string
}

// Entry is a row of the reference file, a code can show up both as a
// confirmed and as a surveillance entry.
type Entry struct {
	CaseType string
	CodeType string
	Code     string
	Descr    string
	Version  string
}

type Client struct {
	http *resty.Client
	url  string
	tel  telemetry.API
}

func NewClient(url string, tel telemetry.API) Client {
	tel = telemetry.NewScopedAPI("loinc", tel)
	if url == "" {
		url = DefaultURL
	}

	httpClient := resty.New()
	httpClient.SetTimeout(30 * time.Second)
	telemetry.InstrumentResty(httpClient, tel)

	return Client{
		http: httpClient,
		url:  url,
		tel:  tel,
	}
}

func (c Client) FetchCodes(ctx context.Context) ([]Code, error) {
	res, err := c.http.R().
		SetContext(ctx).
		Get(c.url)
	if err != nil {
		c.tel.ReportBroken(report_client_fetch_codes, err, c.url)
		return nil, fmt.Errorf("fetch %s: %w", c.url, err)
	}
	if res.IsError() {
		err = fmt.Errorf("fetch %s: unexpected status %s", c.url, res.Status())
		c.tel.ReportBroken(report_client_fetch_codes, err)
		return nil, err
	}
	return ParseTable(bytes.NewBuffer(res.Body()), c.tel)
}

// ParseTable reads the rows of the first table body on the page. Rows that
// don't have enough columns or a code link are reported and skipped.
func ParseTable(r io.Reader, tel telemetry.API) ([]Code, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	tbody := doc.Find("tbody").First()
	if tbody.Length() == 0 {
		return nil, fmt.Errorf("parse html: page has no table body")
	}

	var codes []Code
	tbody.Find("tr").Each(func(i int, tr *goquery.Selection) {
		cells := htmlutil.Texts(tr.Find("td"))
		if len(cells) <= shortNameColumn {
			tel.ReportWarning(
				report_client_parse_row,
				fmt.Errorf("row %d has %d columns", i, len(cells)),
			)
			return
		}

		link := tr.Find("a.pre-code").First()
		if link.Length() == 0 {
			link = tr.Find("a.loinc-code").First()
		}
		if link.Length() == 0 {
			tel.ReportWarning(
				report_client_parse_row,
				fmt.Errorf("row %d has no code", i),
				cells[versionColumn],
			)
			return
		}

		codes = append(codes, Code{
			Version:   cells[versionColumn],
			Code:      htmlutil.CleanText(link.Text()),
			ShortName: cells[shortNameColumn],
			Descr:     cells[descrColumn],
		})
	})

	return codes, nil
}

func newEntry(caseType string, c Code) Entry {
	return Entry{
		CaseType: caseType,
		CodeType: CodeTypeLOINC,
		Code:     c.Code,
		Descr:    c.Descr,
		Version:  c.Version,
	}
}

// Expand keeps the SARS related codes. Codes specific to SARS-CoV-2 can
// confirm a case when positive, every SARS code (SARS-CoV-2 included) counts
// as surveillance when inconclusive. Confirmed entries come first.
func Expand(codes []Code) []Entry {
	var confirmed []Entry
	var surveillance []Entry
	for _, c := range codes {
		if !strings.Contains(c.ShortName, "SARS") {
			continue
		}
		if strings.Contains(c.ShortName, "SARS-CoV-2") {
			confirmed = append(confirmed, newEntry(CaseConfirmed, c))
		}
		surveillance = append(surveillance, newEntry(CaseSurveillance, c))
	}
	return append(confirmed, surveillance...)
}

var csvHeader = []string{"case_type", "code_type", "code", "descr", "version"}

func WriteCSV(w io.Writer, entries []Entry) error {
	writer := csv.NewWriter(w)
	err := writer.Write(csvHeader)
	if err != nil {
		return err
	}
	for _, e := range entries {
		err = writer.Write([]string{e.CaseType, e.CodeType, e.Code, e.Descr, e.Version})
		if err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// Update fetches the table and rewrites the reference file at `path`.
func (c Client) Update(ctx context.Context, path string) ([]Entry, error) {
	codes, err := c.FetchCodes(ctx)
	if err != nil {
		return nil, err
	}
	entries := Expand(codes)
	if len(entries) == 0 {
		return nil, fmt.Errorf("no SARS codes found on %s", c.url)
	}

	buff := bytes.NewBuffer(nil)
	err = WriteCSV(buff, entries)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	err = os.MkdirAll(dir, 0755)
	if err != nil {
		return nil, err
	}
	err = os.WriteFile(path, buff.Bytes(), 0644)
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	c.tel.ReportCount(report_client_fetch_codes, int64(len(entries)))
	return entries, nil
}
