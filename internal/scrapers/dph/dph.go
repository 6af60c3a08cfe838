package dph

import (
	"bytes"
	"context"
	"dph-tracker/internal/history"
	"dph-tracker/internal/telemetry"
	"dph-tracker/internal/tracker"
	"dph-tracker/lib/htmlutil"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

const (
	DefaultURL     = "http://publichealth.lacounty.gov/media/Coronavirus/locations.htm"
	DefaultTimeout = 30 * time.Second

	// TableSelector matches the bootstrap-styled table holding the counts.
	TableSelector = "table.table.table-striped.table-bordered.table-sm"
)

const (
	report_client_fetch_page = "client.fetch-page"
	report_client_parse_page = "client.parse-page"
)

type Options struct {
	URL     string
	Timeout time.Duration
	// CloudflareBypass wraps the transport so requests look like they come
	// from a regular browser.
	CloudflareBypass bool
}

// Client fetches the county's locations page, it implements tracker.Source.
type Client struct {
	http *resty.Client
	url  string
	tel  telemetry.API
}

func NewClient(opts Options, tel telemetry.API) Client {
	tel = telemetry.NewScopedAPI("dph", tel)

	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	httpClient := resty.New()
	httpClient.SetTimeout(opts.Timeout)
	httpClient.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	if opts.CloudflareBypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}
	telemetry.InstrumentResty(httpClient, tel)

	return Client{
		http: httpClient,
		url:  opts.URL,
		tel:  tel,
	}
}

func (c Client) FetchPage(ctx context.Context) (tracker.Page, error) {
	res, err := c.http.R().
		SetContext(ctx).
		Get(c.url)
	if err != nil {
		c.tel.ReportBroken(report_client_fetch_page, err, c.url)
		return tracker.Page{}, fmt.Errorf("fetch %s: %w", c.url, err)
	}
	if res.IsError() {
		err = fmt.Errorf("fetch %s: unexpected status %s", c.url, res.Status())
		c.tel.ReportBroken(report_client_fetch_page, err)
		return tracker.Page{}, err
	}

	page, err := ParsePage(bytes.NewBuffer(res.Body()))
	if err != nil {
		c.tel.ReportBroken(report_client_parse_page, err, c.url)
		return tracker.Page{}, err
	}
	c.tel.ReportDebug("parsed page", page.Caption, page.Date, len(page.Pairs))
	return page, nil
}

// ParsePage reads the report date out of the first caption on the page and
// flattens the count table into label/count pairs.
func ParsePage(r io.Reader) (tracker.Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return tracker.Page{}, fmt.Errorf("parse html: %w", err)
	}

	caption := doc.Find("caption").First()
	if caption.Length() == 0 {
		return tracker.Page{}, fmt.Errorf("parse html: page has no caption")
	}
	captionText := htmlutil.CleanText(caption.Text())
	date, err := ParseCaptionDate(captionText)
	if err != nil {
		return tracker.Page{}, err
	}

	table := doc.Find(TableSelector).First()
	if table.Length() == 0 {
		return tracker.Page{}, fmt.Errorf("parse html: no table matching '%s'", TableSelector)
	}

	return tracker.Page{
		Caption: captionText,
		Date:    date,
		Pairs:   PairCells(htmlutil.Texts(table.Find("td"))),
	}, nil
}

// dates on the page look like "4/2", sometimes with a trailing year.
var captionDateRegex = regexp.MustCompile(`(\d{1,2})/(\d{1,2})(?:/\d{2,4})?`)

// ParseCaptionDate extracts the month and day of the last m/d date mentioned
// in the caption.
func ParseCaptionDate(caption string) (history.ReportDate, error) {
	matches := captionDateRegex.FindAllStringSubmatch(caption, -1)
	if len(matches) == 0 {
		return history.NoDate, fmt.Errorf("no date in caption '%s'", caption)
	}
	last := matches[len(matches)-1]
	date, err := history.NormalizeDate(last[1] + "-" + last[2])
	if err != nil {
		return history.NoDate, fmt.Errorf("caption '%s': %w", caption, err)
	}
	return date, nil
}

// PairCells turns the flat list of table cells into pairs, every cell that
// contains a letter becomes a label and the cell right after it becomes its
// count. Cells without letters are only ever used as counts.
func PairCells(cells []string) []tracker.Pair {
	var pairs []tracker.Pair
	for i, cell := range cells {
		if !htmlutil.HasLetter(cell) {
			continue
		}
		pair := tracker.Pair{Label: strings.ToLower(cell)}
		if i+1 < len(cells) {
			pair.Count = cells[i+1]
			pair.HasCount = true
		}
		pairs = append(pairs, pair)
	}
	return pairs
}
