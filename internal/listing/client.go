// Package listing is the boundary to the external machine directory
// website. It fetches the published area list and the per-area location
// tables, and cuts each table into rows of the five cells the rest of the
// engine consumes. Nothing outside this package looks at HTML.
package listing

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/machinemap/machinemap/pkg/errors"
)

// DefaultBaseURL is the root of the machine directory website.
const DefaultBaseURL = "http://209.221.138.252/"

// DefaultHTTPTimeout bounds every listing fetch.
const DefaultHTTPTimeout = 30 * time.Second

const (
	areaListPage  = "AreaList.aspx"
	locationsPage = "Locations.aspx?area=%d"
)

// Row is one location row of a per-area listing table: five ordered cells.
// The title cell carries both the machine title and the venue subtitle;
// Deleted marks titles the site renders with strike-through markup.
type Row struct {
	Title    string
	Subtitle string
	City     string
	Status   string
	Link     string // absolute external URL
	Updated  string // site-side last change, M/D/YY
	Deleted  bool
}

// Client fetches and parses directory pages.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a listing client for the given base URL. An empty base
// falls back to the production directory site.
func NewClient(base string, httpClient *http.Client) *Client {
	if base == "" {
		base = DefaultBaseURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{base: base, http: httpClient}
}

// BaseURL returns the directory root this client talks to.
func (c *Client) BaseURL() string {
	return c.base
}

// Hosts reports whether the URL points at the directory site itself.
// Records can carry foreign links (other collector sites); those count as
// link-less for identity purposes.
func (c *Client) Hosts(url string) bool {
	return strings.Contains(url, c.base)
}

// Areas fetches the published list of areas: the US states table plus the
// non-US country dropdown.
func (c *Client) Areas(ctx context.Context) ([]string, error) {
	doc, err := c.fetch(ctx, c.base+areaListPage)
	if err != nil {
		return nil, err
	}

	var areas []string
	doc.Find("table#StatesList a").Each(func(_ int, s *goquery.Selection) {
		if name := strings.TrimSpace(s.Text()); name != "" {
			areas = append(areas, name)
		}
	})
	doc.Find("option[selected]").Each(func(_ int, s *goquery.Selection) {
		name := strings.TrimSpace(s.Text())
		if name == "" || name == "Select One" {
			return
		}
		areas = append(areas, name)
	})

	if len(areas) == 0 {
		return nil, &errors.ParseError{Format: "html", File: areaListPage, Message: "no areas found"}
	}
	return areas, nil
}

// Rows fetches the location table for an area code and cuts it into rows.
func (c *Client) Rows(ctx context.Context, areaCode int) ([]Row, error) {
	page := fmt.Sprintf(locationsPage, areaCode)
	doc, err := c.fetch(ctx, c.base+page)
	if err != nil {
		return nil, err
	}

	table := doc.Find(`table[border="1"]`).First()
	if table.Length() == 0 {
		return nil, &errors.ParseError{Format: "html", File: page, Message: "location table not found"}
	}

	cells := table.Find("td")

	// The first five cells are table chrome, not a location.
	var rows []Row
	group := make([]*goquery.Selection, 0, 5)
	cells.Each(func(i int, cell *goquery.Selection) {
		if i < 5 {
			return
		}
		group = append(group, cell)
		if len(group) == 5 {
			rows = append(rows, c.row(group))
			group = group[:0]
		}
	})
	return rows, nil
}

// row assembles one Row out of five consecutive table cells.
func (c *Client) row(cells []*goquery.Selection) Row {
	title, deleted := titleCell(cells[0])
	subtitle := strings.TrimSpace(cells[0].Find("span").First().Text())

	link, _ := cells[3].Find("a").First().Attr("href")
	if link != "" && !strings.HasPrefix(link, "http") {
		link = c.base + link
	}

	return Row{
		Title:    title,
		Subtitle: subtitle,
		City:     strings.TrimSpace(cells[1].Text()),
		Status:   strings.TrimSpace(cells[2].Text()),
		Link:     link,
		Updated:  strings.TrimSpace(cells[4].Text()),
		Deleted:  deleted,
	}
}

// titleCell extracts the machine title: every text node before the <br>
// separating title from subtitle. Deleted machines are wrapped in <s>
// strike-through markup; the markup is stripped but the text kept so the
// matcher can still work with it.
func titleCell(td *goquery.Selection) (string, bool) {
	deleted := td.ChildrenFiltered("s").Length() > 0

	var b strings.Builder
	td.Contents().EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if goquery.NodeName(s) == "br" {
			return false
		}
		b.WriteString(s.Text())
		return true
	})
	return strings.TrimSpace(b.String()), deleted
}

func (c *Client) fetch(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.WrapAPI("listing", 0, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.WrapAPI("listing", 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &errors.APIError{
			Service:    "listing",
			StatusCode: resp.StatusCode,
			Message:    "fetching " + url,
		}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, errors.WrapParse("html", url, err)
	}
	return doc, nil
}
