package listing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/machinemap/machinemap/pkg/machines"
)

const areaListHTML = `<html><body>
<table id="StatesList">
<tr><td><a href="Locations.aspx?area=5">California</a></td></tr>
<tr><td><a href="Locations.aspx?area=43">Texas</a></td></tr>
</table>
<select>
<option selected="">Select One</option>
<option selected="">Switzerland</option>
<option selected="">Japan</option>
</select>
</body></html>`

const locationsHTML = `<html><body>
<table border="1">
<tr><td>h1</td><td>h2</td><td>h3</td><td>h4</td><td>h5</td></tr>
<tr>
<td>Acme Diner &amp; Grill<br/><span class="sub">101 Main St</span></td>
<td>Austin</td>
<td align="Center">1p</td>
<td><a href="Location.aspx?id=77"><img src="x.gif"/></a></td>
<td align="Center">9/7/23</td>
</tr>
<tr>
<td><s>Old Pier Shop</s><br/><span class="sub">Pier 1</span></td>
<td>Galveston</td>
<td align="Center">Gone</td>
<td><a href="Location.aspx?id=78"><img src="x.gif"/></a></td>
<td align="Center">12/24/21</td>
</tr>
</table>
</body></html>`

func testServer(t *testing.T) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/AreaList.aspx":
			_, _ = w.Write([]byte(areaListHTML))
		case r.URL.Path == "/Locations.aspx":
			_, _ = w.Write([]byte(locationsHTML))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, NewClient(srv.URL, srv.Client())
}

func TestAreas(t *testing.T) {
	_, client := testServer(t)

	areas, err := client.Areas(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"California", "Texas", "Switzerland", "Japan"}, areas)
}

func TestRows(t *testing.T) {
	srv, client := testServer(t)

	rows, err := client.Rows(context.Background(), 43)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "Acme Diner & Grill", rows[0].Title)
	assert.Equal(t, "101 Main St", rows[0].Subtitle)
	assert.Equal(t, "Austin", rows[0].City)
	assert.Equal(t, "1p", rows[0].Status)
	assert.Equal(t, srv.URL+"/Location.aspx?id=77", rows[0].Link)
	assert.Equal(t, "9/7/23", rows[0].Updated)
	assert.False(t, rows[0].Deleted)

	// Strike-through titles keep their text but are flagged.
	assert.Equal(t, "Old Pier Shop", rows[1].Title)
	assert.True(t, rows[1].Deleted)
	assert.Equal(t, "Gone", rows[1].Status)
}

func TestRowsMissingTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body>nothing here</body></html>"))
	}))
	t.Cleanup(srv.Close)

	_, err := NewClient(srv.URL, srv.Client()).Rows(context.Background(), 1)
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	row := Row{
		Title:    "Acme Diner",
		Subtitle: "101 Main St",
		City:     "Austin",
		Status:   "1p",
		Link:     "http://example.test/Location.aspx?id=77",
		Updated:  "9/7/23",
	}

	cand, err := Normalize(row, "Texas")
	require.NoError(t, err)

	assert.Equal(t, machines.UnassignedID, cand.Record.ID)
	assert.Equal(t, "Acme Diner", cand.Record.Name)
	assert.Equal(t, "101 Main St, Austin", cand.Record.Address)
	assert.Equal(t, "Texas", cand.Record.Area)
	assert.Equal(t, machines.StatusUnvisited, cand.Record.Status)
	assert.False(t, cand.Record.Coordinates.Set)
	assert.Equal(t, machines.ScrapedAvailable, cand.State)
	assert.Equal(t, machines.Date("2023-09-07"), cand.WebsiteUpdated)
}

func TestNormalizeLinklessRow(t *testing.T) {
	cand, err := Normalize(Row{Title: "X", Subtitle: "1 Main St", Updated: "9/7/23"}, "Texas")
	require.NoError(t, err)
	assert.Equal(t, machines.NoURL, cand.Record.ExternalURL)
	assert.False(t, cand.Record.Linked())
}

func TestNormalizeRejectsBadDate(t *testing.T) {
	_, err := Normalize(Row{Title: "X", Link: "http://x", Updated: "not-a-date"}, "Texas")
	assert.Error(t, err)
}

func TestHosts(t *testing.T) {
	client := NewClient("http://209.221.138.252/", nil)
	assert.True(t, client.Hosts("http://209.221.138.252/Location.aspx?id=1"))
	assert.False(t, client.Hosts("https://elongated-coin.example/machine/1"))
	assert.False(t, client.Hosts(machines.NoURL))
}
