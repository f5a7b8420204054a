package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"herbolive/internal/catalog"
	"herbolive/internal/logging"
	"herbolive/internal/types"
)

// DefaultWikipediaHost is the per-language host template; {lang} is replaced.
const DefaultWikipediaHost = "https://{lang}.wikipedia.org"

// Wikipedia looks plants up in Wikipedia, trying each language in order.
type Wikipedia struct {
	host      string
	languages []string
	userAgent string
	client    *http.Client
}

// NewWikipedia creates a client. host is a template containing {lang};
// empty means DefaultWikipediaHost.
func NewWikipedia(host string, languages []string, userAgent string, client *http.Client) *Wikipedia {
	if host == "" {
		host = DefaultWikipediaHost
	}
	if len(languages) == 0 {
		languages = []string{"es", "en"}
	}
	return &Wikipedia{
		host:      strings.TrimRight(host, "/"),
		languages: languages,
		userAgent: userAgent,
		client:    client,
	}
}

// Name implements Lookup.
func (w *Wikipedia) Name() string { return catalog.SourceWikipedia }

func (w *Wikipedia) base(lang string) string {
	return strings.ReplaceAll(w.host, "{lang}", lang)
}

type wikiSearchResponse struct {
	Query struct {
		Search []struct {
			Title   string `json:"title"`
			PageID  int64  `json:"pageid"`
			Snippet string `json:"snippet"`
		} `json:"search"`
	} `json:"query"`
}

type wikiPagesResponse struct {
	Query struct {
		Pages map[string]struct {
			PageID    int64  `json:"pageid"`
			Title     string `json:"title"`
			Extract   string `json:"extract"`
			Thumbnail *struct {
				Source string `json:"source"`
			} `json:"thumbnail"`
		} `json:"pages"`
	} `json:"query"`
}

// Lookup searches each language for the record's name and returns the
// article intro, lead image and URL of the first article found.
func (w *Wikipedia) Lookup(ctx context.Context, plant types.Plant) (types.Plant, error) {
	queries := lookupQueries(plant)
	if len(queries) == 0 {
		return types.Plant{}, fmt.Errorf("wikipedia: %w", ErrNoData)
	}
	for _, lang := range w.languages {
		for _, q := range queries {
			p, err := w.lookupIn(ctx, lang, q)
			if err == nil {
				return p, nil
			}
			if ctx.Err() != nil {
				return types.Plant{}, ctx.Err()
			}
			logging.SourceDebug("wikipedia[%s] %q: %v", lang, q, err)
		}
	}
	return types.Plant{}, fmt.Errorf("wikipedia %q: %w", plant.DisplayName(), ErrNoData)
}

func (w *Wikipedia) lookupIn(ctx context.Context, lang, query string) (types.Plant, error) {
	base := w.base(lang)

	v := url.Values{}
	v.Set("action", "query")
	v.Set("format", "json")
	v.Set("list", "search")
	v.Set("srprop", "snippet")
	v.Set("srlimit", "5")
	v.Set("srsearch", query)
	body, err := get(ctx, w.client, base+"/w/api.php?"+v.Encode(), "", w.userAgent)
	if err != nil {
		return types.Plant{}, err
	}
	var sr wikiSearchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return types.Plant{}, fmt.Errorf("%w: %v", ErrShape, err)
	}
	if len(sr.Query.Search) == 0 {
		return types.Plant{}, ErrNoData
	}
	hit := sr.Query.Search[0]

	v = url.Values{}
	v.Set("action", "query")
	v.Set("format", "json")
	v.Set("prop", "extracts|pageimages")
	v.Set("exintro", "1")
	v.Set("explaintext", "1")
	v.Set("pageids", strconv.FormatInt(hit.PageID, 10))
	v.Set("pithumbsize", "800")
	body, err = get(ctx, w.client, base+"/w/api.php?"+v.Encode(), "", w.userAgent)
	if err != nil {
		return types.Plant{}, err
	}
	var pr wikiPagesResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return types.Plant{}, fmt.Errorf("%w: %v", ErrShape, err)
	}
	page, ok := pr.Query.Pages[strconv.FormatInt(hit.PageID, 10)]
	if !ok {
		return types.Plant{}, ErrNoData
	}

	title := page.Title
	if title == "" {
		title = hit.Title
	}
	out := types.Plant{
		Description: strings.TrimSpace(page.Extract),
		URL:         base + "/wiki/" + url.PathEscape(strings.ReplaceAll(title, " ", "_")),
		Source:      catalog.SourceWikipedia,
	}
	if out.Description == "" {
		out.Description = htmlText(hit.Snippet)
	}
	if page.Thumbnail != nil {
		out.ImageURL = page.Thumbnail.Source
	}
	if out.ImageURL == "" {
		img, err := w.infoboxImage(ctx, out.URL)
		if err != nil {
			logging.SourceDebug("wikipedia infobox scrape %s: %v", out.URL, err)
		}
		out.ImageURL = img
	}
	if out.ImageURL != "" {
		out.Images = []string{out.ImageURL}
	}
	if out.Description == "" && out.ImageURL == "" {
		return types.Plant{}, ErrNoData
	}
	return out, nil
}

// infoboxImage scrapes the first infobox image of an article page.
func (w *Wikipedia) infoboxImage(ctx context.Context, pageURL string) (string, error) {
	body, err := get(ctx, w.client, pageURL, "text/html", w.userAgent)
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	src, ok := doc.Find("table.infobox img").First().Attr("src")
	if !ok || src == "" {
		return "", errors.New("no infobox image")
	}
	if strings.HasPrefix(src, "//") {
		src = "https:" + src
	}
	return src, nil
}

// htmlText strips markup from a search snippet.
func htmlText(fragment string) string {
	if fragment == "" {
		return ""
	}
	z := html.NewTokenizer(strings.NewReader(fragment))
	var sb strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(sb.String()), " ")
		case html.TextToken:
			sb.Write(z.Text())
		}
	}
}
