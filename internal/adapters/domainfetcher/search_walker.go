package domainfetcher

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"rental-ingest-service/internal/constants"
	"rental-ingest-service/internal/core/port"
)

// detailURLPattern matches listing detail paths, which end in a numeric
// listing id after the address slug.
var detailURLPattern = regexp.MustCompile(`-(\d{6,})/?$`)

// Walk iterates a search area page by page, calling visit for every detail
// link found. Pagination goes through the page query parameter and stops
// when a page yields no links or fewer than the per-page threshold. Links
// already seen in this walk are skipped.
func (a *DomainFetcherAdapter) Walk(ctx context.Context, searchURL string, visit func(ctx context.Context, detailURL string) error) (int, int, error) {
	logger := a.logger
	seen := make(map[string]struct{})
	pagesVisited := 0
	linksFound := 0

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return pagesVisited, linksFound, err
		}

		pageURL, err := buildPageURL(searchURL, page)
		if err != nil {
			return pagesVisited, linksFound, fmt.Errorf("building page URL for %s: %w", searchURL, err)
		}

		body, err := a.Fetch(ctx, pageURL)
		if err != nil {
			return pagesVisited, linksFound, err
		}
		pagesVisited++

		links, err := extractDetailLinks(body, pageURL)
		if err != nil {
			return pagesVisited, linksFound, fmt.Errorf("parsing search page %s: %w", pageURL, err)
		}

		fresh := 0
		for _, link := range links {
			if _, dup := seen[link]; dup {
				continue
			}
			seen[link] = struct{}{}
			fresh++
			linksFound++

			if err := visit(ctx, link); err != nil {
				return pagesVisited, linksFound, err
			}
			if err := sleepBetween(ctx, a.cfg.ItemDelayMin, a.cfg.ItemDelayMax); err != nil {
				return pagesVisited, linksFound, err
			}
		}

		logger.Info("search page walked", port.Fields{
			"url":   pageURL,
			"page":  page,
			"links": len(links),
			"fresh": fresh,
		})

		if len(links) == 0 {
			return pagesVisited, linksFound, nil
		}
		if len(links) < a.cfg.ResultsPerPageThreshold {
			return pagesVisited, linksFound, nil
		}

		if err := sleepBetween(ctx, a.cfg.PageDelayMin, a.cfg.PageDelayMax); err != nil {
			return pagesVisited, linksFound, err
		}
	}
}

// buildPageURL sets the page number on a search URL, preserving whatever
// other query parameters the caller configured.
func buildPageURL(searchURL string, page int) (string, error) {
	u, err := url.Parse(searchURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(constants.PageQueryParam, fmt.Sprintf("%d", page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// extractDetailLinks pulls listing detail URLs out of a search results page.
// Selectors are tried most-specific first; the site reshuffles its markup
// often enough that each has broken at least once.
func extractDetailLinks(body []byte, pageURL string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}

	selectors := []string{
		"ul[data-testid='results'] li a[data-testid='listing-card-link']",
		"a.address",
	}
	for _, sel := range selectors {
		links := collectLinks(doc.Find(sel), base)
		if len(links) > 0 {
			return links, nil
		}
	}

	// Last resort: any anchor whose path looks like a detail page.
	var links []string
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		abs := resolveLink(base, href)
		if abs == "" || !detailURLPattern.MatchString(abs) {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	})
	return links, nil
}

func collectLinks(sel *goquery.Selection, base *url.URL) []string {
	var links []string
	seen := make(map[string]struct{})
	sel.Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		abs := resolveLink(base, href)
		if abs == "" {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	})
	return links
}

// resolveLink absolutizes href against the page URL and strips fragments and
// query noise so deduplication works on the canonical form.
func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	abs.Fragment = ""
	abs.RawQuery = ""
	return abs.String()
}
