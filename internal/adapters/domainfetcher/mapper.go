package domainfetcher

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcloughlin/geohash"

	"rental-ingest-service/internal/constants"
	"rental-ingest-service/internal/core/domain"
)

// geohashPrecision of 7 resolves to roughly 150m, enough to group listings
// by block without leaking exact unit positions.
const geohashPrecision = 7

// nextData mirrors the slice of the site's hydration payload we consume.
// Unknown keys are ignored on purpose; the payload is large and unstable.
type nextData struct {
	Props struct {
		PageProps struct {
			ComponentProps componentProps `json:"componentProps"`
		} `json:"pageProps"`
	} `json:"props"`
}

type componentProps struct {
	ListingSummary listingSummary `json:"listingSummary"`
	RootGraphQuery struct {
		ListingByIDV2 listingGraph `json:"listingByIdV2"`
	} `json:"rootGraphQuery"`
	InspectionDetails struct {
		Inspections []inspectionSlot `json:"inspections"`
	} `json:"inspectionDetails"`
}

type listingSummary struct {
	Title   string `json:"title"`
	Address string `json:"address"`
	Beds    int    `json:"beds"`
	Baths   int    `json:"baths"`
	Parking int    `json:"parking"`
}

type listingGraph struct {
	ListingID    json.Number `json:"listingId"`
	Headline     string      `json:"headline"`
	Description  string      `json:"description"`
	PropertyType string      `json:"propertyType"`

	DateAvailableV2 struct {
		IsoDate string `json:"isoDate"`
	} `json:"dateAvailableV2"`

	PriceDetails struct {
		Bond json.Number `json:"bond"`
	} `json:"priceDetails"`

	Agency struct {
		Name string `json:"name"`
	} `json:"agency"`

	Agents []agentInfo `json:"agents"`

	DisplayableAddress struct {
		SuburbName  string `json:"suburbName"`
		State       string `json:"state"`
		Postcode    string `json:"postcode"`
		Geolocation struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"geolocation"`
	} `json:"displayableAddress"`

	LargeMedia []struct {
		URL string `json:"url"`
	} `json:"largeMedia"`
}

type agentInfo struct {
	FullName    string `json:"fullName"`
	PhoneNumber string `json:"phoneNumber"`
	Email       string `json:"email"`
	ProfileURL  string `json:"profileUrl"`
	Agency      struct {
		LogoURL string `json:"logoUrl"`
	} `json:"agency"`
}

type inspectionSlot struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// Parse extracts a RawListing from a detail page. The embedded hydration JSON
// is the primary source; a fixed chain of HTML selectors covers the fields
// the payload leaves blank. Soft problems (missing id, out-of-range
// coordinates) come back as warnings, not errors.
func (a *DomainFetcherAdapter) Parse(pageBody []byte, pageURL string) (*domain.RawListing, []string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(pageBody))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", domain.ErrParse, pageURL, err)
	}

	scriptText := doc.Find("script#" + constants.NextDataScriptID).Text()
	if strings.TrimSpace(scriptText) == "" {
		return nil, nil, fmt.Errorf("%w: %s: hydration payload not found", domain.ErrParse, pageURL)
	}

	var payload nextData
	if err := json.Unmarshal([]byte(scriptText), &payload); err != nil {
		return nil, nil, fmt.Errorf("%w: %s: decoding hydration payload: %v", domain.ErrParse, pageURL, err)
	}

	comp := payload.Props.PageProps.ComponentProps
	graph := comp.RootGraphQuery.ListingByIDV2
	summary := comp.ListingSummary

	var agent agentInfo
	if len(graph.Agents) > 0 {
		agent = graph.Agents[0]
	}
	addr := graph.DisplayableAddress

	featureTags := extractFeatureTags(doc)

	images := make([]string, 0, len(graph.LargeMedia))
	for _, m := range graph.LargeMedia {
		if m.URL != "" {
			images = append(images, m.URL)
		}
	}
	coverImage := ""
	if len(images) > 0 {
		coverImage = images[0]
	}

	listing := &domain.RawListing{
		ListingID:       graph.ListingID.String(),
		URL:             pageURL,
		Address:         cleanText(summary.Address),
		Suburb:          addr.SuburbName,
		State:           addr.State,
		Postcode:        addr.Postcode,
		PropertyType:    firstNonEmpty(graph.PropertyType, fallbackPropertyType(doc)),
		RentPerWeek:     cleanPrice(summary.Title),
		Bond:            cleanPrice(graph.PriceDetails.Bond.String()),
		Bedrooms:        summary.Beds,
		Bathrooms:       summary.Baths,
		ParkingSpaces:   summary.Parking,
		AvailableDate:   normalizeAvailableDate(graph.DateAvailableV2.IsoDate, time.Now()),
		AgencyName:      graph.Agency.Name,
		AgentName:       agent.FullName,
		AgentEmail:      agent.Email,
		AgentProfileURL: agent.ProfileURL,
		Headline:        graph.Headline,
		Description:     cleanDescription(graph.Description),
		FeatureTags:     featureTags,
		Images:          images,
		CoverImage:      coverImage,
		Latitude:        addr.Geolocation.Latitude,
		Longitude:       addr.Geolocation.Longitude,
	}

	listing.BedroomDisplay = bedroomDisplay(listing.Bedrooms, listing.PropertyType, featureTags, graph.Headline, graph.Description)
	listing.InspectionTimes = extractInspectionTimes(doc, comp.InspectionDetails.Inspections)
	listing.AgentPhone = resolveAgentPhone(agent.PhoneNumber, doc)
	listing.AgencyLogoURL = firstNonEmpty(agent.Agency.LogoURL, fallbackAgencyLogo(doc))
	listing.EnquiryFormAction = extractEnquiryFormAction(doc)

	if listing.Latitude != 0 || listing.Longitude != 0 {
		listing.Geohash = geohash.EncodeWithPrecision(listing.Latitude, listing.Longitude, geohashPrecision)
	}

	warnings := validateListing(listing)
	listing.Postcode = normalizePostcode(listing.Postcode)

	return listing, warnings, nil
}

// normalizePostcode keeps the first four-digit run, so float-ish values like
// "2000.0" still land as "2000". Anything without one becomes empty.
func normalizePostcode(raw string) string {
	return postcodeDigits.FindString(raw)
}

// validateListing runs the soft checks. The caller logs warnings and keeps
// the record; only a missing hydration payload is fatal.
func validateListing(l *domain.RawListing) []string {
	var warnings []string
	if l.ListingID == "" {
		warnings = append(warnings, "missing listing id")
	}
	if l.RentPerWeek < 0 {
		warnings = append(warnings, "negative rent")
	}
	if l.Bedrooms < 0 || l.Bathrooms < 0 {
		warnings = append(warnings, "negative room count")
	}
	if l.Postcode != "" && !postcodePattern.MatchString(l.Postcode) {
		warnings = append(warnings, fmt.Sprintf("suspicious postcode %q", l.Postcode))
	}
	if l.Latitude < -90 || l.Latitude > 90 || l.Longitude < -180 || l.Longitude > 180 {
		warnings = append(warnings, "coordinates out of range")
	}
	return warnings
}

var (
	postcodePattern = regexp.MustCompile(`^\d{4}$`)
	postcodeDigits  = regexp.MustCompile(`\d{4}`)
)

func extractFeatureTags(doc *goquery.Document) []string {
	var tags []string
	doc.Find("div#property-features li").Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			tags = append(tags, text)
		}
	})
	return tags
}

// extractInspectionTimes prefers the rendered inspection blocks, falling back
// to the hydration payload's raw start/end pairs.
func extractInspectionTimes(doc *goquery.Document, slots []inspectionSlot) []string {
	var times []string
	doc.Find("div[data-testid='listing-details__inspections-block']").Each(func(_ int, s *goquery.Selection) {
		day := strings.TrimSpace(s.Find("span[data-testid='listing-details__inspections-block-day']").First().Text())
		slot := strings.TrimSpace(s.Find("span[data-testid='listing-details__inspections-block-time']").First().Text())
		if day != "" && slot != "" {
			times = append(times, day+", "+slot)
		}
	})
	if len(times) > 0 {
		return times
	}
	for _, s := range slots {
		if s.StartTime != "" && s.EndTime != "" {
			times = append(times, s.StartTime+" - "+s.EndTime)
		}
	}
	return times
}

func fallbackPropertyType(doc *goquery.Document) string {
	return strings.TrimSpace(doc.Find("span.css-1efi8gv").First().Text())
}

// resolveAgentPhone uses the payload value unless it is blank or the site's
// "Call" placeholder, then falls back to the phone CTA button.
func resolveAgentPhone(payloadPhone string, doc *goquery.Document) string {
	phone := strings.TrimSpace(payloadPhone)
	if phone != "" && !strings.EqualFold(phone, "call") {
		return phone
	}

	cta := doc.Find("a[data-testid='listing-details__phone-cta-button']").First()
	if href, ok := cta.Attr("href"); ok && strings.HasPrefix(href, "tel:") {
		return strings.TrimSpace(strings.TrimPrefix(href, "tel:"))
	}
	return strings.TrimSpace(cta.Find("span.css-1s26z8e span").First().Text())
}

func fallbackAgencyLogo(doc *goquery.Document) string {
	src, _ := doc.Find("img[data-testid='listing-details__agent-details-branding-lazy']").First().Attr("src")
	return strings.TrimSpace(src)
}

// extractEnquiryFormAction tries the third-party application links first,
// then the inline enquiry forms, oldest markup last.
func extractEnquiryFormAction(doc *goquery.Document) string {
	ctaBox := doc.Find("div[data-testid='listing-details__agent-details-cta-box']")

	action := ""
	ctaBox.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if strings.Contains(href, "snug.com") || strings.Contains(href, "2apply.com.au") {
			action = strings.TrimSpace(href)
			return false
		}
		return true
	})
	if action != "" {
		return action
	}

	if v, ok := ctaBox.Find("form[data-testid='listing-details__oneform-button-form']").First().Attr("action"); ok {
		return strings.TrimSpace(v)
	}
	if v, ok := ctaBox.Find("form[class*='css-']").First().Attr("action"); ok {
		return strings.TrimSpace(v)
	}
	if v, ok := doc.Find("form#enquiry-form").First().Attr("action"); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

var studioKeywords = constants.StudioKeywords

// bedroomDisplay renders the bedroom count for display. Zero bedrooms reads
// as "Studio" whether or not a studio keyword confirms it; genuinely missing
// counts are indistinguishable from studios in the source data.
func bedroomDisplay(bedrooms int, propertyType string, featureTags []string, headline, description string) string {
	if bedrooms > 0 {
		return fmt.Sprintf("%d", bedrooms)
	}

	sources := []string{
		strings.ToLower(propertyType),
		strings.ToLower(headline),
		strings.ToLower(description),
		strings.ToLower(strings.Join(featureTags, " ")),
	}
	for _, text := range sources {
		if text == "" {
			continue
		}
		for _, kw := range studioKeywords {
			if strings.Contains(text, kw) {
				return "Studio"
			}
		}
	}
	return "Studio"
}

var nonPriceChars = regexp.MustCompile(`[^\d.]`)

// cleanPrice strips currency formatting and keeps the first parseable number.
func cleanPrice(price string) float64 {
	cleaned := nonPriceChars.ReplaceAllString(price, "")
	if cleaned == "" {
		return 0
	}
	var v float64
	if _, err := fmt.Sscanf(cleaned, "%f", &v); err != nil {
		return 0
	}
	return v
}

var availableDateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2006/01/02",
	"02-01-2006",
	"2006-01-02 15:04:05",
}

// normalizeAvailableDate maps the payload's availability value onto the
// nullable date: nil means available now. Dates in the past collapse to nil
// so stale scrapes never hide a listing from availability filters.
func normalizeAvailableDate(raw string, now time.Time) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if idx := strings.Index(raw, "T"); idx > 0 {
		raw = raw[:idx]
	}

	lower := strings.ToLower(raw)
	for _, kw := range constants.AvailableNowKeywords {
		if strings.Contains(lower, kw) {
			return nil
		}
	}

	for _, layout := range availableDateLayouts {
		parsed, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		if !parsed.After(today) {
			return nil
		}
		parsed = parsed.UTC()
		return &parsed
	}
	return nil
}

var (
	htmlTagPattern   = regexp.MustCompile(`<[^>]+>`)
	brPattern        = regexp.MustCompile(`<br\s*/?>`)
	paraBreakPattern = regexp.MustCompile(`</p>\s*<p[^>]*>`)
	paraOpenPattern  = regexp.MustCompile(`<p[^>]*>`)
	listItemPattern  = regexp.MustCompile(`<li[^>]*>`)
	listWrapPattern  = regexp.MustCompile(`</?[uo]l[^>]*>`)
	spacesPattern    = regexp.MustCompile(`[ \t]+`)
	blankRunPattern  = regexp.MustCompile(`\n\s*\n\s*\n+`)
)

// cleanText strips markup and collapses whitespace to a single line.
func cleanText(text string) string {
	text = htmlTagPattern.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(text), " ")
}

// cleanDescription strips markup while keeping paragraph and bullet
// structure readable as plain text.
func cleanDescription(text string) string {
	if text == "" {
		return ""
	}
	text = brPattern.ReplaceAllString(text, "\n")
	text = paraBreakPattern.ReplaceAllString(text, "\n\n")
	text = paraOpenPattern.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "</p>", "\n")
	text = listItemPattern.ReplaceAllString(text, "• ")
	text = strings.ReplaceAll(text, "</li>", "\n")
	text = listWrapPattern.ReplaceAllString(text, "\n")
	text = htmlTagPattern.ReplaceAllString(text, "")
	text = spacesPattern.ReplaceAllString(text, " ")
	text = blankRunPattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
