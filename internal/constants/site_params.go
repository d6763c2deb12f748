package constants

// Parameters of the scraped listing site.
const (
	// SiteBaseURL is the absolute prefix every detail-page link must carry.
	SiteBaseURL = "https://www.domain.com.au"

	// NextDataScriptID is the element holding the page hydration payload.
	NextDataScriptID = "__NEXT_DATA__"

	// PageQueryParam drives search-results pagination.
	PageQueryParam = "page"
)

// StudioKeywords mark a zero-bedroom listing as a studio in free text, the
// property type or the feature tags.
var StudioKeywords = []string{
	"studio", "studios", "studio apartment", "studio unit",
	"open plan", "efficiency apartment",
}

// AvailableNowKeywords normalize an availability date to "available
// immediately" regardless of how the site spells it.
var AvailableNowKeywords = []string{"now", "available", "immediate", "asap"}
