// internal/traffic/traffic.go
package traffic

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/xkilldash9x/trafficsim/api/schemas"
	"github.com/xkilldash9x/trafficsim/internal/config"
	"github.com/xkilldash9x/trafficsim/internal/humanoid"
)

// GoogleReferrer is the referrer of an organic visit without a search hop.
const GoogleReferrer = "https://www.google.com/"

var searchTemplates = map[string]string{
	"google":     "https://www.google.com/search?q=%s",
	"yahoo":      "https://search.yahoo.com/search?p=%s",
	"bing":       "https://www.bing.com/search?q=%s",
	"duckduckgo": "https://duckduckgo.com/?q=%s",
	"baidu":      "https://www.baidu.com/s?wd=%s",
	"yandex":     "https://yandex.com/search/?text=%s",
	"ask":        "https://www.ask.com/web?q=%s",
	"ecosia":     "https://www.ecosia.org/search?q=%s",
}

// Social referrers in the order they are listed in the configuration.
var socialReferrers = []struct {
	name string
	url  string
}{
	{"facebook", "https://facebook.com/"},
	{"twitter", "https://twitter.com/"},
	{"instagram", "https://instagram.com/"},
	{"linkedin", "https://linkedin.com/"},
}

var (
	organicDomains = map[string]bool{
		"google": true, "bing": true, "yahoo": true, "duckduckgo": true,
		"baidu": true, "yandex": true, "ask": true, "ecosia": true,
	}
	socialDomains = map[string]bool{
		"facebook": true, "twitter": true, "instagram": true, "linkedin": true,
	}
)

// SearchURL builds the results page URL for keywords on engine. Unknown
// engines use Google. It returns "" when either argument is blank.
func SearchURL(engine, keywords string) string {
	engine = strings.ToLower(strings.TrimSpace(engine))
	keywords = strings.TrimSpace(keywords)
	if engine == "" || keywords == "" {
		return ""
	}
	tmpl, ok := searchTemplates[engine]
	if !ok {
		tmpl = searchTemplates["google"]
	}
	return strings.Replace(tmpl, "%s", url.QueryEscape(keywords), 1)
}

// ClassifyReferrer attributes a custom referrer by its registrable domain:
// search engines are Organic, the big social networks are Social and
// everything else is a Referral.
func ClassifyReferrer(ref string) schemas.TrafficSource {
	host := strings.TrimSpace(ref)
	if u, err := url.Parse(host); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))

	name := host
	if etld1, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		name = etld1
	}
	if i := strings.IndexByte(name, '.'); i > 0 {
		name = name[:i]
	}

	switch {
	case organicDomains[name]:
		return schemas.SourceOrganic
	case socialDomains[name]:
		return schemas.SourceSocial
	default:
		return schemas.SourceReferral
	}
}

// Plan is the attribution chosen for one visit. SearchURL is set when the
// visit goes through a search results page first.
type Plan struct {
	Source    schemas.TrafficSource
	Referrer  string
	SearchURL string
}

// Selector draws a Plan per visit from the traffic configuration.
type Selector struct {
	cfg   config.TrafficConfig
	pacer *humanoid.Pacer
}

// NewSelector creates a selector.
func NewSelector(cfg config.TrafficConfig, pacer *humanoid.Pacer) *Selector {
	return &Selector{cfg: cfg, pacer: pacer}
}

// Choose picks the source for the next visit: organic, then a custom
// referrer, then a social network, else direct.
func (s *Selector) Choose() Plan {
	if s.pacer.Float64()*100 < s.cfg.Organic {
		if search := SearchURL(s.cfg.SearchEngine, s.cfg.SearchKeywords); search != "" && !s.direct() {
			return Plan{Source: schemas.SourceOrganic, Referrer: search, SearchURL: search}
		}
		return Plan{Source: schemas.SourceOrganic, Referrer: GoogleReferrer}
	}

	if custom := strings.TrimSpace(s.cfg.Custom); custom != "" {
		return Plan{Source: ClassifyReferrer(custom), Referrer: custom}
	}

	if enabled := s.enabledSocial(); len(enabled) > 0 {
		return Plan{Source: schemas.SourceSocial, Referrer: enabled[s.pacer.Intn(len(enabled))]}
	}

	return Plan{Source: schemas.SourceDirect}
}

// direct reports whether an organic visit skips the search hop.
func (s *Selector) direct() bool {
	if s.cfg.DirectTraffic <= 0 {
		return false
	}
	return float64(s.pacer.IntRange(1, 100)) <= s.cfg.DirectTraffic
}

func (s *Selector) enabledSocial() []string {
	on := map[string]bool{
		"facebook":  s.cfg.Social.Facebook,
		"twitter":   s.cfg.Social.Twitter,
		"instagram": s.cfg.Social.Instagram,
		"linkedin":  s.cfg.Social.LinkedIn,
	}
	var out []string
	for _, r := range socialReferrers {
		if on[r.name] {
			out = append(out, r.url)
		}
	}
	return out
}
