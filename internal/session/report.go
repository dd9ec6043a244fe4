// internal/session/report.go
package session

import (
	"sort"

	"go.uber.org/zap"

	"github.com/xkilldash9x/trafficsim/api/schemas"
)

// logReport emits the human-readable ad summary the host shows alongside
// the session result.
func logReport(logger *zap.Logger, report schemas.AdReport) {
	s := report.SessionSummary
	logger.Info("Ad interaction summary.",
		zap.Int("detected", s.TotalAdsDetected),
		zap.Int("clicked", s.TotalAdsClicked),
		zap.Int("ignored", s.TotalAdsIgnored),
		zap.Int("failed", s.TotalFailedClicks),
		zap.String("click_success_rate", s.ClickSuccessRate),
		zap.Int("popup_closures", s.PopupClosures),
		zap.Strings("domains", s.DomainsWithAds))

	types := make([]string, 0, len(s.AdTypeBreakdown))
	for t := range s.AdTypeBreakdown {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		b := s.AdTypeBreakdown[t]
		logger.Info("Ad type breakdown.",
			zap.String("ad_type", t),
			zap.Int("detected", b.Detected),
			zap.Int("clicked", b.Clicked),
			zap.Int("ignored", b.Ignored),
			zap.Int("failed", b.Failed))
	}

	for _, d := range s.ClickedAdsDetails {
		logger.Info("Clicked ad.",
			zap.String("name", d.AdName),
			zap.String("ad_type", d.AdType),
			zap.String("domain", d.Domain))
	}

	for _, rec := range report.Recommendations {
		logger.Info("Recommendation.", zap.String("recommendation", rec))
	}
}
