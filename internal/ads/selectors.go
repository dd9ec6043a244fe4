// internal/ads/selectors.go
package ads

var iframeSelectors = []string{
	"iframe[src*='ads']", "iframe[src*='googleads']", "iframe[src*='googlesyndication']",
	"iframe[id*='google_ads']", "iframe[data-google-container-id]", "iframe[class*='ad']",
	"iframe[src*='doubleclick']", "iframe[src*='adsystem']", "iframe[src*='amazon-adsystem']",
	"iframe[src*='facebook.com/tr']", "iframe[class*='adframe']", "iframe[id*='aswift']",
	"div[class*='ad-frame'] iframe", "div[id*='ad'] iframe",
}

var displaySelectors = []string{
	"div[class*='ad']", "div[id*='ad']", "div[class*='banner']", "div[class*='sponsored']",
	"div[class*='advertisement']", "ins.adsbygoogle", "div.google-ad", "div.ad-container",
	"div[data-ad]", "div[data-ad-unit]", "div[data-ad-client]", "div[class*='promo']",
	"aside[class*='ad']", "section[class*='ad']", "[data-testid*='ad']", "div[class*='widget-ad']",
	"div[class*='sidebar-ad']", "div[class*='header-ad']", "div[class*='footer-ad']",
	"div[class*='content-ad']", "div[class*='native-ad']", "div[class*='text-ad']",
}

var videoSelectors = []string{
	"div[class*='video-ad']", "div[id*='video-ad']", "div[class*='preroll']",
	"div[class*='midroll']", "video[class*='ad']", "div[data-video-ad]",
	"div[class*='youtube-ad']", "div[class*='vmap']", "div[class*='vast']",
}

var socialSelectors = []string{
	"div[data-testid='fbfeed_story']", "article[data-testid='tweet']",
	"div[class*='promoted']", "div[class*='sponsored-content']",
	"div[aria-label*='Sponsored']", "div[aria-label*='Promoted']",
}

var popupSelectors = []string{
	"div[class*='popup']", "div[class*='modal']", "div[class*='overlay']",
	"div[class*='interstitial']", "div[class*='lightbox']", "div[class*='dialog']",
	"div[role='dialog']", "div[aria-modal='true']", "div[class*='ad-popup']",
}

var nativeSelectors = []string{
	"article[class*='sponsored']", "section[class*='promoted']", "div[class*='recommended']",
	"div[class*='suggested']", "div[data-native-ad]", "div[class*='partner']",
	"div[class*='content-recommendation']", "div[class*='related-content']",
}

func selectorsFor(cat Category) []string {
	switch cat {
	case Iframe:
		return iframeSelectors
	case Display:
		return displaySelectors
	case Video:
		return videoSelectors
	case Popup:
		return popupSelectors
	case Native:
		return nativeSelectors
	case Social:
		return socialSelectors
	}
	return nil
}
