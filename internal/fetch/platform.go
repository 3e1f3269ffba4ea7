// Package fetch - platform.go provides job board detection and
// platform-specific content selectors.
package fetch

import (
	"net/url"
	"strings"
)

// Platform represents a known job board platform.
type Platform string

const (
	// PlatformGreenhouse is the Greenhouse ATS platform
	PlatformGreenhouse Platform = "greenhouse"
	// PlatformLever is the Lever ATS platform
	PlatformLever Platform = "lever"
	// PlatformWorkday is the Workday ATS platform
	PlatformWorkday Platform = "workday"
	// PlatformWTTJ is the Welcome to the Jungle job board
	PlatformWTTJ Platform = "wttj"
	// PlatformIndeed is the Indeed job board
	PlatformIndeed Platform = "indeed"
	// PlatformUnknown is an unrecognized platform
	PlatformUnknown Platform = "unknown"
)

// DetectPlatform identifies the job board platform from a URL.
func DetectPlatform(urlStr string) Platform {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return PlatformUnknown
	}

	host := strings.ToLower(parsed.Host)

	if strings.Contains(host, "greenhouse.io") {
		return PlatformGreenhouse
	}

	if strings.Contains(host, "lever.co") {
		return PlatformLever
	}

	if strings.Contains(host, "workday.com") ||
		strings.Contains(host, "myworkdayjobs.com") {
		return PlatformWorkday
	}

	if strings.Contains(host, "welcometothejungle.com") {
		return PlatformWTTJ
	}

	if strings.Contains(host, "indeed.com") ||
		strings.Contains(host, "indeed.fr") {
		return PlatformIndeed
	}

	return PlatformUnknown
}

// PlatformContentSelectors returns content selectors optimized for a specific platform.
func PlatformContentSelectors(platform Platform) []string {
	switch platform {
	case PlatformGreenhouse:
		return []string{
			".job__description.body",    // Primary Greenhouse selector
			".job__description",         // Fallback
			".job-description__content", // Alternative
			"#content",                  // Generic fallback
			".job-post-container",       // Container level
		}
	case PlatformLever:
		return []string{
			".posting-page",
			".section-wrapper.page-full-width",
			".posting-description",
			".content",
		}
	case PlatformWorkday:
		return []string{
			"[data-automation-id='jobDescription']",
			".WDXK",
			".gwt-HTML",
			".job-description",
		}
	case PlatformWTTJ:
		return []string{
			"[data-testid='job-section-description']",
			"[data-testid='job-section-experience']",
			"#the-position-section",
			"main",
		}
	case PlatformIndeed:
		return []string{
			"#jobDescriptionText",
			".jobsearch-JobComponent-description",
			".jobsearch-jobDescriptionText",
			"main",
		}
	default:
		return JobPostingSelectors()
	}
}

// PlatformNoiseSelectors returns noise exclusion selectors for a specific platform.
func PlatformNoiseSelectors(platform Platform) []string {
	// Common noise selectors for all platforms
	common := []string{
		// Application forms
		"form",
		"#application-form",
		".application-form",
		".application--container",
		".apply-button-container",
		"[data-testid='application-form']",

		// EEO and legal
		".voluntary-disclosure",
		".eeo-statement",
		".eeo-section",
		"[data-testid='eeo']",
		".legal-disclosure",
		".self-identification",

		// Social and share buttons
		".social-share",
		".share-buttons",
		".social-links",

		// Cookie and GDPR
		".cookie-banner",
		".cookie-consent",
		".gdpr-notice",

		// Generic navigation already handled in fetch.go
	}

	// Platform-specific noise selectors
	switch platform {
	case PlatformGreenhouse:
		return append(common,
			".application--wrapper",
			".voluntary-self-id",
			".voluntary-self-id-wrapper",
			"#usa_self_id_section",
			".post-apply",
		)
	case PlatformLever:
		return append(common,
			".apply-section",
			".lever-application-form",
			".posting-apply",
		)
	case PlatformWorkday:
		return append(common,
			"[data-automation-id='applyButton']",
			".application-section",
			".WDAF",
		)
	case PlatformWTTJ:
		return append(common,
			"[data-testid='apply-button']",
			"[data-testid='job-application-section']",
		)
	case PlatformIndeed:
		return append(common,
			"#applyButtonLinkContainer",
			".jobsearch-IndeedApplyButton",
		)
	default:
		return common
	}
}
