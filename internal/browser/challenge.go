package browser

import (
	"context"
	"strings"
)

// ChallengeResult describes why a page looks like an anti-bot interstitial.
type ChallengeResult struct {
	Blocked bool     `json:"blocked"`
	Reasons []string `json:"reasons,omitempty"`
}

// challengeTitleMarkers are title fragments emitted by common bot walls.
var challengeTitleMarkers = []string{
	"just a moment",
	"attention required",
	"access denied",
	"verify you are human",
	"are you a robot",
	"security check",
}

// challengeBodyMarkers are markup fragments emitted by challenge pages.
var challengeBodyMarkers = []string{
	"cf-challenge",
	"cf-turnstile",
	"g-recaptcha",
	"h-captcha",
	"hcaptcha.com",
	"datadome",
	"px-captcha",
	"checking your browser",
	"enable javascript and cookies to continue",
}

// DetectChallenge inspects a page title and markup for anti-bot challenge
// fingerprints. Pure string inspection so both headless and plain HTTP
// adapters can use it.
func DetectChallenge(title, html string) ChallengeResult {
	var result ChallengeResult
	lowerTitle := strings.ToLower(title)
	lowerHTML := strings.ToLower(html)

	for _, marker := range challengeTitleMarkers {
		if strings.Contains(lowerTitle, marker) {
			result.Reasons = append(result.Reasons, "title: "+marker)
		}
	}
	for _, marker := range challengeBodyMarkers {
		if strings.Contains(lowerHTML, marker) {
			result.Reasons = append(result.Reasons, "body: "+marker)
		}
	}

	result.Blocked = len(result.Reasons) > 0
	return result
}

// CheckChallenge runs challenge detection against the page's live state.
func (pg *Page) CheckChallenge(ctx context.Context) (ChallengeResult, error) {
	title, err := pg.Title(ctx)
	if err != nil {
		return ChallengeResult{}, err
	}
	html, err := pg.HTML(ctx)
	if err != nil {
		return ChallengeResult{}, err
	}
	return DetectChallenge(title, html), nil
}
