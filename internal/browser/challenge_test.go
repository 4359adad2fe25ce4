package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectChallengeCloudflare(t *testing.T) {
	html := `<html><head><title>Just a moment...</title></head>
	<body><div id="cf-challenge">Checking your browser before accessing</div></body></html>`

	res := DetectChallenge("Just a moment...", html)
	assert.True(t, res.Blocked)
	assert.NotEmpty(t, res.Reasons)
}

func TestDetectChallengeCaptchaWidget(t *testing.T) {
	html := `<html><body><form><div class="g-recaptcha" data-sitekey="x"></div></form></body></html>`

	res := DetectChallenge("Sign in", html)
	assert.True(t, res.Blocked)
	assert.Contains(t, res.Reasons[0], "g-recaptcha")
}

func TestDetectChallengeCleanPage(t *testing.T) {
	html := `<html><head><title>Hackathons</title></head>
	<body><div class="listing"><a href="/h/solar">Solar Hack</a></div></body></html>`

	res := DetectChallenge("Hackathons", html)
	assert.False(t, res.Blocked)
	assert.Empty(t, res.Reasons)
}

func TestDetectChallengeCaseInsensitive(t *testing.T) {
	res := DetectChallenge("ATTENTION REQUIRED! | Cloudflare", "<html></html>")
	assert.True(t, res.Blocked)
}

func TestPoolConfigDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.Headless)
	assert.Equal(t, 4, cfg.maxPages())
	assert.Positive(t, cfg.NavigationTimeout())

	var zero Config
	assert.Equal(t, 4, zero.maxPages())
	assert.Positive(t, zero.NavigationTimeout())
}
