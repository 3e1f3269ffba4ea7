package fetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectPlatform(t *testing.T) {
	tests := []struct {
		url  string
		want Platform
	}{
		{"https://boards.greenhouse.io/acme/jobs/12345", PlatformGreenhouse},
		{"https://jobs.lever.co/acme/abc-def", PlatformLever},
		{"https://acme.wd5.myworkdayjobs.com/careers/job/Paris/Engineer", PlatformWorkday},
		{"https://www.welcometothejungle.com/fr/companies/acme/jobs/dev", PlatformWTTJ},
		{"https://fr.indeed.com/viewjob?jk=abc123", PlatformIndeed},
		{"https://example.com/careers/123", PlatformUnknown},
		{"::not-a-url::", PlatformUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectPlatform(tt.url), tt.url)
	}
}

func TestPlatformContentSelectors_Greenhouse(t *testing.T) {
	selectors := PlatformContentSelectors(PlatformGreenhouse)
	assert.NotEmpty(t, selectors)
	assert.Contains(t, selectors, ".job__description.body")
}

func TestPlatformContentSelectors_Unknown(t *testing.T) {
	selectors := PlatformContentSelectors(PlatformUnknown)
	assert.Equal(t, JobPostingSelectors(), selectors)
}

func TestPlatformNoiseSelectors(t *testing.T) {
	common := PlatformNoiseSelectors(PlatformUnknown)
	assert.Contains(t, common, "form")

	greenhouse := PlatformNoiseSelectors(PlatformGreenhouse)
	assert.Greater(t, len(greenhouse), len(common))
	assert.Contains(t, greenhouse, ".post-apply")
}
