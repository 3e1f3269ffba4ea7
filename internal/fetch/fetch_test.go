package fetch

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"net/http"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURL_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><main>Backend Engineer</main></body></html>"))
	}))
	defer server.Close()

	result, err := URL(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Contains(t, result.HTML, "Backend Engineer")
}

func TestURL_InvalidURL(t *testing.T) {
	_, err := URL(context.Background(), "not a url", nil)
	require.Error(t, err)

	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	assert.Contains(t, fetchErr.Message, "invalid URL")
}

func TestURL_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	result, err := URL(context.Background(), server.URL, nil)
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Equal(t, http.StatusNotFound, result.StatusCode)
}

func TestExtractMainText_WithMainElement(t *testing.T) {
	html := `<html><body>
		<nav>Navigation noise</nav>
		<main>We are hiring a Go developer.</main>
		<footer>Footer noise</footer>
	</body></html>`

	text, err := ExtractMainText(html, DefaultTextSelectors())
	require.NoError(t, err)
	assert.Contains(t, text, "Go developer")
	assert.NotContains(t, text, "Navigation noise")
	assert.NotContains(t, text, "Footer noise")
}

func TestExtractMainText_JobPostingSelectors(t *testing.T) {
	html := `<html><body>
		<div class="job-description">Senior Backend Engineer, Paris.</div>
		<div class="other">Unrelated content</div>
	</body></html>`

	text, err := ExtractMainText(html, JobPostingSelectors())
	require.NoError(t, err)
	assert.Contains(t, text, "Senior Backend Engineer")
	assert.NotContains(t, text, "Unrelated content")
}

func TestExtractMainText_NoiseSelectors(t *testing.T) {
	html := `<html><body><main>
		<p>Real posting text.</p>
		<form>Apply here form fields</form>
	</main></body></html>`

	text, err := ExtractMainText(html, DefaultTextSelectors(), "form")
	require.NoError(t, err)
	assert.Contains(t, text, "Real posting text")
	assert.NotContains(t, text, "Apply here")
}

func TestExtractMainText_FallbackToBody(t *testing.T) {
	html := `<html><body><div>Plain body content</div></body></html>`

	text, err := ExtractMainText(html, DefaultTextSelectors())
	require.NoError(t, err)
	assert.Contains(t, text, "Plain body content")
}

func TestShouldUseBrowser(t *testing.T) {
	assert.True(t, ShouldUseBrowser("short"))
	assert.True(t, ShouldUseBrowser("   "))
	assert.False(t, ShouldUseBrowser(strings.Repeat("long posting content ", 50)))
}

func TestClient_PostingText(t *testing.T) {
	posting := strings.Repeat("We build distributed systems in Go. ", 30)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body><main>" + posting + "</main></body></html>"))
	}))
	defer server.Close()

	client := NewClient(nil, false, zerolog.Nop())
	text, err := client.PostingText(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Contains(t, text, "distributed systems in Go")
}

func TestClient_PostingText_ShortWithoutBrowser(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body><main>Tiny posting</main></body></html>"))
	}))
	defer server.Close()

	// Browser disabled: short content is returned as-is rather than failing.
	client := NewClient(nil, false, zerolog.Nop())
	text, err := client.PostingText(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "Tiny posting", text)
}

func TestClient_PostingText_EmptyWithoutBrowser(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body></body></html>"))
	}))
	defer server.Close()

	client := NewClient(nil, false, zerolog.Nop())
	_, err := client.PostingText(context.Background(), server.URL)
	require.Error(t, err)

	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	assert.Contains(t, fetchErr.Message, "no text content")
}
