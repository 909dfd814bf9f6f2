// Package fetcher retrieves article HTML and reduces it to plaintext for
// extraction. It produces both a full text and a focused window around the
// sentences most likely to describe the accident.
package fetcher

import (
	"context"
	"io"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const maxBodyBytes = 512 * 1024

// Article is the fetched and flattened page.
type Article struct {
	Title       string
	FullText    string
	FocusedText string
	FinalURL    string
	StatusCode  int
}

// Fetcher fetches one URL into an Article.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Article, error)
}

// HTTPFetcher fetches via net/http with a shared rate limit across
// goroutines.
type HTTPFetcher struct {
	client  *http.Client
	limiter *rate.Limiter
}

func NewHTTPFetcher(timeout time.Duration, perSecond float64) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

// Fetch retrieves the URL, detects blocks, and flattens the HTML. The final
// URL after redirects is recorded so artifacts key on the canonical address.
func (f *HTTPFetcher) Fetch(ctx context.Context, targetURL string) (*Article, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "fetcher: rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create request")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; ResearchBot/1.0)")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: read body")
	}

	if blocked, blockType := detectBlock(resp.StatusCode, body); blocked {
		return nil, eris.Errorf("fetcher: blocked (%s)", blockType)
	}
	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("fetcher: status %d", resp.StatusCode)
	}

	finalURL := targetURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	article := Flatten(string(body))
	article.FinalURL = finalURL
	article.StatusCode = resp.StatusCode
	return article, nil
}

var blockTokens = []string{"access denied", "403 forbidden", "captcha", "are you a robot"}

func detectBlock(status int, body []byte) (bool, string) {
	if status == 202 || status == 403 {
		return true, "status"
	}
	lower := strings.ToLower(string(body))
	for _, tok := range blockTokens {
		if strings.Contains(lower, tok) {
			return true, tok
		}
	}
	return false, ""
}

var (
	titleRe = regexp.MustCompile(`(?i)<title[^>]*>(.*?)</title>`)
	blockRe = regexp.MustCompile(`(?is)<(p|h1|h2|h3|li)[^>]*>(.*?)</(?:p|h1|h2|h3|li)>`)
	tagRe   = regexp.MustCompile(`<[^>]+>`)
	wsRe    = regexp.MustCompile(`\s+`)

	// anchorRe marks the paragraph most likely to describe the accident; the
	// focused text is a window around the first hit.
	anchorRe = regexp.MustCompile(`(?i)\b(slackline|fell|died|death|fatal|RCMP|Coroners|recovery|recover)\b`)
)

var boilerTokens = []string{
	"subscribe now", "sign in", "create an account", "unlimited online access",
	"get exclusive access", "support local journalists", "daily puzzles",
	"share this story", "advertisement",
}

var entityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&nbsp;", " ",
)

// Flatten reduces raw HTML to the Article text fields. Paragraph-level
// blocks under 30 characters or carrying paywall boilerplate are dropped;
// duplicated blocks are kept once.
func Flatten(html string) *Article {
	for _, tag := range []string{"script", "style", "nav", "footer"} {
		re := regexp.MustCompile(`(?is)<` + tag + `[^>]*>.*?</` + tag + `>`)
		html = re.ReplaceAllString(html, "")
	}

	title := ""
	if m := titleRe.FindStringSubmatch(html); m != nil {
		title = strings.TrimSpace(m[1])
	}

	var blocks []string
	seen := map[string]bool{}
	for _, m := range blockRe.FindAllStringSubmatch(html, -1) {
		text := cleanBlock(m[2])
		if len(text) < 30 || seen[text] {
			continue
		}
		lower := strings.ToLower(text)
		if strings.HasPrefix(lower, "conversation") || strings.HasPrefix(lower, "comments") {
			break
		}
		if containsAny(lower, boilerTokens) {
			continue
		}
		seen[text] = true
		blocks = append(blocks, text)
		if m[1] == "h1" && title == "" {
			title = text
		}
	}

	parts := blocks
	if title != "" {
		parts = append([]string{title}, blocks...)
	}
	full := strings.Join(parts, "\n\n")

	return &Article{
		Title:       title,
		FullText:    collapse(full),
		FocusedText: collapse(focusedWindow(blocks)),
	}
}

// focusedWindow returns one block before through five blocks after the
// first anchor match, or all blocks when nothing anchors.
func focusedWindow(blocks []string) string {
	anchor := -1
	for i, b := range blocks {
		if anchorRe.MatchString(b) {
			anchor = i
			break
		}
	}
	window := blocks
	if anchor >= 0 {
		start := anchor - 1
		if start < 0 {
			start = 0
		}
		end := anchor + 6
		if end > len(blocks) {
			end = len(blocks)
		}
		window = blocks[start:end]
	}
	return strings.Join(window, " ")
}

func cleanBlock(s string) string {
	s = tagRe.ReplaceAllString(s, " ")
	s = entityReplacer.Replace(s)
	return strings.TrimSpace(wsRe.ReplaceAllString(s, " "))
}

func collapse(s string) string {
	return strings.TrimSpace(wsRe.ReplaceAllString(s, " "))
}

func containsAny(s string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(s, tok) {
			return true
		}
	}
	return false
}
