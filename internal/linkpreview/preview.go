// Package linkpreview fetches page titles for URLs appearing in chat
// bodies and reports them back to the room as discrete notices. It runs
// with bounded concurrency, fully decoupled from the chat-send path.
package linkpreview

import (
	"context"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

var (
	urlPattern = regexp.MustCompile(`https?://[^\s<>"]+`)
	// Media URLs render inline on the client already; no preview needed.
	mediaPattern = regexp.MustCompile(`(?i)\.(png|jpe?g|gif|webp|mp4|webm)(\?[^\s]*)?$`)
	titlePattern = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
)

const (
	fetchTimeout  = 10 * time.Second
	maxBodyBytes  = 256 << 10
	maxTitleRunes = 200
)

// Notify delivers a finished preview back to the room.
type Notify func(room, body string)

// Pool fetches previews with at most `workers` concurrent requests.
// Submissions beyond the bound are dropped rather than queued; previews
// are best-effort.
type Pool struct {
	sem    *semaphore.Weighted
	client *http.Client
	notify Notify
	log    *zerolog.Logger
}

// New builds a preview pool. workers <= 0 selects 4.
func New(notify Notify, workers int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = 4
	}
	return &Pool{
		sem:    semaphore.NewWeighted(int64(workers)),
		client: &http.Client{Timeout: fetchTimeout},
		notify: notify,
		log:    logger,
	}
}

// Submit scans the chat body for previewable URLs and schedules a fetch
// for each. Never blocks the caller.
func (p *Pool) Submit(room, body string) {
	for _, url := range ExtractURLs(body) {
		if !p.sem.TryAcquire(1) {
			p.log.Debug().Str("url", url).Msg("preview pool saturated, dropping")
			continue
		}
		go func(url string) {
			defer p.sem.Release(1)
			p.fetch(room, url)
		}(url)
	}
}

// ExtractURLs returns the previewable URLs in a chat body, skipping
// media links.
func ExtractURLs(body string) []string {
	var out []string
	for _, url := range urlPattern.FindAllString(body, -1) {
		if mediaPattern.MatchString(url) {
			continue
		}
		out = append(out, url)
	}
	return out
}

func (p *Pool) fetch(room, url string) {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		p.log.Debug().Err(err).Str("url", url).Msg("bad preview url")
		return
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.log.Debug().Err(err).Str("url", url).Msg("preview fetch failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return
	}

	title := ExtractTitle(string(data))
	if title == "" {
		return
	}
	p.notify(room, "<<"+title+">> ("+url+")")
}

// ExtractTitle pulls the page title out of an HTML document.
func ExtractTitle(doc string) string {
	m := titlePattern.FindStringSubmatch(doc)
	if m == nil {
		return ""
	}
	title := strings.TrimSpace(html.UnescapeString(m[1]))
	title = strings.Join(strings.Fields(title), " ")
	if len([]rune(title)) > maxTitleRunes {
		title = string([]rune(title)[:maxTitleRunes])
	}
	return title
}
