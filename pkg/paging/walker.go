package paging

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for page traversal.
var (
	pagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mds_pages_total",
		Help: "Total accepted (non-empty) pages by resource",
	}, []string{"resource"})

	pageItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mds_page_items_total",
		Help: "Total item records received by resource",
	}, []string{"resource"})

	pageFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mds_page_fetch_duration_seconds",
		Help:    "Page fetch duration in seconds by resource",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"resource"})

	transportErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mds_transport_errors_total",
		Help: "Total failed page fetches by resource",
	}, []string{"resource"})
)

// maxErrorBody caps how much of an error response body is retained for
// diagnostics.
const maxErrorBody = 64 * 1024

// Getter issues authenticated GET requests. *auth.Session satisfies it.
type Getter interface {
	Get(ctx context.Context, rawURL string, params url.Values) (*http.Response, error)
}

// Walker is a one-shot lazy traversal of an MDS resource's pages. The first
// fetch goes to the start URL with the query parameters attached; each
// subsequent fetch follows the previous page's next link verbatim. Only
// non-empty pages are emitted; an empty or absent data section ends the
// walk. A Walker is not safe for concurrent use and cannot be restarted.
type Walker struct {
	session  Getter
	resource string
	startURL string
	params   url.Values
	follow   bool

	started bool
	done    bool
	page    *Page
	err     error
	logger  zerolog.Logger
}

// NewWalker creates a walker over the pages of resource starting at
// startURL. When follow is false, at most the first accepted page is
// emitted even if the server advertises more.
func NewWalker(session Getter, resource, startURL string, params url.Values, follow bool) *Walker {
	return &Walker{
		session:  session,
		resource: resource,
		startURL: startURL,
		params:   params,
		follow:   follow,
		logger:   log.With().Str("component", "page-walker").Str("resource", resource).Logger(),
	}
}

// Next advances to the next non-empty page. It returns false when the walk
// is over, either cleanly or because of an error; check Err afterwards.
// Ceasing to call Next stops all further network activity.
func (w *Walker) Next(ctx context.Context) bool {
	if w.done {
		return false
	}

	var fetchURL string
	var params url.Values

	if !w.started {
		w.started = true
		fetchURL = w.startURL
		params = w.params
	} else {
		if !w.follow {
			w.done = true
			return false
		}
		next := w.page.NextURL()
		if next == "" {
			w.done = true
			return false
		}
		// Next links are self-contained; no extra query merging.
		fetchURL = next
	}

	page, err := w.fetch(ctx, fetchURL, params)
	if err != nil {
		w.done = true
		w.err = err
		return false
	}
	if page == nil {
		// Malformed follow-up page: treated as terminal, not an error.
		w.done = true
		return false
	}

	items := page.Items(w.resource)
	w.logger.Debug().Int("items", len(items)).Msg("Got page")

	if len(items) == 0 {
		w.done = true
		return false
	}

	pagesTotal.WithLabelValues(w.resource).Inc()
	pageItemsTotal.WithLabelValues(w.resource).Add(float64(len(items)))

	w.page = page
	return true
}

// Page returns the page accepted by the last successful Next call.
func (w *Walker) Page() *Page {
	return w.page
}

// Err returns the error that ended the walk, if any.
func (w *Walker) Err() error {
	return w.err
}

// fetch GETs one page and decodes it. A decode failure on the first page
// returns *MalformedPageError; on later pages it returns (nil, nil) so the
// walk can end cleanly.
func (w *Walker) fetch(ctx context.Context, fetchURL string, params url.Values) (*Page, error) {
	firstPage := w.page == nil

	start := time.Now()
	resp, err := w.session.Get(ctx, fetchURL, params)
	pageFetchDuration.WithLabelValues(w.resource).Observe(time.Since(start).Seconds())

	if err != nil {
		transportErrorsTotal.WithLabelValues(w.resource).Inc()
		w.logger.Error().Err(err).Str("url", fetchURL).Msg("Page fetch failed")
		return nil, &TransportError{URL: fetchURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		transportErrorsTotal.WithLabelValues(w.resource).Inc()
		w.logger.Warn().
			Str("url", fetchURL).
			Int("status", resp.StatusCode).
			Msg("Page fetch returned non-success status")
		return nil, &TransportError{
			URL:        fetchURL,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Header:     resp.Header.Clone(),
			Body:       body,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		transportErrorsTotal.WithLabelValues(w.resource).Inc()
		return nil, &TransportError{URL: fetchURL, Err: fmt.Errorf("read body: %w", err)}
	}

	var page Page
	if err := json.Unmarshal(body, &page); err != nil {
		if firstPage {
			return nil, &MalformedPageError{URL: fetchURL, Err: err}
		}
		w.logger.Warn().Err(err).Str("url", fetchURL).Msg("Malformed page, ending walk")
		return nil, nil
	}

	return &page, nil
}
