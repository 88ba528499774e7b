// Package search aggregates a quick search over several collections: one
// debounced term fans out to every source at once, and the joined results
// replace the previous ones in a single update.
package search

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"store_admin/internal/models"
	"store_admin/internal/pkg/apierr"
	"store_admin/internal/pkg/debounce"
	"store_admin/internal/pkg/logger"
	"store_admin/internal/pkg/metrics"
	"store_admin/internal/resource"
)

const (
	// MinTermLength is the shortest term (in characters) that is sent upstream.
	MinTermLength = 2
	// PerSource caps how many hits each category shows.
	PerSource = 4
)

// Source is one searched collection.
type Source struct {
	Resource string `json:"resource"`
	Label    string `json:"label"`
}

// DefaultSources are searched in this order.
var DefaultSources = []Source{
	{Resource: models.Products, Label: "Products"},
	{Resource: models.Categories, Label: "Categories"},
	{Resource: models.Brands, Label: "Brands"},
	{Resource: models.Users, Label: "Users"},
}

type Item struct {
	Resource string `json:"resource"`
	ID       string `json:"id"`
	Label    string `json:"label"`
	Path     string `json:"path"`
}

type Group struct {
	Resource   string `json:"resource"`
	Label      string `json:"label"`
	Items      []Item `json:"items"`
	Total      int    `json:"total"`
	SeeAllPath string `json:"seeAllPath"`
	Error      string `json:"error,omitempty"`
}

type State struct {
	Term     string  `json:"term"`
	Open     bool    `json:"open"`
	Loading  bool    `json:"loading"`
	Groups   []Group `json:"groups"`
	Selected int     `json:"selected"`
}

// Key is a navigation key.
type Key string

const (
	KeyUp     Key = "up"
	KeyDown   Key = "down"
	KeyEnter  Key = "enter"
	KeyEscape Key = "escape"
)

func ParseKey(s string) (Key, bool) {
	switch k := Key(strings.ToLower(strings.TrimSpace(s))); k {
	case KeyUp, KeyDown, KeyEnter, KeyEscape:
		return k, true
	}
	return "", false
}

type Options struct {
	Debounce time.Duration
	Clock    debounce.Clock
	Log      *logger.Logger
	Metrics  *metrics.Collector
}

// Aggregator is the quick-search state of one session.
type Aggregator struct {
	fetcher  resource.Fetcher
	sources  []Source
	log      *logger.Logger
	metrics  *metrics.Collector
	debounce *debounce.Debouncer

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	seq      uint64
	term     string
	open     bool
	loading  bool
	groups   []Group
	selected int
}

func New(ctx context.Context, fetcher resource.Fetcher, sources []Source, opts Options) *Aggregator {
	if len(sources) == 0 {
		sources = DefaultSources
	}
	if opts.Debounce <= 0 {
		opts.Debounce = resource.DefaultDebounce
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Aggregator{
		fetcher:  fetcher,
		sources:  sources,
		log:      opts.Log.Component("search"),
		metrics:  opts.Metrics,
		debounce: debounce.New(opts.Debounce, opts.Clock),
		ctx:      ctx,
		cancel:   cancel,
		selected: -1,
	}
}

// Type records the term. Terms shorter than MinTermLength clear the results
// without querying; longer ones are searched once the debounce period passes.
func (a *Aggregator) Type(term string) {
	trimmed := strings.TrimSpace(term)
	short := utf8.RuneCountInString(trimmed) < MinTermLength
	if short {
		a.debounce.Cancel()
	}

	a.mu.Lock()
	a.term = term
	a.open = true
	if short {
		a.seq++
		a.loading = false
		a.groups = nil
		a.selected = -1
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()

	a.debounce.Trigger(func() { a.run(trimmed) })
}

// run issues one fan-out; only the most recent run may write its results.
func (a *Aggregator) run(term string) {
	a.mu.Lock()
	if a.ctx.Err() != nil {
		a.mu.Unlock()
		return
	}
	a.seq++
	seq := a.seq
	a.loading = true
	a.mu.Unlock()

	go func() {
		groups, err := a.fanOut(term)
		a.apply(seq, groups, err)
	}()
}

func (a *Aggregator) fanOut(term string) ([]Group, error) {
	groups := make([]Group, len(a.sources))
	g, ctx := errgroup.WithContext(a.ctx)
	for i, src := range a.sources {
		i, src := i, src
		g.Go(func() error {
			group := Group{
				Resource:   src.Resource,
				Label:      src.Label,
				SeeAllPath: "/" + src.Resource + "?search=" + url.QueryEscape(term),
			}
			page, err := a.fetcher.List(ctx, src.Resource, models.ListQuery{Page: 1, Search: term})
			if err == nil {
				group.Items, group.Total, err = capItems(src.Resource, page)
			}
			switch {
			case apierr.IsAuth(err):
				return err
			case err != nil:
				a.log.Warn("search source failed", zap.String("resource", src.Resource), zap.Error(err))
				group.Error = apierr.PublicMessage(err)
			}
			groups[i] = group
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return groups, nil
}

func capItems(res string, page *models.RawPage) ([]Item, int, error) {
	desc, ok := resource.Lookup(res)
	if !ok {
		return nil, 0, apierr.ClientInputErr("Unknown search source "+res+".", nil)
	}
	items := make([]Item, 0, PerSource)
	for _, raw := range page.Items {
		if len(items) == PerSource {
			break
		}
		e, err := desc.Decode(raw)
		if err != nil {
			return nil, 0, apierr.NetworkErr(0, err)
		}
		items = append(items, Item{
			Resource: res,
			ID:       e.Key(),
			Label:    e.Label(),
			Path:     "/" + res + "/" + url.PathEscape(e.Key()),
		})
	}
	total := page.Total
	if total < len(page.Items) {
		total = len(page.Items)
	}
	return items, total, nil
}

func (a *Aggregator) apply(seq uint64, groups []Group, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if seq != a.seq || a.ctx.Err() != nil {
		a.metrics.StaleResponse("search")
		return
	}
	if apierr.IsAuth(err) {
		return
	}
	a.loading = false
	a.groups = groups
	a.selected = -1
}

// Key moves the selection through the flattened, capped hits in source order.
// Movement clamps at both ends. Enter returns the selected hit's path and
// closes the results; Escape closes them and clears the selection.
func (a *Aggregator) Key(k Key) (State, string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	flat := a.flatLocked()
	var path string
	switch k {
	case KeyDown:
		if len(flat) > 0 {
			a.open = true
			if a.selected < len(flat)-1 {
				a.selected++
			}
		}
	case KeyUp:
		if a.selected > 0 {
			a.selected--
		}
	case KeyEnter:
		if a.selected >= 0 && a.selected < len(flat) {
			path = flat[a.selected].Path
			a.open = false
			a.selected = -1
		}
	case KeyEscape:
		a.open = false
		a.selected = -1
	}
	return a.stateLocked(), path
}

func (a *Aggregator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stateLocked()
}

// Close stops the debouncer and abandons in-flight searches.
func (a *Aggregator) Close() {
	a.debounce.Stop()
	a.cancel()
}

func (a *Aggregator) flatLocked() []Item {
	var flat []Item
	for _, g := range a.groups {
		flat = append(flat, g.Items...)
	}
	return flat
}

func (a *Aggregator) stateLocked() State {
	groups := make([]Group, len(a.groups))
	for i, g := range a.groups {
		g.Items = append([]Item(nil), g.Items...)
		groups[i] = g
	}
	return State{
		Term:     a.term,
		Open:     a.open,
		Loading:  a.loading,
		Groups:   groups,
		Selected: a.selected,
	}
}
