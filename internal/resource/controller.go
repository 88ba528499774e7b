package resource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"store_admin/internal/models"
	"store_admin/internal/pkg/apierr"
	"store_admin/internal/pkg/debounce"
	"store_admin/internal/pkg/logger"
	"store_admin/internal/pkg/metrics"
)

//go:generate mockgen -source=controller.go -destination=mocks/mock_fetcher.go -package=mocks

// Fetcher loads one page of a collection.
type Fetcher interface {
	List(ctx context.Context, resource string, q models.ListQuery) (*models.RawPage, error)
}

// DefaultDebounce is the quiet period before a search term is sent upstream.
const DefaultDebounce = 500 * time.Millisecond

// Options tune a Controller. Zero values fall back to the descriptor defaults.
type Options struct {
	Debounce      time.Duration
	Clock         debounce.Clock
	ViewMode      models.ViewMode
	SortKey       string
	SortDirection models.SortDirection
	Log           *logger.Logger
	Metrics       *metrics.Collector
}

// View is a point-in-time copy of a controller's state.
type View struct {
	Resource    string            `json:"resource"`
	Query       models.QueryState `json:"query"`
	ViewMode    models.ViewMode   `json:"viewMode"`
	Items       []models.Entity   `json:"items"`
	CurrentPage int               `json:"currentPage"`
	LastPage    int               `json:"lastPage"`
	Total       int               `json:"total"`
	IsLoading   bool              `json:"isLoading"`
	Error       string            `json:"error,omitempty"`
	Err         error             `json:"-"`
}

// Controller owns the query state of one collection and the page it produced.
// Every fetch carries a sequence number and only the latest one may write.
type Controller struct {
	desc     Descriptor
	fetcher  Fetcher
	log      *logger.Logger
	metrics  *metrics.Collector
	debounce *debounce.Debouncer

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	query    models.QueryState
	viewMode models.ViewMode
	seq      uint64
	loading  bool
	err      error

	loaded      []models.Entity
	items       []models.Entity
	itemsQuery  models.ListQuery
	hasItems    bool
	currentPage int
	lastPage    int
	total       int
}

// New creates the controller and issues the first fetch.
func New(ctx context.Context, desc Descriptor, fetcher Fetcher, opts Options) *Controller {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.ViewMode == "" {
		opts.ViewMode = models.ViewGrid
	}
	sortKey, dir := desc.DefaultSortKey, desc.DefaultDirection
	if opts.SortKey != "" {
		sortKey, dir = opts.SortKey, opts.SortDirection
	}
	if dir == "" {
		dir = models.Asc
	}

	ctx, cancel := context.WithCancel(ctx)
	c := &Controller{
		desc:     desc,
		fetcher:  fetcher,
		log:      opts.Log.Component("list", zap.String("resource", desc.Name)),
		metrics:  opts.Metrics,
		debounce: debounce.New(opts.Debounce, opts.Clock),
		ctx:      ctx,
		cancel:   cancel,
		query:    models.QueryState{Page: 1, SortKey: sortKey, SortDirection: dir},
		viewMode: opts.ViewMode,
	}

	c.mu.Lock()
	c.fetchLocked()
	c.mu.Unlock()
	return c
}

func (c *Controller) Resource() string { return c.desc.Name }

// SetSearchTerm records the raw term at once; the term sent upstream follows
// after the debounce period and resets the page to 1.
func (c *Controller) SetSearchTerm(term string) {
	c.mu.Lock()
	c.query.SearchTerm = term
	c.mu.Unlock()

	c.debounce.Trigger(func() { c.commitSearch(term) })
}

func (c *Controller) commitSearch(term string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.query.DebouncedSearchTerm == term {
		return
	}
	c.query.DebouncedSearchTerm = term
	c.query.Page = 1
	c.fetchLocked()
}

// SetPage moves to page p (1-based).
func (c *Controller) SetPage(p int) error {
	if p < 1 {
		return apierr.ClientInputErr("Page must be 1 or greater.", nil)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.query.Page == p {
		return nil
	}
	c.query.Page = p
	c.fetchLocked()
	return nil
}

// SetSort changes the sort key and direction. Server-sorted collections
// refetch; the others re-sort the loaded page.
func (c *Controller) SetSort(key string, dir models.SortDirection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setSortLocked(key, dir)
}

// ToggleSort flips the direction when key is already active, otherwise sorts
// ascending by key.
func (c *Controller) ToggleSort(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	dir := models.Asc
	if c.query.SortKey == key {
		dir = c.query.SortDirection.Toggle()
	}
	c.setSortLocked(key, dir)
}

func (c *Controller) setSortLocked(key string, dir models.SortDirection) {
	if c.query.SortKey == key && c.query.SortDirection == dir {
		return
	}
	c.query.SortKey, c.query.SortDirection = key, dir
	if c.desc.ServerSort {
		c.fetchLocked()
		return
	}
	c.items = SortEntities(c.loaded, key, dir)
}

func (c *Controller) SetViewMode(mode models.ViewMode) {
	c.mu.Lock()
	c.viewMode = mode
	c.mu.Unlock()
}

// Update applies a partial query change. A search term goes through the debouncer.
func (c *Controller) Update(u models.QueryUpdate) error {
	if u.ViewMode != nil {
		mode, ok := models.ParseViewMode(*u.ViewMode)
		if !ok {
			return apierr.ClientInputErr(fmt.Sprintf("Unknown view mode %q.", *u.ViewMode), nil)
		}
		c.SetViewMode(mode)
	}
	if u.SortKey != nil || u.SortDirection != nil {
		current := c.Snapshot().Query
		key, dir := current.SortKey, current.SortDirection
		if u.SortKey != nil {
			key = *u.SortKey
		}
		if u.SortDirection != nil {
			dir = models.ParseSortDirection(*u.SortDirection)
		}
		c.SetSort(key, dir)
	}
	if u.ToggleSort != nil {
		c.ToggleSort(*u.ToggleSort)
	}
	if u.Page != nil {
		if err := c.SetPage(*u.Page); err != nil {
			return err
		}
	}
	if u.SearchTerm != nil {
		c.SetSearchTerm(*u.SearchTerm)
	}
	return nil
}

// Reload revalidates the current query. The returned channel is closed once
// that fetch has finished, whether or not it was allowed to write.
func (c *Controller) Reload() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetchLocked()
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		Resource:    c.desc.Name,
		Query:       c.query,
		ViewMode:    c.viewMode,
		Items:       append([]models.Entity(nil), c.items...),
		CurrentPage: c.currentPage,
		LastPage:    c.lastPage,
		Total:       c.total,
		IsLoading:   c.loading,
		Err:         c.err,
	}
	if c.err != nil {
		v.Error = apierr.PublicMessage(c.err)
	}
	return v
}

// Close stops the debouncer and abandons in-flight fetches.
func (c *Controller) Close() {
	c.debounce.Stop()
	c.cancel()
}

func (c *Controller) listQueryLocked() models.ListQuery {
	q := models.ListQuery{Page: c.query.Page, Search: c.query.DebouncedSearchTerm}
	if c.desc.ServerSort && c.query.SortKey != "" {
		q.Sort, q.Direction = c.query.SortKey, c.query.SortDirection
	}
	return q
}

func (c *Controller) fetchLocked() <-chan struct{} {
	done := make(chan struct{})
	if c.ctx.Err() != nil {
		close(done)
		return done
	}

	c.seq++
	seq := c.seq
	q := c.listQueryLocked()
	c.loading = true

	go func() {
		defer close(done)
		page, err := c.fetcher.List(c.ctx, c.desc.Name, q)
		c.apply(seq, q, page, err)
	}()
	return done
}

func (c *Controller) apply(seq uint64, q models.ListQuery, page *models.RawPage, err error) {
	var entities []models.Entity
	if err == nil {
		entities, err = c.decode(page)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if seq != c.seq || c.ctx.Err() != nil {
		c.metrics.StaleResponse(c.desc.Name)
		c.log.Debug("discarding stale response", zap.Uint64("seq", seq), zap.Uint64("latest", c.seq))
		return
	}
	if apierr.IsAuth(err) {
		return
	}

	c.loading = false
	if err != nil {
		c.log.Warn("list request failed", zap.Int("page", q.Page), zap.Error(err))
		c.err = err
		if c.hasItems && c.itemsQuery != q {
			c.clearLocked()
		}
		return
	}

	c.err = nil
	c.loaded = entities
	if c.desc.ServerSort {
		c.items = append([]models.Entity(nil), entities...)
	} else {
		c.items = SortEntities(entities, c.query.SortKey, c.query.SortDirection)
	}
	c.itemsQuery = q
	c.hasItems = true
	c.currentPage, c.lastPage, c.total = page.CurrentPage, page.LastPage, page.Total
}

func (c *Controller) clearLocked() {
	c.loaded, c.items = nil, nil
	c.hasItems = false
	c.itemsQuery = models.ListQuery{}
	c.currentPage, c.lastPage, c.total = 0, 0, 0
}

func (c *Controller) decode(page *models.RawPage) ([]models.Entity, error) {
	entities := make([]models.Entity, 0, len(page.Items))
	for i, raw := range page.Items {
		e, err := c.desc.Decode(raw)
		if err != nil {
			return nil, apierr.NetworkErr(0, fmt.Errorf("decoding %s item %d: %w", c.desc.Name, i, err))
		}
		entities = append(entities, e)
	}
	return entities, nil
}
