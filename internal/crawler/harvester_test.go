package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/harvester/internal/product"
	"sjsage522/harvester/internal/site"
	"sjsage522/harvester/internal/store"
	herrors "sjsage522/harvester/pkg/errors"
)

const (
	proteinP1  = "https://shop.example/c/protein"
	proteinP2  = "https://shop.example/c/protein?page=2"
	creatineP1 = "https://shop.example/search?q=creatine"
	creatineP2 = "https://shop.example/search?q=creatine&page=2"
)

type fixture struct {
	registry  *site.Registry
	status    *site.Status
	prober    *MockProber
	store     store.Store
	renderer  *MockRenderer
	publisher *MockPublisher
	opts      Options
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	registry, err := site.Load([]byte(testCatalog))
	require.NoError(t, err)

	return &fixture{
		registry:  registry,
		status:    site.NewStatus(),
		prober:    &MockProber{up: map[string]bool{"shop": true, "other": true}},
		store:     newStore(t),
		renderer:  NewMockRenderer(),
		publisher: NewMockPublisher(),
		opts:      Options{MaxPages: 2, MaxItemsPerPage: 10},
	}
}

func (f *fixture) harvester() *Harvester {
	return NewHarvester(f.registry, f.status, f.prober, f.store, f.renderer, f.publisher, f.opts)
}

func (f *fixture) stored(t *testing.T, website string) []product.Record {
	t.Helper()
	recs, err := f.store.Products(context.Background(), store.Query{Website: website})
	require.NoError(t, err)
	return recs
}

func TestHarvestLiveScenario(t *testing.T) {
	f := newFixture(t)
	f.opts.MaxPages = 1
	f.renderer.pages[proteinP1] = page(
		item("/p/1", "Whey 2kg", "Rs. 1"),
		item("/p/2", "Creatine 300g", "Rs. 2"),
		item("/p/3", "Caps 90 capsules", "Rs. 3"),
	)

	res, err := f.harvester().Harvest(context.Background(), "shop", "protein")
	require.NoError(t, err)

	assert.Equal(t, 3, res.Added)
	assert.Equal(t, 3, res.LiveAdded)
	assert.Zero(t, res.DemoAdded)
	assert.Equal(t, ModeLive, res.Mode)
	assert.False(t, res.Escalated)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, []string{"protein"}, res.Categories)

	recs := f.stored(t, "Shop")
	require.Len(t, recs, 3)
	assert.Equal(t, "https://shop.example/p/1", recs[0].Link)
	assert.Equal(t, "protein", recs[0].Category)
	assert.Equal(t, 1, recs[0].Page)
	assert.Equal(t, "300 g", recs[1].Quantity)
	assert.Equal(t, 1, f.prober.calls)
}

func TestHarvestIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.renderer.pages[proteinP1] = page(item("/p/1", "A", "1"), item("/p/2", "B", "2"))
	f.renderer.pages[proteinP2] = page(item("/p/3", "C", "3"))

	h := f.harvester()
	first, err := h.Harvest(context.Background(), "shop", "protein")
	require.NoError(t, err)
	assert.Equal(t, 3, first.Added)

	second, err := h.Harvest(context.Background(), "shop", "protein")
	require.NoError(t, err)
	assert.Zero(t, second.Added)
	assert.Equal(t, 3, second.Skipped)
	assert.Equal(t, ModeLive, second.Mode)
	assert.NotEqual(t, first.RunID, second.RunID)

	assert.Len(t, f.stored(t, "Shop"), 3)
}

func TestHarvestMissingPriceAndLink(t *testing.T) {
	f := newFixture(t)
	f.opts.MaxPages = 1
	f.renderer.pages[proteinP1] = page(
		item("/p/no-price", "Whey 2kg", ""),
		item("", "No Link 1kg", "Rs. 9"),
	)

	res, err := f.harvester().Harvest(context.Background(), "shop", "protein")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 1, res.Dropped)

	recs := f.stored(t, "Shop")
	require.Len(t, recs, 1)
	assert.Equal(t, product.PriceUnavailable, recs[0].Price)
	assert.Equal(t, "https://shop.example/p/no-price", recs[0].Link)
}

func TestHarvestDuplicateLinksWithinPage(t *testing.T) {
	f := newFixture(t)
	f.opts.MaxPages = 1
	f.renderer.pages[proteinP1] = page(item("/p/1", "A", "1"), item("/p/1", "A again", "1"))

	res, err := f.harvester().Harvest(context.Background(), "shop", "protein")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 1, res.Skipped)
}

func TestHarvestUnreachableUsesDemoOnly(t *testing.T) {
	f := newFixture(t)
	f.prober.up["shop"] = false
	ctx := context.Background()

	// One demo link is already known
	_, err := f.store.Insert(ctx, &product.Record{
		Name: "x", Price: "x", Rating: "x", Category: "x", Website: "Shop",
		Link: "https://shop.example/p/demo-1", Page: 1, Quantity: "x",
	})
	require.NoError(t, err)

	res, err := f.harvester().Harvest(ctx, "shop", "protein")
	require.NoError(t, err)

	assert.Equal(t, ModeDemo, res.Mode)
	assert.Equal(t, ReasonUnreachable, res.Reason)
	assert.False(t, res.Escalated)
	assert.Equal(t, 2, res.Added)
	assert.Equal(t, 2, res.DemoAdded)
	assert.Empty(t, f.renderer.navigated)

	recs := f.stored(t, "Shop")
	require.Len(t, recs, 3)
	assert.Equal(t, "60 capsules", recs[1].Quantity)
	assert.Equal(t, product.PriceUnavailable, recs[1].Price)
	assert.Equal(t, product.UnknownName, recs[2].Name)
	for _, r := range recs[1:] {
		assert.Equal(t, "protein", r.Category)
		assert.Equal(t, 1, r.Page)
	}
}

func TestHarvestHardFailureEscalatesMidRun(t *testing.T) {
	f := newFixture(t)
	f.renderer.pages[proteinP1] = page(item("/p/1", "A 1kg", "1"), item("/p/2", "B 2kg", "2"))
	f.renderer.errs[proteinP2] = herrors.NewRenderFailure("shop.example", "browser crashed", errors.New("target closed"))

	res, err := f.harvester().Harvest(context.Background(), "shop")
	require.NoError(t, err)

	assert.Equal(t, ModeDemo, res.Mode)
	assert.True(t, res.Escalated)
	assert.Equal(t, ReasonRenderFailure, res.Reason)
	assert.Equal(t, 2, res.LiveAdded)
	assert.Equal(t, 3, res.DemoAdded)
	assert.Equal(t, 5, res.Added)

	// No live page is requested after the failure
	assert.Equal(t, []string{proteinP1, proteinP2}, f.renderer.navigated)

	// The second category is served from demo data, all of it already known
	assert.Equal(t, 3, res.Skipped)
}

func TestHarvestTimeoutSkipsPage(t *testing.T) {
	f := newFixture(t)
	f.renderer.errs[proteinP1] = herrors.NewRenderTimeout("shop.example", proteinP1, context.DeadlineExceeded)
	f.renderer.pages[proteinP2] = page(item("/p/9", "Late 5lb", "1"))

	res, err := f.harvester().Harvest(context.Background(), "shop", "protein")
	require.NoError(t, err)

	assert.Equal(t, ModeLive, res.Mode)
	assert.Equal(t, 1, res.LiveAdded)
	assert.Equal(t, []string{proteinP1, proteinP2}, f.renderer.navigated)
}

func TestHarvestPacesPagesAndItems(t *testing.T) {
	f := newFixture(t)
	f.opts.PageDelay = 30 * time.Millisecond
	f.opts.ItemDelay = 20 * time.Millisecond
	f.renderer.pages[proteinP1] = page(item("/p/1", "A", "1"), item("/p/2", "B", "2"))
	f.renderer.pages[proteinP2] = page(item("/p/3", "C", "3"), item("/p/1", "A again", "1"))

	start := time.Now()
	res, err := f.harvester().Harvest(context.Background(), "shop", "protein")
	elapsed := time.Since(start)
	require.NoError(t, err)
	require.Equal(t, 3, res.Added)
	require.Equal(t, 1, res.Skipped)

	// Two pages and three inserts; the skipped duplicate is not paced
	assert.GreaterOrEqual(t, elapsed, 2*f.opts.PageDelay+3*f.opts.ItemDelay)
}

func TestHarvestPacesAfterTimedOutPage(t *testing.T) {
	f := newFixture(t)
	f.opts.PageDelay = 40 * time.Millisecond
	f.renderer.errs[proteinP1] = herrors.NewRenderTimeout("shop.example", proteinP1, context.DeadlineExceeded)
	f.renderer.pages[proteinP2] = page(item("/p/9", "Late", "1"))

	start := time.Now()
	res, err := f.harvester().Harvest(context.Background(), "shop", "protein")
	elapsed := time.Since(start)
	require.NoError(t, err)
	assert.Equal(t, 1, res.LiveAdded)
	assert.GreaterOrEqual(t, elapsed, 2*f.opts.PageDelay)
}

func TestHarvestCancelledDuringItemDelay(t *testing.T) {
	f := newFixture(t)
	f.opts.ItemDelay = time.Hour
	f.renderer.pages[proteinP1] = page(item("/p/1", "A", "1"), item("/p/2", "B", "2"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.publisher.onPublish = cancel

	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := f.harvester().Harvest(ctx, "shop", "protein")
		done <- outcome{res, err}
	}()

	select {
	case out := <-done:
		assert.ErrorIs(t, out.err, context.Canceled)
		assert.Equal(t, 1, out.res.Added)
		assert.Equal(t, ModeLive, out.res.Mode)
		assert.Equal(t, []string{proteinP1}, f.renderer.navigated)
	case <-time.After(5 * time.Second):
		t.Fatal("harvest kept sleeping after cancel")
	}
}

func TestHarvestZeroContainersEscalates(t *testing.T) {
	f := newFixture(t)
	f.renderer.pages[proteinP1] = page(`<div class="captcha">blocked</div>`)

	res, err := f.harvester().Harvest(context.Background(), "shop", "protein")
	require.NoError(t, err)

	assert.Equal(t, ModeDemo, res.Mode)
	assert.Equal(t, ReasonNoContainers, res.Reason)
	assert.Equal(t, 3, res.DemoAdded)
	assert.Equal(t, []string{proteinP1}, f.renderer.navigated)
}

func TestHarvestRateLimitEscalates(t *testing.T) {
	f := newFixture(t)
	f.renderer.errs[proteinP1] = herrors.NewRateLimit("shop.example", 0)

	res, err := f.harvester().Harvest(context.Background(), "shop", "protein")
	require.NoError(t, err)
	assert.Equal(t, ReasonRateLimited, res.Reason)
	assert.True(t, res.Escalated)
}

func TestHarvestBoundsItemsPerPage(t *testing.T) {
	f := newFixture(t)
	f.opts.MaxPages = 1
	f.opts.MaxItemsPerPage = 2
	f.renderer.pages[proteinP1] = page(item("/p/1", "A", "1"), item("/p/2", "B", "2"), item("/p/3", "C", "3"))

	res, err := f.harvester().Harvest(context.Background(), "shop", "protein")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Added)
}

func TestHarvestStoreUnavailable(t *testing.T) {
	f := newFixture(t)
	f.store = &FailingStore{Store: f.store, linksErr: herrors.NewStoreConnection("Shop", "down", errors.New("refused"))}

	res, err := f.harvester().Harvest(context.Background(), "shop", "protein")
	require.Error(t, err)
	assert.True(t, herrors.Is(err, herrors.ErrorTypeStoreConnection))
	assert.Zero(t, res.Added)
	assert.Empty(t, res.Mode, "no path ran")
	assert.Empty(t, res.Reason)
	assert.Empty(t, f.renderer.navigated)
}

func TestHarvestInsertErrorsDoNotStopRun(t *testing.T) {
	f := newFixture(t)
	f.opts.MaxPages = 1
	f.store = &FailingStore{Store: f.store, insertErr: errors.New("disk full")}
	f.renderer.pages[proteinP1] = page(item("/p/1", "A", "1"), item("/p/2", "B", "2"))

	res, err := f.harvester().Harvest(context.Background(), "shop", "protein")
	require.NoError(t, err)
	assert.Zero(t, res.Added)
	assert.Equal(t, ModeLive, res.Mode)
}

func TestHarvestUnknownSiteAndCategory(t *testing.T) {
	f := newFixture(t)
	h := f.harvester()

	_, err := h.Harvest(context.Background(), "ebay")
	assert.True(t, herrors.Is(err, herrors.ErrorTypeUnknownSite))

	_, err = h.Harvest(context.Background(), "shop", "shoes")
	assert.True(t, herrors.Is(err, herrors.ErrorTypeUnknownCategory))

	_, err = h.HarvestCategory(context.Background(), "shop", 3)
	assert.True(t, herrors.Is(err, herrors.ErrorTypeUnknownCategory))

	assert.Zero(t, f.prober.calls)
}

func TestHarvestCategoryByOrdinal(t *testing.T) {
	f := newFixture(t)
	f.opts.MaxPages = 1
	f.renderer.pages[creatineP1] = page(item("/p/c1", "Creatine 250g", "1"))

	res, err := f.harvester().HarvestCategory(context.Background(), "shop", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"creatine"}, res.Categories)
	assert.Equal(t, 1, res.LiveAdded)
	assert.Equal(t, []string{creatineP1}, f.renderer.navigated)
}

func TestHarvestWithoutRenderer(t *testing.T) {
	f := newFixture(t)
	h := NewHarvester(f.registry, f.status, f.prober, f.store, nil, nil, f.opts)

	res, err := h.Harvest(context.Background(), "shop", "protein")
	require.NoError(t, err)
	assert.Equal(t, ReasonNoRenderer, res.Reason)
	assert.Equal(t, 3, res.DemoAdded)
	assert.Zero(t, f.prober.calls)
}

func TestHarvestUsesStatusWithoutProber(t *testing.T) {
	f := newFixture(t)
	f.opts.MaxPages = 1
	f.renderer.pages[proteinP1] = page(item("/p/1", "A", "1"))
	h := NewHarvester(f.registry, f.status, nil, f.store, f.renderer, nil, f.opts)

	res, err := h.Harvest(context.Background(), "shop", "protein")
	require.NoError(t, err)
	assert.Equal(t, ModeDemo, res.Mode, "never probed means unreachable")

	f.status.Set("shop", true)
	res, err = h.Harvest(context.Background(), "shop", "creatine")
	require.NoError(t, err)
	assert.Equal(t, ModeDemo, res.Mode, "creatine page has no containers")
	assert.Equal(t, ReasonNoContainers, res.Reason)
}

func TestHarvestPublishesAddedRecords(t *testing.T) {
	f := newFixture(t)
	f.opts.MaxPages = 1
	f.renderer.pages[proteinP1] = page(item("/p/1", "Whey 2kg", "Rs. 1"))

	_, err := f.harvester().Harvest(context.Background(), "shop", "protein")
	require.NoError(t, err)

	require.Len(t, f.publisher.messages["shop"], 1)
	var got product.Record
	require.NoError(t, json.Unmarshal(f.publisher.messages["shop"][0], &got))
	assert.Equal(t, "https://shop.example/p/1", got.Link)
	assert.Equal(t, "2 kg", got.Quantity)
}

func TestHarvestPublishFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.opts.MaxPages = 1
	f.publisher.err = errors.New("redis down")
	f.renderer.pages[proteinP1] = page(item("/p/1", "A", "1"))

	res, err := f.harvester().Harvest(context.Background(), "shop", "protein")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
}

func TestHarvestCancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.harvester().Harvest(ctx, "shop")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHarvestAll(t *testing.T) {
	f := newFixture(t)
	f.prober.up["shop"] = false

	results, err := f.harvester().HarvestAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "shop", results[0].Site)
	assert.Equal(t, ModeDemo, results[0].Mode)
	assert.Equal(t, 3, results[0].DemoAdded)

	assert.Equal(t, "other", results[1].Site)
	assert.Equal(t, ReasonNoContainers, results[1].Reason)
	assert.Equal(t, 1, results[1].DemoAdded)
	assert.NotEqual(t, results[0].RunID, results[1].RunID)
}
