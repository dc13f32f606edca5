// Package crawler drives harvest runs: it renders listing pages, extracts
// product records, skips known links and falls back to a site's demo
// dataset when the live path fails.
package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"sjsage522/harvester/config"
	"sjsage522/harvester/helpers"
	"sjsage522/harvester/internal/product"
	"sjsage522/harvester/internal/render"
	"sjsage522/harvester/internal/site"
	"sjsage522/harvester/internal/store"
	"sjsage522/harvester/logger"
	herrors "sjsage522/harvester/pkg/errors"
	"sjsage522/harvester/services/publisher"
)

// Options bounds and paces live harvesting
type Options struct {
	MaxPages        int
	MaxItemsPerPage int
	PageLoadTimeout time.Duration
	PageDelay       time.Duration
	ItemDelay       time.Duration
}

// OptionsFromConfig reads the harvest options from cfg
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MaxPages:        cfg.MaxPages,
		MaxItemsPerPage: cfg.MaxItemsPerPage,
		PageLoadTimeout: cfg.PageLoadTimeout,
		PageDelay:       cfg.PageDelay,
		ItemDelay:       cfg.ItemDelay,
	}
}

// Harvester runs harvests one at a time. It owns neither the renderer nor
// the store; callers close them.
type Harvester struct {
	registry  *site.Registry
	status    *site.Status
	prober    Prober
	store     store.Store
	renderer  render.Renderer
	publisher publisher.Publisher
	opts      Options
}

// NewHarvester creates a harvester. prober, renderer and pub may be nil:
// without a prober the last recorded status gates each run, without a
// renderer every run is served from demo data, and without a publisher
// nothing is published.
func NewHarvester(
	registry *site.Registry,
	status *site.Status,
	prober Prober,
	st store.Store,
	renderer render.Renderer,
	pub publisher.Publisher,
	opts Options,
) *Harvester {
	return &Harvester{
		registry:  registry,
		status:    status,
		prober:    prober,
		store:     st,
		renderer:  renderer,
		publisher: pub,
		opts:      opts,
	}
}

// run is the working set of one harvest
type run struct {
	def       site.Definition
	extractor *Extractor
	dedup     *Deduplicator
	ctl       *Controller
	result    *Result
	log       *logger.Logger
}

// HarvestCategory harvests the category at a 1-based ordinal of the site
func (h *Harvester) HarvestCategory(ctx context.Context, siteID string, ordinal int) (Result, error) {
	label, err := h.registry.CategoryAt(siteID, ordinal)
	if err != nil {
		return Result{Site: siteID}, err
	}
	return h.Harvest(ctx, siteID, label)
}

// HarvestAll harvests every category of every site, one site per run
func (h *Harvester) HarvestAll(ctx context.Context) ([]Result, error) {
	var results []Result
	var errs []error
	for _, id := range h.registry.IDs() {
		res, err := h.Harvest(ctx, id)
		results = append(results, res)
		if err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			errs = append(errs, err)
		}
	}
	return results, errors.Join(errs...)
}

// Harvest runs one harvest over the given categories of a site, or over all
// of its categories when none are given. Only an unknown site or category,
// a store that cannot be read at start, or cancellation fail the run.
func (h *Harvester) Harvest(ctx context.Context, siteID string, categories ...string) (Result, error) {
	def, err := h.registry.Definition(siteID)
	if err != nil {
		return Result{Site: siteID}, err
	}
	if len(categories) == 0 {
		categories, _ = h.registry.Categories(siteID)
	}
	for _, c := range categories {
		if _, ok := def.CategoryPath(c); !ok {
			return Result{Site: siteID}, herrors.NewUnknownCategory(siteID, c)
		}
	}

	result := Result{
		RunID:      uuid.NewString(),
		Site:       def.ID,
		Categories: categories,
	}
	log := logger.ForHarvest(result.RunID, def.ID)

	dedup, err := LoadDeduplicator(ctx, h.store, def.Name)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load known links")
		return result, err
	}

	r := &run{
		def:       def,
		extractor: NewExtractor(def),
		dedup:     dedup,
		ctl:       h.initialState(ctx, def),
		result:    &result,
		log:       log,
	}
	log.Info().
		Strs("categories", categories).
		Str("mode", string(r.ctl.Mode())).
		Str("reason", string(r.ctl.Reason())).
		Int("known", dedup.Known()).
		Msg("Harvest started")

	start := time.Now()
	for _, category := range categories {
		if err := ctx.Err(); err != nil {
			return h.finish(r, start), err
		}
		if r.ctl.Live() {
			if err := h.harvestLive(ctx, r, category); err != nil {
				return h.finish(r, start), err
			}
		}
		if !r.ctl.Live() {
			if err := h.replayDemo(ctx, r, category); err != nil {
				return h.finish(r, start), err
			}
		}
	}

	return h.finish(r, start), nil
}

func (h *Harvester) initialState(ctx context.Context, def site.Definition) *Controller {
	if h.renderer == nil {
		return NewController(false, ReasonNoRenderer)
	}
	accessible := h.status.Accessible(def.ID)
	if h.prober != nil {
		accessible = h.prober.Probe(ctx, def)
	}
	return NewController(accessible, ReasonUnreachable)
}

func (h *Harvester) finish(r *run, start time.Time) Result {
	r.result.Mode = r.ctl.Mode()
	r.result.Reason = r.ctl.Reason()
	r.result.Escalated = r.ctl.Escalated()

	r.log.Info().
		Int("added", r.result.Added).
		Int("live_added", r.result.LiveAdded).
		Int("demo_added", r.result.DemoAdded).
		Int("skipped", r.result.Skipped).
		Int("dropped", r.result.Dropped).
		Str("mode", string(r.result.Mode)).
		Bool("escalated", r.result.Escalated).
		Dur("elapsed", time.Since(start)).
		Msg("Harvest finished")
	return *r.result
}

func (h *Harvester) escalate(r *run, reason Reason, err error) {
	if r.ctl.Escalate(reason) {
		r.log.Warn().Err(err).Str("reason", string(reason)).Msg("Switching to demo mode")
	}
}

// harvestLive walks the pages of one category until the page bound is hit
// or the run escalates. It only returns an error on cancellation.
func (h *Harvester) harvestLive(ctx context.Context, r *run, category string) error {
	for page := 1; page <= h.opts.MaxPages; page++ {
		url, err := r.def.PageURL(category, page)
		if err != nil {
			return err
		}
		log := r.log.WithStr("category", category).WithField("page", page)
		log.Debug().Str("url", url).Msg("Loading page")

		if err := h.renderer.Navigate(ctx, url, h.opts.PageLoadTimeout); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			switch herrors.TypeOf(err) {
			case herrors.ErrorTypeRenderTimeout:
				log.Warn().Err(err).Msg("Page timed out, skipping")
				if err := helpers.Sleep(ctx, h.opts.PageDelay); err != nil {
					return err
				}
				continue
			case herrors.ErrorTypeRateLimit:
				h.escalate(r, ReasonRateLimited, err)
			default:
				h.escalate(r, ReasonRenderFailure, err)
			}
			return nil
		}

		containers, err := h.renderer.FindAll(r.def.Selectors.Container)
		if err != nil {
			h.escalate(r, ReasonRenderFailure, err)
			return nil
		}
		if len(containers) == 0 {
			h.escalate(r, ReasonNoContainers, nil)
			return nil
		}
		log.Debug().Int("containers", len(containers)).Msg("Found product containers")

		if h.opts.MaxItemsPerPage > 0 && len(containers) > h.opts.MaxItemsPerPage {
			containers = containers[:h.opts.MaxItemsPerPage]
		}

		for i, el := range containers {
			rec, err := r.extractor.Extract(el)
			if err != nil {
				r.result.Dropped++
				log.Debug().Err(err).Int("index", i).Msg("Dropping container")
				continue
			}
			rec.Category = category
			rec.Page = page

			inserted, err := h.accept(ctx, r, &rec, ModeLive)
			if err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
			if inserted {
				if err := helpers.Sleep(ctx, h.opts.ItemDelay); err != nil {
					return err
				}
			}
		}

		if err := helpers.Sleep(ctx, h.opts.PageDelay); err != nil {
			return err
		}
	}
	return nil
}

// replayDemo feeds the site's demo dataset through the same dedup path as
// live records
func (h *Harvester) replayDemo(ctx context.Context, r *run, category string) error {
	records := demoRecords(h.registry.Demo(r.def.ID), r.def.Name, category)
	r.log.Debug().Str("category", category).Int("records", len(records)).Msg("Replaying demo dataset")

	for i := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := h.accept(ctx, r, &records[i], ModeDemo); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

// accept stores rec if its link is new and publishes it. Store errors are
// logged and returned; they never stop the run.
func (h *Harvester) accept(ctx context.Context, r *run, rec *product.Record, mode Mode) (bool, error) {
	if !r.dedup.IsNew(rec.Link) {
		r.result.Skipped++
		return false, nil
	}

	outcome, err := r.dedup.Accept(ctx, rec)
	if err != nil {
		r.log.Error().Err(err).Str("link", rec.Link).Msg("Failed to store record")
		return false, err
	}
	if outcome == Skipped {
		r.result.Skipped++
		r.log.Debug().Err(herrors.NewStoreConflict(r.def.ID, rec.Link)).Msg("Link already stored")
		return false, nil
	}

	r.result.Added++
	if mode == ModeLive {
		r.result.LiveAdded++
	} else {
		r.result.DemoAdded++
	}
	r.log.Info().
		Str("mode", string(mode)).
		Str("name", rec.Name).
		Str("price", rec.Price).
		Str("quantity", rec.Quantity).
		Msg("Record added")

	h.publish(r, rec)
	return true, nil
}

func (h *Harvester) publish(r *run, rec *product.Record) {
	if h.publisher == nil {
		return
	}
	data, err := json.Marshal(rec)
	if err != nil {
		r.log.Error().Err(err).Msg("Failed to encode record")
		return
	}
	if err := h.publisher.Publish(r.def.ID, data); err != nil {
		r.log.Warn().Err(herrors.NewPublisher(r.def.ID, "failed to publish record", err)).Msg("Publish failed")
	}
}
