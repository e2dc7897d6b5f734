// Package enrich attaches shopping links to every item of a batch of outfits.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/raushankrgupta/fitly-shop-links/canonical"
	"github.com/raushankrgupta/fitly-shop-links/metrics"
	"github.com/raushankrgupta/fitly-shop-links/models"
	"github.com/raushankrgupta/fitly-shop-links/search"
	"github.com/raushankrgupta/fitly-shop-links/store"
	"github.com/raushankrgupta/fitly-shop-links/utils"
)

// ErrPersistence wraps a LinkStore failure. It is the only error an item can escalate to.
var ErrPersistence = errors.New("persisting links failed")

const DefaultConcurrency = 4

// Inspector fills best-effort fields of a link. It must return the input on failure.
type Inspector interface {
	Inspect(ctx context.Context, link models.ProductLink) models.ProductLink
}

type Options struct {
	// Concurrency caps simultaneous searches across all Enrich calls.
	Concurrency int
	// MaxLinks caps links kept per item; <= 0 keeps all.
	MaxLinks int
}

// Orchestrator fans item searches out under one shared limiter and persists the results.
type Orchestrator struct {
	provider    search.Provider
	store       store.LinkStore
	sem         *semaphore.Weighted
	concurrency int
	maxLinks    int
	inspector   Inspector
	logger      *utils.Logger
	metrics     *metrics.Metrics
}

func New(provider search.Provider, links store.LinkStore, opts Options, logger *utils.Logger, m *metrics.Metrics) *Orchestrator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = utils.NopLogger()
	}
	return &Orchestrator{
		provider:    provider,
		store:       links,
		sem:         semaphore.NewWeighted(int64(opts.Concurrency)),
		concurrency: opts.Concurrency,
		maxLinks:    opts.MaxLinks,
		logger:      logger.With("component", "enrich"),
		metrics:     m,
	}
}

// WithInspector enables per-link inspection inside each item's limiter slot.
func (o *Orchestrator) WithInspector(i Inspector) *Orchestrator {
	o.inspector = i
	return o
}

type itemTask struct {
	outfitID string
	item     models.OutfitItem
}

// Enrich searches every named item, persists each item's links and returns them
// grouped by outfit in input order. A failed search only empties that item's links.
func (o *Orchestrator) Enrich(ctx context.Context, outfits []models.OutfitCard, owner models.Owner) ([]models.OutfitProducts, error) {
	outfits, err := models.NormalizeOutfits(outfits)
	if err != nil {
		return nil, err
	}

	tasks, byOutfit := o.plan(outfits)
	results := make([][]models.ProductLink, len(tasks))

	var wg sync.WaitGroup
	for i := range tasks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = o.searchItem(ctx, tasks[i])
		}(i)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := o.persist(ctx, tasks, results, owner); err != nil {
		o.logger.Error("persisting enrichment failed", "error", err, "items", len(tasks))
		return nil, err
	}

	out := make([]models.OutfitProducts, 0, len(outfits))
	for _, outfit := range outfits {
		group := models.OutfitProducts{OutfitID: outfit.ID, Products: []models.ItemProducts{}}
		for _, i := range byOutfit[outfit.ID] {
			group.Products = append(group.Products, models.ItemProducts{
				ItemName: tasks[i].item.Name,
				Links:    results[i],
			})
		}
		out = append(out, group)
	}
	return out, nil
}

// plan flattens outfits into search tasks, skipping blank names and repeated
// (outfit, item) pairs. byOutfit maps an outfit id to its task indexes in item order.
func (o *Orchestrator) plan(outfits []models.OutfitCard) ([]itemTask, map[string][]int) {
	var tasks []itemTask
	byOutfit := make(map[string][]int, len(outfits))
	seen := make(map[[2]string]bool)

	for _, outfit := range outfits {
		for pos, item := range outfit.Items {
			if !item.HasName() {
				o.logger.Warn("skipping item without name", "outfit_id", outfit.ID, "position", pos)
				o.metrics.Item("skipped")
				continue
			}
			key := [2]string{outfit.ID, item.Name}
			if seen[key] {
				o.logger.Debug("skipping repeated item", "outfit_id", outfit.ID, "item_name", item.Name)
				continue
			}
			seen[key] = true
			byOutfit[outfit.ID] = append(byOutfit[outfit.ID], len(tasks))
			tasks = append(tasks, itemTask{outfitID: outfit.ID, item: item})
		}
	}
	return tasks, byOutfit
}

// searchItem never fails; any error yields an empty, non-nil link list.
func (o *Orchestrator) searchItem(ctx context.Context, task itemTask) []models.ProductLink {
	empty := []models.ProductLink{}
	if err := o.sem.Acquire(ctx, 1); err != nil {
		return empty
	}
	o.metrics.SlotAcquired()
	defer func() {
		o.metrics.SlotReleased()
		o.sem.Release(1)
	}()

	query := search.BuildQuery(task.item.Brand, task.item.Name)
	links, err := o.provider.Search(ctx, query, search.BandFor(task.item.Price))
	if err != nil {
		if ctx.Err() == nil {
			o.logger.Warn("item search failed",
				"outfit_id", task.outfitID,
				"item_name", task.item.Name,
				"query", query,
				"error", err,
			)
		}
		o.metrics.Item("failed")
		return empty
	}

	links = canonical.Dedupe(links, o.maxLinks)
	if o.inspector != nil {
		for i := range links {
			links[i] = o.inspector.Inspect(ctx, links[i])
		}
	}

	if len(links) == 0 {
		o.metrics.Item("empty")
	} else {
		o.metrics.Item("linked")
	}
	return links
}

func (o *Orchestrator) persist(ctx context.Context, tasks []itemTask, results [][]models.ProductLink, owner models.Owner) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i := range tasks {
		task, links := tasks[i], results[i]
		g.Go(func() error {
			if err := o.store.UpsertItemLinks(gctx, task.outfitID, task.item.Name, owner, links); err != nil {
				return fmt.Errorf("%w: %w", ErrPersistence, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// LinkedItems counts items that ended with at least one link.
func LinkedItems(groups []models.OutfitProducts) (items, linked int) {
	for _, g := range groups {
		for _, p := range g.Products {
			items++
			if len(p.Links) > 0 {
				linked++
			}
		}
	}
	return items, linked
}
