package publish

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/loomworks/loom/internal/blobstore"
	"github.com/loomworks/loom/internal/ledger"
	"github.com/loomworks/loom/internal/quilt"
	"github.com/loomworks/loom/internal/reconcile"
	"github.com/loomworks/loom/internal/retry"
	"github.com/loomworks/loom/internal/site"
	"github.com/loomworks/loom/pkg/logger"
)

// Gas accounting constants for the budget estimate attached to each
// batch.
const (
	baseGasUnits    = 1000
	perCallGasUnits = 500
)

// Options configures a Publisher.
type Options struct {
	// MaxBundleSize caps how large a stored bundle may grow. Values
	// above the network's theoretical maximum are clamped with a
	// warning.
	MaxBundleSize int64
	// SlotCapacity is the network's per-slot byte capacity.
	SlotCapacity int64
	// Concurrency bounds parallel bundle uploads.
	Concurrency int
	// BatchLimit overrides the per-transaction call budget; zero
	// means the ledger's hard limit.
	BatchLimit int
	// Sender is the publishing address.
	Sender string
	// Backoff bounds retries on every network suspension point.
	Backoff ledger.BackoffConfig
	// DryRun reports the plan without uploading or submitting.
	DryRun bool
}

// Summary is the outcome of one synchronization pass.
type Summary struct {
	SiteID       ledger.ObjectID
	Created      int
	Deleted      int
	Unchanged    int
	Bundles      int
	BytesStored  int64
	Transactions int
	RoutesSet    bool
	Duration     time.Duration
}

// Publisher converges remote site state to the local content tree:
// diff, pack, upload, then a sequence of budgeted ledger transactions.
// One Publisher runs one pass at a time; concurrent Run calls are
// serialized so a new pass never races an in-flight transaction or
// the shared version cache.
type Publisher struct {
	store  blobstore.Store
	client *ledger.Client
	logger logger.Logger
	opts   Options

	mu sync.Mutex
}

func NewPublisher(store blobstore.Store, client *ledger.Client, log logger.Logger, opts Options) *Publisher {
	if log == nil {
		log = &logger.NullLogger{}
	}
	if opts.Backoff.MinDelay == 0 {
		opts.Backoff = ledger.DefaultBackoff
	}
	return &Publisher{store: store, client: client, logger: log, opts: opts}
}

// Run performs one synchronization pass over dir. In create mode
// (no configured object ID) the first transaction creates the site
// object; the returned summary carries its ID.
func (p *Publisher) Run(ctx context.Context, dir string, cfg *site.Config) (*Summary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()

	local, err := site.Scan(dir, cfg)
	if err != nil {
		return nil, err
	}

	remote, remoteManifest, err := p.fetchRemote(ctx, cfg)
	if err != nil {
		return nil, err
	}

	plan := p.reconcile(local, remote, remoteManifest, cfg)

	summary := &Summary{SiteID: ledger.ObjectID(cfg.ObjectID)}
	for _, op := range plan.Ops {
		switch op.Kind {
		case reconcile.OpCreated:
			summary.Created++
		case reconcile.OpDeleted:
			summary.Deleted++
		case reconcile.OpUnchanged:
			summary.Unchanged++
		}
	}
	summary.RoutesSet = plan.Routes.Changed

	if cfg.ObjectID != "" && plan.Empty() {
		summary.Duration = time.Since(start)
		return summary, nil
	}

	if p.opts.DryRun {
		summary.Duration = time.Since(start)
		return summary, nil
	}

	if created := plan.Created(); len(created) > 0 {
		bundles, bytesStored, err := p.uploadResources(ctx, created)
		if err != nil {
			return nil, err
		}
		summary.Bundles = bundles
		summary.BytesStored = bytesStored
	}

	calls := p.buildCalls(plan, cfg)
	transactions, siteID, err := p.submitCalls(ctx, calls, cfg)
	if err != nil {
		return nil, err
	}
	summary.Transactions = transactions
	summary.SiteID = siteID
	summary.Duration = time.Since(start)
	return summary, nil
}

// fetchRemote loads the last-known manifest, or empty state in create
// mode.
func (p *Publisher) fetchRemote(ctx context.Context, cfg *site.Config) (*site.ResourceSet, *Manifest, error) {
	if cfg.ObjectID == "" {
		return site.NewResourceSet(), &Manifest{}, nil
	}

	obj, err := p.client.GetObject(ctx, ledger.ObjectID(cfg.ObjectID))
	if err != nil {
		return nil, nil, fmt.Errorf("fetch site object %s: %w", cfg.ObjectID, err)
	}
	manifest, err := DecodeManifest(obj)
	if err != nil {
		return nil, nil, err
	}
	return manifest.ResourceSet(), manifest, nil
}

func (p *Publisher) reconcile(local, remote *site.ResourceSet, remoteManifest *Manifest, cfg *site.Config) *reconcile.Plan {
	return &reconcile.Plan{
		Ops:      reconcile.Diff(local, remote),
		Routes:   reconcile.DiffRoutes(cfg.Routes, remoteManifest.Routes),
		Metadata: reconcile.DiffMetadata(cfg.Metadata, remoteManifest.Metadata),
		Name:     reconcile.DiffName(cfg.SiteName, remoteManifest.Name),
	}
}

// uploadResources packs the changed resources into bundles and stores
// them with bounded parallelism.
func (p *Publisher) uploadResources(ctx context.Context, created []*site.Resource) (int, int64, error) {
	shardCount, err := p.store.ShardCount(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("query shard count: %w", err)
	}

	geo := quilt.Geometry{ShardCount: shardCount, SlotCapacity: p.opts.SlotCapacity}
	result, err := quilt.Pack(created, p.opts.MaxBundleSize, geo)
	if err != nil {
		return 0, 0, err
	}
	if result.CapClamped {
		p.logger.Warn(fmt.Sprintf("configured bundle size %d exceeds the network maximum %d and was clamped",
			p.opts.MaxBundleSize, geo.TheoreticalMaxBundle()))
	}

	uploader := quilt.NewUploader(p.store, p.logger, p.opts.Concurrency, func() *retry.Backoff {
		return retry.NewBackoff(p.opts.Backoff.MinDelay, p.opts.Backoff.MaxDelay, p.opts.Backoff.MaxRetries)
	})
	if err := uploader.Upload(ctx, result.Chunks); err != nil {
		return 0, 0, err
	}

	var bytesStored int64
	for i := range result.Chunks {
		bytesStored += result.Chunks[i].Size()
	}
	return len(result.Chunks), bytesStored, nil
}

// buildCalls flattens the plan into one ordered call sequence. Route,
// metadata, and name calls come strictly after all resource calls so
// no batch ever applies a route referencing a resource a later batch
// has not yet created.
func (p *Publisher) buildCalls(plan *reconcile.Plan, cfg *site.Config) []ledger.Call {
	var calls []ledger.Call

	if cfg.ObjectID == "" {
		name := cfg.SiteName
		if name == "" {
			name = "site"
		}
		calls = append(calls, ledger.CreateSiteCall(name, time.Now().UnixMilli()))
	}

	for _, op := range plan.Ops {
		switch op.Kind {
		case reconcile.OpCreated:
			calls = append(calls,
				ledger.RemoveResourceIfExistsCall(op.Resource.Path),
				ledger.CreateResourceCall(op.Resource),
				ledger.AddResourceCall(op.Resource.Path),
			)
		case reconcile.OpDeleted:
			calls = append(calls, ledger.RemoveResourceIfExistsCall(op.Resource.Path))
		}
	}

	if plan.Routes.Changed {
		calls = append(calls, ledger.RemoveAllRoutesCall(), ledger.CreateRoutesCall())
		froms := make([]string, 0, len(plan.Routes.Routes))
		for from := range plan.Routes.Routes {
			froms = append(froms, from)
		}
		sort.Strings(froms)
		for _, from := range froms {
			calls = append(calls, ledger.InsertRouteCall(from, plan.Routes.Routes[from]))
		}
	}

	if plan.Metadata.Changed {
		calls = append(calls, ledger.UpdateMetadataCall(plan.Metadata.Metadata))
	}
	if plan.Name.Changed {
		calls = append(calls, ledger.UpdateNameCall(plan.Name.Name))
	}

	return calls
}

// submitCalls drains the call sequence through as many budgeted
// batches as needed. Batches run strictly in sequence: each batch's
// output version of the site object is the next batch's required
// input, resolved through the version cache so lagging read replicas
// cannot feed us a stale reference.
func (p *Publisher) submitCalls(ctx context.Context, calls []ledger.Call, cfg *site.Config) (int, ledger.ObjectID, error) {
	cursor := ledger.NewCallCursor(calls)
	siteID := ledger.ObjectID(cfg.ObjectID)
	transactions := 0

	for cursor.Remaining() > 0 {
		var siteRef *ledger.ObjectRef
		if siteID != "" {
			ref, err := p.client.ResolveRef(ctx, siteID)
			if err != nil {
				return transactions, siteID, fmt.Errorf("resolve site object %s: %w", siteID, err)
			}
			siteRef = &ref
		}

		batch := ledger.NewBatch(siteRef, p.opts.BatchLimit)
		if _, err := batch.FillFrom(cursor); err != nil {
			return transactions, siteID, err
		}

		gasPrice, err := p.client.ReferenceGasPrice(ctx)
		if err != nil {
			return transactions, siteID, fmt.Errorf("fetch gas price: %w", err)
		}
		gasBudget := gasPrice * (baseGasUnits + perCallGasUnits*uint64(batch.Len()))

		effects, err := p.client.SubmitTransaction(ctx, batch.Transaction(p.opts.Sender, gasPrice, gasBudget))
		if err != nil {
			return transactions, siteID, err
		}
		transactions++

		if siteID == "" {
			created, err := ledger.FindCreated(effects)
			if err != nil {
				return transactions, siteID, err
			}
			siteID = created.ID
		}
	}

	return transactions, siteID, nil
}
