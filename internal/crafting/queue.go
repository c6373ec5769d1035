// Package crafting serializes craft-metal, combine-metal, and use-item
// jobs against the game coordinator. Jobs run strictly one at a time;
// each dispatched job terminates through exactly one of three outcomes:
// a matching completion event, a GC disconnect, or a timeout.
package crafting

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Nicklason/tf2-automatic-sub001/internal/gamecoord"
	"github.com/Nicklason/tf2-automatic-sub001/internal/inventory"
	"github.com/Nicklason/tf2-automatic-sub001/internal/schema"
)

const (
	// DefaultAppID is the game whose coordinator handles craft requests.
	DefaultAppID uint32 = 440

	DefaultConnectTimeout = 10 * time.Second
	DefaultResultTimeout  = 10 * time.Second
)

// JobKind tags the variant of a queued job.
type JobKind int

const (
	JobSmelt JobKind = iota
	JobCombine
	JobUse
)

func (k JobKind) String() string {
	switch k {
	case JobSmelt:
		return "smelt"
	case JobCombine:
		return "combine"
	case JobUse:
		return "use"
	default:
		return "unknown"
	}
}

// Job is one unit of work. Smelt and combine jobs store only the
// defindex; the input asset ids are selected at dispatch time so a
// changed inventory can never submit stale ids.
type Job struct {
	ID       uuid.UUID
	Kind     JobKind
	Defindex int
	AssetID  uint64
}

// CompletedCraft describes a finished job for the policy handler.
type CompletedCraft struct {
	Job      Job
	Consumed []uint64
	Gained   []inventory.Item
}

// Session is the slice of the game-coordinator surface the queue needs.
type Session interface {
	IsConnectedToGame(appID uint32) bool
	RequestGame(appID uint32) error
	SubscribeConnected() (<-chan struct{}, func())
	SubscribeDisconnected() (<-chan struct{}, func())
	SubscribeCraftComplete() (<-chan gamecoord.CraftResult, func())
	SubscribeItemRemoved() (<-chan uint64, func())
	Craft(assetIDs []uint64) error
	UseItem(assetID uint64) error
}

// Inventory is the mutable item snapshot the queue gates jobs against
// and updates when a job completes.
type Inventory interface {
	FindBySKU(sku string, matchAll bool) []uint64
	FindByAssetID(assetID uint64) (inventory.Item, bool)
	RemoveItem(assetID uint64) bool
	AddItem(sku string, it inventory.Item)
}

// Notifier receives completion callbacks. The bound policy handler
// satisfies it.
type Notifier interface {
	OnCraftingCompleted(res CompletedCraft)
	OnCraftingQueueCompleted()
}

type Options struct {
	AppID          uint32
	ConnectTimeout time.Duration
	ResultTimeout  time.Duration
}

func (o Options) withDefaults() Options {
	if o.AppID == 0 {
		o.AppID = DefaultAppID
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.ResultTimeout <= 0 {
		o.ResultTimeout = DefaultResultTimeout
	}
	return o
}

// Queue is the sequential crafting/use job processor.
type Queue struct {
	opts    Options
	session Session
	inv     Inventory
	notify  Notifier

	mu   sync.Mutex
	jobs []Job

	wake chan struct{}
}

func New(session Session, inv Inventory, notify Notifier, opts Options) *Queue {
	return &Queue{
		opts:    opts.withDefaults(),
		session: session,
		inv:     inv,
		notify:  notify,
		wake:    make(chan struct{}, 1),
	}
}

// Start launches the worker goroutine. Jobs enqueued before Start are
// picked up on the first wake.
func (q *Queue) Start(ctx context.Context) {
	go q.run(ctx)
	q.signal()
}

// SmeltMetal enqueues amount single-step smelt jobs. Each job converts
// exactly one unit one tier down. An illegal defindex is logged and
// ignored.
func (q *Queue) SmeltMetal(defindex, amount int) {
	if _, ok := schema.SmeltResult(defindex); !ok {
		log.Printf("[warn] smelt: defindex %d is not a smeltable metal tier", defindex)
		return
	}
	q.enqueueMetalJobs(JobSmelt, defindex, amount)
}

// CombineMetal enqueues amount single-step combine jobs. Each job
// converts three units into one of the tier above. An illegal defindex
// is logged and ignored.
func (q *Queue) CombineMetal(defindex, amount int) {
	if _, ok := schema.CombineResult(defindex); !ok {
		log.Printf("[warn] combine: defindex %d is not a combinable metal tier", defindex)
		return
	}
	q.enqueueMetalJobs(JobCombine, defindex, amount)
}

// UseItem enqueues a use job. Eligibility is checked at dispatch time,
// not here.
func (q *Queue) UseItem(assetID uint64) {
	q.mu.Lock()
	q.jobs = append(q.jobs, Job{ID: uuid.New(), Kind: JobUse, AssetID: assetID})
	q.mu.Unlock()
	q.signal()
}

// Len reports the number of queued jobs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

func (q *Queue) enqueueMetalJobs(kind JobKind, defindex, amount int) {
	if amount <= 0 {
		return
	}
	q.mu.Lock()
	for i := 0; i < amount; i++ {
		q.jobs = append(q.jobs, Job{ID: uuid.New(), Kind: kind, Defindex: defindex})
	}
	q.mu.Unlock()
	q.signal()
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) pop() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return Job{}, false
	}
	job := q.jobs[0]
	q.jobs = append(q.jobs[:0], q.jobs[1:]...)
	return job, true
}

func (q *Queue) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.wake:
		}
		q.drain(ctx)
	}
}

// drain processes jobs until the queue is empty. The queue-completed
// notification and the release of the in-game connection fire only when
// at least one job was taken, so an always-empty queue stays silent.
func (q *Queue) drain(ctx context.Context) {
	started := false
	for {
		if ctx.Err() != nil {
			return
		}
		job, ok := q.pop()
		if !ok {
			break
		}
		started = true
		q.dispatch(ctx, job)
	}
	if !started {
		return
	}
	if err := q.session.RequestGame(0); err != nil {
		log.Printf("[warn] crafting: release game: %v", err)
	}
	q.notify.OnCraftingQueueCompleted()
}

// selectInputs re-validates the job against the current inventory and
// picks the concrete input assets. ok is false when the job is no
// longer eligible.
func (q *Queue) selectInputs(job Job) ([]uint64, bool) {
	switch job.Kind {
	case JobSmelt:
		ids := q.inv.FindBySKU(schema.MetalSKU(job.Defindex), false)
		if len(ids) < 1 {
			return nil, false
		}
		return ids[:1], true
	case JobCombine:
		ids := q.inv.FindBySKU(schema.MetalSKU(job.Defindex), false)
		if len(ids) < 3 {
			return nil, false
		}
		return ids[:3:3], true
	case JobUse:
		if _, ok := q.inv.FindByAssetID(job.AssetID); !ok {
			return nil, false
		}
		return []uint64{job.AssetID}, true
	default:
		return nil, false
	}
}

func (q *Queue) dispatch(ctx context.Context, job Job) {
	inputs, ok := q.selectInputs(job)
	if !ok {
		log.Printf("[warn] crafting: %s job %s no longer eligible, skipping", job.Kind, job.ID)
		return
	}

	if !q.ensureConnected(ctx) {
		log.Printf("[warn] crafting: %s job %s dropped, game coordinator unavailable", job.Kind, job.ID)
		return
	}

	switch job.Kind {
	case JobSmelt, JobCombine:
		q.dispatchCraft(ctx, job, inputs)
	case JobUse:
		q.dispatchUse(ctx, job, inputs[0])
	}
}

// ensureConnected requests the game and waits for the GC handshake,
// bounded by ConnectTimeout.
func (q *Queue) ensureConnected(ctx context.Context) bool {
	if q.session.IsConnectedToGame(q.opts.AppID) {
		return true
	}

	connCh, cancel := q.session.SubscribeConnected()
	defer cancel()

	if err := q.session.RequestGame(q.opts.AppID); err != nil {
		log.Printf("[warn] crafting: request game %d: %v", q.opts.AppID, err)
		return false
	}

	t := time.NewTimer(q.opts.ConnectTimeout)
	defer t.Stop()
	select {
	case <-connCh:
		return true
	case <-t.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// dispatchCraft issues the craft and races completion, disconnect, and
// timeout. The deferred cancels tear down the losing listeners, so no
// subscription outlives the job and no outcome fires twice.
func (q *Queue) dispatchCraft(ctx context.Context, job Job, inputs []uint64) {
	craftCh, cancelCraft := q.session.SubscribeCraftComplete()
	defer cancelCraft()
	discCh, cancelDisc := q.session.SubscribeDisconnected()
	defer cancelDisc()

	if err := q.session.Craft(inputs); err != nil {
		log.Printf("[warn] crafting: %s job %s submit: %v", job.Kind, job.ID, err)
		return
	}

	t := time.NewTimer(q.opts.ResultTimeout)
	defer t.Stop()

	select {
	case res := <-craftCh:
		for _, id := range inputs {
			q.inv.RemoveItem(id)
		}
		for _, it := range res.ItemsGained {
			q.inv.AddItem(it.SKU, it)
		}
		q.notify.OnCraftingCompleted(CompletedCraft{
			Job:      job,
			Consumed: inputs,
			Gained:   res.ItemsGained,
		})
	case <-discCh:
		log.Printf("[warn] crafting: %s job %s abandoned, game coordinator disconnected", job.Kind, job.ID)
	case <-t.C:
		log.Printf("[warn] crafting: %s job %s timed out", job.Kind, job.ID)
	case <-ctx.Done():
	}
}

// dispatchUse issues the use request and waits for the matching
// item-removed event. Removals of other assets keep the wait alive.
func (q *Queue) dispatchUse(ctx context.Context, job Job, assetID uint64) {
	removedCh, cancelRemoved := q.session.SubscribeItemRemoved()
	defer cancelRemoved()
	discCh, cancelDisc := q.session.SubscribeDisconnected()
	defer cancelDisc()

	if err := q.session.UseItem(assetID); err != nil {
		log.Printf("[warn] crafting: use job %s submit: %v", job.ID, err)
		return
	}

	t := time.NewTimer(q.opts.ResultTimeout)
	defer t.Stop()

	for {
		select {
		case removed := <-removedCh:
			if removed != assetID {
				continue
			}
			q.inv.RemoveItem(assetID)
			q.notify.OnCraftingCompleted(CompletedCraft{
				Job:      job,
				Consumed: []uint64{assetID},
			})
			return
		case <-discCh:
			log.Printf("[warn] crafting: use job %s abandoned, game coordinator disconnected", job.ID)
			return
		case <-t.C:
			log.Printf("[warn] crafting: use job %s timed out", job.ID)
			return
		case <-ctx.Done():
			return
		}
	}
}
