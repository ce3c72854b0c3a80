package orderbook

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"wsbook/internal/metrics"
	"wsbook/pkg/binance"

	"github.com/gammazero/deque"
	"go.uber.org/zap"
)

const (
	defaultRequestTimeout = 10 * time.Second
	defaultRetryInterval  = 2 * time.Second
	diffQueueSize         = 1024
)

// SnapshotFetcher is implemented by the WebSocket API client.
type SnapshotFetcher interface {
	RequestSnapshot(ctx context.Context, market string) (binance.DepthSnapshot, error)
}

// Publisher receives every new book state.
type Publisher interface {
	Publish(State)
}

type snapshotResult struct {
	snap binance.DepthSnapshot
	err  error
}

// Synchronizer keeps the local book of one market in line with the venue by
// combining the <market>@depth diff stream with depth snapshots.
//
// Handle runs on the dispatch goroutine and only decodes. All book state is
// owned by the Run goroutine.
type Synchronizer struct {
	market    string
	symbol    string
	fetcher   SnapshotFetcher
	publisher Publisher
	logger    *zap.Logger
	metrics   *metrics.Metrics

	requestTimeout time.Duration
	retryInterval  time.Duration

	diffs     chan DiffUpdate
	snapshots chan snapshotResult
	done      chan struct{}

	status          Status
	bids            *Side
	asks            *Side
	currentUpdateID int64
	firstBufferedID int64
	eventTime       time.Time
	pending         deque.Deque[DiffUpdate]
}

func NewSynchronizer(market string, fetcher SnapshotFetcher, publisher Publisher, logger *zap.Logger) *Synchronizer {
	return &Synchronizer{
		market:         strings.ToLower(market),
		symbol:         strings.ToUpper(market),
		fetcher:        fetcher,
		publisher:      publisher,
		logger:         logger.Named("orderbook").With(zap.String("market", strings.ToLower(market))),
		requestTimeout: defaultRequestTimeout,
		retryInterval:  defaultRetryInterval,
		diffs:          make(chan DiffUpdate, diffQueueSize),
		snapshots:      make(chan snapshotResult, 1),
		done:           make(chan struct{}),
		bids:           NewBids(),
		asks:           NewAsks(),
	}
}

func (s *Synchronizer) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// SetTimeouts overrides the snapshot request timeout and the delay before a failed fetch is retried.
func (s *Synchronizer) SetTimeouts(request, retry time.Duration) {
	if request > 0 {
		s.requestTimeout = request
	}
	if retry > 0 {
		s.retryInterval = retry
	}
}

func (s *Synchronizer) Market() string {
	return s.market
}

func (s *Synchronizer) StreamSuffix() string {
	return "depth"
}

// Handle decodes a depth payload and queues it for Run.
func (s *Synchronizer) Handle(payload json.RawMessage) {
	var ev binance.DepthUpdateEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		s.logger.Warn("failed to parse depth update", zap.Error(err))
		s.metrics.RecordParseError("orderbook")
		return
	}
	if ev.EventTime > 0 {
		s.metrics.RecordEventLag(s.market+"@depth", float64(time.Now().UnixMilli()-ev.EventTime))
	}

	select {
	case s.diffs <- toDiff(ev):
	case <-s.done:
	}
}

// Run owns the book until ctx is done.
func (s *Synchronizer) Run(ctx context.Context) error {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case d := <-s.diffs:
			if s.onDiff(d) {
				s.fetch(ctx, 0)
			}

		case res := <-s.snapshots:
			if res.err != nil {
				s.metrics.RecordSnapshotFetch(s.market, "error")
				s.logger.Warn("snapshot fetch failed", zap.Error(res.err), zap.Duration("retryIn", s.retryInterval))
				if s.status == SyncPending {
					s.fetch(ctx, s.retryInterval)
				}
				continue
			}
			if s.onSnapshot(res.snap) {
				s.fetch(ctx, 0)
			}
		}
	}
}

// fetch requests a snapshot on its own goroutine so diffs keep flowing into
// the buffer while it is outstanding.
func (s *Synchronizer) fetch(ctx context.Context, delay time.Duration) {
	go func() {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
		}

		fctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
		snap, err := s.fetcher.RequestSnapshot(fctx, s.market)
		cancel()

		select {
		case s.snapshots <- snapshotResult{snap: snap, err: err}:
		case <-ctx.Done():
		}
	}()
}

// onDiff advances the state machine for one diff and reports whether a
// snapshot fetch should be started.
func (s *Synchronizer) onDiff(d DiffUpdate) bool {
	switch s.status {
	case Uninitialized:
		s.firstBufferedID = d.FirstUpdateID
		s.pending.PushBack(d)
		s.status = SyncPending
		s.metrics.RecordDiff(s.market, "buffered")
		s.metrics.SetPendingDiffs(s.market, s.pending.Len())
		s.logger.Info("starting sync", zap.Int64("firstUpdateId", d.FirstUpdateID))
		return true

	case SyncPending:
		s.pending.PushBack(d)
		s.metrics.RecordDiff(s.market, "buffered")
		s.metrics.SetPendingDiffs(s.market, s.pending.Len())
		return false
	}

	if d.LastUpdateID <= s.currentUpdateID {
		s.metrics.RecordDiff(s.market, "stale")
		s.logger.Debug("stale diff ignored",
			zap.Int64("lastUpdateId", d.LastUpdateID),
			zap.Int64("currentUpdateId", s.currentUpdateID))
		return false
	}

	if d.FirstUpdateID > s.currentUpdateID+1 {
		s.metrics.RecordDiff(s.market, "gap")
		s.logger.Warn("sequence gap, resetting book",
			zap.Int64("firstUpdateId", d.FirstUpdateID),
			zap.Int64("currentUpdateId", s.currentUpdateID))
		s.reset("gap")
		return false
	}

	s.apply(d)
	s.metrics.RecordDiff(s.market, "applied")
	s.publish()
	return false
}

// onSnapshot applies the acceptance rule and drains the buffer. It reports
// whether the snapshot was too old and another one is needed.
func (s *Synchronizer) onSnapshot(snap binance.DepthSnapshot) bool {
	if s.status != SyncPending {
		s.logger.Debug("snapshot ignored", zap.Stringer("status", s.status))
		return false
	}

	if snap.LastUpdateID < s.firstBufferedID {
		s.metrics.RecordSnapshotFetch(s.market, "too_old")
		s.logger.Info("snapshot older than buffered diffs, refetching",
			zap.Int64("lastUpdateId", snap.LastUpdateID),
			zap.Int64("firstBufferedId", s.firstBufferedID))
		return true
	}

	s.bids.Clear()
	s.asks.Clear()
	for _, l := range snap.Bids {
		s.bids.Apply(l.Price, l.Quantity)
	}
	for _, l := range snap.Asks {
		s.asks.Apply(l.Price, l.Quantity)
	}
	s.currentUpdateID = snap.LastUpdateID

	for s.pending.Len() > 0 {
		d := s.pending.PopFront()
		if d.LastUpdateID <= s.currentUpdateID {
			continue
		}
		if d.FirstUpdateID > s.currentUpdateID+1 {
			s.metrics.RecordSnapshotFetch(s.market, "discontinuous")
			s.logger.Warn("buffered diff does not continue snapshot, resetting book",
				zap.Int64("firstUpdateId", d.FirstUpdateID),
				zap.Int64("currentUpdateId", s.currentUpdateID))
			s.reset("drain_gap")
			return false
		}
		s.apply(d)
	}

	s.status = Initialized
	s.metrics.RecordSnapshotFetch(s.market, "accepted")
	s.metrics.SetPendingDiffs(s.market, 0)
	s.logger.Info("order book synchronized",
		zap.Int64("updateId", s.currentUpdateID),
		zap.Int("bids", s.bids.Len()),
		zap.Int("asks", s.asks.Len()))
	s.publish()
	return false
}

func (s *Synchronizer) apply(d DiffUpdate) {
	for _, l := range d.Bids {
		s.bids.Apply(l.Price, l.Quantity)
	}
	for _, l := range d.Asks {
		s.asks.Apply(l.Price, l.Quantity)
	}
	s.currentUpdateID = d.LastUpdateID
	s.eventTime = d.EventTime
	s.metrics.SetBookUpdateID(s.market, s.currentUpdateID)
}

// reset drops everything; the next diff starts a new sync.
func (s *Synchronizer) reset(reason string) {
	s.bids.Clear()
	s.asks.Clear()
	s.pending.Clear()
	s.currentUpdateID = 0
	s.firstBufferedID = 0
	s.eventTime = time.Time{}
	s.status = Uninitialized
	s.metrics.RecordResync(s.market, reason)
	s.metrics.SetPendingDiffs(s.market, 0)
}

func (s *Synchronizer) publish() {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(State{
		Symbol:       s.symbol,
		LastUpdateID: s.currentUpdateID,
		EventTime:    s.eventTime,
		Bids:         s.bids.Copy(),
		Asks:         s.asks.Copy(),
	})
}
