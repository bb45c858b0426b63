// Package simulation drives dispatched ambulances along their merged routes.
//
// Each dispatch gets one simulator goroutine that advances a synthetic clock
// tick by tick over a fixed horizon. Ticks for one dispatch are strictly
// sequential; simulators for different dispatches run independently. The
// simulator polls the case store every tick, so an administrative
// cancellation takes effect within one tick period.
package simulation

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lifeline-ems/service-dispatch/internal/domain"
	"github.com/lifeline-ems/service-dispatch/internal/domain/dispatch"
	"github.com/lifeline-ems/service-dispatch/internal/events"
	"github.com/lifeline-ems/service-dispatch/internal/geo"
)

// AmbulanceRegistry is the subset of the ambulance service the simulator
// writes to.
type AmbulanceRegistry interface {
	SetAvailability(ctx context.Context, ambulanceID int64, available bool) error
	SetLocation(ctx context.Context, ambulanceID int64, latitude, longitude float64) error
}

// EventSink receives best-effort movement and lifecycle events.
type EventSink interface {
	PublishAmbulanceLocation(ctx context.Context, evt events.AmbulanceLocationEvent)
	PublishCaseClosed(ctx context.Context, evt events.CaseClosedEvent)
}

// Config holds the simulation parameters.
type Config struct {
	// TotalTicks is the simulation horizon: the whole merged route is
	// animated over this many ticks regardless of the route's real
	// estimated duration.
	TotalTicks int
	// TickInterval is the period of the synthetic clock.
	TickInterval time.Duration
}

// Manager owns every running simulator. It is started once at boot and
// stopped at shutdown, draining or abandoning outstanding simulations.
type Manager struct {
	cfg        Config
	cases      dispatch.CaseRepository
	ambulances AmbulanceRegistry
	sink       EventSink
	logger     *zap.Logger

	mu      sync.Mutex
	cancels map[uuid.UUID]context.CancelFunc
	wg      sync.WaitGroup
	root    context.Context
	stop    context.CancelFunc
}

// NewManager creates a simulation Manager. sink may be nil.
func NewManager(cfg Config, cases dispatch.CaseRepository, ambulances AmbulanceRegistry, sink EventSink, logger *zap.Logger) *Manager {
	root, stop := context.WithCancel(context.Background())
	return &Manager{
		cfg:        cfg,
		cases:      cases,
		ambulances: ambulances,
		sink:       sink,
		logger:     logger,
		cancels:    make(map[uuid.UUID]context.CancelFunc),
		root:       root,
		stop:       stop,
	}
}

// Launch starts a simulator for one dispatched case. It returns immediately;
// the caller never waits on simulation progress. Routes with fewer than two
// points cannot be animated and are skipped.
func (m *Manager) Launch(caseID uuid.UUID, ambulanceID int64, points []geo.Coordinate) {
	if len(points) < 2 {
		m.logger.Warn("not enough route points to simulate",
			zap.String("case_id", caseID.String()),
			zap.Int64("ambulance_id", ambulanceID),
			zap.Int("points", len(points)),
		)
		return
	}

	ctx, cancel := context.WithCancel(m.root)

	m.mu.Lock()
	m.cancels[caseID] = cancel
	m.mu.Unlock()

	sim := &simulator{
		caseID:      caseID,
		ambulanceID: ambulanceID,
		points:      points,
		cfg:         m.cfg,
		cases:       m.cases,
		ambulances:  m.ambulances,
		sink:        m.sink,
		logger:      m.logger,
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			cancel()
			m.mu.Lock()
			delete(m.cancels, caseID)
			m.mu.Unlock()
		}()
		sim.run(ctx)
	}()
}

// Cancel stops the simulator for one case, if it is still running.
func (m *Manager) Cancel(caseID uuid.UUID) {
	m.mu.Lock()
	cancel, ok := m.cancels[caseID]
	m.mu.Unlock()
	if ok {
		cancel()
	}
}

// ActiveCount reports how many simulators are currently running.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cancels)
}

// Stop cancels every running simulator and waits for them to exit, bounded
// by ctx.
func (m *Manager) Stop(ctx context.Context) error {
	m.stop()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// simulator advances one ambulance along one merged route.
type simulator struct {
	caseID      uuid.UUID
	ambulanceID int64
	points      []geo.Coordinate
	cfg         Config
	cases       dispatch.CaseRepository
	ambulances  AmbulanceRegistry
	sink        EventSink
	logger      *zap.Logger
}

func (s *simulator) run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	tick := 0
	for {
		advance, done := s.runTick(ctx, tick)
		if done {
			return
		}
		if advance {
			tick++
		}

		select {
		case <-ctx.Done():
			s.logger.Info("simulation canceled",
				zap.String("case_id", s.caseID.String()),
				zap.Int64("ambulance_id", s.ambulanceID),
			)
			return
		case <-ticker.C:
		}
	}
}

// runTick executes one tick body. advance reports whether the synthetic
// clock moved; done reports whether the simulation is over.
func (s *simulator) runTick(ctx context.Context, tick int) (advance, done bool) {
	c, err := s.cases.FindByID(ctx, s.caseID)
	if err != nil {
		if kind, ok := domain.KindOf(err); ok && kind == domain.KindNotFound {
			s.logger.Info("case no longer exists, stopping simulation",
				zap.String("case_id", s.caseID.String()),
			)
			return false, true
		}
		// Transient store failure: retry the same tick next period.
		s.logger.Warn("failed to reload case",
			zap.String("case_id", s.caseID.String()),
			zap.Error(err),
		)
		return false, false
	}

	if c.Status().IsTerminal() {
		s.logger.Info("case reached terminal status, stopping simulation",
			zap.String("case_id", s.caseID.String()),
			zap.String("status", c.Status().String()),
		)
		return false, true
	}

	if tick > s.cfg.TotalTicks {
		return false, s.complete(ctx, c)
	}

	lat, lng := s.positionAt(tick)
	if err := s.ambulances.SetLocation(ctx, s.ambulanceID, lat, lng); err != nil {
		s.logger.Warn("failed to push ambulance location",
			zap.Int64("ambulance_id", s.ambulanceID),
			zap.Error(err),
		)
	} else if s.sink != nil {
		s.sink.PublishAmbulanceLocation(ctx, events.AmbulanceLocationEvent{
			CaseID:      s.caseID,
			AmbulanceID: s.ambulanceID,
			Latitude:    lat,
			Longitude:   lng,
			OccurredAt:  time.Now().UTC(),
		})
	}

	return true, false
}

// complete runs the completion transition: release the ambulance, then close
// the case. Either write failing is retried on the next tick period; the
// ambulance must never be left stranded in "unavailable".
func (s *simulator) complete(ctx context.Context, c *dispatch.Case) bool {
	if err := s.ambulances.SetAvailability(ctx, s.ambulanceID, true); err != nil {
		s.logger.Warn("failed to release ambulance, will retry",
			zap.Int64("ambulance_id", s.ambulanceID),
			zap.Error(err),
		)
		return false
	}

	if err := c.Close(); err != nil {
		s.logger.Warn("cannot close case",
			zap.String("case_id", s.caseID.String()),
			zap.Error(err),
		)
		return true
	}
	c.IncrementVersion()
	if err := s.cases.Update(ctx, c); err != nil {
		s.logger.Warn("failed to close case, will retry",
			zap.String("case_id", s.caseID.String()),
			zap.Error(err),
		)
		return false
	}

	s.logger.Info("simulation completed",
		zap.String("case_id", s.caseID.String()),
		zap.Int64("ambulance_id", s.ambulanceID),
	)
	if s.sink != nil {
		s.sink.PublishCaseClosed(ctx, events.CaseClosedEvent{
			CaseID:      s.caseID,
			AmbulanceID: s.ambulanceID,
			Status:      dispatch.StatusClosed.String(),
			OccurredAt:  time.Now().UTC(),
		})
	}
	return true
}

// positionAt maps a tick onto the route's segment space and interpolates
// within the bracketing segment, clamping to the route's end.
func (s *simulator) positionAt(tick int) (lat, lng float64) {
	fraction := float64(tick) / float64(s.cfg.TotalTicks)
	totalSegments := fraction * float64(len(s.points)-1)

	segmentIndex := int(math.Floor(totalSegments))
	segmentFraction := totalSegments - float64(segmentIndex)

	if segmentIndex >= len(s.points)-1 {
		segmentIndex = len(s.points) - 2
		segmentFraction = 1.0
	}

	start := s.points[segmentIndex]
	end := s.points[segmentIndex+1]
	return geo.Lerp(start.Lat, end.Lat, segmentFraction), geo.Lerp(start.Lng, end.Lng, segmentFraction)
}
