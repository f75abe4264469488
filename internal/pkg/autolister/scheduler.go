package autolister

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ManuelReschke/EZPoster/internal/pkg/entitlements"
	"github.com/gofiber/fiber/v2/log"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

const DefaultSyncInterval = 3 * time.Minute

type timerKey struct {
	userID uint
	kind   JobKind
}

type entry struct {
	timer    Timer
	interval time.Duration
	nextRun  time.Time
	// gen is the arm sequence number, used by SyncAll to spare entries
	// armed after its candidate snapshot.
	gen uint64
}

// QueueEntry describes one pending job for the admin queue view.
type QueueEntry struct {
	UserID   uint          `json:"user_id"`
	Kind     JobKind       `json:"kind"`
	Interval time.Duration `json:"interval"`
	NextRun  time.Time     `json:"next_run"`
	Running  bool          `json:"running"`
}

// Scheduler keeps at most one pending post timer and one pending purge
// timer per user. Jobs report an Outcome and the scheduler alone re-arms.
type Scheduler struct {
	users        UserStore
	jobs         map[JobKind]Job
	clock        Clock
	syncInterval time.Duration

	mu       sync.Mutex
	entries  map[timerKey]*entry
	inflight map[timerKey]bool
	gen      uint64
	cron     *cron.Cron
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	running  bool
	stopped  bool
}

type Option func(*Scheduler)

func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

func WithSyncInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.syncInterval = d
		}
	}
}

// NewScheduler creates an idle scheduler. Timers may be armed before Start;
// Start adds the periodic sync sweep.
func NewScheduler(users UserStore, post, purge Job, opts ...Option) *Scheduler {
	s := &Scheduler{
		users:        users,
		jobs:         map[JobKind]Job{JobPost: post, JobPurge: purge},
		clock:        RealClock(),
		syncInterval: DefaultSyncInterval,
		entries:      make(map[timerKey]*entry),
		inflight:     make(map[timerKey]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Start runs a sync sweep now and then on the configured cadence.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	if s.stopped {
		s.ctx, s.cancel = context.WithCancel(context.Background())
		s.stopped = false
	}
	c := cron.New(cron.WithChain(cron.Recover(cron.PrintfLogger(cronLogger{}))))
	spec := fmt.Sprintf("@every %s", s.syncInterval)
	if _, err := c.AddFunc(spec, s.sweep); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("schedule sync sweep: %w", err)
	}
	s.cron = c
	s.running = true
	s.mu.Unlock()

	log.Infof("[AutoLister] Starting (sync every %s)", s.syncInterval)
	if err := s.SyncAll(ctx); err != nil {
		log.Errorf("[AutoLister] Initial sync failed: %v", err)
	}
	c.Start()
	return nil
}

func (s *Scheduler) sweep() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if err := s.SyncAll(ctx); err != nil {
		log.Errorf("[AutoLister] Sync sweep failed: %v", err)
	}
}

// Stop halts the sweep and all timers, cancels running jobs and waits for them.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	log.Info("[AutoLister] Stopping...")
	s.stopped = true
	s.running = false
	var cronDone context.Context
	if s.cron != nil {
		cronDone = s.cron.Stop()
		s.cron = nil
	}
	for key, e := range s.entries {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(s.entries, key)
	}
	s.cancel()
	s.mu.Unlock()

	if cronDone != nil {
		<-cronDone.Done()
	}
	s.wg.Wait()
	log.Info("[AutoLister] Stopped")
}

// IsRunning reports whether the sync sweep is active
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Schedule arms a job after interval unless one is already pending or
// running for the same user and kind. It reports whether a timer was armed.
func (s *Scheduler) Schedule(userID uint, kind JobKind, interval time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := timerKey{userID: userID, kind: kind}
	if _, ok := s.entries[key]; ok || s.stopped {
		return false
	}
	s.armLocked(key, interval)
	return true
}

// Reschedule replaces any pending timer with one firing after interval.
func (s *Scheduler) Reschedule(userID uint, kind JobKind, interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	key := timerKey{userID: userID, kind: kind}
	s.removeLocked(key)
	s.armLocked(key, interval)
}

// Cancel drops the pending job. A run already in progress completes but
// is not re-armed.
func (s *Scheduler) Cancel(userID uint, kind JobKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(timerKey{userID: userID, kind: kind})
}

// CancelUser drops both jobs of a user.
func (s *Scheduler) CancelUser(userID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(timerKey{userID: userID, kind: JobPost})
	s.removeLocked(timerKey{userID: userID, kind: JobPurge})
}

// SyncAll reconciles the timer set with the users currently eligible for
// auto-posting. It arms missing timers, re-arms timers whose interval
// changed and drops timers of users that are no longer eligible. Timers
// armed by SyncUser while the candidates were loading are left alone.
func (s *Scheduler) SyncAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	snapshotGen := s.gen
	s.mu.Unlock()

	now := s.clock.Now()
	users, err := s.users.FindAutoPostCandidates(now)
	if err != nil {
		return fmt.Errorf("load auto-post candidates: %w", err)
	}

	eligible := make(map[uint]bool, len(users))
	for i := range users {
		u := &users[i]
		if !entitlements.CanAutoPost(u, now) {
			continue
		}
		eligible[u.ID] = true
		s.ensure(u.ID, JobPost, u.PostInterval())
		s.ensure(u.ID, JobPurge, entitlements.PurgeCadence(u.PostInterval()))
	}

	s.mu.Lock()
	dropped := 0
	for key, e := range s.entries {
		if !eligible[key.userID] && e.gen <= snapshotGen {
			s.removeLocked(key)
			dropped++
		}
	}
	pending := len(s.entries)
	s.mu.Unlock()

	log.Debugf("[AutoLister] Sync: %d eligible users, %d timers pending, %d dropped", len(eligible), pending, dropped)
	return nil
}

// SyncUser reconciles the timers of a single user after a settings,
// subscription or credential change.
func (s *Scheduler) SyncUser(ctx context.Context, userID uint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	u, err := s.users.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.CancelUser(userID)
			return nil
		}
		return fmt.Errorf("load user %d: %w", userID, err)
	}
	if !entitlements.CanAutoPost(u, s.clock.Now()) {
		s.CancelUser(userID)
		return nil
	}
	s.ensure(u.ID, JobPost, u.PostInterval())
	s.ensure(u.ID, JobPurge, entitlements.PurgeCadence(u.PostInterval()))
	return nil
}

// Snapshot lists pending and running jobs ordered by user and kind.
func (s *Scheduler) Snapshot() []QueueEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]QueueEntry, 0, len(s.entries))
	for key, e := range s.entries {
		out = append(out, QueueEntry{
			UserID:   key.userID,
			Kind:     key.kind,
			Interval: e.interval,
			NextRun:  e.nextRun,
			Running:  s.inflight[key],
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

// ensure arms a missing timer or re-arms one whose interval changed.
func (s *Scheduler) ensure(userID uint, kind JobKind, interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	key := timerKey{userID: userID, kind: kind}
	if e, ok := s.entries[key]; ok {
		if e.interval == interval {
			return
		}
		log.Infof("[AutoLister] User %d %s interval changed %s -> %s", userID, kind, e.interval, interval)
		s.removeLocked(key)
	}
	s.armLocked(key, interval)
}

func (s *Scheduler) armLocked(key timerKey, interval time.Duration) {
	s.gen++
	e := &entry{interval: interval, gen: s.gen}
	s.entries[key] = e
	s.startTimerLocked(key, e, interval)
}

func (s *Scheduler) startTimerLocked(key timerKey, e *entry, delay time.Duration) {
	e.nextRun = s.clock.Now().Add(delay)
	e.timer = s.clock.AfterFunc(delay, func() { s.fire(key, e) })
}

func (s *Scheduler) removeLocked(key timerKey) {
	e, ok := s.entries[key]
	if !ok {
		return
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	delete(s.entries, key)
}

// fire runs the job for a timer that elapsed and re-arms it from the
// returned Outcome, unless the entry was cancelled or replaced meanwhile.
func (s *Scheduler) fire(key timerKey, e *entry) {
	s.mu.Lock()
	if s.stopped || s.entries[key] != e {
		s.mu.Unlock()
		return
	}
	if s.inflight[key] {
		// a replaced entry's run is still in progress; try again later
		s.startTimerLocked(key, e, e.interval)
		s.mu.Unlock()
		return
	}
	job := s.jobs[key.kind]
	ctx := s.ctx
	s.inflight[key] = true
	e.timer = nil
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	out := s.run(ctx, job, key)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, key)
	if s.stopped || s.entries[key] != e {
		return
	}
	if out.Deschedule || job == nil {
		delete(s.entries, key)
		log.Infof("[AutoLister] User %d %s job descheduled", key.userID, key.kind)
		return
	}
	if out.Next > 0 {
		e.interval = out.Next
	}
	s.startTimerLocked(key, e, e.interval)
}

func (s *Scheduler) run(ctx context.Context, job Job, key timerKey) (out Outcome) {
	if job == nil {
		return Deschedule()
	}
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("[AutoLister] User %d %s job panicked: %v", key.userID, key.kind, r)
			out = Deschedule()
		}
	}()
	return job.Run(ctx, key.userID)
}

type cronLogger struct{}

func (cronLogger) Printf(format string, args ...interface{}) {
	log.Infof("[AutoLister] cron: "+format, args...)
}
