// Package lifecycle drives the simulated workstation through its power
// states. A single goroutine owns the device state; intents, phase timers,
// explanation results and telemetry ticks are serialised through one select
// loop.
package lifecycle

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/edgecli/neurolink/internal/advisor"
	"github.com/edgecli/neurolink/internal/approval"
	"github.com/edgecli/neurolink/internal/device"
	"github.com/edgecli/neurolink/internal/eventlog"
	"github.com/edgecli/neurolink/internal/notify"
)

// ErrConfirmationInvalid is returned for unknown, expired or reused
// power-off confirmations.
var ErrConfirmationInvalid = errors.New("confirmation invalid or expired")

// Log messages written by the controller.
const (
	MsgBannerReady    = "NeuroLink 系统初始化完成。"
	MsgBannerLinking  = "正在连接神经接口..."
	MsgBannerLinked   = "连接已建立。准备接收指令。"
	MsgWakeStart      = "正在启动唤醒序列..."
	MsgMagicPacket    = "魔术封包(Magic Packet)已广播。"
	MsgOnline         = "目标设备已确认。系统在线。"
	MsgShutdownStart  = "正在启动远程关机协议..."
	MsgHalted         = "系统已停止。确认电源切断。"
	protocolLogPrefix = "协议: "
)

// Explainer narrates a lifecycle action. *advisor.Advisor satisfies it.
type Explainer interface {
	ExplainAction(ctx context.Context, action advisor.Action, snap device.State) advisor.Result
}

// Appender receives log lines. *eventlog.Log satisfies it.
type Appender interface {
	Append(message string, typ eventlog.Type) eventlog.Entry
}

// Recorder receives telemetry samples. *metrics.Store satisfies it.
type Recorder interface {
	Record(state device.State)
}

// Phase names the step an in-flight transition is waiting on.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseExplaining Phase = "explaining"
	PhaseBroadcast  Phase = "broadcast"
	PhaseConfirm    Phase = "confirm"
	PhasePreHalt    Phase = "pre_halt"
	PhaseHalt       Phase = "halt"
)

// Snapshot is a read-only copy of the controller state.
type Snapshot struct {
	Device device.State `json:"device" msgpack:"device"`
	Locked bool         `json:"locked" msgpack:"locked"`
	Busy   bool         `json:"busy" msgpack:"busy"`
	Phase  Phase        `json:"phase" msgpack:"phase"`
}

// Timings holds every delay the controller uses.
type Timings struct {
	PreBroadcast time.Duration
	Confirm      time.Duration
	PreHalt      time.Duration
	Halt         time.Duration
	Jitter       time.Duration
	Banner       time.Duration
	ConfirmTTL   time.Duration
}

// DefaultTimings returns the panel's stock delays.
func DefaultTimings() Timings {
	return Timings{
		PreBroadcast: 1500 * time.Millisecond,
		Confirm:      3 * time.Second,
		PreHalt:      1 * time.Second,
		Halt:         3 * time.Second,
		Jitter:       2 * time.Second,
		Banner:       800 * time.Millisecond,
		ConfirmTTL:   approval.DefaultTicketTTL,
	}
}

type reqKind int

const (
	reqPowerOn reqKind = iota
	reqPowerOff
	reqSetLock
	reqToggleLock
)

type request struct {
	kind   reqKind
	locked bool
	reply  chan bool
}

type explained struct {
	gen    uint64
	action advisor.Action
	result advisor.Result
}

// Controller owns the device state. Run must be running for intents to be
// served.
type Controller struct {
	explainer Explainer
	logs      Appender
	recorder  Recorder
	tickets   *approval.Tickets
	rng       device.Rand
	now       func() time.Time
	timings   Timings

	reqCh     chan request
	explained chan explained
	done      chan struct{}
	started   atomic.Bool

	// Loop-owned state.
	state         device.State
	locked        bool
	phase         Phase
	gen           uint64
	timer         *time.Timer
	timerC        <-chan time.Time
	ticker        *time.Ticker
	tickC         <-chan time.Time
	cancelExplain context.CancelFunc

	mu   sync.RWMutex
	snap Snapshot
	feed *notify.Broadcaster[Snapshot]
}

// Option customises a Controller.
type Option func(*Controller)

// WithTimings overrides DefaultTimings. Zero fields keep their default.
func WithTimings(t Timings) Option {
	return func(c *Controller) {
		d := c.timings
		if t.PreBroadcast > 0 {
			d.PreBroadcast = t.PreBroadcast
		}
		if t.Confirm > 0 {
			d.Confirm = t.Confirm
		}
		if t.PreHalt > 0 {
			d.PreHalt = t.PreHalt
		}
		if t.Halt > 0 {
			d.Halt = t.Halt
		}
		if t.Jitter > 0 {
			d.Jitter = t.Jitter
		}
		if t.Banner > 0 {
			d.Banner = t.Banner
		}
		if t.ConfirmTTL > 0 {
			d.ConfirmTTL = t.ConfirmTTL
		}
		c.timings = d
	}
}

// WithDevice sets the addresses shown for the target workstation.
func WithDevice(ip, mac string) Option {
	return func(c *Controller) { c.state = device.NewState(ip, mac) }
}

// WithRecorder feeds every status change and jitter tick to r.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// WithRand overrides the telemetry random source.
func WithRand(r device.Rand) Option {
	return func(c *Controller) { c.rng = r }
}

// WithClock overrides the time source used for LastSeen.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New creates a controller for an offline, locked device.
func New(explainer Explainer, logs Appender, opts ...Option) *Controller {
	c := &Controller{
		explainer: explainer,
		logs:      logs,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		now:       time.Now,
		timings:   DefaultTimings(),
		reqCh:     make(chan request),
		explained: make(chan explained, 1),
		done:      make(chan struct{}),
		state:     device.NewState("", ""),
		locked:    true,
		phase:     PhaseIdle,
		feed:      notify.New[Snapshot](16, true),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.tickets = approval.NewTickets(c.timings.ConfirmTTL)
	c.snap = c.buildSnapshot()
	c.feed.Publish(c.snap)
	return c
}

// Timings returns the effective delays.
func (c *Controller) Timings() Timings { return c.timings }

// Run serves intents until ctx is cancelled. Pending timers and in-flight
// explanations are torn down on return.
func (c *Controller) Run(ctx context.Context) {
	if !c.started.CompareAndSwap(false, true) {
		log.Printf("[WARN] lifecycle: Run called twice")
		return
	}
	defer c.teardown()

	c.logf(MsgBannerReady, eventlog.TypeInfo)
	c.logf(MsgBannerLinking, eventlog.TypeInfo)
	banner := time.NewTimer(c.timings.Banner)
	defer banner.Stop()
	bannerC := banner.C

	for {
		select {
		case <-ctx.Done():
			return
		case <-bannerC:
			bannerC = nil
			c.logf(MsgBannerLinked, eventlog.TypeSuccess)
		case req := <-c.reqCh:
			req.reply <- c.handle(ctx, req)
		case ex := <-c.explained:
			c.onExplained(ex)
		case <-c.timerC:
			c.timer, c.timerC = nil, nil
			c.onPhaseTimer()
		case <-c.tickC:
			c.onJitter()
		}
	}
}

// Done is closed once Run has returned.
func (c *Controller) Done() <-chan struct{} { return c.done }

// PowerOn fires the wake intent. It reports false when the device was not
// offline and nothing happened.
func (c *Controller) PowerOn() bool {
	return c.do(request{kind: reqPowerOn})
}

// PowerOff fires the shutdown intent directly. It reports false when the
// device was not online or the safety lock was engaged.
func (c *Controller) PowerOff() bool {
	return c.do(request{kind: reqPowerOff})
}

// RequestPowerOff mints a confirmation ticket for a later ConfirmPowerOff.
func (c *Controller) RequestPowerOff() (*approval.Ticket, error) {
	return c.tickets.Create(approval.ActionPowerOff)
}

// ConfirmPowerOff consumes token and fires the shutdown intent. A locked or
// not-online device makes this a no-op that still returns nil.
func (c *Controller) ConfirmPowerOff(token string) (bool, error) {
	if !c.tickets.Consume(token, approval.ActionPowerOff) {
		return false, ErrConfirmationInvalid
	}
	return c.PowerOff(), nil
}

// SetLocked engages or releases the safety lock and returns the new value.
func (c *Controller) SetLocked(locked bool) bool {
	c.do(request{kind: reqSetLock, locked: locked})
	return c.Snapshot().Locked
}

// ToggleLock flips the safety lock and returns the new value.
func (c *Controller) ToggleLock() bool {
	c.do(request{kind: reqToggleLock})
	return c.Snapshot().Locked
}

// Snapshot returns the latest published state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Subscribe streams snapshots, starting with the current one.
func (c *Controller) Subscribe() *notify.Subscription[Snapshot] {
	return c.feed.Subscribe()
}

func (c *Controller) do(r request) bool {
	r.reply = make(chan bool, 1)
	select {
	case c.reqCh <- r:
	case <-c.done:
		return false
	}
	select {
	case ok := <-r.reply:
		return ok
	case <-c.done:
		return false
	}
}

func (c *Controller) handle(ctx context.Context, req request) bool {
	switch req.kind {
	case reqPowerOn:
		return c.startWake(ctx)
	case reqPowerOff:
		return c.startShutdown(ctx)
	case reqSetLock:
		c.locked = req.locked
	case reqToggleLock:
		c.locked = !c.locked
	}
	c.publish()
	return c.locked
}

func (c *Controller) startWake(ctx context.Context) bool {
	next, err := device.TransitionLocked(c.state.Status, device.EventPowerOn, c.locked)
	if err != nil {
		log.Printf("[DEBUG] lifecycle: %v", err)
		return false
	}

	pre := c.state
	c.state.Status = next
	c.gen++
	c.phase = PhaseExplaining
	c.record()
	c.logf(MsgWakeStart, eventlog.TypeWarning)
	c.publish()
	c.explain(ctx, advisor.ActionWake, pre)
	return true
}

func (c *Controller) startShutdown(ctx context.Context) bool {
	next, err := device.TransitionLocked(c.state.Status, device.EventPowerOff, c.locked)
	if err != nil {
		log.Printf("[DEBUG] lifecycle: %v", err)
		return false
	}

	pre := c.state
	c.stopJitter()
	c.state.Status = next
	c.state = device.Idle(c.state)
	c.gen++
	c.phase = PhaseExplaining
	c.record()
	c.logf(MsgShutdownStart, eventlog.TypeWarning)
	c.publish()
	c.explain(ctx, advisor.ActionShutdown, pre)
	return true
}

func (c *Controller) explain(ctx context.Context, action advisor.Action, snap device.State) {
	ectx, cancel := context.WithCancel(ctx)
	c.cancelExplain = cancel
	gen := c.gen

	go func() {
		var res advisor.Result
		if c.explainer == nil {
			res = advisor.Result{Text: advisor.ExplainNoCredential, Degraded: true, Reason: advisor.FailureNoCredential}
		} else {
			res = c.explainer.ExplainAction(ectx, action, snap)
		}
		select {
		case c.explained <- explained{gen: gen, action: action, result: res}:
		case <-ectx.Done():
		}
	}()
}

func (c *Controller) onExplained(ex explained) {
	if ex.gen != c.gen || c.phase != PhaseExplaining {
		log.Printf("[DEBUG] lifecycle: dropping stale %s explanation", ex.action)
		return
	}
	if c.cancelExplain != nil {
		c.cancelExplain()
		c.cancelExplain = nil
	}

	typ := eventlog.TypeAI
	if ex.result.Degraded {
		typ = eventlog.TypeError
	}
	c.logf(protocolLogPrefix+ex.result.Text, typ)

	switch ex.action {
	case advisor.ActionWake:
		c.phase = PhaseBroadcast
		c.arm(c.timings.PreBroadcast)
	case advisor.ActionShutdown:
		c.phase = PhasePreHalt
		c.arm(c.timings.PreHalt)
	}
	c.publish()
}

func (c *Controller) onPhaseTimer() {
	switch c.phase {
	case PhaseBroadcast:
		c.logf(MsgMagicPacket, eventlog.TypeSuccess)
		c.phase = PhaseConfirm
		c.arm(c.timings.Confirm)

	case PhaseConfirm:
		next, err := device.Transition(c.state.Status, device.EventBooted)
		if err != nil {
			log.Printf("[ERROR] lifecycle: %v", err)
			c.phase = PhaseIdle
			break
		}
		c.state.Status = next
		c.state.LastSeen = device.LastSeenJustNow
		c.state = device.SeedOnline(c.state, c.rng)
		c.phase = PhaseIdle
		c.startJitter()
		c.record()
		c.logf(MsgOnline, eventlog.TypeSuccess)

	case PhasePreHalt:
		c.phase = PhaseHalt
		c.arm(c.timings.Halt)

	case PhaseHalt:
		next, err := device.Transition(c.state.Status, device.EventHalted)
		if err != nil {
			log.Printf("[ERROR] lifecycle: %v", err)
			c.phase = PhaseIdle
			break
		}
		c.state.Status = next
		c.state.LastSeen = c.now().Format(device.LastSeenLayout)
		c.state = device.Idle(c.state)
		c.locked = true
		c.phase = PhaseIdle
		c.record()
		c.logf(MsgHalted, eventlog.TypeInfo)

	default:
		return
	}
	c.publish()
}

func (c *Controller) onJitter() {
	if c.state.Status != device.StatusOnline {
		c.stopJitter()
		return
	}
	c.state = device.JitterTelemetry(c.state, c.rng)
	c.record()
	c.publish()
}

func (c *Controller) arm(d time.Duration) {
	c.stopTimer()
	c.timer = time.NewTimer(d)
	c.timerC = c.timer.C
}

func (c *Controller) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer, c.timerC = nil, nil
}

func (c *Controller) startJitter() {
	c.stopJitter()
	c.ticker = time.NewTicker(c.timings.Jitter)
	c.tickC = c.ticker.C
}

func (c *Controller) stopJitter() {
	if c.ticker != nil {
		c.ticker.Stop()
	}
	c.ticker, c.tickC = nil, nil
}

func (c *Controller) teardown() {
	c.stopTimer()
	c.stopJitter()
	if c.cancelExplain != nil {
		c.cancelExplain()
		c.cancelExplain = nil
	}
	c.gen++
	close(c.done)
	c.feed.Close()
}

func (c *Controller) record() {
	if c.recorder != nil {
		c.recorder.Record(c.state)
	}
}

func (c *Controller) logf(msg string, typ eventlog.Type) {
	if c.logs != nil {
		c.logs.Append(msg, typ)
	}
}

func (c *Controller) buildSnapshot() Snapshot {
	return Snapshot{
		Device: c.state,
		Locked: c.locked,
		Busy:   c.phase != PhaseIdle,
		Phase:  c.phase,
	}
}

func (c *Controller) publish() {
	c.mu.Lock()
	c.snap = c.buildSnapshot()
	snap := c.snap
	c.mu.Unlock()
	c.feed.Publish(snap)
}
