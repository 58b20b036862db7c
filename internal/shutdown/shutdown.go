package shutdown

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/matt/alivelock/internal/logger"
)

// Handler turns termination signals into one orderly shutdown sequence.
// Most programs use the package-level functions, which share a default
// Handler.
type Handler struct {
	installOnce sync.Once
	finishOnce  sync.Once
	exitingOnce sync.Once

	mu     sync.Mutex
	hooks  []func()
	sig    os.Signal
	grace  time.Duration
	ctx    context.Context
	cancel context.CancelFunc

	signals chan os.Signal
	exiting chan struct{}

	notify    func(chan<- os.Signal)
	terminate func(os.Signal)
	exit      func(int)
}

// New returns a Handler that is not yet listening for signals.
func New() *Handler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		ctx:       ctx,
		cancel:    cancel,
		signals:   make(chan os.Signal, 2),
		exiting:   make(chan struct{}),
		notify:    notifySignals,
		terminate: reraise,
		exit:      os.Exit,
	}
}

// Install starts listening for SIGINT and SIGTERM. Only the first call has
// any effect.
func (h *Handler) Install() {
	h.installOnce.Do(func() {
		if h.notify == nil || h.signals == nil {
			panic("shutdown: handler was not created with New")
		}
		h.notify(h.signals)
		go h.loop()
		logger.ForComponent("shutdown").Debug("signal handlers installed")
	})
}

// OnShutdown registers fn to run during the shutdown sequence. Hooks run in
// reverse registration order, like deferred calls.
func (h *Handler) OnShutdown(fn func()) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	h.hooks = append(h.hooks, fn)
	h.mu.Unlock()
}

// SetGracePeriod sets how long the handler waits, after cancelling Context,
// for the program to reach Exit on its own before forcing the sequence.
// Zero forces it immediately.
func (h *Handler) SetGracePeriod(d time.Duration) {
	if d < 0 {
		d = 0
	}
	h.mu.Lock()
	h.grace = d
	h.mu.Unlock()
}

// Context is cancelled when the first termination signal arrives.
func (h *Handler) Context() context.Context {
	return h.ctx
}

// Signal returns the signal that started the shutdown, or nil.
func (h *Handler) Signal() os.Signal {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sig
}

// Exit ends the process. Shutdown hooks run first; if a termination signal
// was received the process dies by that signal, otherwise it exits with code.
func (h *Handler) Exit(code int) {
	h.exitingOnce.Do(func() { close(h.exiting) })
	h.finish()
	h.exit(code)
}

func (h *Handler) loop() {
	sig := <-h.signals

	h.mu.Lock()
	h.sig = sig
	grace := h.grace
	h.mu.Unlock()

	log := logger.ForComponent("shutdown")
	log.Info("received termination signal", "signal", sig)
	h.cancel()

	if grace > 0 {
		timer := time.NewTimer(grace)
		defer timer.Stop()

		select {
		case <-h.exiting:
			// The program is unwinding; Exit finishes the sequence.
			h.forceOnSignal(sig)
			return
		case again := <-h.signals:
			log.Warn("second termination signal, forcing shutdown", "signal", again)
		case <-timer.C:
			log.Warn("grace period elapsed, forcing shutdown", "grace", grace)
		}
	}

	go h.forceOnSignal(sig)
	h.finish()
}

// forceOnSignal ends the process by first when another signal arrives while
// the shutdown sequence is still running, e.g. because a hook hangs.
func (h *Handler) forceOnSignal(first os.Signal) {
	again := <-h.signals
	logger.ForComponent("shutdown").Warn("termination signal during shutdown, terminating now",
		"signal", again)
	h.terminate(first)
}

// finish runs the hooks and, if a signal was received, re-raises it.
// Concurrent callers block until the first one is done, so hooks run once.
func (h *Handler) finish() {
	h.finishOnce.Do(func() {
		h.mu.Lock()
		hooks := make([]func(), len(h.hooks))
		copy(hooks, h.hooks)
		h.mu.Unlock()

		for i := len(hooks) - 1; i >= 0; i-- {
			runHook(hooks[i])
		}

		if sig := h.Signal(); sig != nil {
			logger.ForComponent("shutdown").Debug("terminating by signal", "signal", sig)
			h.terminate(sig)
		}
	})
}

// runHook keeps one failing hook from skipping the rest.
func runHook(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.ForComponent("shutdown").Error("shutdown hook panicked", "panic", r)
		}
	}()
	fn()
}

var std = New()

// Init installs the default handler. Call it once near the start of main;
// later calls are no-ops.
func Init() { std.Install() }

// OnShutdown registers a hook on the default handler.
func OnShutdown(fn func()) { std.OnShutdown(fn) }

// SetGracePeriod configures the default handler.
func SetGracePeriod(d time.Duration) { std.SetGracePeriod(d) }

// Context returns the default handler's context.
func Context() context.Context { return std.Context() }

// Signal returns the signal received by the default handler, or nil.
func Signal() os.Signal { return std.Signal() }

// Exit ends the process through the default handler.
func Exit(code int) { std.Exit(code) }
