package runtime

import (
	"unicode/utf16"

	"go.uber.org/zap"

	jsruntime "github.com/wippyai/js-runtime"
	"github.com/wippyai/js-runtime/engine"
	"github.com/wippyai/js-runtime/errors"
	"github.com/wippyai/js-runtime/rooting"
)

// Native stack quota tiers. System code gets the full quota; trusted and
// untrusted script keep descending buffers below it so overflow recovery
// always has headroom to run.
const (
	stackQuota          = 128 * 8 * 1024
	systemCodeBuffer    = 10 * 1024
	trustedScriptBuffer = 8 * 12800
)

const defaultHeapSize = 32 << 20

// Option configures New.
type Option func(*config)

type config struct {
	heapSize uint32
	logger   *zap.Logger
	reporter engine.WarningReporter
}

// WithHeapSize overrides the derived context's heap size.
func WithHeapSize(bytes uint32) Option {
	return func(c *config) { c.heapSize = bytes }
}

// WithLogger routes runtime and script-warning logs to l.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithWarningReporter installs an additional sink for script warnings.
// Warnings are always logged; the reporter sees them as well.
func WithWarningReporter(r engine.WarningReporter) Option {
	return func(c *config) { c.reporter = r }
}

// Runtime owns one derived execution context. It must stay on the
// goroutine that created it; contexts are thread-confined and sharing one
// across threads is exactly the misuse this type exists to rule out.
type Runtime struct {
	_ noCopy

	backend engine.Backend
	cx      *engine.Context
	logger  *zap.Logger

	closed bool
}

// New creates a runtime whose context derives from the process-wide
// ancestor. The first call initializes the engine; every call must pass
// the same backend.
func New(b engine.Backend, opts ...Option) (*Runtime, error) {
	if b == nil {
		return nil, errors.InvalidInput(errors.PhaseInit, "nil backend")
	}

	cfg := config{heapSize: defaultHeapSize, logger: engine.Logger()}
	for _, o := range opts {
		o(&cfg)
	}

	st, err := parentContext(b)
	if err != nil {
		return nil, err
	}

	cx, err := engine.NewContext(b, st.ref, cfg.heapSize)
	if err != nil {
		return nil, err
	}

	// The nominal heap cap stays unconstrained; the allocator's last-ditch
	// trigger is the only hard stop.
	b.SetGCParameter(cx.Ref(), engine.GCParamMaxBytes, ^uint32(0))

	if err := b.InitSelfHostedCode(cx.Ref()); err != nil {
		cx.Destroy()
		return nil, errors.Wrap(errors.PhaseContext, errors.KindEngineTrap, err, "self-hosted code")
	}

	rt := &Runtime{backend: b, cx: cx, logger: cfg.logger}
	b.SetWarningReporter(cx.Ref(), rt.warningSink(cfg.reporter))
	b.SetNativeStackQuota(cx.Ref(),
		stackQuota,
		stackQuota-systemCodeBuffer,
		stackQuota-systemCodeBuffer-trustedScriptBuffer)
	b.BeginRequest(cx.Ref())

	return rt, nil
}

// warningSink logs every script warning and forwards to the optional
// user reporter.
func (rt *Runtime) warningSink(extra engine.WarningReporter) engine.WarningReporter {
	return func(w engine.WarningReport) {
		rt.logger.Warn("script warning",
			zap.String("filename", w.Filename),
			zap.Uint32("line", w.Line),
			zap.Uint32("column", w.Column),
			zap.String("message", w.Message))
		if extra != nil {
			extra(w)
		}
	}
}

// Cx returns the runtime's execution context, for rooting and compartment
// entry.
func (rt *Runtime) Cx() *engine.Context { return rt.cx }

// Backend returns the engine backend.
func (rt *Runtime) Backend() engine.Backend { return rt.backend }

// NewGlobal creates a global object in a fresh compartment and returns it
// rooted. The caller releases the root when done with the global.
func (rt *Runtime) NewGlobal() (*rooting.Root[jsruntime.ObjectRef], error) {
	if err := rt.assertLive(); err != nil {
		return nil, err
	}
	obj, err := rt.backend.NewGlobalObject(rt.cx.Ref())
	if err != nil {
		return nil, err
	}
	return rooting.NewRoot(rt.cx, obj), nil
}

// Evaluate compiles and runs source against global's compartment. The
// completion value is discarded; failure means a compile error or an
// uncaught exception, which is left pending on the context.
func (rt *Runtime) Evaluate(global rooting.Handle[jsruntime.ObjectRef], source, filename string, line uint32) error {
	if err := rt.assertLive(); err != nil {
		return err
	}
	g := global.Get()
	if g.IsNull() {
		return errors.InvalidInput(errors.PhaseEval, "null global object")
	}

	guard := engine.EnterCompartment(rt.cx, g)
	defer guard.Leave()

	opts, err := rt.backend.NewCompileOptions(rt.cx.Ref(), filename, line)
	if err != nil {
		return errors.Wrap(errors.PhaseCompile, errors.KindEngineTrap, err, "compile options")
	}
	defer rt.backend.FreeCompileOptions(rt.cx.Ref(), opts)

	units := utf16.Encode([]rune(source))
	if units == nil {
		// The engine requires a non-null source pointer even for an empty
		// script.
		units = []uint16{}
	}

	if err := rt.backend.Evaluate(rt.cx.Ref(), opts, units); err != nil {
		rt.logger.Debug("evaluation failed",
			zap.String("filename", filename),
			zap.Uint32("line", line),
			zap.Error(err))
		evalErr := errors.Eval(filename, line)
		evalErr.Cause = err
		return evalErr
	}
	return nil
}

// Close ends the runtime's request and destroys its context. Safe to call
// more than once; only the first call does anything.
func (rt *Runtime) Close() {
	if rt.closed {
		return
	}
	rt.closed = true
	rt.backend.EndRequest(rt.cx.Ref())
	rt.cx.Destroy()
}

func (rt *Runtime) assertLive() error {
	if rt.closed {
		return errors.Destroyed(errors.PhaseContext, "runtime")
	}
	return nil
}

// noCopy triggers go vet's copylocks check; a Runtime must not be copied.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
