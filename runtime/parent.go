package runtime

import (
	gort "runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	jsruntime "github.com/wippyai/js-runtime"
	"github.com/wippyai/js-runtime/engine"
	"github.com/wippyai/js-runtime/errors"
)

// Heap size for the ancestor context. Derived contexts carry their own
// nursery but share engine internals with the ancestor.
const parentHeapSize = 32 << 20

// parentState is the published ancestor. Either ref is valid or err
// records why initialization failed; every later New call sees the same
// outcome.
type parentState struct {
	backend engine.Backend
	ref     jsruntime.ContextRef
	err     error
}

var (
	parentOnce sync.Once
	parent     atomic.Pointer[parentState]
)

// parentContext returns the process-wide ancestor context, creating it on
// first use. Callers racing the creator spin until the owner goroutine
// publishes; creation is fast and the window is one-time, so a scheduler
// yield beats parking machinery here.
func parentContext(b engine.Backend) (*parentState, error) {
	parentOnce.Do(func() {
		go parentOwner(b)
	})
	for {
		if st := parent.Load(); st != nil {
			if st.err != nil {
				return nil, st.err
			}
			if st.backend != b {
				return nil, errors.InvalidInput(errors.PhaseInit,
					"runtime already initialized with a different backend")
			}
			return st, nil
		}
		gort.Gosched()
	}
}

// parentOwner runs on its own OS thread for the life of the process. The
// ancestor context must never be destroyed while descendants exist, and
// must stay on the thread that created it, so the goroutine pins its
// thread and parks forever after publishing.
func parentOwner(b engine.Backend) {
	gort.LockOSThread()

	st := &parentState{backend: b}
	publishFailure := func(err error) {
		st.err = err
		parent.Store(st)
	}

	if err := b.InitProcess(); err != nil {
		engine.Logger().Error("engine process initialization failed", zap.Error(err))
		publishFailure(errors.Wrap(errors.PhaseInit, errors.KindEngineTrap, err, "process initialization"))
		return
	}

	ref, err := b.NewContext(0, parentHeapSize)
	if err != nil {
		publishFailure(errors.Wrap(errors.PhaseInit, errors.KindEngineTrap, err, "ancestor context"))
		return
	}
	if err := b.InitSelfHostedCode(ref); err != nil {
		publishFailure(errors.Wrap(errors.PhaseInit, errors.KindEngineTrap, err, "ancestor self-hosted code"))
		return
	}

	st.ref = ref
	parent.Store(st)

	// Park forever, keeping the thread and the ancestor alive.
	select {}
}
