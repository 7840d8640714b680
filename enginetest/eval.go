package enginetest

import (
	"strings"
	"unicode/utf16"

	jsruntime "github.com/wippyai/js-runtime"
	"github.com/wippyai/js-runtime/engine"
	"github.com/wippyai/js-runtime/errors"
)

// Compiler

func (b *Backend) NewCompileOptions(cx jsruntime.ContextRef, filename string, line uint32) (uint32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.context(cx)

	id := b.nextOptions
	b.nextOptions++
	b.options[id] = &compileOptions{filename: filename, line: line}
	return id, nil
}

func (b *Backend) FreeCompileOptions(cx jsruntime.ContextRef, opts uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.options[opts]
	if !ok || o.freed {
		panic("enginetest: free of unknown compile options")
	}
	o.freed = true
}

// LiveCompileOptions counts options objects not yet freed.
func (b *Backend) LiveCompileOptions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, o := range b.options {
		if !o.freed {
			n++
		}
	}
	return n
}

// SetEvalHook installs fn to decide each evaluation's outcome. Without a
// hook, any source starting with "throw" fails and everything else
// succeeds.
func (b *Backend) SetEvalHook(fn func(Evaluation) error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.evalHook = fn
}

func (b *Backend) Evaluate(cx jsruntime.ContextRef, opts uint32, source []uint16) error {
	if source == nil {
		panic("enginetest: Evaluate with nil source")
	}

	b.mu.Lock()
	b.context(cx)
	o, ok := b.options[opts]
	if !ok || o.freed {
		b.mu.Unlock()
		panic("enginetest: Evaluate with freed compile options")
	}
	ev := Evaluation{
		Cx:       cx,
		Filename: o.filename,
		Line:     o.line,
		Source:   string(utf16.Decode(source)),
	}
	b.evaluations = append(b.evaluations, ev)
	hook := b.evalHook
	b.mu.Unlock()

	if hook != nil {
		return hook(ev)
	}
	if strings.HasPrefix(ev.Source, "throw") {
		return errors.New(errors.PhaseEval, errors.KindEvalFailed).
			Detail("uncaught exception").Build()
	}
	return nil
}

// Evaluations returns every recorded Evaluate call in order.
func (b *Backend) Evaluations() []Evaluation {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Evaluation, len(b.evaluations))
	copy(out, b.evaluations)
	return out
}

// Collections

func (b *Backend) NewObjectVector(cx jsruntime.ContextRef) (uint32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.context(cx)
	id := b.nextVector
	b.nextVector++
	b.objectVectors[id] = nil
	return id, nil
}

// FailAppends makes every AppendObjectVector call report failure.
func (b *Backend) FailAppends(fail bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.appendFails = fail
}

func (b *Backend) AppendObjectVector(vec uint32, obj jsruntime.ObjectRef) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.appendFails {
		return false
	}
	v, ok := b.objectVectors[vec]
	if !ok {
		panic("enginetest: append to unknown object vector")
	}
	b.objectVectors[vec] = append(v, obj)
	return true
}

func (b *Backend) FreeObjectVector(vec uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.objectVectors[vec]; !ok {
		panic("enginetest: free of unknown object vector")
	}
	delete(b.objectVectors, vec)
}

// ObjectVectorContents returns the objects appended to vec.
func (b *Backend) ObjectVectorContents(vec uint32) []jsruntime.ObjectRef {
	b.mu.Lock()
	defer b.mu.Unlock()
	v := b.objectVectors[vec]
	out := make([]jsruntime.ObjectRef, len(v))
	copy(out, v)
	return out
}

// LiveObjectVectors counts vectors not yet freed.
func (b *Backend) LiveObjectVectors() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objectVectors)
}

func (b *Backend) NewIdVector(cx jsruntime.ContextRef) (uint32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.context(cx)
	id := b.nextVector
	b.nextVector++
	b.idVectors[id] = nil
	return id, nil
}

// FillIdVector sets vec's contents, standing in for the engine APIs that
// populate id vectors by reference.
func (b *Backend) FillIdVector(vec uint32, ids []jsruntime.PropertyId) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.idVectors[vec]; !ok {
		panic("enginetest: fill of unknown id vector")
	}
	b.idVectors[vec] = append([]jsruntime.PropertyId(nil), ids...)
}

func (b *Backend) SliceIdVector(vec uint32) []jsruntime.PropertyId {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.idVectors[vec]
	if !ok {
		panic("enginetest: slice of unknown id vector")
	}
	out := make([]jsruntime.PropertyId, len(v))
	copy(out, v)
	return out
}

func (b *Backend) FreeIdVector(vec uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.idVectors[vec]; !ok {
		panic("enginetest: free of unknown id vector")
	}
	delete(b.idVectors, vec)
}

// LiveIdVectors counts id vectors not yet freed.
func (b *Backend) LiveIdVectors() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.idVectors)
}

// Definitions

func (b *Backend) DefineFunctions(cx jsruntime.ContextRef, obj jsruntime.ObjectRef, defs []engine.FunctionDef) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.context(cx)
	if _, ok := b.objects[obj]; !ok {
		return errors.InvalidInput(errors.PhaseHost, "unknown object")
	}
	b.functionDefs[obj] = append(b.functionDefs[obj], defs...)
	return nil
}

func (b *Backend) DefineProperties(cx jsruntime.ContextRef, obj jsruntime.ObjectRef, defs []engine.PropertyDef) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.context(cx)
	if _, ok := b.objects[obj]; !ok {
		return errors.InvalidInput(errors.PhaseHost, "unknown object")
	}
	b.propertyDefs[obj] = append(b.propertyDefs[obj], defs...)
	return nil
}

// DefinedFunctions returns the function table installed on obj.
func (b *Backend) DefinedFunctions(obj jsruntime.ObjectRef) []engine.FunctionDef {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]engine.FunctionDef, len(b.functionDefs[obj]))
	copy(out, b.functionDefs[obj])
	return out
}

// DefinedProperties returns the property table installed on obj.
func (b *Backend) DefinedProperties(obj jsruntime.ObjectRef) []engine.PropertyDef {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]engine.PropertyDef, len(b.propertyDefs[obj]))
	copy(out, b.propertyDefs[obj])
	return out
}
