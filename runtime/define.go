package runtime

import (
	jsruntime "github.com/wippyai/js-runtime"
	"github.com/wippyai/js-runtime/engine"
	"github.com/wippyai/js-runtime/errors"
	"github.com/wippyai/js-runtime/hostfunc"
	"github.com/wippyai/js-runtime/rooting"
)

// FunctionSpec declares one native method for DefineFunctions.
type FunctionSpec struct {
	Name  string
	Func  hostfunc.Func
	Nargs uint16
	Flags uint16
}

// PropertySpec declares one native accessor property for DefineProperties.
// Getter may not be nil; Setter may be, making the property read-only.
type PropertySpec struct {
	Name   string
	Getter hostfunc.Func
	Setter hostfunc.Func
	Flags  uint16
}

// DefineFunctions installs native methods on obj. The functions are pinned
// in table for as long as script can call them; the returned ids let the
// caller unpin them after the object is gone.
//
// A spec with an empty name or nil function is a programming error and
// panics before anything reaches the engine.
func (rt *Runtime) DefineFunctions(obj rooting.Handle[jsruntime.ObjectRef], table *hostfunc.Table, specs []FunctionSpec) ([]int32, error) {
	if err := rt.assertLive(); err != nil {
		return nil, err
	}

	defs := make([]engine.FunctionDef, len(specs))
	ids := make([]int32, len(specs))
	for i, s := range specs {
		if s.Name == "" {
			panic("runtime: function spec with empty name")
		}
		if s.Func == nil {
			panic("runtime: function spec with nil function")
		}
		id := table.Insert(s.Func)
		if id == 0 {
			return nil, errors.InvalidInput(errors.PhaseHost, "host function table closed")
		}
		ids[i] = id
		defs[i] = engine.FunctionDef{Name: s.Name, FuncID: id, Nargs: s.Nargs, Flags: s.Flags}
	}

	if err := rt.backend.DefineFunctions(rt.cx.Ref(), obj.Get(), defs); err != nil {
		for _, id := range ids {
			table.Remove(id)
		}
		return nil, err
	}
	return ids, nil
}

// DefineProperties installs native accessor properties on obj, pinning the
// getters and setters in table. The returned ids cover every pinned
// function, getters and setters both.
func (rt *Runtime) DefineProperties(obj rooting.Handle[jsruntime.ObjectRef], table *hostfunc.Table, specs []PropertySpec) ([]int32, error) {
	if err := rt.assertLive(); err != nil {
		return nil, err
	}

	defs := make([]engine.PropertyDef, len(specs))
	var ids []int32
	for i, s := range specs {
		if s.Name == "" {
			panic("runtime: property spec with empty name")
		}
		if s.Getter == nil {
			panic("runtime: property spec with nil getter")
		}
		getterID := table.Insert(s.Getter)
		if getterID == 0 {
			return nil, errors.InvalidInput(errors.PhaseHost, "host function table closed")
		}
		ids = append(ids, getterID)

		var setterID int32
		if s.Setter != nil {
			setterID = table.Insert(s.Setter)
			if setterID == 0 {
				return nil, errors.InvalidInput(errors.PhaseHost, "host function table closed")
			}
			ids = append(ids, setterID)
		}
		defs[i] = engine.PropertyDef{Name: s.Name, GetterID: getterID, SetterID: setterID, Flags: s.Flags}
	}

	if err := rt.backend.DefineProperties(rt.cx.Ref(), obj.Get(), defs); err != nil {
		for _, id := range ids {
			table.Remove(id)
		}
		return nil, err
	}
	return ids, nil
}
