package hostfunc

import (
	"testing"

	jsruntime "github.com/wippyai/js-runtime"
)

func noop(jsruntime.ContextRef, []jsruntime.Value) (jsruntime.Value, error) {
	return jsruntime.UndefinedValue(), nil
}

func TestInsertGetRemove(t *testing.T) {
	table := NewTable()

	id := table.Insert(noop)
	if id == 0 {
		t.Fatal("Insert returned the invalid id")
	}
	if _, ok := table.Get(id); !ok {
		t.Fatal("Get missed a pinned function")
	}
	if table.Len() != 1 {
		t.Fatalf("Len = %d, want 1", table.Len())
	}

	if !table.Remove(id) {
		t.Fatal("Remove missed a pinned function")
	}
	if table.Remove(id) {
		t.Fatal("Remove succeeded twice")
	}
	if _, ok := table.Get(id); ok {
		t.Fatal("Get found a removed function")
	}
}

func TestIdsAreUnique(t *testing.T) {
	table := NewTable()
	seen := make(map[int32]bool)
	for i := 0; i < 100; i++ {
		id := table.Insert(noop)
		if seen[id] {
			t.Fatalf("id %d issued twice", id)
		}
		seen[id] = true
	}
}

func TestInsertNilReturnsInvalid(t *testing.T) {
	if id := NewTable().Insert(nil); id != 0 {
		t.Fatalf("Insert(nil) = %d, want 0", id)
	}
}

func TestCloseStopsInserts(t *testing.T) {
	table := NewTable()
	table.Insert(noop)

	if err := table.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if table.Len() != 0 {
		t.Fatalf("Len after Close = %d", table.Len())
	}
	if id := table.Insert(noop); id != 0 {
		t.Fatalf("Insert after Close = %d, want 0", id)
	}
}

func TestInvokerDispatch(t *testing.T) {
	table := NewTable()

	var gotArgs []jsruntime.Value
	id := table.Insert(func(cx jsruntime.ContextRef, args []jsruntime.Value) (jsruntime.Value, error) {
		gotArgs = args
		return jsruntime.Int32Value(7), nil
	})

	invoke := table.Invoker()
	args := []jsruntime.Value{jsruntime.Int32Value(1), jsruntime.BooleanValue(true)}
	result, err := invoke(jsruntime.ContextRef(1), id, args)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !result.IsInt32() || result.Int32() != 7 {
		t.Errorf("result = %v, want 7", result)
	}
	if len(gotArgs) != 2 {
		t.Errorf("args = %v", gotArgs)
	}

	if _, err := invoke(jsruntime.ContextRef(1), 9999, nil); err == nil {
		t.Error("expected error for unknown id")
	}
}
