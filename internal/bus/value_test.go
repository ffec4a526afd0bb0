package bus

import (
	"reflect"
	"sync"
	"testing"
)

func TestValueReplaysCurrent(t *testing.T) {
	v := NewValue(3)
	var got []int
	unsub := v.Subscribe(func(n int) { got = append(got, n) })
	defer unsub()

	v.Set(4)

	if !reflect.DeepEqual(got, []int{3, 4}) {
		t.Errorf("got %v, want [3 4]", got)
	}
	if v.Get() != 4 {
		t.Errorf("Get() = %d, want 4", v.Get())
	}
}

func TestValueNotifiesInRegistrationOrder(t *testing.T) {
	v := NewValue("")
	var order []string
	for _, name := range []string{"a", "b", "c"} {
		v.Subscribe(func(s string) {
			if s != "" {
				order = append(order, name+s)
			}
		})
	}

	v.Set("1")
	v.Set("2")

	want := []string{"a1", "b1", "c1", "a2", "b2", "c2"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestValueUpdateIsAtomic(t *testing.T) {
	v := NewValue(0)
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			v.Update(func(n int) int { return n + 1 })
		}()
		go func() {
			defer wg.Done()
			v.Update(func(n int) int { return n + 2 })
		}()
	}
	wg.Wait()
	if v.Get() != 150 {
		t.Errorf("Get() = %d, want 150", v.Get())
	}
}

func TestValueUnsubscribe(t *testing.T) {
	v := NewValue(0)
	calls := 0
	unsub := v.Subscribe(func(int) { calls++ })
	unsub()
	unsub()

	v.Set(1)

	if calls != 1 {
		t.Errorf("calls = %d, want 1 (replay only)", calls)
	}
	if v.Observers() != 0 {
		t.Errorf("Observers() = %d, want 0", v.Observers())
	}
}

func TestValueObserverCanReadAndUnsubscribe(t *testing.T) {
	v := NewValue(0)
	var unsub func()
	seen := 0
	unsub = v.Subscribe(func(n int) {
		seen = v.Get()
		if n == 2 {
			unsub()
		}
	})

	v.Set(2)
	v.Set(3)

	if seen != 2 {
		t.Errorf("seen = %d, want 2", seen)
	}
}

func TestGroupClose(t *testing.T) {
	v := NewValue(0)
	var g Group
	g.Add(v.Subscribe(func(int) {}))
	g.Add(v.Subscribe(func(int) {}))

	g.Close()
	if v.Observers() != 0 {
		t.Errorf("Observers() = %d after Close, want 0", v.Observers())
	}

	// Adding to a closed group releases immediately.
	g.Add(v.Subscribe(func(int) {}))
	if v.Observers() != 0 {
		t.Errorf("Observers() = %d after late Add, want 0", v.Observers())
	}
}
