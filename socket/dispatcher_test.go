package socket

import (
	"encoding/json"
	"testing"
)

func TestDispatcher_Dispatch(t *testing.T) {
	d := NewDispatcher()

	var got []string
	d.Subscribe("onParticipantJoin", func(name string, payload json.RawMessage) {
		got = append(got, "first:"+string(payload))
	})
	d.Subscribe("onParticipantJoin", func(name string, payload json.RawMessage) {
		got = append(got, "second:"+string(payload))
	})
	d.Subscribe(AllEvents, func(name string, payload json.RawMessage) {
		got = append(got, "all:"+name)
	})

	if n := d.Dispatch("onParticipantJoin", json.RawMessage(`{}`)); n != 3 {
		t.Errorf("Dispatch = %d, want 3", n)
	}

	want := []string{"first:{}", "second:{}", "all:onParticipantJoin"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestDispatcher_NoHandlers(t *testing.T) {
	d := NewDispatcher()
	if n := d.Dispatch("onNobody", nil); n != 0 {
		t.Errorf("Dispatch = %d, want 0", n)
	}
}

func TestDispatcher_WildcardNamedPush(t *testing.T) {
	d := NewDispatcher()

	calls := 0
	d.Subscribe(AllEvents, func(name string, payload json.RawMessage) {
		calls++
	})

	if n := d.Dispatch(AllEvents, json.RawMessage(`{}`)); n != 1 {
		t.Errorf("Dispatch = %d, want 1", n)
	}
	if calls != 1 {
		t.Errorf("handler ran %d times, want 1", calls)
	}
}

func TestDispatcher_Unsubscribe(t *testing.T) {
	d := NewDispatcher()

	calls := 0
	unsubscribe := d.Subscribe("onReady", func(string, json.RawMessage) { calls++ })
	kept := d.Subscribe("onReady", func(string, json.RawMessage) {})
	defer kept()

	d.Dispatch("onReady", nil)
	unsubscribe()
	unsubscribe()
	d.Dispatch("onReady", nil)

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if n := d.Handlers("onReady"); n != 1 {
		t.Errorf("Handlers = %d, want 1", n)
	}
}

func TestDispatcher_SubscribeDuringDispatch(t *testing.T) {
	d := NewDispatcher()

	late := 0
	d.Subscribe("onHello", func(string, json.RawMessage) {
		d.Subscribe("onHello", func(string, json.RawMessage) { late++ })
	})

	if n := d.Dispatch("onHello", nil); n != 1 {
		t.Errorf("Dispatch = %d, want 1", n)
	}
	if late != 0 {
		t.Errorf("handler added during dispatch ran %d times", late)
	}
}

func TestDispatcher_PanicRecovered(t *testing.T) {
	d := NewDispatcher()

	var panicked string
	d.onPanic = func(name string, recovered any) {
		panicked = name
	}

	ran := false
	d.Subscribe("onInput", func(string, json.RawMessage) { panic("boom") })
	d.Subscribe("onInput", func(string, json.RawMessage) { ran = true })

	d.Dispatch("onInput", nil)

	if panicked != "onInput" {
		t.Errorf("onPanic name = %q, want onInput", panicked)
	}
	if !ran {
		t.Error("handler after the panicking one did not run")
	}
}

func TestDispatcher_Await(t *testing.T) {
	d := NewDispatcher()

	done, release := d.await("onReady", func(payload json.RawMessage) bool {
		v, err := DecodePayload[struct {
			IsReady bool `json:"isReady"`
		}](payload)
		return err == nil && v.IsReady
	})

	d.Dispatch("onReady", json.RawMessage(`{"isReady":false}`))
	select {
	case <-done:
		t.Fatal("await fired on a non-matching payload")
	default:
	}

	d.Dispatch("onReady", json.RawMessage(`{"isReady":true}`))
	d.Dispatch("onReady", json.RawMessage(`{"isReady":true}`))
	select {
	case <-done:
	default:
		t.Fatal("await did not fire")
	}

	release()
	if n := d.Handlers("onReady"); n != 0 {
		t.Errorf("Handlers after release = %d, want 0", n)
	}
}

func TestDecodePayload(t *testing.T) {
	type memory struct {
		UsedBytes int `json:"usedBytes"`
	}

	v, err := DecodePayload[memory](json.RawMessage(`{"usedBytes":42}`))
	if err != nil || v.UsedBytes != 42 {
		t.Errorf("DecodePayload = %+v, %v", v, err)
	}

	v, err = DecodePayload[memory](json.RawMessage(`null`))
	if err != nil || v.UsedBytes != 0 {
		t.Errorf("DecodePayload(null) = %+v, %v", v, err)
	}

	if _, err := DecodePayload[memory](json.RawMessage(`[1,2]`)); err == nil {
		t.Error("expected error for mismatched payload")
	}
}
