package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"native-binder/channel"
	"native-binder/codec"
	"native-binder/message"
)

func constHandler(v codec.Value) channel.Handler {
	return channel.HandlerFunc(func(context.Context, *message.MethodCall) (codec.Value, error) {
		return v, nil
	})
}

type recordingDirectory struct {
	mu        sync.Mutex
	advertise []string
	withdraw  []string
	ops       []string
	fail      bool
}

func (d *recordingDirectory) Advertise(ch string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.advertise = append(d.advertise, ch)
	d.ops = append(d.ops, "+"+ch)
	if d.fail {
		return errors.New("directory down")
	}
	return nil
}

func (d *recordingDirectory) Withdraw(ch string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.withdraw = append(d.withdraw, ch)
	d.ops = append(d.ops, "-"+ch)
	return nil
}

func TestRegisterResolve(t *testing.T) {
	reg := New()

	if _, ok := reg.Resolve("c1"); ok {
		t.Fatal("expect empty registry")
	}
	if err := reg.Register("c1", constHandler(codec.Text("one"))); err != nil {
		t.Fatal(err)
	}
	h, ok := reg.Resolve("c1")
	if !ok {
		t.Fatal("expect c1 to resolve")
	}
	v, _ := h.HandleCall(context.Background(), &message.MethodCall{})
	if !codec.Equal(v, codec.Text("one")) {
		t.Fatalf("resolved the wrong handler: %s", v)
	}
}

func TestRegisterDuplicateRejected(t *testing.T) {
	reg := New()
	if err := reg.Register("c1", constHandler(codec.Text("first"))); err != nil {
		t.Fatal(err)
	}

	err := reg.Register("c1", constHandler(codec.Text("second")))
	if !errors.Is(err, ErrChannelExists) {
		t.Fatalf("expect ErrChannelExists, got %v", err)
	}

	// The original handler stays in place.
	h, _ := reg.Resolve("c1")
	v, _ := h.HandleCall(context.Background(), &message.MethodCall{})
	if !codec.Equal(v, codec.Text("first")) {
		t.Fatalf("duplicate registration replaced the handler: %s", v)
	}

	// After unregistering the name is free again.
	reg.Unregister("c1")
	if err := reg.Register("c1", constHandler(codec.Text("second"))); err != nil {
		t.Fatalf("expect re-register after unregister to succeed, got %v", err)
	}
}

func TestRegisterInvalid(t *testing.T) {
	reg := New()
	if err := reg.Register("", constHandler(codec.Null())); !errors.Is(err, ErrInvalidChannel) {
		t.Fatalf("expect ErrInvalidChannel for empty name, got %v", err)
	}
	if err := reg.Register("c", nil); !errors.Is(err, ErrInvalidChannel) {
		t.Fatalf("expect ErrInvalidChannel for nil handler, got %v", err)
	}
}

func TestUnregisterMissingIsNoop(t *testing.T) {
	dir := &recordingDirectory{}
	reg := New(WithDirectory(dir))
	reg.Unregister("nothing")
	if len(dir.withdraw) != 0 {
		t.Fatalf("expect no withdraw for unknown channel, got %v", dir.withdraw)
	}
}

func TestChannelsSorted(t *testing.T) {
	reg := New()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := reg.Register(name, constHandler(codec.Null())); err != nil {
			t.Fatal(err)
		}
	}
	got := reg.Channels()
	want := []string{"alpha", "mid", "zeta"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestDirectoryNotified(t *testing.T) {
	dir := &recordingDirectory{fail: true}
	reg := New(WithDirectory(dir))

	// A failing directory does not undo the local registration.
	if err := reg.Register("c1", constHandler(codec.Null())); err != nil {
		t.Fatalf("expect local registration to succeed, got %v", err)
	}
	if _, ok := reg.Resolve("c1"); !ok {
		t.Fatal("expect c1 registered")
	}
	reg.Unregister("c1")

	if fmt.Sprint(dir.advertise) != "[c1]" || fmt.Sprint(dir.withdraw) != "[c1]" {
		t.Fatalf("unexpected directory calls: advertise=%v withdraw=%v", dir.advertise, dir.withdraw)
	}
}

// Run with -race.
func TestConcurrentRegisterResolve(t *testing.T) {
	reg := New()
	const n = 100

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("c%d", i)
			if err := reg.Register(name, constHandler(codec.Int(int64(i)))); err != nil {
				t.Errorf("register %s: %v", name, err)
			}
		}(i)
		go func(i int) {
			defer wg.Done()
			// May or may not see the registration yet; must not race.
			reg.Resolve(fmt.Sprintf("c%d", i))
			reg.Channels()
		}(i)
	}
	wg.Wait()

	if got := len(reg.Channels()); got != n {
		t.Fatalf("expect %d channels, got %d", n, got)
	}
	for i := 0; i < n; i++ {
		h, ok := reg.Resolve(fmt.Sprintf("c%d", i))
		if !ok {
			t.Fatalf("lost registration c%d", i)
		}
		v, _ := h.HandleCall(context.Background(), &message.MethodCall{})
		if n, _ := v.AsInt(); n != int64(i) {
			t.Fatalf("c%d resolved to handler %d", i, n)
		}
	}
}

func TestConcurrentDuplicateRegister(t *testing.T) {
	reg := New()
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		won int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := reg.Register("shared", constHandler(codec.Null())); err == nil {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if won != 1 {
		t.Fatalf("expect exactly one winner, got %d", won)
	}
}

func TestDirectoryFollowsRegistryOrder(t *testing.T) {
	for round := 0; round < 50; round++ {
		dir := &recordingDirectory{}
		reg := New(WithDirectory(dir))
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				reg.Register("flip", constHandler(codec.Null()))
			}()
			go func() {
				defer wg.Done()
				reg.Unregister("flip")
			}()
		}
		wg.Wait()

		_, registered := reg.Resolve("flip")
		last := ""
		if n := len(dir.ops); n > 0 {
			last = dir.ops[n-1]
		}
		if registered && last != "+flip" {
			t.Fatalf("round %d: channel registered but last directory op is %q", round, last)
		}
		if !registered && last == "+flip" {
			t.Fatalf("round %d: channel gone but still advertised", round)
		}
		for i := 1; i < len(dir.ops); i++ {
			if dir.ops[i] == dir.ops[i-1] {
				t.Fatalf("round %d: directory ops out of step with registry: %v", round, dir.ops)
			}
		}
	}
}
