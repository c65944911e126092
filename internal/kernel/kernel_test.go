package kernel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"remark-bot/pkg/remark"
)

// TestRegisterModuleDependencyValidation verifies capability-required service validation.
func TestRegisterModuleDependencyValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		registerStore bool
		wantErr       bool
	}{
		{
			name:          "missing required service fails",
			registerStore: false,
			wantErr:       true,
		},
		{
			name:          "present required service succeeds",
			registerStore: true,
			wantErr:       false,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			kernelRuntime := New()
			t.Cleanup(func() {
				_ = kernelRuntime.EventBus().Close(context.Background())
			})
			if testCase.registerStore {
				if err := kernelRuntime.RegisterService(remark.ServiceSnipeStore, struct{}{}); err != nil {
					t.Fatalf("register store service failed: %v", err)
				}
			}

			module := &stubModule{
				name: "cap-module",
				spec: remark.ModuleSpec{
					Handlers: []remark.ModuleHandler{
						{
							Capability: remark.Capability{
								Name:             "needs-store",
								RequiredServices: []string{remark.ServiceSnipeStore},
								Interest: remark.InterestSet{
									Kinds: []remark.EventKind{remark.EventKindMessageDeleted},
								},
							},
							Handler: func(_ context.Context, _ *remark.Event) error {
								return nil
							},
						},
					},
				},
			}
			err := kernelRuntime.RegisterModule(context.Background(), module)
			if testCase.wantErr && err == nil {
				t.Fatal("expected module registration error")
			}
			if !testCase.wantErr && err != nil {
				t.Fatalf("unexpected module registration error: %v", err)
			}
		})
	}
}

// TestKernelRunCallsModuleLifecycle verifies lifecycle hook execution during run/shutdown.
func TestKernelRunCallsModuleLifecycle(t *testing.T) {
	t.Parallel()

	kernelRuntime := New()

	module := &stubModule{name: "lifecycle"}
	if err := kernelRuntime.RegisterModule(context.Background(), module); err != nil {
		t.Fatalf("register module failed: %v", err)
	}

	driver := &stubDriver{name: "stub-driver"}
	if err := kernelRuntime.RegisterDriver(driver); err != nil {
		t.Fatalf("register driver failed: %v", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() {
		runDone <- kernelRuntime.Run(runCtx)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-runDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Fatalf("kernel run failed: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("kernel run did not exit")
	}

	if module.registered.Load() == 0 {
		t.Fatal("module OnRegister was not called")
	}
	if module.started.Load() == 0 {
		t.Fatal("module OnStart was not called")
	}
	if module.shutdown.Load() == 0 {
		t.Fatal("module OnShutdown was not called")
	}
	if driver.started.Load() == 0 {
		t.Fatal("driver Start was not called")
	}
	if driver.stopped.Load() == 0 {
		t.Fatal("driver Shutdown was not called")
	}
}

// TestRegisterModuleBindsDeclarativeHandlers verifies handlers in ModuleSpec are auto-subscribed.
func TestRegisterModuleBindsDeclarativeHandlers(t *testing.T) {
	t.Parallel()

	kernelRuntime := New()
	t.Cleanup(func() {
		_ = kernelRuntime.EventBus().Close(context.Background())
	})

	handled := make(chan string, 1)
	module := &stubModule{
		name: "declarative",
		spec: remark.ModuleSpec{
			Handlers: []remark.ModuleHandler{
				{
					Capability: remark.Capability{
						Name: "message-deleted",
						Interest: remark.InterestSet{
							Kinds: []remark.EventKind{remark.EventKindMessageDeleted},
						},
					},
					Subscription: remark.SubscriptionSpec{
						Name:    "declarative-handler",
						Buffer:  1,
						Workers: 1,
					},
					Handler: func(_ context.Context, event *remark.Event) error {
						handled <- event.ID
						return nil
					},
				},
			},
		},
	}
	if err := kernelRuntime.RegisterModule(context.Background(), module); err != nil {
		t.Fatalf("register module failed: %v", err)
	}

	if err := kernelRuntime.EventBus().Publish(context.Background(), newTestEvent("e1", remark.EventKindMessageDeleted)); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case id := <-handled:
		if id != "e1" {
			t.Fatalf("handled event id = %s, want e1", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for declarative handler")
	}
}

// TestRegisterModuleImperativeSubscriptionCapabilityGate verifies imperative subscriptions
// remain possible, but only when a declared capability covers the interest.
func TestRegisterModuleImperativeSubscriptionCapabilityGate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		spec    remark.ModuleSpec
		wantErr bool
	}{
		{
			name:    "missing capability fails",
			spec:    remark.ModuleSpec{},
			wantErr: true,
		},
		{
			name: "declared capability allows imperative subscribe",
			spec: remark.ModuleSpec{
				Handlers: []remark.ModuleHandler{
					{
						Capability: remark.Capability{
							Name: "creation-capability",
							Interest: remark.InterestSet{
								Kinds: []remark.EventKind{remark.EventKindMessageCreated},
							},
						},
						Handler: func(_ context.Context, _ *remark.Event) error {
							return nil
						},
					},
				},
			},
			wantErr: false,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			kernelRuntime := New()
			t.Cleanup(func() {
				_ = kernelRuntime.EventBus().Close(context.Background())
			})

			module := &stubModule{
				name: "imperative",
				spec: testCase.spec,
				onRegister: func(ctx context.Context, runtime remark.ModuleRuntime) error {
					_, err := runtime.Subscribe(ctx, remark.InterestSet{
						Kinds: []remark.EventKind{remark.EventKindMessageCreated},
					}, remark.SubscriptionSpec{
						Name: "imperative-handler",
					}, func(_ context.Context, _ *remark.Event) error {
						return nil
					})
					if err != nil {
						return fmt.Errorf("subscribe imperative handler: %w", err)
					}

					return nil
				},
			}

			err := kernelRuntime.RegisterModule(context.Background(), module)
			if testCase.wantErr && err == nil {
				t.Fatal("expected module registration error")
			}
			if !testCase.wantErr && err != nil {
				t.Fatalf("unexpected module registration error: %v", err)
			}
		})
	}
}

// TestRegisterModuleSpecValidation verifies declarative spec validation failures.
func TestRegisterModuleSpecValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		spec       remark.ModuleSpec
		wantErrSub string
	}{
		{
			name: "empty handler capability name",
			spec: remark.ModuleSpec{
				Handlers: []remark.ModuleHandler{
					{
						Capability: remark.Capability{
							Interest: remark.InterestSet{
								Kinds: []remark.EventKind{remark.EventKindMessageCreated},
							},
						},
						Handler: func(_ context.Context, _ *remark.Event) error {
							return nil
						},
					},
				},
			},
			wantErrSub: "empty capability name",
		},
		{
			name: "duplicate capability name",
			spec: remark.ModuleSpec{
				Handlers: []remark.ModuleHandler{
					{
						Capability: remark.Capability{
							Name: "dup",
							Interest: remark.InterestSet{
								Kinds: []remark.EventKind{remark.EventKindMessageCreated},
							},
						},
						Handler: func(_ context.Context, _ *remark.Event) error {
							return nil
						},
					},
					{
						Capability: remark.Capability{
							Name: "dup",
							Interest: remark.InterestSet{
								Kinds: []remark.EventKind{remark.EventKindMessageEdited},
							},
						},
						Handler: func(_ context.Context, _ *remark.Event) error {
							return nil
						},
					},
				},
			},
			wantErrSub: "duplicate capability name",
		},
		{
			name: "nil handler",
			spec: remark.ModuleSpec{
				Handlers: []remark.ModuleHandler{
					{
						Capability: remark.Capability{
							Name: "nil-handler",
							Interest: remark.InterestSet{
								Kinds: []remark.EventKind{remark.EventKindMessageCreated},
							},
						},
					},
				},
			},
			wantErrSub: "nil handler",
		},
		{
			name: "duplicate subscription name",
			spec: remark.ModuleSpec{
				Handlers: []remark.ModuleHandler{
					{
						Capability: remark.Capability{
							Name: "a",
							Interest: remark.InterestSet{
								Kinds: []remark.EventKind{remark.EventKindMessageCreated},
							},
						},
						Subscription: remark.SubscriptionSpec{Name: "dup-sub"},
						Handler: func(_ context.Context, _ *remark.Event) error {
							return nil
						},
					},
					{
						Capability: remark.Capability{
							Name: "b",
							Interest: remark.InterestSet{
								Kinds: []remark.EventKind{remark.EventKindMessageEdited},
							},
						},
						Subscription: remark.SubscriptionSpec{Name: "dup-sub"},
						Handler: func(_ context.Context, _ *remark.Event) error {
							return nil
						},
					},
				},
			},
			wantErrSub: "duplicate subscription name",
		},
		{
			name: "invalid command spec",
			spec: remark.ModuleSpec{
				Commands: []remark.CommandSpec{
					{Name: ""},
				},
			},
			wantErrSub: "module command 0",
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			kernelRuntime := New()
			module := &stubModule{
				name: "invalid",
				spec: testCase.spec,
			}

			err := kernelRuntime.RegisterModule(context.Background(), module)
			if err == nil {
				t.Fatal("expected module registration error")
			}
			if !strings.Contains(err.Error(), testCase.wantErrSub) {
				t.Fatalf("error = %v, want substring %q", err, testCase.wantErrSub)
			}
		})
	}
}

// TestRegisterModuleDuplicateCommandAcrossModules verifies the command registry
// rejects a second module claiming an already registered invocation token.
func TestRegisterModuleDuplicateCommandAcrossModules(t *testing.T) {
	t.Parallel()

	kernelRuntime := New()
	t.Cleanup(func() {
		_ = kernelRuntime.EventBus().Close(context.Background())
	})

	first := &stubModule{
		name: "first",
		spec: remark.ModuleSpec{
			Commands: []remark.CommandSpec{
				{Name: "snipe", Aliases: []string{"s"}},
			},
		},
	}
	if err := kernelRuntime.RegisterModule(context.Background(), first); err != nil {
		t.Fatalf("register first module failed: %v", err)
	}

	second := &stubModule{
		name: "second",
		spec: remark.ModuleSpec{
			Commands: []remark.CommandSpec{
				{Name: "s"},
			},
		},
	}
	err := kernelRuntime.RegisterModule(context.Background(), second)
	if err == nil {
		t.Fatal("expected duplicate command registration to fail")
	}
	if !strings.Contains(err.Error(), "already registered by module first") {
		t.Fatalf("error = %v, want prior owner in message", err)
	}
}

func TestKernelProvidesCommandCatalogService(t *testing.T) {
	t.Parallel()

	kernelRuntime := New()
	t.Cleanup(func() {
		_ = kernelRuntime.EventBus().Close(context.Background())
	})

	catalog, err := remark.ResolveAs[remark.CommandCatalog](
		kernelRuntime.Services(),
		remark.ServiceCommandCatalog,
	)
	if err != nil {
		t.Fatalf("resolve command catalog failed: %v", err)
	}

	module := &stubModule{
		name: "catalog-provider",
		spec: remark.ModuleSpec{
			Commands: []remark.CommandSpec{
				{Name: "snipe", Aliases: []string{"s"}},
				{Name: "help"},
			},
		},
	}
	if err := kernelRuntime.RegisterModule(context.Background(), module); err != nil {
		t.Fatalf("register module failed: %v", err)
	}

	commands, err := catalog.ListCommands(context.Background())
	if err != nil {
		t.Fatalf("list commands failed: %v", err)
	}
	if len(commands) != 2 {
		t.Fatalf("commands len = %d, want 2", len(commands))
	}
	if commands[0].Command.Name != "help" || commands[0].ModuleName != "catalog-provider" {
		t.Fatalf("commands[0] = %+v, want help from catalog-provider", commands[0])
	}
	if commands[1].Command.Name != "snipe" {
		t.Fatalf("commands[1] = %+v, want snipe", commands[1])
	}
	if len(commands[1].Command.Aliases) != 1 || commands[1].Command.Aliases[0] != "s" {
		t.Fatalf("snipe aliases = %v, want [s]", commands[1].Command.Aliases)
	}
}

type stubModule struct {
	name string
	spec remark.ModuleSpec

	onRegister func(ctx context.Context, runtime remark.ModuleRuntime) error

	registered atomic.Int32
	started    atomic.Int32
	shutdown   atomic.Int32
}

func (m *stubModule) Name() string {
	return m.name
}

func (m *stubModule) Spec() remark.ModuleSpec {
	return m.spec
}

func (m *stubModule) OnRegister(ctx context.Context, runtime remark.ModuleRuntime) error {
	m.registered.Add(1)
	if m.onRegister != nil {
		if err := m.onRegister(ctx, runtime); err != nil {
			return err
		}
	}

	return nil
}

func (m *stubModule) OnStart(_ context.Context) error {
	m.started.Add(1)
	return nil
}

func (m *stubModule) OnShutdown(_ context.Context) error {
	m.shutdown.Add(1)
	return nil
}

type stubDriver struct {
	name string

	started atomic.Int32
	stopped atomic.Int32
}

func (d *stubDriver) Name() string {
	return d.name
}

func (d *stubDriver) Start(ctx context.Context, _ remark.EventSink) error {
	d.started.Add(1)
	<-ctx.Done()
	return nil
}

func (d *stubDriver) Shutdown(_ context.Context) error {
	d.stopped.Add(1)
	return nil
}
