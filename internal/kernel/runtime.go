package kernel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"remark-bot/pkg/remark"
)

// moduleRecord is the kernel's bookkeeping for one registered module.
type moduleRecord struct {
	name          string
	module        remark.Module
	capabilities  []remark.Capability
	subscriptions []remark.Subscription
	subMu         sync.Mutex
}

// addSubscription remembers a subscription for later teardown.
func (m *moduleRecord) addSubscription(subscription remark.Subscription) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	m.subscriptions = append(m.subscriptions, subscription)
}

// closeSubscriptions tears down every tracked subscription. The slice is
// detached under the lock first, so a second shutdown sees nothing to close.
func (m *moduleRecord) closeSubscriptions(ctx context.Context) error {
	m.subMu.Lock()
	subscriptions := append([]remark.Subscription(nil), m.subscriptions...)
	m.subscriptions = nil
	m.subMu.Unlock()

	var closeErr error
	for _, subscription := range subscriptions {
		if err := subscription.Close(ctx); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close subscription %s: %w", subscription.Name(), err))
		}
	}

	return closeErr
}

// moduleRuntime is what a module receives as its remark.ModuleRuntime.
type moduleRuntime struct {
	moduleName    string
	serviceLookup remark.ServiceRegistry
	bus           remark.EventBus
	record        *moduleRecord
}

// Services exposes the shared service registry.
func (r *moduleRuntime) Services() remark.ServiceRegistry {
	return r.serviceLookup
}

// Subscribe attaches a handler to the bus once the interest passes the
// module's declared capabilities.
func (r *moduleRuntime) Subscribe(
	ctx context.Context,
	interest remark.InterestSet,
	spec remark.SubscriptionSpec,
	handler remark.EventHandler,
) (remark.Subscription, error) {
	if spec.Name == "" {
		spec.Name = fmt.Sprintf("%s-subscription", r.moduleName)
	}
	if err := assertSubscriptionAllowed(r.record.capabilities, spec.Name, interest); err != nil {
		return nil, fmt.Errorf("module %s subscribe %s: %w", r.moduleName, spec.Name, err)
	}

	subscription, err := r.bus.Subscribe(ctx, interest, spec, handler)
	if err != nil {
		return nil, fmt.Errorf("module %s subscribe %s: %w", r.moduleName, spec.Name, err)
	}

	r.record.addSubscription(subscription)

	return subscription, nil
}

// assertSubscriptionAllowed rejects interests no declared capability covers.
func assertSubscriptionAllowed(capabilities []remark.Capability, subscriptionName string, interest remark.InterestSet) error {
	if len(capabilities) == 0 {
		return fmt.Errorf("subscription %s requires at least one declared capability", subscriptionName)
	}

	for _, capability := range capabilities {
		if capability.Interest.Allows(interest) {
			return nil
		}
	}

	return fmt.Errorf("subscription does not match declared module capabilities")
}
