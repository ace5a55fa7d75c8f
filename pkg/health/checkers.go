package health

import (
	"context"
	"fmt"

	"github.com/jllopis/actionhub/pkg/executor"
	"github.com/jllopis/actionhub/pkg/registry"
)

// Static always reports status with message.
func Static(status Status, message string) Checker {
	return CheckerFunc(func(context.Context) Result {
		return Result{Status: status, Message: message}
	})
}

// RegistryChecker is healthy once a registry is loaded. Dangling internal
// dependencies degrade it.
func RegistryChecker(reg *registry.Registry) Checker {
	return CheckerFunc(func(context.Context) Result {
		if reg == nil {
			return Result{Status: Unhealthy, Message: "registry not loaded"}
		}
		s := reg.Stats()
		msg := fmt.Sprintf("%d repositories, %d capabilities, %d actions", s.Repositories, s.Capabilities, s.Actions)
		if n := len(reg.DanglingDependencies()); n > 0 {
			return Result{Status: Degraded, Message: fmt.Sprintf("%s, %d dangling dependencies", msg, n)}
		}
		return Result{Status: Healthy, Message: msg}
	})
}

// ExecutorChecker is unhealthy without a resolvable default executor and
// degraded when the default is missing but others exist.
func ExecutorChecker(router *executor.Router) Checker {
	return CheckerFunc(func(context.Context) Result {
		if router == nil {
			return Result{Status: Unhealthy, Message: "no executor router"}
		}
		available := router.ListAvailable()
		if len(available) == 0 {
			return Result{Status: Unhealthy, Message: "no executors configured"}
		}
		if _, _, err := router.Get(""); err != nil {
			return Result{Status: Degraded, Message: fmt.Sprintf("default executor %q not configured", router.Default())}
		}
		return Result{Status: Healthy, Message: fmt.Sprintf("default %s, %d available", router.Default(), len(available))}
	})
}

// Pinger is implemented by backends that can check their connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker reports unhealthy when p.Ping fails.
func PingChecker(p Pinger) Checker {
	return CheckerFunc(func(ctx context.Context) Result {
		if err := p.Ping(ctx); err != nil {
			return Result{Status: Unhealthy, Message: err.Error()}
		}
		return Result{Status: Healthy}
	})
}
