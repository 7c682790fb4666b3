package router

import (
	"context"
	"log/slog"
	"strings"

	"github.com/adpilot/adpilot/internal/domain"
)

// Classifier is one routing strategy. It returns a tagged result or
// reports "no opinion" (ok=false); only transport-level failures are
// returned as errors and those never abort routing.
type Classifier interface {
	Classify(ctx context.Context, message string) (domain.RouteResult, bool, error)
}

// Router resolves the domain of an inbound message by trying an ordered
// list of classifiers: keyword first, then the model fallback. Routing
// never fails; the worst case is the unrestricted general domain.
type Router struct {
	classifiers []Classifier
}

// New builds a router over the given classifier chain, tried in order.
func New(classifiers ...Classifier) *Router {
	return &Router{classifiers: classifiers}
}

// Route classifies a message and applies the enabled-capability post-filter:
// a domain whose integration is absent from the stack downgrades to general
// rather than reporting tools the account cannot use.
func (r *Router) Route(ctx context.Context, message string, stack domain.Stack) domain.RouteResult {
	if strings.TrimSpace(message) == "" {
		return domain.RouteResult{Domain: domain.DomainGeneral, Method: domain.MethodFallback}
	}

	for _, c := range r.classifiers {
		result, ok, err := c.Classify(ctx, message)
		if err != nil {
			slog.Warn("classifier failed, trying next phase", "error", err)
			continue
		}
		if !ok {
			continue
		}
		return postFilter(result, stack)
	}

	return domain.RouteResult{Domain: domain.DomainGeneral, Method: domain.MethodFallback}
}

func postFilter(result domain.RouteResult, stack domain.Stack) domain.RouteResult {
	if cap, ok := result.Domain.RequiredCapability(); ok && stack != nil && !stack.Has(cap) {
		result.Domain = domain.DomainGeneral
	}
	return result
}
