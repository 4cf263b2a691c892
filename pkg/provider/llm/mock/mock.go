// Package mock provides a scripted llm.Provider for tests.
//
//	p := &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "Hello!"}}
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/MrWong99/vaani/pkg/provider/llm"
	"github.com/MrWong99/vaani/pkg/types"
)

var _ llm.Provider = (*Provider)(nil)

// CompleteCall is one recorded Complete invocation. Req.Messages is a copy,
// so later changes to the caller's conversation do not show up here.
type CompleteCall struct {
	Ctx context.Context
	Req llm.CompletionRequest
}

// Provider answers Complete from its fields, checked in order: CompleteErr,
// then CompleteFunc, then CompleteResponse (which may be nil).
type Provider struct {
	CompleteResponse  *llm.CompletionResponse
	CompleteFunc      func(req llm.CompletionRequest) (*llm.CompletionResponse, error)
	CompleteErr       error
	ModelCapabilities types.ModelCapabilities

	mu    sync.Mutex
	calls []CompleteCall
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	req.Messages = slices.Clone(req.Messages)

	p.mu.Lock()
	p.calls = append(p.calls, CompleteCall{Ctx: ctx, Req: req})
	errResp, fn, resp := p.CompleteErr, p.CompleteFunc, p.CompleteResponse
	p.mu.Unlock()

	switch {
	case errResp != nil:
		return nil, errResp
	case fn != nil:
		return fn(req)
	default:
		return resp, nil
	}
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() types.ModelCapabilities { return p.ModelCapabilities }

// Calls returns the recorded calls, oldest first.
func (p *Provider) Calls() []CompleteCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.calls)
}
