package llm

import "context"

// Middleware wraps a Client with additional behavior. Middlewares are
// composed with Chain into a processing pipeline.
type Middleware func(next Client) Client

// clientFunc adapts plain functions to the Client interface, for middleware
// implementations that wrap behavior without a named type.
type clientFunc struct {
	complete  func(context.Context, CompletionRequest) (CompletionResponse, error)
	modelName func() string
}

func (f clientFunc) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	return f.complete(ctx, req)
}

func (f clientFunc) ModelName() string {
	return f.modelName()
}

// WrapClient creates a Client from the provided function implementations.
func WrapClient(
	complete func(context.Context, CompletionRequest) (CompletionResponse, error),
	modelName func() string,
) Client {
	return clientFunc{complete: complete, modelName: modelName}
}

// Chain composes middlewares around a base client. Middlewares apply in
// order, earlier ones outermost: Chain(client, mw1, mw2) builds the call
// stack mw1 -> mw2 -> client, so mw1 sees the request first and may modify
// or short-circuit it before mw2 and the base client run.
func Chain(base Client, middlewares ...Middleware) Client {
	client := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		client = middlewares[i](client)
	}
	return client
}
