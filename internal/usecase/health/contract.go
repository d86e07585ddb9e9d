package health

import "context"

// StorePinger checks durable blob store availability.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// ToolChecker reports availability of an external media tool.
type ToolChecker func() error
