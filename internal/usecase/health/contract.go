package health

import "context"

// Pinger checks availability of one backing service.
type Pinger interface {
	Ping(ctx context.Context) error
}
