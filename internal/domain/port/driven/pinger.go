package driven

import "context"

// InstancePinger checks that an automation instance is reachable.
type InstancePinger interface {
	Ping(ctx context.Context, baseURL, apiKey string) error
}
