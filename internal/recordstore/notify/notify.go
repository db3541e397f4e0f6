// Package notify carries "collection changed" signals from record store
// writers to live queries, in process or across replicas via Redis.
package notify

import "context"

// Notifier fans out change signals per collection. Signals carry no payload;
// listeners re-run their query. A listener channel holds at most one pending
// signal.
type Notifier interface {
	Publish(ctx context.Context, collection string) error
	Subscribe(ctx context.Context, collection string) (<-chan struct{}, func(), error)
	Close() error
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
