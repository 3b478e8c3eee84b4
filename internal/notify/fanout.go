package notify

import (
	"aqi-map/internal/reconcile"
	"context"
)

// Fanout：按顺序转发给多个发布器，跳过 nil
type Fanout []reconcile.Publisher

func (f Fanout) Publish(ctx context.Context, s reconcile.Snapshot) {
	for _, p := range f {
		if p == nil {
			continue
		}
		p.Publish(ctx, s)
	}
}
