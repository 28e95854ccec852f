package poller

import (
	"context"

	"go.uber.org/fx"
)

// Module wires the Poller and launches its loop on application start,
// stopping it cooperatively on shutdown.
var Module = fx.Module("poller",
	fx.Provide(New),
	fx.Invoke(func(lc fx.Lifecycle, p *Poller) {
		var cancel context.CancelFunc
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				var loopCtx context.Context
				loopCtx, cancel = context.WithCancel(context.Background())
				go p.Run(loopCtx)
				return nil
			},
			OnStop: func(context.Context) error {
				if cancel != nil {
					cancel()
				}
				return nil
			},
		})
	}),
)
