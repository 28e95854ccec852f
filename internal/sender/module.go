package sender

import (
	"context"

	"go.uber.org/fx"
)

// Module wires the Sender and launches its loop on application start,
// stopping it cooperatively on shutdown.
var Module = fx.Module("sender",
	fx.Provide(New),
	fx.Invoke(func(lc fx.Lifecycle, s *Sender) {
		var cancel context.CancelFunc
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				var loopCtx context.Context
				loopCtx, cancel = context.WithCancel(context.Background())
				go s.Run(loopCtx)
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
