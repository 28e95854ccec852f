package services

import (
	"go.uber.org/fx"
)

// Module provides the fx module for cross-cutting services shared across
// the poller, sender, and admin HTTP surfaces. Database access itself is
// provided by internal/store.Module, not here.
var Module = fx.Module("services",
	fx.Provide(
		NewAmqpService,
		NewRedisService,
	),
)
