// Command reconciler runs the payment reconciliation engine: the admin
// HTTP surface, the PSP polling loop, and the CRM sender loop, all wired
// through a single fx.App.
package main

import (
	"github.com/ninja-merchant/payments-reconciler/app"
	"github.com/ninja-merchant/payments-reconciler/core/config"
)

func main() {
	config.LoadEnvVars()
	app.NewFxApp().Run()
}
