package rest

import "go.uber.org/fx"

var Module = fx.Module("rest-handler",
	fx.Provide(NewRESTHandler),
)
