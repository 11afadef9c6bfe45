package cmd

import (
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"

	"github.com/pairly/messaging-service/config"
	httpsrv "github.com/pairly/messaging-service/infra/server/http"
	"github.com/pairly/messaging-service/internal/adapter/pubsub"
	"github.com/pairly/messaging-service/internal/adapter/store/badgerstore"
	"github.com/pairly/messaging-service/internal/domain/registry"
	amqphandler "github.com/pairly/messaging-service/internal/handler/amqp"
	"github.com/pairly/messaging-service/internal/handler/lp"
	"github.com/pairly/messaging-service/internal/handler/rest"
	"github.com/pairly/messaging-service/internal/handler/ws"
	"github.com/pairly/messaging-service/internal/service"
)

func NewApp(cfg *config.Config) *fx.App {
	return fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogger,
			ProvideWatermillLogger,
			ProvideTracerProvider,
		),
		fx.Invoke(func(tp *sdktrace.TracerProvider) {}),

		registry.Module,
		badgerstore.Module,
		pubsub.Module,
		service.Module,
		ws.Module,
		lp.Module,
		rest.Module,
		amqphandler.Module,
		httpsrv.Module,
	)
}
