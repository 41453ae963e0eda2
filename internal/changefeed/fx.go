package changefeed

import "go.uber.org/fx"

func provideFeed(hub *Hub) Feed { return hub }

var Module = fx.Module("changefeed",
	fx.Provide(NewHub),
	fx.Provide(provideFeed),
)
