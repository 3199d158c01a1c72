package http

import (
	"go.uber.org/fx"

	menutransport "github.com/linzen78111/pos2/internal/transport/http/menu"
	ordertransport "github.com/linzen78111/pos2/internal/transport/http/order"
	systemtransport "github.com/linzen78111/pos2/internal/transport/http/system"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	systemtransport.Module,
	menutransport.Module,
	ordertransport.Module,
)
