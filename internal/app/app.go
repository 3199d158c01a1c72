package app

import (
	"go.uber.org/fx"

	"github.com/linzen78111/pos2/internal/cache"
	"github.com/linzen78111/pos2/internal/config"
	"github.com/linzen78111/pos2/internal/database"
	"github.com/linzen78111/pos2/internal/logger"
	"github.com/linzen78111/pos2/internal/messaging"
	"github.com/linzen78111/pos2/internal/observability"
	repositorymenu "github.com/linzen78111/pos2/internal/repository/menu"
	repositoryorder "github.com/linzen78111/pos2/internal/repository/order"
	grpcserver "github.com/linzen78111/pos2/internal/server/grpc"
	httpserver "github.com/linzen78111/pos2/internal/server/http"
	servicemenu "github.com/linzen78111/pos2/internal/service/menu"
	serviceorder "github.com/linzen78111/pos2/internal/service/order"
	transporthttp "github.com/linzen78111/pos2/internal/transport/http"
	"github.com/linzen78111/pos2/internal/worker"
	workerorder "github.com/linzen78111/pos2/internal/worker/order"
)

// Storage is the minimal graph for maintenance commands: configuration,
// logging and the database pools.
var Storage = fx.Options(
	config.Module,
	logger.Module,
	database.Module,
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	Storage,
	cache.Module,
	messaging.Module,
	observability.Module,
	repositoryorder.Module,
	repositorymenu.Module,
	serviceorder.Module,
	servicemenu.Module,
)

// HTTP wires the HTTP transport and the gRPC health server on top of the
// core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	grpcserver.Module,
	transporthttp.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerorder.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
