package config

import (
	"log/slog"

	"github.com/amirasaad/ledger/pkg/repository"
)

// Deps holds the infrastructure dependencies for building services.
type Deps struct {
	Uow    repository.UnitOfWork
	Logger *slog.Logger
	Config *App
}
