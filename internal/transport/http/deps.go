package http

import (
	"github.com/go-shop-api/internal/application/reconcile"
	"github.com/go-shop-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-shop-api/internal/infrastructure/jwt"
	"github.com/go-shop-api/internal/infrastructure/notify"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	VerificationRepo *dynamo.VerificationRepo
	Notifier         notify.Notifier
	Scheduler        *reconcile.Scheduler
	JWTProvider      *jwtinfra.Provider
}
