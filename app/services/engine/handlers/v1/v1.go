// Package v1 contains the full set of handler functions and routes supported
// by the v1 web api.
package v1

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/fhesim/fhesim/app/services/engine/handlers/v1/simgrp"
	"github.com/fhesim/fhesim/business/core/batch"
	"github.com/fhesim/fhesim/foundation/events"
	"github.com/fhesim/fhesim/foundation/web"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log    *zap.SugaredLogger
	Runner *batch.Runner
	Evts   *events.Events
}

// Routes binds all the version 1 routes.
func Routes(app *web.App, cfg Config) {
	sgh := simgrp.Handlers{
		Log:    cfg.Log,
		Runner: cfg.Runner,
		Evts:   cfg.Evts,
	}

	app.Handle(http.MethodGet, version, "/report", sgh.Report)
	app.Handle(http.MethodGet, version, "/report/transactions", sgh.Transactions)
	app.Handle(http.MethodGet, version, "/report/failures", sgh.Failures)
	app.Handle(http.MethodGet, version, "/samples", sgh.Samples)
	app.Handle(http.MethodGet, version, "/events", sgh.Events)
	app.Handle(http.MethodPost, version, "/estimate", sgh.Estimate)
}
