// Package simgrp maintains the group of handlers for access to a simulation
// run and its report.
package simgrp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fhesim/fhesim/business/core/batch"
	"github.com/fhesim/fhesim/business/web/errs"
	"github.com/fhesim/fhesim/foundation/events"
	"github.com/fhesim/fhesim/foundation/fhe"
	"github.com/fhesim/fhesim/foundation/gas"
	"github.com/fhesim/fhesim/foundation/sim"
	"github.com/fhesim/fhesim/foundation/web"
)

// Handlers manages the set of simulation endpoints.
type Handlers struct {
	Log    *zap.SugaredLogger
	Runner *batch.Runner
	WS     websocket.Upgrader
	Evts   *events.Events
}

// Report returns the full report for the completed run.
func (h Handlers) Report(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	rep, done := h.Runner.Report()
	if !done {
		return errs.NewTrusted(errors.New("simulation still running"), http.StatusServiceUnavailable)
	}

	return web.Respond(ctx, w, rep, http.StatusOK)
}

// Transactions returns the per transaction rows for the completed run.
func (h Handlers) Transactions(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	rep, done := h.Runner.Report()
	if !done {
		return errs.NewTrusted(errors.New("simulation still running"), http.StatusServiceUnavailable)
	}

	return web.Respond(ctx, w, rep.Transactions, http.StatusOK)
}

// Failures returns the failure list for the completed run.
func (h Handlers) Failures(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	rep, done := h.Runner.Report()
	if !done {
		return errs.NewTrusted(errors.New("simulation still running"), http.StatusServiceUnavailable)
	}

	return web.Respond(ctx, w, rep.Failures, http.StatusOK)
}

// Samples returns the benchmark samples recorded so far. Samples are
// available while the run is still in flight.
func (h Handlers) Samples(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.Runner.Samples(), http.StatusOK)
}

// Estimate runs the gas estimation over a submitted operation trace using
// the default weight table. Estimation is pure, so clients can probe costs
// without a simulation run.
func (h Handlers) Estimate(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var app appEstimate
	if err := web.Decode(r, &app); err != nil {
		return fmt.Errorf("unable to decode payload: %w", err)
	}

	trace := make(sim.Trace, 0, len(app.Operations))
	for _, entry := range app.Operations {
		trace = append(trace, sim.TraceEntry{
			Op:           fhe.Op(entry.Op),
			OperandSizes: entry.OperandSizes,
		})
	}

	cmp, err := gas.Estimate(gas.DefaultTable(), trace, app.BaselineGas)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	return web.Respond(ctx, w, cmp, http.StatusOK)
}

// Events handles a web socket to provide simulation events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	h.Log.Infow("events stream open", "traceid", v.TraceID)
	defer h.Log.Infow("events stream closed", "traceid", v.TraceID)

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}
