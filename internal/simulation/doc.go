// Package simulation runs replicate batches of threshold and cascade
// experiments.
//
// A Scenario names a model, a topology (generated or loaded from a file),
// a threshold equation and the batch shape. The Runner executes each
// replicate on its own PCG stream derived from the scenario seed and the
// replicate index, bounded by a worker limit, and passes every finished
// run to a store.Sink.
//
// Usage:
//
//	sc, err := simulation.LoadScenarioFile("ws.yaml")
//	if err != nil {
//	    return err
//	}
//	r := simulation.NewRunner(sink, simulation.WithLogger(logger))
//	batch, err := r.Run(ctx, sc)
package simulation
