// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

/*
Package supervisor runs the scoring server's services under a suture v4
supervisor tree.

	stockwatch
	├── data-layer
	│   ├── export-sync   (sync.enabled)
	│   └── model-watch   (model.watch)
	├── model-layer
	│   └── train-service (train.enabled)
	└── api-layer
	    └── http-server

Layers restart independently: a crash in the sync or training loop never
takes the HTTP server down. Supervisor events are logged through sutureslog
with an slog handler backed by the global zerolog logger:

	tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddAPIService(services.NewHTTPServerService(srv, cfg.Server.ShutdownTimeout))
	return tree.Serve(ctx)
*/
package supervisor
