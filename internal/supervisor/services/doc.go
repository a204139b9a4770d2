// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

/*
Package services adapts the long-running parts of the scoring server to
suture.Service.

  - HTTPServerService: the API listener with graceful shutdown.
  - SyncService: copies the export endpoint into the local snapshot.
  - TrainService: refits from the snapshot, saves a store version, prunes,
    replicates to S3 and publishes to the serving Holder.
  - ModelWatchService: reloads the model when its directory changes.

Each service blocks in Serve until its context is canceled. Scheduled work
that fails is logged and retried on the next tick; only broken plumbing
(a listener that cannot bind, a dead watcher) makes Serve return early so
the supervisor restarts it.
*/
package services
