// ICSWatch - ICS Network Traffic Replay and Threat Classification
// Copyright 2026 ICSWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/icswatch/icswatch

/*
Package websocket provides real-time fanout of classification verdicts
and replay status to connected frontend clients.

It uses the gorilla/websocket library with a hub-client architecture:
the replay loop hands verdicts to the Hub, which broadcasts them to
every connected subscriber without ever blocking the producer.

Key Components:

  - Hub: Central broker that manages subscriber connections and broadcasts
  - Client: One WebSocket connection with read/write goroutines
  - Message: Typed envelope {type, data} for all traffic

Each client has two goroutines:
  - readLoop: Reads from the socket, answers application pings, drops
    everything else
  - writeLoop: Writes hub messages and keepalive pings to the socket

Message Types:

  - classification: one verdict, sent for every replayed record
  - attack_alert: duplicate of high and critical severity verdicts
  - status_update: replay engine status snapshot
  - ping / pong: application-level liveness

Delivery Semantics:

Fanout is best-effort. Each subscriber has a bounded send queue; a
subscriber that cannot keep up has its queue fill and is pruned, and
the drop is counted in the broadcast metrics. The replay loop is never
back-pressured by a slow consumer.
*/
package websocket
