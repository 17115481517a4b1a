// Package syncer drains the offline queue against the remote API.
//
// Driver.SyncAll submits eligible entries one at a time in queue order and
// records each outcome on the engine. Driver.Run ties passes to connectivity:
// one pass per offline to online transition, plus an optional startup pass
// and retry timer.
package syncer
