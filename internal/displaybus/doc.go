/*
Package displaybus provides a type-safe pub/sub event bus that carries
orchestrator progress out to a renderer, without the orchestrator knowing or
caring whether anything is listening.

# Architecture

Built on watermill's gochannel for infrastructure, with direct-call dispatch
on top so subscribers receive concrete Go types rather than serialized
watermill Messages.

# Event Types

  - plan.ready: the architect produced its plan
  - driver.turn_started: the driver began a new turn
  - driver.batch: a drained batch of driver text/tool output
  - navigator.verdict: the navigator issued a code_review verdict
  - permission.requested: the permission coordinator is waiting on a decision
  - permission.resolved: a permission request was allowed, denied, or timed out
  - session.ended: the orchestrator finished, successfully or not

# Usage

	unsubscribe := displaybus.Subscribe(displaybus.DriverBatchReceived, func(e displaybus.Event) {
		data := e.Data.(displaybus.DriverBatchData)
		render(data.Batch)
	})
	defer unsubscribe()

	displaybus.PublishSync(displaybus.Event{
		Type: displaybus.PermissionRequested,
		Data: displaybus.PermissionRequestedData{Request: req},
	})

PublishSync blocks until every subscriber has run; use it for the
permission-requested/resolved pair so a renderer cannot observe a resolution
before its request. Publish is fire-and-forget and is right for everything
else.

Subscribers must return quickly, must not call Publish/PublishSync
re-entrantly, and must not hold locks the publisher might need.
*/
package displaybus
