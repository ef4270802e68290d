// Package harness replays scripted editing sessions against the draft
// engine.
//
// A scenario seeds the draft store, drives one session through a list of
// steps on a fake clock and checks the published event trace and the final
// database state. Runs are deterministic: the clock starts at Epoch and
// session IDs are sequential, so traces can be compared to golden files.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	settings:
//	  backend: ok            # ok | fail | none
//	  rules: true
//	  recovery_window: 2h
//	seed:
//	  - key: "draft:2026-09:priya_nair:9876543210"
//	    session: tab-old
//	    saved_ago: 30m
//	    step: 3
//	    emergency: true
//	    submission: { identity: { name: Priya Nair }, attendance: { wfo: 15 } }
//	steps:
//	  - do: start
//	  - advance: 300ms
//	    expect: { prompt: crash }
//	  - resume: "draft:2026-09:priya_nair:9876543210"
//	    expect: { step: 3 }
//	  - mutate: { path: tasks.count, value: 40 }
//	  - do: submit
//	    expect: { error: none }
//	assertions:
//	  - type: trace_order
//	    events: [prompt, resumed, submitted]
//	  - type: final_state
//	    table: reports
//	    where: { phone: "9876543210" }
//	    expect: { revision: 1 }
//
// # Trace
//
// The trace holds every session event in publish order, each stamped with
// its offset from Epoch in milliseconds. Failed steps add an "error" event
// carrying the error code; unload steps add an "unload" event with the
// unload result.
package harness
