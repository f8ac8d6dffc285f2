// Package harness replays lifecycle scenarios against the real engine and
// checks that a warm restart is invisible downstream.
//
// # Scenario Format
//
// Scenarios are YAML (unknown fields rejected) or CUE files:
//
//	name: port_replay
//	description: "Replaying a port create returns the same id"
//	seed:
//	  ASIC_STATE:QUEUE:0x15000000000001:
//	    type: UNICAST
//	steps:
//	  - op: create
//	    type: SWITCH
//	    as: sw
//	  - op: create
//	    type: PORT
//	    switch: $sw
//	    attrs: { speed: "100000", hw_lane_list: "1,2" }
//	    as: p1
//	  - op: set
//	    key: PORT:$p1
//	    field: admin_state
//	    value: "true"
//	  - op: restart
//	  - op: set
//	    key: QUEUE:0x15000000000001
//	    field: buffer_profile_id
//	    value: "0x0"
//	assertions:
//	  - type: field_equals
//	    key: OID2ATTR_PORT:$p1
//	    field: admin_state
//	    value: "true"
//	  - type: ops_count
//	    kind: create
//	    count: 2
//
// A create step bound with 'as' makes its id available as $name in later
// keys, values, switch ids and assertions.
//
// # Assertion Types
//
//   - key_exists: the persisted key is present
//   - key_absent: the persisted key is absent
//   - field_equals: a hash field has the given value
//   - ops_count: the downstream queue holds N operations, optionally
//     restricted by kind and object key
//
// # Deterministic Testing
//
// Every run uses a fresh SQLite store, the store-backed id allocator and a
// fixed epoch, so identical scenarios produce identical keyspaces and
// golden snapshots. RunWarmRestart executes the steps a second time after a
// restart and fails if the replay queued any downstream operation, so
// scenarios run that way describe a desired state rather than a history:
// a remove followed by a replayed create is a new object.
package harness
