// Package expectation parses a scenario's declarative quality-check block
// into typed assertion groups.
//
// # Expectation Block Format
//
// Each scenario README embeds its expectations as the first fenced yaml
// block:
//
//	memory:
//	  retrieval:
//	    - entity_key: party:plaintiff:primary
//	      must_include: ["张三E2E01"]
//	  storage:
//	    - entity_key: party:plaintiff:primary
//	      scope: case
//	      must_include: ["原告"]
//	knowledge:
//	  hits:
//	    - query: 交通事故 赔偿
//	      count: ">= 1"
//	      must_include: ["赔偿"]
//	matter:
//	  records:
//	    - table: matter_evidence_list_items
//	      count: ">= 3"
//	    - table: matters
//	      conditions: { service_type: litigation }
//	skills:
//	  executed:
//	    - skill_id: litigation-intake
//	      status: completed
//	trace:
//	  expectations:
//	    - span_name: run_skill
//	      count: ">= 5"
//	phase_gates:
//	  checkpoints:
//	    - phase: intake
//	      status: completed
//	      required_outputs: [case_profile]
//	document:
//	  quality:
//	    format: { not_applicable: true }
//	    content:
//	      must_include: ["民事起诉状"]
//	      must_not_include: ['\{\{.*?\}\}']
//
// # Predicates
//
// Every declaration compiles to one Assertion with a closed predicate kind:
// containment, exclusion, threshold, equality, or existence. Threshold
// expressions (">= N", "== N") are parsed here so unsupported operators are
// rejected before any network call is made. A category with any invalid
// declaration fails the whole parse.
//
// Parsing is strict: unknown category or field names are decode errors, not
// silently ignored checks.
package expectation
