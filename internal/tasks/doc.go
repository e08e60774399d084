// Package tasks loads, validates and converts task-set files.
//
// A task set is a list of tasks with optional dependencies between them:
//
//	{
//	  "schema_version": 1,
//	  "name": "audit",
//	  "tasks": [
//	    {"id": "scan", "type": "search", "prompt": "List every HTTP handler"},
//	    {"id": "review", "type": "review", "prompt": "Review the handlers",
//	     "dependencies": ["scan"], "priority": 2, "timeout": "5m"}
//	  ]
//	}
//
// The same document can be written as YAML (.yaml, .yml), TOML (.toml, with
// [[tasks]] tables) or HCL (.hcl):
//
//	schema_version = 1
//
//	task "scan" {
//	  type   = "search"
//	  prompt = "List every HTTP handler"
//	}
//
// # Validation
//
// Every format is normalized to JSON and checked against an embedded JSON
// Schema (draft 2020-12). Semantic checks follow: timeouts must parse, ids
// must be unique, dependencies must name existing tasks and must not form a
// cycle.
//
// # Timeouts
//
// A timeout is either a Go duration string ("90s", "1m30s") or a number of
// seconds.
package tasks
