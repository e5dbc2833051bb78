// Package memory provides the process-local implementation of the task
// registry. State is lost on restart; bundles left behind by a previous
// process are reclaimed by the orphan janitor.
package memory
