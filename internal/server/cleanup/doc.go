// Package cleanup runs the retention purge of old TAN records.
//
// The core never deletes on its own; this loop lives at the server level
// and is disabled unless cleanup.enabled is set.
package cleanup
