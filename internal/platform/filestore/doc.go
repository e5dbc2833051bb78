// Package filestore implements store.ArtifactStore on the local filesystem.
//
// Layout under the configured root, derived from the task ID alone:
//
//	<root>/<id>/<upload filename>   raw upload
//	<root>/<id>/images/             extracted image assets
//	<root>/<id>/result.md           rendered result document
//	<root>/<id>.zip                 on-demand archive of <root>/<id>/
package filestore
