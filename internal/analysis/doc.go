// Package analysis is the boundary between the orchestrator and the external
// document analyzer. It defines the collaborator interface the core needs,
// translates parse strategies into analyzer calls (classifying first when
// the caller asks for auto), and converts every collaborator failure into a
// single AnalysisFailure error so engine-specific error types never reach
// the orchestrator.
package analysis
