// Package domain defines the core document-ingestion entities: the Task that
// tracks one upload through analysis, its status state machine, parse
// strategies, upload validation rules, and the domain errors shared by the
// layers above it.
package domain
