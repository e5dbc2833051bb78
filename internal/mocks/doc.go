// Package mocks provides configurable test doubles for the service's
// external collaborators. Each mock exposes function fields that override
// its default behavior and records calls for verification.
package mocks
