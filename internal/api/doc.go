// Package api handles incoming HTTP requests for document uploads, task
// queries and result downloads. It translates HTTP concerns to calls on the
// document service and maps service errors to status codes in one table
// (see MapErrorToStatusCode).
package api
