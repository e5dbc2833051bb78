// Package gemini provides the OCR engine of the document analyzer, backed by
// Google's Gemini multimodal API.
//
// The whole PDF is sent inline together with a transcription prompt and the
// model's reply is used as the rendered markdown. Transient API errors are
// retried with exponential backoff and jitter; safety blocks and malformed
// responses are returned immediately.
package gemini
