package server

import (
	"errors"
	"net/http"

	"video_social_generator/generator"
	"video_social_generator/transcript"
)

// transcriptStatus maps a transcript failure kind to its HTTP status.
func transcriptStatus(k transcript.Kind) int {
	switch k {
	case transcript.InvalidInput:
		return http.StatusBadRequest
	case transcript.NotFound:
		return http.StatusNotFound
	case transcript.Unavailable:
		return http.StatusServiceUnavailable
	case transcript.Forbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// errorResponse turns any batch or transcript error into a status and detail.
func errorResponse(err error) (int, string) {
	var te *transcript.Error
	if errors.As(err, &te) {
		return transcriptStatus(te.Kind), transcript.Describe(te)
	}
	var be *generator.BatchError
	var ge *generator.GenerationError
	if errors.As(err, &be) || errors.As(err, &ge) {
		return http.StatusInternalServerError, "Error generating content: " + err.Error()
	}
	return http.StatusInternalServerError, "Unexpected error: " + err.Error()
}
