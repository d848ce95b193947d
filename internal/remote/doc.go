// Package remote implements the HTTP clients for the pipeline's external
// services: the prompt extraction service and the object detector.
package remote

import "github.com/user/framerelay/internal/types"

// Compile-time interface compliance checks.
var _ types.Extractor = (*ExtractionClient)(nil)
var _ types.Detector = (*DetectionClient)(nil)
