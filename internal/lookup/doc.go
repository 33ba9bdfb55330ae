// Package lookup defines the value types shared by every original-language
// backend and cache: the search Query, the Detection result, the Backend
// contract, and the fixed-weight confidence scorer.
//
// Query and Detection are plain values. Detections are built through
// NewDetection, which clamps confidence into [0,1], lower-cases the language
// code, and allocates fresh slices so no two results share backing arrays.
package lookup
