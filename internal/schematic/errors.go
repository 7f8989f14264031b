package schematic

import "errors"

// Run-stage failures. Any of these ends the current run in the error state.
var (
	// ErrRead means the input could not be turned into transferable image data.
	ErrRead = errors.New("read image")
	// ErrAnalysis means the analysis call failed, came back empty, or did not
	// match the expected structure.
	ErrAnalysis = errors.New("analysis failed")
	// ErrGeneration means the diagram call failed or returned no image.
	ErrGeneration = errors.New("diagram generation failed")
)

// Persistence failures. These never fail a run and never reach the user.
var (
	ErrPersistenceWrite = errors.New("save history")
	ErrPersistenceRead  = errors.New("load history")
)
