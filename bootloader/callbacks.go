package bootloader

import "time"

// Upload phases reported in Progress.Phase.
const (
	PhaseWriting   = "writing"
	PhaseVerifying = "verifying"
)

// Progress contains information about the upload progress.
// Passed to ProgressCallback after each section is written and after each
// section is read back.
type Progress struct {
	// Phase is PhaseWriting or PhaseVerifying
	Phase string

	// Section is the 1-based index of the section just finished
	Section int

	// Sections is the number of sections in the upload
	Sections int

	// Done is the number of bytes transferred so far, across both passes
	Done uint64

	// Total is the number of bytes the whole upload transfers. With verification
	// every section byte is counted twice, once per pass.
	Total uint64

	// Percentage is floor(Done*100/Total)
	Percentage int

	// ElapsedTime is the time elapsed since the upload started
	ElapsedTime time.Duration
}

// ProgressCallback is called during an upload to report progress.
// Implementations should return quickly; the serial link is idle while they run.
//
// Example:
//
//	prog := bootloader.New(port,
//	    bootloader.WithProgressCallback(func(p bootloader.Progress) {
//	        fmt.Printf("\r[%s] %3d%%", p.Phase, p.Percentage)
//	    }),
//	)
type ProgressCallback func(Progress)
