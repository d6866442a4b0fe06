package job

import "fmt"

// Phase is a point in the pipeline that produces a progress message
type Phase string

const (
	PhaseQueued     Phase = "queued"
	PhaseFiltering  Phase = "filtering"
	PhaseFiltered   Phase = "filtered"
	PhaseChunkStart Phase = "chunk_start"
	PhaseChunkDone  Phase = "chunk_done"
	PhaseValidating Phase = "validating"
	PhaseSaving     Phase = "saving"
	PhaseCompleted  Phase = "completed"
	PhaseFailed     Phase = "failed"
)

var chunkLabels = []string{
	"Laying the foundation",
	"Building volume",
	"Adding intensity",
	"Progressing loads",
	"Pushing toward peak",
}

// ProgressMessage humanises a pipeline position for polling clients.
// It has no side effects and never influences control flow.
func ProgressMessage(chunkIndex, totalChunks int, phase Phase) string {
	switch phase {
	case PhaseQueued:
		return "Waiting to start"
	case PhaseFiltering:
		return "Selecting exercises that fit your equipment and restrictions"
	case PhaseFiltered:
		return "Exercise selection ready"
	case PhaseChunkStart:
		return fmt.Sprintf("%s (part %d of %d)", chunkLabel(chunkIndex, totalChunks), chunkIndex+1, max(totalChunks, 1))
	case PhaseChunkDone:
		return fmt.Sprintf("Finished part %d of %d", chunkIndex+1, max(totalChunks, 1))
	case PhaseValidating:
		return "Checking the program for consistency"
	case PhaseSaving:
		return "Saving your program"
	case PhaseCompleted:
		return "Your program is ready"
	case PhaseFailed:
		return "Program generation failed"
	default:
		return "Working"
	}
}

func chunkLabel(index, total int) string {
	if total > 1 && index == total-1 {
		return "Finishing the final weeks"
	}
	if index < 0 {
		index = 0
	}
	return chunkLabels[min(index, len(chunkLabels)-1)]
}
