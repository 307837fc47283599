package resequence

import (
	"fmt"

	"github.com/ibs-source/resequencer/internal/checkpoint"
	"github.com/ibs-source/resequencer/internal/platform"
)

// BatchState is the stage a batch has reached in the pipeline.
type BatchState int

const (
	StateReceived BatchState = iota
	StateClassified
	StateDeduplicated
	StateSorted
	StatePublished
	StateCheckpointed
	// StateFailed means a publish did not complete; the batch was not
	// checkpointed and will be redelivered.
	StateFailed
)

func (s BatchState) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateClassified:
		return "classified"
	case StateDeduplicated:
		return "deduplicated"
	case StateSorted:
		return "sorted"
	case StatePublished:
		return "published"
	case StateCheckpointed:
		return "checkpointed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Batch is one poll's worth of records from a single partition.
type Batch struct {
	Partition string
	Records   []platform.RawRecord
}

// Cursor is the checkpoint position the batch advances its partition to.
func (b Batch) Cursor() platform.Cursor {
	c := platform.Cursor{Partition: b.Partition, Records: len(b.Records)}
	if n := len(b.Records); n > 0 {
		c.Position = b.Records[n-1].SequenceToken
	}
	return c
}

// BatchReport describes what happened to a batch.
type BatchReport struct {
	Partition string
	State     BatchState
	// Transitions lists every state the batch entered, in order.
	Transitions []BatchState

	Records      int
	DecodeErrors int
	Mature       int
	Immature     int
	Duplicates   int

	Checkpoint checkpoint.Result
	Err        error
}

func (r *BatchReport) enter(s BatchState) {
	r.State = s
	r.Transitions = append(r.Transitions, s)
}
