// Package prover is the proof-generation client capability from spec.md
// §6, consumed by the ProofCreation handler.
package prover

import "context"

// TaskStatus is the tri-state result of polling a submitted proving task.
type TaskStatus int

const (
	Succeeded TaskStatus = iota
	Failed
	Running
)

// Client submits SNOS output for proving and polls task completion.
type Client interface {
	SubmitTask(ctx context.Context, snosOutput []byte) (string, error)
	GetTaskStatus(ctx context.Context, externalID string) (TaskStatus, error)
}
