package saga

import (
	"testing"

	"github.com/draftea/payment-hub/shared/faults"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestStepResult_Failure(t *testing.T) {
	tests := []struct {
		name     string
		result   *StepResult
		expected string
	}{
		{
			name:     "error message wins over the code",
			result:   &StepResult{ErrorCode: "insufficient_funds", ErrorMessage: "balance too low"},
			expected: "balance too low: step execution failed",
		},
		{
			name:     "falls back to the error code",
			result:   &StepResult{ErrorCode: "step_timeout"},
			expected: "step_timeout: step execution failed",
		},
		{
			name:     "bare kind when the executor reported nothing",
			result:   &StepResult{},
			expected: "step execution failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.result.Failure(faults.ErrStepExecutionFailed)
			assert.Equal(t, tt.expected, err.Error())
			assert.True(t, errors.Is(err, faults.ErrStepExecutionFailed))
		})
	}
}

func TestStepResult_FailureCompensationKind(t *testing.T) {
	err := (&StepResult{ErrorMessage: "reversal rejected"}).Failure(faults.ErrCompensationFailed)

	assert.True(t, errors.Is(err, faults.ErrCompensationFailed))
	assert.Equal(t, "reversal rejected: compensation failed", err.Error())
}
