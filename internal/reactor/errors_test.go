package reactor

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "with cell",
			err:  NewNonexistentCellError(Input(InputID(3))),
			want: "NONEXISTENT_CELL: handle does not name an existing cell (cell=input:3)",
		},
		{
			name: "without cell",
			err:  newNonexistentObserverError(7),
			want: "NONEXISTENT_OBSERVER: observer 7 is not registered",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_Predicates(t *testing.T) {
	cycle := NewCycleError(Compute(ComputeID(1)), []CellID{Compute(ComputeID(1)), Compute(ComputeID(1))})
	wrapped := fmt.Errorf("redefine: %w", cycle)

	assert.True(t, IsCycleError(wrapped))
	assert.False(t, IsNonexistentCell(wrapped))
	assert.False(t, IsStepsExceeded(wrapped))
	assert.Equal(t, "compute:1 -> compute:1", cycle.Details["path"])

	assert.True(t, IsNonexistentCell(NewNonexistentCellError(Compute(ComputeID(0)))))
	assert.True(t, IsNonexistentObserver(newNonexistentObserverError(1)))
	assert.True(t, IsStepsExceeded(&Error{Code: ErrCodeStepsExceeded}))

	plain := errors.New("boom")
	assert.False(t, IsCycleError(plain))
	assert.False(t, IsNonexistentCell(plain))
	assert.False(t, IsNonexistentObserver(plain))
	assert.False(t, IsStepsExceeded(plain))
}

func TestCellID_String(t *testing.T) {
	assert.Equal(t, "input:0", Input(0).String())
	assert.Equal(t, "compute:12", Compute(12).String())
	assert.Equal(t, "kind(0):0", CellID{}.String())
}
