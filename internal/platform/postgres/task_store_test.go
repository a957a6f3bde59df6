package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/taskwire/taskwire/internal/store"
)

func TestBuildTaskFilter(t *testing.T) {
	userID := uuid.New()
	createdAfter := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	dueAfter := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		filter     store.TaskFilter
		wantWhere  string
		wantArgLen int
	}{
		{
			name:       "no constraints",
			filter:     store.TaskFilter{},
			wantWhere:  "user_id = $1",
			wantArgLen: 1,
		},
		{
			name:       "created after",
			filter:     store.TaskFilter{CreatedAfter: &createdAfter},
			wantWhere:  "user_id = $1 AND created_at >= $2",
			wantArgLen: 2,
		},
		{
			name:       "due after",
			filter:     store.TaskFilter{DueAfter: &dueAfter},
			wantWhere:  "user_id = $1 AND due_date >= $2",
			wantArgLen: 2,
		},
		{
			name:       "completed only",
			filter:     store.TaskFilter{CompletedOnly: true},
			wantWhere:  "user_id = $1 AND is_completed = TRUE",
			wantArgLen: 1,
		},
		{
			name: "all constraints",
			filter: store.TaskFilter{
				CreatedAfter:  &createdAfter,
				DueAfter:      &dueAfter,
				CompletedOnly: true,
			},
			wantWhere:  "user_id = $1 AND created_at >= $2 AND due_date >= $3 AND is_completed = TRUE",
			wantArgLen: 3,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			where, args := buildTaskFilter(userID, tc.filter)

			assert.Equal(t, tc.wantWhere, where)
			assert.Len(t, args, tc.wantArgLen)
			assert.Equal(t, userID, args[0])
		})
	}
}
