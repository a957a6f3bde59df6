package domain_test

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskwire/taskwire/internal/domain"
)

func TestNewTask(t *testing.T) {
	userID := uuid.New()

	t.Run("creates valid task", func(t *testing.T) {
		due := time.Now().UTC().Add(24 * time.Hour)
		task, err := domain.NewTask(userID, "write report", "quarterly numbers", &due)
		require.NoError(t, err)

		assert.NotEqual(t, uuid.Nil, task.ID)
		assert.Equal(t, userID, task.UserID)
		assert.Equal(t, "write report", task.Title)
		assert.False(t, task.IsCompleted)
		assert.False(t, task.CreatedAt.IsZero())
	})

	t.Run("rejects empty title", func(t *testing.T) {
		_, err := domain.NewTask(userID, "", "", nil)
		assert.ErrorIs(t, err, domain.ErrEmptyTaskTitle)
	})

	t.Run("rejects overlong title", func(t *testing.T) {
		_, err := domain.NewTask(userID, strings.Repeat("x", 201), "", nil)
		assert.ErrorIs(t, err, domain.ErrTaskTitleTooLong)
	})

	t.Run("rejects nil user ID", func(t *testing.T) {
		_, err := domain.NewTask(uuid.Nil, "title", "", nil)
		assert.ErrorIs(t, err, domain.ErrEmptyTaskUserID)
	})
}

func TestTaskOverdue(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name      string
		due       *time.Time
		completed bool
		want      bool
	}{
		{"no due date", nil, false, false},
		{"due in future", &future, false, false},
		{"due in past", &past, false, true},
		{"due in past but completed", &past, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := domain.Task{DueDate: tt.due, IsCompleted: tt.completed}
			assert.Equal(t, tt.want, task.Overdue(now))
		})
	}
}
