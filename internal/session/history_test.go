package session_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorbot/tutorbot/internal/session"
)

func userTurn(i int) session.Turn {
	return session.Turn{Role: session.RoleUser, Content: fmt.Sprintf("msg %d", i)}
}

func TestStore_AppendAndTrim(t *testing.T) {
	t.Parallel()

	s := session.NewStore(3, 0, 0)
	assert.Nil(t, s.History(1))

	for i := 1; i <= 5; i++ {
		s.Append(1, userTurn(i))
	}

	got := s.History(1)
	require.Len(t, got, 3)
	assert.Equal(t, []session.Turn{userTurn(3), userTurn(4), userTurn(5)}, got)
}

func TestStore_AppendExchange(t *testing.T) {
	t.Parallel()

	s := session.NewStore(4, 0, 0)
	s.Append(7,
		session.Turn{Role: session.RoleUser, Content: "hi"},
		session.Turn{Role: session.RoleModel, Content: "hello"},
	)

	got := s.History(7)
	require.Len(t, got, 2)
	assert.Equal(t, session.RoleUser, got[0].Role)
	assert.Equal(t, session.RoleModel, got[1].Role)
}

func TestStore_HistoryIsACopy(t *testing.T) {
	t.Parallel()

	s := session.NewStore(2, 0, 0)
	s.Append(1, userTurn(1))

	got := s.History(1)
	got[0].Content = "changed"

	assert.Equal(t, "msg 1", s.History(1)[0].Content)
}

func TestStore_Reset(t *testing.T) {
	t.Parallel()

	s := session.NewStore(2, 0, 0)
	s.Append(1, userTurn(1))
	s.Append(2, userTurn(2))

	s.Reset(1)

	assert.Nil(t, s.History(1))
	assert.Len(t, s.History(2), 1)
	assert.Equal(t, 1, s.Len())
}

func TestStore_UserCap(t *testing.T) {
	t.Parallel()

	s := session.NewStore(2, 2, time.Hour)
	s.Append(1, userTurn(1))
	s.Append(2, userTurn(2))
	s.Append(3, userTurn(3))

	assert.Equal(t, 2, s.Len())
	assert.NotNil(t, s.History(3))
}

func TestStore_Expiry(t *testing.T) {
	t.Parallel()

	s := session.NewStore(2, 0, 20*time.Millisecond)
	s.Append(1, userTurn(1))

	require.Eventually(t, func() bool {
		return s.History(1) == nil
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, s.Sweep())
}
