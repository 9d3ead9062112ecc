package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParticipants(t *testing.T) {
	r := New()

	assert.Equal(t, 1, r.JoinAsParticipant("s1", "a"))
	assert.Equal(t, 2, r.JoinAsParticipant("s1", "b"))
	assert.Equal(t, 2, r.JoinAsParticipant("s1", "b"))
	assert.Equal(t, 1, r.JoinAsParticipant("s2", "a"))

	assert.True(t, r.IsParticipant("s1", "a"))
	assert.Equal(t, []string{"s1", "s2"}, r.SessionsOf("a"))

	assert.Equal(t, 1, r.LeaveParticipant("s1", "a"))
	assert.Equal(t, 0, r.LeaveParticipant("s1", "b"))
	assert.Equal(t, 0, r.ParticipantCount("s1"))
	assert.Equal(t, 0, r.LeaveParticipant("missing", "a"))
	assert.Equal(t, []string{"s2"}, r.SessionsOf("a"))
	assert.Empty(t, r.SessionsOf("b"))
}

func TestAdminControl(t *testing.T) {
	r := New()

	_, ok := r.HasControl("s1")
	assert.False(t, ok)

	assert.Equal(t, "", r.JoinAsAdmin("s1", "admin-1"))
	holder, ok := r.HasControl("s1")
	assert.True(t, ok)
	assert.Equal(t, "admin-1", holder)

	// a later claim reassigns control
	assert.Equal(t, "admin-1", r.JoinAsAdmin("s1", "admin-2"))
	assert.True(t, r.IsController("s1", "admin-2"))
	assert.False(t, r.IsController("s1", "admin-1"))
	assert.Empty(t, r.SessionsOf("admin-1"))

	// only the holder can release
	assert.False(t, r.ReleaseAdmin("s1", "admin-1"))
	assert.True(t, r.IsController("s1", "admin-2"))
	assert.True(t, r.ReleaseAdmin("s1", "admin-2"))
	_, ok = r.HasControl("s1")
	assert.False(t, ok)
	assert.Empty(t, r.SessionsOf("admin-2"))
}

func TestClearAdminAndSession(t *testing.T) {
	r := New()
	r.JoinAsAdmin("s1", "admin")
	r.JoinAsParticipant("s1", "p1")

	assert.True(t, r.ControlledSessions()["s1"])

	holder, ok := r.ClearAdmin("s1")
	assert.True(t, ok)
	assert.Equal(t, "admin", holder)
	_, ok = r.ClearAdmin("s1")
	assert.False(t, ok)

	r.JoinAsAdmin("s1", "admin")
	r.ClearSession("s1")
	assert.Equal(t, 0, r.ParticipantCount("s1"))
	assert.Empty(t, r.SessionsOf("p1"))
	assert.Empty(t, r.SessionsOf("admin"))
	assert.Empty(t, r.ControlledSessions())
}

func TestAdminThatIsAlsoParticipantKeepsMembership(t *testing.T) {
	r := New()
	r.JoinAsParticipant("s1", "c")
	r.JoinAsAdmin("s1", "c")

	assert.True(t, r.ReleaseAdmin("s1", "c"))
	assert.Equal(t, []string{"s1"}, r.SessionsOf("c"))
}

func TestAtMostOneControllerUnderContention(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.JoinAsAdmin("s1", fmt.Sprintf("admin-%d", i))
		}(i)
	}
	wg.Wait()

	holder, ok := r.HasControl("s1")
	assert.True(t, ok)
	controllers := 0
	for i := 0; i < 50; i++ {
		if r.IsController("s1", fmt.Sprintf("admin-%d", i)) {
			controllers++
		}
	}
	assert.Equal(t, 1, controllers)
	assert.Equal(t, []string{"s1"}, r.SessionsOf(holder))
}
