package lobby

import (
	"regexp"
	"testing"

	"github.com/jason-s-yu/wsglobby/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var idPattern = regexp.MustCompile(`^[a-z0-9]{4}-[a-z0-9]{4}$`)

func TestGenerateIDFormat(t *testing.T) {
	for i := 0; i < 200; i++ {
		id := GenerateID()
		require.Regexp(t, idPattern, id)
	}
}

func TestCreateLobbyRetriesUntilUnique(t *testing.T) {
	f := newFixture(t, defaultSettings())
	candidates := []string{"aaaa-aaaa", "aaaa-aaaa", "aaaa-aaaa", "bbbb-bbbb"}
	calls := 0
	f.reg.newID = func() string {
		id := candidates[calls]
		calls++
		return id
	}

	first, err := f.reg.CreateLobby("Alice", models.FactionAlliance, character("Alice", 20))
	require.NoError(t, err)
	second, err := f.reg.CreateLobby("Bob", models.FactionHorde, character("Bob", 20))
	require.NoError(t, err)

	assert.Equal(t, "aaaa-aaaa", first)
	assert.Equal(t, "bbbb-bbbb", second)
	assert.Equal(t, 4, calls)
}
