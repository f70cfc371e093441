package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunCommandMetadata(t *testing.T) {
	t.Run("should declare the expected name, flags and description", func(t *testing.T) {
		cmd := runCommand()

		assert.Equal(t, "run", cmd.Name)
		assert.NotEmpty(t, cmd.Description)
		assert.NotNil(t, cmd.Action)

		var names []string
		for _, flag := range cmd.Flags {
			names = append(names, flag.Names()[0])
		}
		assert.ElementsMatch(t, []string{"config", "rpc-endpoint", "rpc-auth-token"}, names)
	})
}

func TestWithAuthToken(t *testing.T) {
	t.Run("should return the endpoint unchanged when no token is given", func(t *testing.T) {
		assert.Equal(t, "https://rpc.example", withAuthToken("https://rpc.example", ""))
	})

	t.Run("should append the token as an api-key query parameter", func(t *testing.T) {
		result := withAuthToken("https://rpc.example", "secret")
		assert.Equal(t, "https://rpc.example?api-key=secret", result)
	})

	t.Run("should merge with existing query parameters", func(t *testing.T) {
		result := withAuthToken("https://rpc.example?foo=bar", "secret")
		assert.Equal(t, "https://rpc.example?api-key=secret&foo=bar", result)
	})
}
