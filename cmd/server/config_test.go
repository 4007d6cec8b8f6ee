package main

import (
	"testing"

	env "github.com/Netflix/go-env"
	"github.com/stretchr/testify/require"
)

func TestConfig_Loads_With_Only_Required_Variables(t *testing.T) {
	req := require.New(t)

	// Given only the variables without defaults
	t.Setenv("BADGER_FILEPATH", t.TempDir())
	t.Setenv("SEARCH_FILEPATH", t.TempDir())
	t.Setenv("JWT_SECRET", "test-secret")

	// When the environment is unmarshalled
	var config Config
	_, err := env.UnmarshalFromEnviron(&config)

	// Then every default applies, including the replacement character
	req.NoError(err)
	req.Equal(16, config.ShardCount)
	req.Equal(50, config.BacklogSize)

	replacement, err := config.CharacterRune()
	req.NoError(err)
	req.Equal('*', replacement)
}

func TestConfig_CharacterRune_Rejects_Multi_Character_Values(t *testing.T) {
	req := require.New(t)

	config := Config{ModerationCharReplacement: "**"}

	_, err := config.CharacterRune()
	req.Error(err)
}
