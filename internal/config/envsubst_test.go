package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("SONGCAT_TEST_UID", "1880487363")
	t.Setenv("SONGCAT_TEST_EMPTY", "")

	tests := []struct {
		name    string
		in      string
		want    string
		missing []string
	}{
		{"plain", `user_id = "${SONGCAT_TEST_UID}"`, `user_id = "1880487363"`, nil},
		{"no references", `music_dir = "./music"`, `music_dir = "./music"`, nil},
		{"unset left in place", `x = "${SONGCAT_TEST_UNSET_12345}"`, `x = "${SONGCAT_TEST_UNSET_12345}"`, []string{"SONGCAT_TEST_UNSET_12345"}},
		{"empty plain is kept", `x = "${SONGCAT_TEST_EMPTY}"`, `x = ""`, nil},
		{"default when unset", `x = "${SONGCAT_TEST_UNSET_12345:-./data}"`, `x = "./data"`, nil},
		{"default when empty", `x = "${SONGCAT_TEST_EMPTY:-./data}"`, `x = "./data"`, nil},
		{"env beats default", `x = "${SONGCAT_TEST_UID:-0}"`, `x = "1880487363"`, nil},
		{"required unset", `x = "${SONGCAT_TEST_EMPTY:? uploader id }"`, `x = "${SONGCAT_TEST_EMPTY:? uploader id }"`, []string{"SONGCAT_TEST_EMPTY: uploader id"}},
		{"required set", `x = "${SONGCAT_TEST_UID:?uploader id}"`, `x = "1880487363"`, nil},
		{
			"several",
			`a = "${SONGCAT_TEST_UID}" b = "${SONGCAT_TEST_UNSET_A}" c = "${SONGCAT_TEST_UNSET_B:-c}"`,
			`a = "1880487363" b = "${SONGCAT_TEST_UNSET_A}" c = "c"`,
			[]string{"SONGCAT_TEST_UNSET_A"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, missing := substituteEnvVars(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.missing, missing)
		})
	}
}
