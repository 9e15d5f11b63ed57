package branch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayName(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{code: "ds_sjs", want: "石景山"},
		{code: "DS_SJS", want: "石景山"},
		{code: "Ds_Cxd", want: "长辛店"},
		{code: "ds_jc", want: "稽查"},
		{code: "unknown_code", want: "unknown_code"},
		{code: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, DisplayName(tt.code))
		})
	}
}

func TestDisplayNames_AllOffices(t *testing.T) {
	assert.Len(t, displayNames, 15)
	for code, name := range displayNames {
		assert.Equal(t, name, DisplayName(code))
	}
}
