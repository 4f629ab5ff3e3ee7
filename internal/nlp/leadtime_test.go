package nlp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLeadMinutes(t *testing.T) {
	cases := []struct {
		in      string
		minutes int
		ok      bool
	}{
		{"30 minutos", 30, true},
		{"1 minuto", 1, true},
		{"2 horas", 120, true},
		{"1 hora", 60, true},
		{"45", 45, true},
		{"0", 0, true},
		{"na hora", 0, true},
		{"Na hora exata", 0, true},
		{"me avisa sei lá", 0, false},
		{"", 0, false},
	}

	for _, tc := range cases {
		minutes, ok := ParseLeadMinutes(tc.in)
		assert.Equal(t, tc.ok, ok, "input %q", tc.in)
		if tc.ok {
			assert.Equal(t, tc.minutes, minutes, "input %q", tc.in)
		}
	}
}
