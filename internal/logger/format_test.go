package logger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripAnsiCodes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "styled proxy address",
			in:   "proxy \x1b[36m10.0.0.1:8080\x1b[0m banned",
			want: "proxy 10.0.0.1:8080 banned",
		},
		{
			name: "multiple styles in one value",
			in:   "\x1b[31mfailed:\x1b[0m mid \x1b[1;35m12345\x1b[0m gave up",
			want: "failed: mid 12345 gave up",
		},
		{
			name: "plain string unchanged",
			in:   "assembler: relation fetch failed for mid 123",
			want: "assembler: relation fetch failed for mid 123",
		},
		{
			name: "empty string",
			in:   "",
			want: "",
		},
		{
			name: "bare escape without bracket survives",
			in:   "odd \x1b value",
			want: "odd \x1b value",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripAnsiCodes(tt.in))
		})
	}
}

func BenchmarkStripAnsiCodes(b *testing.B) {
	var sb strings.Builder
	for i := 0; i < 500; i++ {
		sb.WriteString("proxy \x1b[36m10.0.0.1:8080\x1b[0m cooling ")
	}
	large := sb.String()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		stripAnsiCodes(large)
	}
}
