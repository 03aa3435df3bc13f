package main

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSameOrigin(t *testing.T) {
	check := sameOrigin("http://localhost:5173")

	cases := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost:5173", true},
		{"http://example.com", true}, // matches request host below
		{"http://evil.test", false},
		{"://bad", false},
	}
	for _, tc := range cases {
		r := httptest.NewRequest("GET", "http://example.com/game/x/events", nil)
		if tc.origin != "" {
			r.Header.Set("Origin", tc.origin)
		}
		assert.Equal(t, tc.want, check(r), tc.origin)
	}
}
