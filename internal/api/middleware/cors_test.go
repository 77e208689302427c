package middleware

import "testing"

func TestIsOriginAllowed(t *testing.T) {
	tests := []struct {
		name   string
		origin string
		config CORSConfig
		want   bool
	}{
		{
			name:   "allow all",
			origin: "https://evil.example",
			config: CORSConfig{AllowAllOrigins: true},
			want:   true,
		},
		{
			name:   "exact match",
			origin: "http://localhost:3000",
			config: CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
			want:   true,
		},
		{
			name:   "case insensitive match",
			origin: "http://LocalHost:3000",
			config: CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
			want:   true,
		},
		{
			name:   "wildcard entry",
			origin: "https://anything.example",
			config: CORSConfig{AllowedOrigins: []string{"*"}},
			want:   true,
		},
		{
			name:   "not in list",
			origin: "https://other.example",
			config: CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsOriginAllowed(tt.origin, tt.config); got != tt.want {
				t.Errorf("IsOriginAllowed(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}
