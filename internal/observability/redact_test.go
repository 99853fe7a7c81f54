package observability

import "testing"

func TestRedact(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "dsn credentials",
			input: `failed to connect to postgres://admin:Secret123@db:5432/ams`,
			want:  `failed to connect to postgres://*:*@db:5432/ams`,
		},
		{
			name:  "password parameter",
			input: "host=db user=app password=hunter2 dbname=ams",
			want:  "host=db user=app password=*** dbname=ams",
		},
		{
			name:  "bearer token",
			input: "upstream said Bearer abc.def-123",
			want:  "upstream said Bearer ***",
		},
		{
			name:  "api key",
			input: "api_key=sk_live_123 rejected",
			want:  "api_key=*** rejected",
		},
		{
			name:  "absolute path",
			input: `could not open file "/var/lib/postgresql/data/base/1" for reading`,
			want:  `could not open file "<path>" for reading`,
		},
		{
			name:  "plain backend error untouched",
			input: `relation "assets" does not exist`,
			want:  `relation "assets" does not exist`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Redact(tt.input); got != tt.want {
				t.Fatalf("Redact() = %q, want %q", got, tt.want)
			}
		})
	}
}
