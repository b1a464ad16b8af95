package gstsource

import "testing"

func TestClassifyText(t *testing.T) {
	tests := []struct {
		name  string
		msg   string
		debug string
		want  errorCategory
	}{
		{
			name: "connection refused",
			msg:  "Could not connect to server: Connection refused",
			want: categoryNetwork,
		},
		{
			name: "timeout",
			msg:  "Operation timed out",
			want: categoryNetwork,
		},
		{
			name:  "network hint in debug only",
			msg:   "Internal data stream error.",
			debug: "streaming stopped, host unreachable",
			want:  categoryNetwork,
		},
		{
			name: "unauthorized",
			msg:  "Unauthorized (401)",
			want: categoryAuth,
		},
		{
			name: "auth wins over network",
			msg:  "Could not connect: 401 Unauthorized",
			want: categoryAuth,
		},
		{
			name: "decoder failure",
			msg:  "No valid frames decoded before end of stream",
			want: categoryCodec,
		},
		{
			name:  "not negotiated",
			msg:   "Internal data stream error.",
			debug: "streaming stopped, reason not-negotiated (-4)",
			want:  categoryCodec,
		},
		{
			name: "unclassified",
			msg:  "something unexpected happened",
			want: categoryUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyText(tt.msg, tt.debug); got != tt.want {
				t.Errorf("classifyText(%q, %q) = %s, want %s", tt.msg, tt.debug, got, tt.want)
			}
		})
	}
}

func TestErrorCategoryString(t *testing.T) {
	tests := []struct {
		category errorCategory
		want     string
	}{
		{categoryNetwork, "network"},
		{categoryCodec, "codec"},
		{categoryAuth, "auth"},
		{categoryUnknown, "unknown"},
		{errorCategory(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.category.String(); got != tt.want {
			t.Errorf("errorCategory(%d).String() = %q, want %q", tt.category, got, tt.want)
		}
	}
}
