package mcp

import (
	"slices"
	"testing"
)

func TestResourcePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		uri     string
		want    string
		wantErr bool
	}{
		{"appledoc://documentation/swiftui/view", "/documentation/swiftui/view", false},
		{"appledoc://documentation/swiftui/view/", "/documentation/swiftui/view", false},
		{"appledoc://documentation/swiftui/view#overview", "/documentation/swiftui/view", false},
		{"appledoc://", "", true},
		{"https://developer.apple.com/documentation/swiftui", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			t.Parallel()
			got, err := resourcePath(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("resourcePath(%q) = %q, want %q", tt.uri, got, tt.want)
			}
		})
	}
}

func TestStringSlice(t *testing.T) {
	t.Parallel()

	got := stringSlice([]interface{}{"symbol", 3, "", "technology"})
	if want := []string{"symbol", "technology"}; !slices.Equal(got, want) {
		t.Errorf("stringSlice = %v, want %v", got, want)
	}
	if stringSlice("symbol") != nil {
		t.Error("non-array argument should give nil")
	}
}
