package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	t.Parallel()

	got := String()
	if !strings.HasPrefix(got, "tbrag "+Version) || !strings.Contains(got, "commit: "+Commit) {
		t.Errorf("String() = %q", got)
	}
}
