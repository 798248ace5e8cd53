package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestEmptySnapshotSerializesEmptyLists(t *testing.T) {
	b, err := json.Marshal(EmptySnapshot())
	if err != nil {
		t.Fatal(err)
	}
	body := string(b)
	for _, field := range []string{"tasksByStatus", "tasksByPriority", "weeklyProgress", "recentActivity"} {
		if !strings.Contains(body, `"`+field+`":[]`) {
			t.Errorf("%s should serialize as [], got %s", field, body)
		}
	}
}
