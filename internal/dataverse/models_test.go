package dataverse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordValue(t *testing.T) {
	records, _, err := ParseRecords([]byte(`{"value": [{
		"id": "A", "n": 12.50, "ok": true, "nil": null, "obj": {"b": 2, "a": 1}, "arr": [1, "x"]
	}]}`))
	require.NoError(t, err)
	r := records[0]

	assert.Equal(t, "A", r.Value("id"))
	assert.Equal(t, "12.50", r.Value("n"))
	assert.Equal(t, true, r.Value("ok"))
	assert.Nil(t, r.Value("nil"))
	assert.Nil(t, r.Value("missing"))
	assert.Equal(t, `{"a":1,"b":2}`, r.Value("obj"))
	assert.Equal(t, `[1,"x"]`, r.Value("arr"))
}

func TestRecordKey(t *testing.T) {
	tests := []struct {
		name    string
		record  Record
		wantKey any
		wantOK  bool
	}{
		{name: "present", record: Record{FieldTicketID: "T1"}, wantKey: "T1", wantOK: true},
		{name: "missing", record: Record{}, wantOK: false},
		{name: "null", record: Record{FieldTicketID: nil}, wantOK: false},
		{name: "empty", record: Record{FieldTicketID: ""}, wantOK: false},
		{name: "nil record", record: nil, wantOK: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			key, ok := tc.record.Key(FieldTicketID)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.wantKey, key)
		})
	}
}
