package dataverse

import (
	"bytes"
	"encoding/json"
)

type collectionResponse struct {
	Value    []Record `json:"value"`
	NextLink string   `json:"@odata.nextLink"`
}

// ParseRecords decodes a collection response body. A body without a "value"
// array yields an empty, non-nil slice.
func ParseRecords(data []byte) ([]Record, string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var resp collectionResponse
	if err := dec.Decode(&resp); err != nil {
		return nil, "", err
	}
	if resp.Value == nil {
		resp.Value = []Record{}
	}
	return resp.Value, resp.NextLink, nil
}
