package utils

import (
	"encoding/json"
	"fmt"

	"github.com/kaptinlin/jsonrepair"
)

// DecodeFragment unmarshals one stream fragment into T. When the payload is
// not valid JSON it is passed through jsonrepair and decoded again; repaired
// reports whether that second attempt was needed. An error means the
// fragment could not be recovered.
func DecodeFragment[T any](payload string) (result T, repaired bool, err error) {
	if err = json.Unmarshal([]byte(payload), &result); err == nil {
		return result, false, nil
	}

	fixed, repairErr := jsonrepair.JSONRepair(payload)
	if repairErr != nil {
		return result, false, fmt.Errorf("unparsable fragment: %w (repair failed: %v)", err, repairErr)
	}

	var retry T
	if retryErr := json.Unmarshal([]byte(fixed), &retry); retryErr != nil {
		return result, false, fmt.Errorf("unparsable fragment after repair: %w", retryErr)
	}
	return retry, true, nil
}
