// Copyright © 2023 Permagate, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package aotypes

import (
	"context"
	"database/sql/driver"
	"encoding/json"

	"github.com/permagate-io/aonode/internal/i18n"
)

// JSONObject is a holder of a JSON document of unknown schema, such as the
// Output structure an evaluation returns
type JSONObject map[string]interface{}

// GetString gets a string member of the object, or "" if unset/mistyped
func (jd JSONObject) GetString(key string) string {
	vi, ok := jd[key]
	if ok {
		if vs, ok := vi.(string); ok {
			return vs
		}
	}
	return ""
}

// Scan implements sql.Scanner
func (jd *JSONObject) Scan(src interface{}) error {
	switch src := src.(type) {
	case nil:
		return nil

	case string:
		if src == "" {
			return nil
		}
		return json.Unmarshal([]byte(src), &jd)

	case []byte:
		if len(src) == 0 {
			return nil
		}
		return json.Unmarshal(src, &jd)

	default:
		return i18n.NewError(context.Background(), i18n.MsgScanFailed, src, jd)
	}

}

// Value implements sql.Valuer
func (jd JSONObject) Value() (driver.Value, error) {
	if jd == nil {
		return nil, nil
	}
	return json.Marshal(&jd)
}

func (jd JSONObject) String() string {
	b, _ := json.Marshal(&jd)
	return string(b)
}

// JSONObjectArray is an array of JSONObject, persisted as a single JSON column
type JSONObjectArray []JSONObject

// Scan implements sql.Scanner
func (ja *JSONObjectArray) Scan(src interface{}) error {
	switch src := src.(type) {
	case nil:
		return nil

	case string:
		if src == "" {
			return nil
		}
		return json.Unmarshal([]byte(src), &ja)

	case []byte:
		if len(src) == 0 {
			return nil
		}
		return json.Unmarshal(src, &ja)

	default:
		return i18n.NewError(context.Background(), i18n.MsgScanFailed, src, ja)
	}

}

// Value implements sql.Valuer
func (ja JSONObjectArray) Value() (driver.Value, error) {
	if ja == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(&ja)
}

func (ja JSONObjectArray) String() string {
	b, _ := json.Marshal(&ja)
	return string(b)
}
