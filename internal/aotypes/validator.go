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
	"encoding/json"
	"strings"

	"github.com/permagate-io/aonode/internal/i18n"
	"github.com/xeipuuv/gojsonschema"
)

// messageSchema is the terminal validation applied to every message after
// hydration, to catch transform bugs before the evaluator folds it
const messageSchema = `{
  "type": "object",
  "required": ["sortKey", "message", "AoGlobal"],
  "properties": {
    "sortKey": {
      "type": "string",
      "pattern": "^[0-9]{12}(,.*)?$"
    },
    "deepHash": { "type": "string" },
    "isAssignment": { "type": "boolean" },
    "isCron": { "type": "boolean" },
    "message": {
      "type": "object",
      "required": ["Owner", "Target", "From", "Tags"],
      "properties": {
        "Id": { "type": "string" },
        "Owner": { "type": "string", "minLength": 1 },
        "Target": { "type": "string", "minLength": 1 },
        "From": { "type": "string", "minLength": 1 },
        "Anchor": { "type": "string" },
        "Tags": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["name", "value"],
            "properties": {
              "name": { "type": "string" },
              "value": { "type": "string" }
            }
          }
        }
      }
    },
    "AoGlobal": {
      "type": "object",
      "required": ["process", "block"],
      "properties": {
        "process": { "type": "object" },
        "block": {
          "type": "object",
          "required": ["height", "timestamp"],
          "properties": {
            "height": { "type": "number" },
            "timestamp": { "type": "number" }
          }
        }
      }
    }
  }
}`

var messageSchemaLoader = gojsonschema.NewStringLoader(messageSchema)

// ValidateMessage re-parses a message against the message schema. Failures are
// ill-formed-message errors, which halt the containing evaluation.
func ValidateMessage(ctx context.Context, msg *Message) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return i18n.WrapError(ctx, err, i18n.MsgMessageSchemaFail, "marshal")
	}
	result, err := gojsonschema.Validate(messageSchemaLoader, gojsonschema.NewBytesLoader(b))
	if err != nil {
		return i18n.WrapError(ctx, err, i18n.MsgMessageSchemaFail, "validate")
	}
	if !result.Valid() {
		details := make([]string, len(result.Errors()))
		for i, e := range result.Errors() {
			details[i] = e.String()
		}
		return i18n.NewError(ctx, i18n.MsgMessageSchemaFail, strings.Join(details, "; "))
	}
	return nil
}
