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
	"strconv"
	"time"

	"github.com/permagate-io/aonode/internal/i18n"
)

// DateTime is serialized to JSON as RFC3339 nanosecond UTC time, and persisted
// as a nanosecond resolution timestamp in the database. It can be parsed from
// RFC3339, or unix timestamps (second, millisecond or nanosecond resolution).
type DateTime time.Time

func Now() *DateTime {
	t := DateTime(time.Now().UTC())
	return &t
}

func ZeroTime() DateTime {
	return DateTime(time.Time{}.UTC())
}

func UnixTime(unixTime int64) *DateTime {
	if unixTime < 1e10 {
		unixTime *= 1e3 // secs to millis
	}
	if unixTime < 1e15 {
		unixTime *= 1e6 // millis to nanos
	}
	t := DateTime(time.Unix(0, unixTime))
	return &t
}

func (dt *DateTime) MarshalJSON() ([]byte, error) {
	if dt == nil || time.Time(*dt).IsZero() {
		return json.Marshal(nil)
	}
	return json.Marshal(dt.String())
}

func ParseTimeString(str string) (*DateTime, error) {
	t, err := time.Parse(time.RFC3339Nano, str)
	if err != nil {
		var unixTime int64
		unixTime, err = strconv.ParseInt(str, 10, 64)
		if err == nil {
			return UnixTime(unixTime), nil
		}
	}
	if err != nil {
		zero := ZeroTime()
		return &zero, i18n.NewError(context.Background(), i18n.MsgTimeParseFail, str)
	}
	dt := DateTime(t)
	return &dt, nil
}

func (dt *DateTime) UnixNano() int64 {
	if dt == nil {
		return 0
	}
	return time.Time(*dt).UnixNano()
}

func (dt *DateTime) UnmarshalText(b []byte) error {
	t, err := ParseTimeString(string(b))
	if err != nil {
		return err
	}
	*dt = *t
	return nil
}

// Scan implements sql.Scanner
func (dt *DateTime) Scan(src interface{}) error {
	switch src := src.(type) {
	case nil:
		*dt = ZeroTime()
		return nil

	case string:
		t, err := ParseTimeString(src)
		if err != nil {
			return err
		}
		*dt = *t
		return nil

	case int64:
		if src == 0 {
			return nil
		}
		t := UnixTime(src)
		*dt = *t
		return nil

	default:
		return i18n.NewError(context.Background(), i18n.MsgScanFailed, src, dt)
	}

}

// Value implements sql.Valuer
func (dt DateTime) Value() (driver.Value, error) {
	if time.Time(dt).IsZero() {
		return int64(0), nil
	}
	return dt.UnixNano(), nil
}

func (dt DateTime) String() string {
	if time.Time(dt).IsZero() {
		return ""
	}
	return time.Time(dt).UTC().Format(time.RFC3339Nano)
}
