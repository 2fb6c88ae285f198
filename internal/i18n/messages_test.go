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

package i18n

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestExpand(t *testing.T) {
	str := Expand(context.Background(), MsgConfigRequired, "sequencer.url")
	assert.Equal(t, "Required configuration 'sequencer.url' not set", str)
}

func TestExpandWithCode(t *testing.T) {
	str := ExpandWithCode(context.Background(), MsgConfigRequired, "sequencer.url")
	assert.Equal(t, "AO10102: Required configuration 'sequencer.url' not set", str)
}

func TestExpandWithLangContext(t *testing.T) {
	ctx := WithLang(context.Background(), language.AmericanEnglish)
	str := Expand(ctx, MsgContextCanceled)
	assert.Equal(t, "Context canceled", str)
}

func TestNewError(t *testing.T) {
	err := NewError(context.Background(), MsgSortKeyInvalid, "pop")
	assert.Regexp(t, "AO10201.*pop", err)
}

func TestWrapError(t *testing.T) {
	err := WrapError(context.Background(), fmt.Errorf("pop"), MsgDBInitFailed)
	assert.Regexp(t, "AO10400", err)
	assert.Regexp(t, "pop", fmt.Sprintf("%+v", err))
}

func TestUniqueCodes(t *testing.T) {
	seen := map[MessageKey]bool{}
	for _, m := range enTranslations {
		assert.False(t, seen[m.msgid], "duplicate message code %s", m.msgid)
		seen[m.msgid] = true
	}
}
