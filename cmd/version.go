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

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// BuildVersion is set by the build with the current tag
var BuildVersion = "(unknown)"

// BuildCommit is set by the build with the current commit hash
var BuildCommit = "(unknown)"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of the node",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("aonode %s (commit %s)\n", BuildVersion, BuildCommit)
	},
}
