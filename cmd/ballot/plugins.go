// Copyright 2026 Blink Labs Software
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

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blinklabs-io/ballot/database"
	"github.com/blinklabs-io/ballot/internal/version"
)

func listPlugins() string {
	var buf strings.Builder
	buf.WriteString("Available store plugins:\n")
	for _, p := range database.Plugins() {
		marker := ""
		if p.Name == database.DefaultPlugin {
			marker = " (default)"
		}
		fmt.Fprintf(&buf, "  %s: %s%s\n", p.Name, p.Description, marker)
	}
	return buf.String()
}

func pluginsCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "plugins",
		Short:       "List available store plugins",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoConfig: "true"},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprint(cmd.OutOrStdout(), listPlugins())
		},
	}
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Show the version",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoConfig: "true"},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", programName, version.GetVersionString())
		},
	}
}
