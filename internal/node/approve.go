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

package node

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/blinklabs-io/ballot/wallet"
)

// PromptApprover asks on out and reads a y/N answer from in for each wallet
// request. EOF counts as a refusal.
func PromptApprover(in io.Reader, out io.Writer) wallet.ApproveFunc {
	reader := bufio.NewReader(in)
	var mu sync.Mutex
	return func(ctx context.Context, req wallet.Request) (bool, error) {
		mu.Lock()
		defer mu.Unlock()
		if err := ctx.Err(); err != nil {
			return false, err
		}
		switch req.Kind {
		case wallet.RequestAccess:
			fmt.Fprintf(out, "Allow access to %s? [y/N] ", req.Address)
		default:
			fmt.Fprintf(
				out,
				"Sign %d byte transaction as %s? [y/N] ",
				len(req.Payload),
				req.Address,
			)
		}
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return false, fmt.Errorf("read approval: %w", err)
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		}
		return false, nil
	}
}
