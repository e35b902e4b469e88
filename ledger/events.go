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

package ledger

import (
	"github.com/blinklabs-io/ballot/event"
	"github.com/blinklabs-io/ballot/wallet"
)

const (
	TransactionConfirmedEventType event.EventType = "ledger.tx_confirmed"
	TransactionFailedEventType    event.EventType = "ledger.tx_failed"
)

// TransactionEvent is the payload of both transaction event types. Kind and
// Err are only set on failure.
type TransactionEvent struct {
	Op      string
	Address wallet.Address
	Receipt Receipt
	Kind    TxFailureKind
	Err     error
}
