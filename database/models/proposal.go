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

package models

// Proposal is a stored proposal. IDs are assigned by the store, sequentially
// from 1. Start and end times are unix seconds.
type Proposal struct {
	ID          uint64 `gorm:"primarykey;autoIncrement:false"`
	Description string `gorm:"not null"`
	Creator     string `gorm:"index;size:56;not null"`
	VoteCount   uint64 `gorm:"not null"`
	StartTime   int64  `gorm:"not null"`
	EndTime     int64  `gorm:"index;not null"`
	TxHash      []byte `gorm:"size:32"`
	AddedBlock  uint64 `gorm:"index;not null"`
}

// TableName returns the table name
func (Proposal) TableName() string {
	return "proposal"
}

// Active reports whether voting is open at the given unix time
func (p Proposal) Active(now int64) bool {
	return now >= p.StartTime && now < p.EndTime
}
