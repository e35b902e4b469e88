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

// Package discovery reconstructs the set of proposals held by the ledger.
//
// The ledger has no listing primitive, only lookups by id. Ids are assigned
// sequentially from 1 and never removed, so the set is recovered by probing
// ids in order until the first id with no record.
package discovery

import (
	"context"
	"errors"
	"fmt"

	"github.com/blinklabs-io/ballot/ledger"
)

// DefaultMaxProbe is the default number of ids probed in one scan
const DefaultMaxProbe = 10

var ErrInvalidProbeBound = errors.New("probe bound must be at least 1")

// ProposalGetter looks up a single proposal. It must return an error
// satisfying ledger.IsNotFound for an id with no record.
type ProposalGetter interface {
	GetProposal(ctx context.Context, id uint64) (ledger.Proposal, error)
}

// GetterFunc adapts a function to ProposalGetter
type GetterFunc func(ctx context.Context, id uint64) (ledger.Proposal, error)

func (f GetterFunc) GetProposal(
	ctx context.Context,
	id uint64,
) (ledger.Proposal, error) {
	return f(ctx, id)
}

// Result is the outcome of one scan. Proposals are ordered by ascending id.
// Truncated is set when the probe bound was reached without finding the end
// of the sequence, in which case more proposals may exist.
type Result struct {
	Proposals []ledger.Proposal
	Truncated bool
	Probes    int
}

// DiscoveryError reports a lookup that failed for a reason other than
// not-found. Found is the number of proposals resolved before the failure.
type DiscoveryError struct {
	ID    uint64
	Found int
	Err   error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf(
		"proposal discovery failed at id %d after %d found: %v",
		e.ID,
		e.Found,
		e.Err,
	)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// Scan probes ids 1..maxProbe in order and stops at the first not-found
func Scan(
	ctx context.Context,
	getter ProposalGetter,
	maxProbe int,
) (Result, error) {
	return scan(ctx, getter, maxProbe, 0, nil)
}

// scan implements Scan with optional widening up to limit. The observe
// callback is invoked once per probe.
func scan(
	ctx context.Context,
	getter ProposalGetter,
	maxProbe int,
	limit int,
	observe func(id uint64, err error),
) (Result, error) {
	if maxProbe < 1 {
		return Result{}, ErrInvalidProbeBound
	}
	if limit < maxProbe {
		limit = maxProbe
	}
	var ret Result
	bound := uint64(maxProbe) // #nosec G115
	for id := uint64(1); ; id++ {
		if id > bound {
			if bound >= uint64(limit) { // #nosec G115
				ret.Truncated = true
				return ret, nil
			}
			// Widen and continue from the next unqueried id
			bound = min(bound*2, uint64(limit)) // #nosec G115
		}
		if err := ctx.Err(); err != nil {
			return ret, &DiscoveryError{ID: id, Found: len(ret.Proposals), Err: err}
		}
		p, err := getter.GetProposal(ctx, id)
		ret.Probes++
		if observe != nil {
			observe(id, err)
		}
		if err != nil {
			if ledger.IsNotFound(err) {
				return ret, nil
			}
			return ret, &DiscoveryError{
				ID:    id,
				Found: len(ret.Proposals),
				Err:   err,
			}
		}
		ret.Proposals = append(ret.Proposals, p)
	}
}
