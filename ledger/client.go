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
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/blinklabs-io/ballot/event"
	"github.com/blinklabs-io/ballot/wallet"
)

const (
	DefaultConfirmTimeout       = 2 * time.Minute
	DefaultQueryTimeout         = 15 * time.Second
	DefaultRetryMaxAttempts     = 3
	DefaultRetryInitialInterval = 250 * time.Millisecond
	DefaultRetryMaxInterval     = 5 * time.Second
)

var tracer = otel.Tracer("github.com/blinklabs-io/ballot/ledger")

type ClientConfig struct {
	Contract             Contract
	Signer               wallet.Signer
	Logger               *slog.Logger
	EventBus             *event.EventBus
	Metrics              *Metrics
	ConfirmTimeout       time.Duration
	QueryTimeout         time.Duration
	RetryMaxAttempts     uint
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
}

// Client is a typed facade over a Contract, bound to a single signer
type Client struct {
	config   ClientConfig
	logger   *slog.Logger
	metrics  *Metrics
	inFlight atomic.Bool
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Contract == nil {
		return nil, errors.New("ledger client requires a contract")
	}
	if cfg.Signer == nil {
		return nil, errors.New("ledger client requires a signer")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics(nil)
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = DefaultConfirmTimeout
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = DefaultQueryTimeout
	}
	if cfg.RetryMaxAttempts == 0 {
		cfg.RetryMaxAttempts = DefaultRetryMaxAttempts
	}
	if cfg.RetryInitialInterval <= 0 {
		cfg.RetryInitialInterval = DefaultRetryInitialInterval
	}
	if cfg.RetryMaxInterval <= 0 {
		cfg.RetryMaxInterval = DefaultRetryMaxInterval
	}
	return &Client{
		config: cfg,
		logger: cfg.Logger.With(
			"component", "ledger",
			"address", cfg.Signer.Address().String(),
		),
		metrics: cfg.Metrics,
	}, nil
}

// Address returns the identity this client signs for
func (c *Client) Address() wallet.Address {
	return c.config.Signer.Address()
}

// Pending reports whether a mutation is currently in flight
func (c *Client) Pending() bool {
	return c.inFlight.Load()
}

func (c *Client) IsRegistered(
	ctx context.Context,
	addr wallet.Address,
) (bool, error) {
	ctx, span := tracer.Start(
		ctx,
		"ledger.IsRegistered",
		trace.WithAttributes(attribute.String("address", addr.String())),
	)
	defer span.End()
	ret, err := query(
		ctx,
		c,
		OpIsRegistered,
		func(ctx context.Context) (bool, error) {
			return c.config.Contract.IsRegistered(ctx, addr)
		},
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}
	span.SetAttributes(attribute.Bool("registered", ret))
	return ret, nil
}

func (c *Client) GetProposal(ctx context.Context, id uint64) (Proposal, error) {
	ctx, span := tracer.Start(
		ctx,
		"ledger.GetProposal",
		trace.WithAttributes(attribute.Int64("proposal.id", int64(id))), // #nosec G115
	)
	defer span.End()
	ret, err := query(
		ctx,
		c,
		OpGetProposal,
		func(ctx context.Context) (Proposal, error) {
			return c.config.Contract.GetProposal(ctx, id)
		},
	)
	if err != nil {
		// Not-found ends a scan and is not a span failure
		if !IsNotFound(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return Proposal{}, err
	}
	return ret, nil
}

func (c *Client) RegisterUser(ctx context.Context) (Receipt, error) {
	return c.submit(
		ctx,
		OpRegisterUser,
		nil,
		func(ctx context.Context) (PendingTx, error) {
			return c.config.Contract.RegisterUser(ctx, c.config.Signer)
		},
	)
}

// CreateProposal submits a new proposal. The description is trimmed of
// surrounding whitespace and must not be empty.
func (c *Client) CreateProposal(
	ctx context.Context,
	description string,
	durationMinutes uint64,
) (Receipt, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return Receipt{}, &ValidationError{
			Field:  "description",
			Reason: "must not be empty",
		}
	}
	if durationMinutes == 0 {
		return Receipt{}, &ValidationError{
			Field:  "duration",
			Reason: "must be at least one minute",
		}
	}
	return c.submit(
		ctx,
		OpCreateProposal,
		[]attribute.KeyValue{
			attribute.Int64("proposal.duration_minutes", int64(durationMinutes)), // #nosec G115
		},
		func(ctx context.Context) (PendingTx, error) {
			return c.config.Contract.CreateProposal(
				ctx,
				c.config.Signer,
				description,
				durationMinutes,
			)
		},
	)
}

func (c *Client) Vote(ctx context.Context, proposalID uint64) (Receipt, error) {
	if proposalID == 0 {
		return Receipt{}, &ValidationError{
			Field:  "proposal id",
			Reason: "must be a positive integer",
		}
	}
	return c.submit(
		ctx,
		OpVote,
		[]attribute.KeyValue{
			attribute.Int64("proposal.id", int64(proposalID)), // #nosec G115
		},
		func(ctx context.Context) (PendingTx, error) {
			return c.config.Contract.Vote(ctx, c.config.Signer, proposalID)
		},
	)
}

// submit runs the two-phase protocol for a mutation. Submission is bounded by
// the query timeout and the confirmation wait by the confirm timeout. The
// in-flight flag is held for the whole call.
func (c *Client) submit(
	ctx context.Context,
	op string,
	attrs []attribute.KeyValue,
	send func(context.Context) (PendingTx, error),
) (Receipt, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		c.metrics.pendingRejected.Inc()
		return Receipt{}, ErrOperationPending
	}
	defer c.inFlight.Store(false)

	ctx, span := tracer.Start(
		ctx,
		"ledger."+op,
		trace.WithAttributes(attrs...),
	)
	defer span.End()

	start := time.Now()
	submitCtx, submitCancel := context.WithTimeout(ctx, c.config.QueryTimeout)
	tx, err := send(submitCtx)
	submitCancel()
	if err != nil {
		return Receipt{}, c.txFailed(span, op, "", err)
	}
	txHash := tx.Hash()
	span.SetAttributes(attribute.String("tx.hash", txHash))
	c.metrics.txSubmitted.WithLabelValues(op).Inc()
	c.logger.Info(
		"transaction submitted",
		"op", op,
		"tx_hash", txHash,
	)

	waitCtx, waitCancel := context.WithTimeout(ctx, c.config.ConfirmTimeout)
	defer waitCancel()
	receipt, err := tx.Wait(waitCtx)
	if err != nil {
		return Receipt{}, c.txFailed(span, op, txHash, err)
	}
	if receipt.Op == "" {
		receipt.Op = op
	}
	if receipt.TxHash == "" {
		receipt.TxHash = txHash
	}
	c.metrics.txConfirmed.WithLabelValues(op).Inc()
	c.metrics.confirmSeconds.Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.Int64("tx.block", int64(receipt.Block))) // #nosec G115
	c.logger.Info(
		"transaction confirmed",
		"op", op,
		"tx_hash", receipt.TxHash,
		"block", receipt.Block,
	)
	c.publish(
		TransactionConfirmedEventType,
		TransactionEvent{
			Op:      op,
			Address: c.Address(),
			Receipt: receipt,
		},
	)
	return receipt, nil
}

func (c *Client) txFailed(
	span trace.Span,
	op string,
	txHash string,
	err error,
) error {
	txErr := classifyTxError(op, txHash, err)
	c.metrics.txFailed.WithLabelValues(op, string(txErr.Kind)).Inc()
	span.RecordError(txErr)
	span.SetStatus(codes.Error, txErr.Error())
	c.logger.Warn(
		"transaction failed",
		"op", op,
		"tx_hash", txHash,
		"reason", string(txErr.Kind),
		"error", err,
	)
	c.publish(
		TransactionFailedEventType,
		TransactionEvent{
			Op:      op,
			Address: c.Address(),
			Receipt: Receipt{Op: op, TxHash: txHash},
			Kind:    txErr.Kind,
			Err:     txErr,
		},
	)
	return txErr
}

func (c *Client) publish(eventType event.EventType, data TransactionEvent) {
	if c.config.EventBus == nil {
		return
	}
	c.config.EventBus.Publish(eventType, event.NewEvent(eventType, data))
}

func (c *Client) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.config.RetryInitialInterval
	b.MaxInterval = c.config.RetryMaxInterval
	return b
}

// query runs a read against the contract, retrying transport failures with
// exponential backoff. Each attempt is bounded by the query timeout.
func query[T any](
	ctx context.Context,
	c *Client,
	op string,
	fn func(context.Context) (T, error),
) (T, error) {
	attempt := 0
	ret, err := backoff.Retry(
		ctx,
		func() (T, error) {
			attempt++
			if attempt > 1 {
				c.metrics.queryRetries.WithLabelValues(op).Inc()
			}
			queryCtx, cancel := context.WithTimeout(ctx, c.config.QueryTimeout)
			defer cancel()
			ret, err := fn(queryCtx)
			if err == nil {
				return ret, nil
			}
			if isPermanentQueryError(err) || ctx.Err() != nil {
				return ret, backoff.Permanent(err)
			}
			c.logger.Debug(
				"ledger query failed",
				"op", op,
				"attempt", attempt,
				"error", err,
			)
			return ret, err
		},
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(c.config.RetryMaxAttempts),
	)
	if err != nil {
		var permErr *backoff.PermanentError
		if errors.As(err, &permErr) {
			err = permErr.Unwrap()
		}
		outcome := "error"
		if IsNotFound(err) {
			outcome = "not_found"
		}
		c.metrics.queries.WithLabelValues(op, outcome).Inc()
		var zero T
		return zero, &QueryError{Op: op, Err: err}
	}
	c.metrics.queries.WithLabelValues(op, "ok").Inc()
	return ret, nil
}
