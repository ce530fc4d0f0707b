/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/utils/clock"

	"github.com/NissesSenap/azdo-scaffolder/pkg/azdo"
)

// PollOptions controls how a run is followed.
type PollOptions struct {
	// Interval between status fetches. Zero or negative disables polling.
	Interval time.Duration
	// Timeout bounds the polling time. Zero means no timeout.
	Timeout time.Duration
}

// PollResult is the outcome of following a run.
type PollResult struct {
	Run             *azdo.Run
	TimeoutExceeded bool
	// Polls counts the interval fetches, excluding the final fetch.
	Polls int
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithClock sets the clock used to wait between fetches.
func WithClock(c clock.Clock) PollerOption {
	return func(p *Poller) { p.clock = c }
}

// WithLogger sets the poller's logger.
func WithLogger(l logr.Logger) PollerOption {
	return func(p *Poller) { p.logger = l }
}

// Poller follows a pipeline run until it leaves the in-progress state or the
// timeout elapses. Timing out never cancels the run in Azure DevOps.
type Poller struct {
	client RunsClient
	clock  clock.Clock
	logger logr.Logger
}

// NewPoller creates a Poller.
func NewPoller(client RunsClient, opts ...PollerOption) *Poller {
	p := &Poller{
		client: client,
		clock:  clock.RealClock{},
		logger: logr.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Poll follows initial and always finishes with one more fetch, so the
// returned run reflects the latest state Azure DevOps reports.
//
// Elapsed time is the sum of the configured intervals waited so far, checked
// after each fetch. Fetch latency does not count against the timeout, and one
// interval longer than the timeout still performs a single poll.
func (p *Poller) Poll(ctx context.Context, organization, project string, pipelineID int, initial *azdo.Run, opts PollOptions) (*PollResult, error) {
	if initial == nil {
		return nil, fmt.Errorf("no run to poll")
	}
	log := p.logger.WithValues("pipelineID", pipelineID, "runID", initial.ID)

	result := &PollResult{Run: initial}

	if opts.Interval > 0 {
		var elapsed time.Duration
		for {
			select {
			case <-p.clock.After(opts.Interval):
			case <-ctx.Done():
				return nil, ctx.Err()
			}

			run, err := p.fetch(ctx, organization, project, pipelineID, initial.ID)
			if err != nil {
				return nil, err
			}
			result.Run = run
			result.Polls++
			runPolls.Inc()

			elapsed += opts.Interval
			log.V(1).Info("polled run", "state", run.State, "result", run.Result, "elapsed", elapsed)

			if opts.Timeout > 0 && elapsed > opts.Timeout {
				result.TimeoutExceeded = true
				runTimeouts.Inc()
				log.Info("pipeline timeout exceeded, leaving run as is", "timeout", opts.Timeout, "state", run.State)
				break
			}
			if run.State != azdo.RunStateInProgress {
				break
			}
		}
	}

	final, err := p.fetch(ctx, organization, project, pipelineID, initial.ID)
	if err != nil {
		return nil, err
	}
	result.Run = final
	log.Info("pipeline run status", "state", final.State, "result", final.Result, "polls", result.Polls)
	return result, nil
}

func (p *Poller) fetch(ctx context.Context, organization, project string, pipelineID, runID int) (*azdo.Run, error) {
	run, err := p.client.GetRun(ctx, organization, project, pipelineID, runID)
	if err != nil {
		return nil, fmt.Errorf("polling pipeline run: %w", err)
	}
	if run.ID != runID {
		return nil, fmt.Errorf("polling pipeline run: expected run %d, got %d", runID, run.ID)
	}
	return run, nil
}
