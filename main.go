// Copyright 2023 The Cockroach Authors
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
//
// SPDX-License-Identifier: Apache-2.0

// ivm is a demonstration driver for the incremental view maintenance
// runtime: it reads weighted (partition, time, amount) rows from
// stdin, maintains a partitioned rolling aggregate over them, and
// prints the output delta produced by each step.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/ivm/internal/persist"
	"github.com/cockroachdb/ivm/internal/worker"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

var (
	aggregate = pflag.String("aggregate", "avg",
		"the rolling aggregate to maintain: avg or count")
	before = pflag.Int64("before", 150,
		"the window reaches this many time units back from each row")
	after = pflag.Int64("after", 1,
		"the window stops this many time units short of each row")
	verbose = pflag.Bool("verbose", false, "enable debug logging")
)

func main() {
	cfg := &worker.Config{}
	cfg.Bind(pflag.CommandLine)
	snapCfg := &persist.Config{}
	snapCfg.Bind(pflag.CommandLine)
	pflag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}
	if err := cfg.Preflight(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	if err := snapCfg.Preflight(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	if err := run(cfg, snapCfg); err != nil {
		log.WithError(err).Fatal("exiting")
	}
}

// run drives one step per input block. Rows arrive one per line as
// "partition,time,amount[,weight]"; a blank line or EOF freezes the
// accumulated rows into a tick.
func run(cfg *worker.Config, snapCfg *persist.Config) error {
	d, cleanup, err := newDemo(cfg, snapCfg)
	if err != nil {
		return err
	}
	defer cleanup()

	scanner := bufio.NewScanner(os.Stdin)
	pending := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			if err := d.step(); err != nil {
				return err
			}
			pending = 0
			continue
		}
		if err := d.push(line); err != nil {
			log.WithError(err).WithField("line", line).Warn("skipping row")
			continue
		}
		pending++
	}
	if err := scanner.Err(); err != nil {
		return errors.WithStack(err)
	}
	if pending > 0 {
		if err := d.step(); err != nil {
			return err
		}
	}
	return d.kill()
}

// parseRow splits "partition,time,amount[,weight]".
func parseRow(line string) (part string, at, amount, weight int64, _ error) {
	fields := strings.Split(line, ",")
	if len(fields) < 3 || len(fields) > 4 {
		return "", 0, 0, 0, errors.Errorf("expecting 3 or 4 fields, had %d", len(fields))
	}
	part = strings.TrimSpace(fields[0])
	var err error
	if at, err = strconv.ParseInt(strings.TrimSpace(fields[1]), 10, 64); err != nil {
		return "", 0, 0, 0, errors.Wrap(err, "time")
	}
	if amount, err = strconv.ParseInt(strings.TrimSpace(fields[2]), 10, 64); err != nil {
		return "", 0, 0, 0, errors.Wrap(err, "amount")
	}
	weight = 1
	if len(fields) == 4 {
		if weight, err = strconv.ParseInt(strings.TrimSpace(fields[3]), 10, 64); err != nil {
			return "", 0, 0, 0, errors.Wrap(err, "weight")
		}
	}
	if part == "" {
		return "", 0, 0, 0, errors.New("empty partition")
	}
	return part, at, amount, weight, nil
}

// printDelta writes one line per output row, mirroring the input
// shape: partition, time, aggregate, weight.
func printDelta(w *bufio.Writer, rows []outputRow) {
	for _, r := range rows {
		fmt.Fprintf(w, "%s,%d,%s,%+d\n", r.part, r.at, r.agg, r.weight)
	}
	_ = w.Flush()
}
