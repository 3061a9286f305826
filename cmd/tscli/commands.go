// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ccollie/valkey-timeseries-sub001/chunk"
	"github.com/ccollie/valkey-timeseries-sub001/common"
	"github.com/ccollie/valkey-timeseries-sub001/index"
	"github.com/ccollie/valkey-timeseries-sub001/query"
	"github.com/ccollie/valkey-timeseries-sub001/series"
	"github.com/ccollie/valkey-timeseries-sub001/store"
)

// cliInterner backs Label values built from command-line text. It is
// independent of the engine's own interner (store.Engine keeps that private):
// Labels compare by String(), so sharing backing storage across interners is
// only a memory optimization, never a correctness requirement.
var cliInterner = common.NewInterner()

// parseLabels parses "name=value,name2=value2" into a sorted Labels set.
func parseLabels(s string) (series.Labels, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make(series.Labels, 0, len(parts))
	for _, p := range parts {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 || kv[0] == "" {
			return nil, fmt.Errorf("invalid label pair %q, want name=value", p)
		}
		out = append(out, series.Label{
			Name:  cliInterner.Intern([]byte(kv[0])),
			Value: cliInterner.Intern([]byte(kv[1])),
		})
	}
	sort.Sort(out)
	return out, nil
}

// parseMatchers parses one AND-group label selector: "name=value,name!=value,name=~re".
// The engine's Matchers type supports full OR-of-AND composition; the CLI
// only ever builds a single AND group, a deliberate simplification over the
// cluster wire protocol's richer selector grammar.
func parseMatchers(s string) (index.Matchers, error) {
	if s == "" {
		return index.Matchers{{}}, nil
	}
	var group []index.Matcher
	for _, p := range strings.Split(s, ",") {
		mt := index.MatchEqual
		sep := "="
		switch {
		case strings.Contains(p, "!="):
			mt, sep = index.MatchNotEqual, "!="
		case strings.Contains(p, "=~"):
			mt, sep = index.MatchRegexEqual, "=~"
		case strings.Contains(p, "!~"):
			mt, sep = index.MatchRegexNotEqual, "!~"
		}
		kv := strings.SplitN(p, sep, 2)
		if len(kv) != 2 || kv[0] == "" {
			return nil, fmt.Errorf("invalid matcher %q", p)
		}
		m, err := index.NewMatcher(kv[0], mt, kv[1])
		if err != nil {
			return nil, err
		}
		group = append(group, m)
	}
	return index.Matchers{group}, nil
}

func parseEncoding(s string) (chunk.Encoding, error) {
	switch strings.ToUpper(s) {
	case "", "COMPRESSED", "GORILLA":
		return chunk.Gorilla, nil
	case "UNCOMPRESSED":
		return chunk.Uncompressed, nil
	default:
		return 0, fmt.Errorf("unknown encoding %q", s)
	}
}

func parseDuplicatePolicy(s string) (chunk.DuplicatePolicy, error) {
	switch strings.ToUpper(s) {
	case "", "BLOCK":
		return chunk.DuplicatePolicyBlock, nil
	case "FIRST":
		return chunk.DuplicatePolicyFirst, nil
	case "LAST":
		return chunk.DuplicatePolicyLast, nil
	case "MIN":
		return chunk.DuplicatePolicyMin, nil
	case "MAX":
		return chunk.DuplicatePolicyMax, nil
	case "SUM":
		return chunk.DuplicatePolicySum, nil
	default:
		return 0, fmt.Errorf("unknown duplicate policy %q", s)
	}
}

func parseAggregator(s string) (series.Aggregator, error) {
	switch strings.ToUpper(s) {
	case "AVG":
		return series.AggAvg, nil
	case "SUM":
		return series.AggSum, nil
	case "MIN":
		return series.AggMin, nil
	case "MAX":
		return series.AggMax, nil
	case "COUNT":
		return series.AggCount, nil
	case "FIRST":
		return series.AggFirst, nil
	case "LAST":
		return series.AggLast, nil
	default:
		return 0, fmt.Errorf("unknown aggregator %q", s)
	}
}

// parseSamplePoint parses "ts:value".
func parseSamplePoint(s string) (chunk.Sample, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return chunk.Sample{}, fmt.Errorf("invalid sample %q, want ts:value", s)
	}
	ts, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return chunk.Sample{}, err
	}
	v, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return chunk.Sample{}, err
	}
	return chunk.Sample{Timestamp: ts, Value: v}, nil
}

func printSamples(cmd *cobra.Command, key string, samples []chunk.Sample) {
	for _, s := range samples {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %d %g\n", key, s.Timestamp, s.Value)
	}
}

func resolveCandidates(engine *store.Engine, db int32, matchers index.Matchers) []*series.TimeSeries {
	idx := engine.Index(db)
	bm := matchers.Resolve(idx)
	var out []*series.TimeSeries
	for _, id := range bm.ToArray() {
		if s, ok := engine.LookupByID(db, id); ok {
			out = append(out, s)
		}
	}
	return out
}

// --- CREATE / ALTER / DEL ---

func newCreateCmd(engine *store.Engine, db *int32) *cobra.Command {
	var labels, encoding, dupPolicy, chunkSize string
	var retention int64

	cmd := &cobra.Command{
		Use:   "CREATE <key>",
		Short: "Create a new, empty series",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ls, err := parseLabels(labels)
			if err != nil {
				return fail(cmd, err)
			}
			enc, err := parseEncoding(encoding)
			if err != nil {
				return fail(cmd, err)
			}
			pol, err := parseDuplicatePolicy(dupPolicy)
			if err != nil {
				return fail(cmd, err)
			}
			budget, err := parseChunkSizeBudget(chunkSize)
			if err != nil {
				return fail(cmd, err)
			}
			id := engine.NextSeriesID()
			s := series.New(id, ls, retention, enc, budget,
				chunk.DuplicatePolicyConfig{Policy: pol}, series.Rounding{})
			engine.Set(*db, []byte(args[0]), s)
			fmt.Fprintf(cmd.OutOrStdout(), "OK id=%d\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&labels, "labels", "", "name=value,... label set")
	cmd.Flags().StringVar(&encoding, "encoding", "COMPRESSED", "COMPRESSED or UNCOMPRESSED")
	cmd.Flags().StringVar(&dupPolicy, "duplicate-policy", "BLOCK", "BLOCK|FIRST|LAST|MIN|MAX|SUM")
	cmd.Flags().Int64Var(&retention, "retention", 0, "retention window in milliseconds, 0 = infinite")
	cmd.Flags().StringVar(&chunkSize, "chunk-size", "4KB", "chunk size budget, e.g. 4KB, 1MB")
	return cmd
}

// parseChunkSizeBudget accepts a human byte-size string ("4KB", "1MB") the
// same way the host's config loader parses memory-budget settings.
func parseChunkSizeBudget(s string) (int, error) {
	var v datasize.ByteSize
	if err := v.UnmarshalText([]byte(s)); err != nil {
		return 0, errors.Wrapf(err, "invalid chunk size %q", s)
	}
	if v == 0 {
		return 0, fmt.Errorf("chunk size must be positive")
	}
	return int(v.Bytes()), nil
}

func newAlterCmd(engine *store.Engine, db *int32) *cobra.Command {
	var labels string
	var retention int64
	var addRule, delRule string

	cmd := &cobra.Command{
		Use:   "ALTER <key>",
		Short: "Update a series' labels, retention, or compaction rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, ok := engine.LookupByKey(*db, []byte(args[0]))
			if !ok {
				return fail(cmd, fmt.Errorf("no such key %q", args[0]))
			}
			if labels != "" {
				ls, err := parseLabels(labels)
				if err != nil {
					return fail(cmd, err)
				}
				s.Labels = ls
				engine.Reindex(*db, []byte(args[0]), s)
			}
			if cmd.Flags().Changed("retention") {
				s.RetentionMillis = retention
			}
			if addRule != "" {
				rule, err := parseAddRule(engine, *db, addRule)
				if err != nil {
					return fail(cmd, err)
				}
				s.Rules = append(s.Rules, rule)
			}
			if delRule != "" {
				destS, ok := engine.LookupByKey(*db, []byte(delRule))
				if !ok {
					return fail(cmd, fmt.Errorf("no such key %q", delRule))
				}
				s.Rules = removeRule(s.Rules, destS.ID)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		},
	}
	cmd.Flags().StringVar(&labels, "labels", "", "replace the label set")
	cmd.Flags().Int64Var(&retention, "retention", 0, "new retention window in milliseconds")
	cmd.Flags().StringVar(&addRule, "add-rule", "", "dest_key:bucket_ms:aggregator, attach a compaction rule")
	cmd.Flags().StringVar(&delRule, "del-rule", "", "dest_key, detach its compaction rule (see DELETERULE)")
	return cmd
}

func parseAddRule(engine *store.Engine, db int32, spec string) (*series.CompactionRule, error) {
	parts := strings.SplitN(spec, ":", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid rule %q, want dest_key:bucket_ms:aggregator", spec)
	}
	destS, ok := engine.LookupByKey(db, []byte(parts[0]))
	if !ok {
		return nil, fmt.Errorf("no such destination key %q", parts[0])
	}
	bucketMs, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, err
	}
	agg, err := parseAggregator(parts[2])
	if err != nil {
		return nil, err
	}
	return &series.CompactionRule{DestID: destS.ID, BucketDuration: bucketMs, Aggregator: agg}, nil
}

func removeRule(rules []*series.CompactionRule, destID uint64) []*series.CompactionRule {
	out := rules[:0]
	for _, r := range rules {
		if r.DestID != destID {
			out = append(out, r)
		}
	}
	return out
}

func newDelCmd(engine *store.Engine, db *int32) *cobra.Command {
	return &cobra.Command{
		Use:   "DEL <key>",
		Short: "Delete a series",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, ok := engine.LookupByKey(*db, []byte(args[0]))
			if !ok {
				return fail(cmd, fmt.Errorf("no such key %q", args[0]))
			}
			engine.Del(*db, []byte(args[0]), s)
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		},
	}
}

func newDeleteRuleCmd(engine *store.Engine, db *int32) *cobra.Command {
	return &cobra.Command{
		Use:   "DELETERULE <src-key> <dest-key>",
		Short: "Detach a compaction rule from its source series",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			srcS, ok := engine.LookupByKey(*db, []byte(args[0]))
			if !ok {
				return fail(cmd, fmt.Errorf("no such key %q", args[0]))
			}
			destS, ok := engine.LookupByKey(*db, []byte(args[1]))
			if !ok {
				return fail(cmd, fmt.Errorf("no such key %q", args[1]))
			}
			srcS.Rules = removeRule(srcS.Rules, destS.ID)
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		},
	}
}

// --- ADD / MADD / ADDBULK / MADDBULK / INCRBY / DECRBY ---

func newAddCmd(engine *store.Engine, db *int32) *cobra.Command {
	return &cobra.Command{
		Use:   "ADD <key> <ts> <value>",
		Short: "Append one sample",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, ok := engine.LookupByKey(*db, []byte(args[0]))
			if !ok {
				return fail(cmd, fmt.Errorf("no such key %q", args[0]))
			}
			pt, err := parseSamplePoint(args[1] + ":" + args[2])
			if err != nil {
				return fail(cmd, err)
			}
			r := s.Add(pt.Timestamp, pt.Value, nil)
			printAddResult(cmd, r)
			return nil
		},
	}
}

func newMAddCmd(engine *store.Engine, db *int32) *cobra.Command {
	return &cobra.Command{
		Use:   "MADD <key> <ts> <value> [<key> <ts> <value> ...]",
		Short: "Append one sample each to multiple series",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args)%3 != 0 {
				return fail(cmd, fmt.Errorf("arguments must be key/ts/value triples"))
			}
			for i := 0; i < len(args); i += 3 {
				key, tsStr, valStr := args[i], args[i+1], args[i+2]
				s, ok := engine.LookupByKey(*db, []byte(key))
				if !ok {
					fmt.Fprintf(cmd.OutOrStdout(), "%s NOKEY\n", key)
					continue
				}
				pt, err := parseSamplePoint(tsStr + ":" + valStr)
				if err != nil {
					return fail(cmd, err)
				}
				r := s.Add(pt.Timestamp, pt.Value, nil)
				fmt.Fprintf(cmd.OutOrStdout(), "%s ", key)
				printAddResult(cmd, r)
			}
			return nil
		},
	}
}

func newAddBulkCmd(engine *store.Engine, db *int32) *cobra.Command {
	return &cobra.Command{
		Use:   "ADDBULK <key> <ts:value> [<ts:value> ...]",
		Short: "Bulk-merge many samples into one series",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, ok := engine.LookupByKey(*db, []byte(args[0]))
			if !ok {
				return fail(cmd, fmt.Errorf("no such key %q", args[0]))
			}
			samples, err := parseSamplePoints(args[1:])
			if err != nil {
				return fail(cmd, err)
			}
			res := series.MergeSamples(s, samples, s.Duplicates, samples[len(samples)-1].Timestamp)
			fmt.Fprintf(cmd.OutOrStdout(), "inserted=%d\n", len(res.Results))
			return nil
		},
	}
}

func newMAddBulkCmd(engine *store.Engine, db *int32) *cobra.Command {
	return &cobra.Command{
		Use:   "MADDBULK <key> <ts:value,ts:value,...> [<key> <ts:value,...> ...]",
		Short: "Bulk-merge samples into multiple series",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args)%2 != 0 {
				return fail(cmd, fmt.Errorf("arguments must be key/sample-list pairs"))
			}
			for i := 0; i < len(args); i += 2 {
				key := args[i]
				s, ok := engine.LookupByKey(*db, []byte(key))
				if !ok {
					fmt.Fprintf(cmd.OutOrStdout(), "%s NOKEY\n", key)
					continue
				}
				samples, err := parseSamplePoints(strings.Split(args[i+1], ","))
				if err != nil {
					return fail(cmd, err)
				}
				res := series.MergeSamples(s, samples, s.Duplicates, samples[len(samples)-1].Timestamp)
				fmt.Fprintf(cmd.OutOrStdout(), "%s inserted=%d\n", key, len(res.Results))
			}
			return nil
		},
	}
}

func parseSamplePoints(raw []string) ([]chunk.Sample, error) {
	out := make([]chunk.Sample, 0, len(raw))
	for _, r := range raw {
		pt, err := parseSamplePoint(r)
		if err != nil {
			return nil, err
		}
		out = append(out, pt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

func printAddResult(cmd *cobra.Command, r chunk.AddResult) {
	switch r.Outcome {
	case chunk.OutcomeOK:
		fmt.Fprintf(cmd.OutOrStdout(), "OK %d\n", r.Sample.Timestamp)
	case chunk.OutcomeDuplicate:
		fmt.Fprintln(cmd.OutOrStdout(), "DUPLICATE")
	case chunk.OutcomeIgnored:
		fmt.Fprintf(cmd.OutOrStdout(), "IGNORED last_ts=%d\n", r.LastTS)
	case chunk.OutcomeTooOld:
		fmt.Fprintln(cmd.OutOrStdout(), "TOO_OLD")
	case chunk.OutcomeCapacityFull:
		fmt.Fprintln(cmd.OutOrStdout(), "CAPACITY_FULL")
	default:
		fmt.Fprintf(cmd.OutOrStdout(), "ERROR %v\n", r.Err)
	}
}

func newIncrByCmd(engine *store.Engine, db *int32, decr bool) *cobra.Command {
	use, short := "INCRBY <key> <value> [ts]", "Increment a series' last value"
	if decr {
		use, short = "DECRBY <key> <value> [ts]", "Decrement a series' last value"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, ok := engine.LookupByKey(*db, []byte(args[0]))
			if !ok {
				return fail(cmd, fmt.Errorf("no such key %q", args[0]))
			}
			delta, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fail(cmd, err)
			}
			if decr {
				delta = -delta
			}
			var tsPtr *int64
			if len(args) == 3 {
				ts, err := strconv.ParseInt(args[2], 10, 64)
				if err != nil {
					return fail(cmd, err)
				}
				tsPtr = &ts
			} else {
				ts := s.LastSample.Timestamp
				tsPtr = &ts
			}
			r, err := s.IncrementSampleValue(tsPtr, delta, s.Duplicates)
			if err != nil {
				return fail(cmd, err)
			}
			printAddResult(cmd, r)
			return nil
		},
	}
}

// --- GET / MGET ---

func newGetCmd(engine *store.Engine, db *int32) *cobra.Command {
	return &cobra.Command{
		Use:   "GET <key>",
		Short: "Fetch the most recent sample",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, ok := engine.LookupByKey(*db, []byte(args[0]))
			if !ok {
				return fail(cmd, fmt.Errorf("no such key %q", args[0]))
			}
			if s.TotalSamples == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "nil")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d %g\n", s.LastSample.Timestamp, s.LastSample.Value)
			return nil
		},
	}
}

func newMGetCmd(engine *store.Engine, db *int32) *cobra.Command {
	var match string
	cmd := &cobra.Command{
		Use:   "MGET",
		Short: "Fetch the most recent sample of every series matching a selector",
		RunE: func(cmd *cobra.Command, args []string) error {
			matchers, err := parseMatchers(match)
			if err != nil {
				return fail(cmd, err)
			}
			for _, s := range resolveCandidates(engine, *db, matchers) {
				key, _ := engine.Index(*db).KeyForID(s.ID)
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d %g\n", key, s.LastSample.Timestamp, s.LastSample.Value)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&match, "match", "", "name=value,... selector, default the universe set")
	return cmd
}

// --- RANGE / REVRANGE / MRANGE / MREVRANGE ---

func newRangeCmd(engine *store.Engine, db *int32, reverse bool) *cobra.Command {
	use := "RANGE <key> <start> <end>"
	if reverse {
		use = "REVRANGE <key> <start> <end>"
	}
	var count int
	cmd := &cobra.Command{
		Use:   use,
		Short: "Read a time range from one series",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, ok := engine.LookupByKey(*db, []byte(args[0]))
			if !ok {
				return fail(cmd, fmt.Errorf("no such key %q", args[0]))
			}
			start, end, err := parseRangeBounds(args[1], args[2])
			if err != nil {
				return fail(cmd, err)
			}
			samples := query.Range(s, start, end, query.RangeOptions{Count: count})
			if reverse {
				reverseSamples(samples)
			}
			printSamples(cmd, args[0], samples)
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 0, "max samples returned, 0 = unlimited")
	return cmd
}

func newMRangeCmd(engine *store.Engine, db *int32, reverse bool) *cobra.Command {
	use := "MRANGE <start> <end>"
	if reverse {
		use = "MREVRANGE <start> <end>"
	}
	var match, groupBy, reducer string
	cmd := &cobra.Command{
		Use:   use,
		Short: "Read a time range from every series matching a selector",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := parseRangeBounds(args[0], args[1])
			if err != nil {
				return fail(cmd, err)
			}
			matchers, err := parseMatchers(match)
			if err != nil {
				return fail(cmd, err)
			}
			candidates := resolveCandidates(engine, *db, matchers)
			var gb *query.GroupBy
			if groupBy != "" {
				agg, err := parseAggregator(reducer)
				if err != nil {
					return fail(cmd, err)
				}
				gb = &query.GroupBy{Label: groupBy, Reducer: agg}
			}
			groups := query.MRange(candidates, start, end, query.RangeOptions{}, gb)
			for i, g := range groups {
				samples := g.Samples
				if reverse {
					reverseSamples(samples)
				}
				key := g.Key
				if gb == nil && i < len(candidates) {
					if kb, ok := engine.Index(*db).KeyForID(candidates[i].ID); ok {
						key = string(kb)
					}
				}
				printSamples(cmd, key, samples)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&match, "match", "", "name=value,... selector, default the universe set")
	cmd.Flags().StringVar(&groupBy, "groupby", "", "label to group by")
	cmd.Flags().StringVar(&reducer, "reduce", "SUM", "reducer used within a group")
	return cmd
}

func parseRangeBounds(startStr, endStr string) (int64, int64, error) {
	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil {
		return 0, 0, err
	}
	end, err := strconv.ParseInt(endStr, 10, 64)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func reverseSamples(s []chunk.Sample) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// --- QUERY / QUERY_RANGE / QUERYINDEX ---

func newQueryCmd(engine *store.Engine, db *int32) *cobra.Command {
	var match string
	cmd := &cobra.Command{
		Use:   "QUERY",
		Short: "List the keys of every series matching a selector",
		RunE: func(cmd *cobra.Command, args []string) error {
			matchers, err := parseMatchers(match)
			if err != nil {
				return fail(cmd, err)
			}
			for _, s := range resolveCandidates(engine, *db, matchers) {
				key, _ := engine.Index(*db).KeyForID(s.ID)
				fmt.Fprintln(cmd.OutOrStdout(), string(key))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&match, "match", "", "name=value,... selector, default the universe set")
	return cmd
}

func newQueryRangeCmd(engine *store.Engine, db *int32) *cobra.Command {
	var match string
	cmd := &cobra.Command{
		Use:   "QUERY_RANGE <start> <end>",
		Short: "Alias of MRANGE without grouping",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := parseRangeBounds(args[0], args[1])
			if err != nil {
				return fail(cmd, err)
			}
			matchers, err := parseMatchers(match)
			if err != nil {
				return fail(cmd, err)
			}
			for _, s := range resolveCandidates(engine, *db, matchers) {
				key, _ := engine.Index(*db).KeyForID(s.ID)
				printSamples(cmd, string(key), query.Range(s, start, end, query.RangeOptions{}))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&match, "match", "", "name=value,... selector, default the universe set")
	return cmd
}

func newQueryIndexCmd(engine *store.Engine, db *int32) *cobra.Command {
	var match string
	cmd := &cobra.Command{
		Use:   "QUERYINDEX",
		Short: "List the series IDs matching a selector, bypassing series lookup",
		RunE: func(cmd *cobra.Command, args []string) error {
			matchers, err := parseMatchers(match)
			if err != nil {
				return fail(cmd, err)
			}
			bm := matchers.Resolve(engine.Index(*db))
			for _, id := range bm.ToArray() {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&match, "match", "", "name=value,... selector, default the universe set")
	return cmd
}

// --- JOIN ---

func newJoinCmd(engine *store.Engine, db *int32) *cobra.Command {
	var joinType string
	cmd := &cobra.Command{
		Use:   "JOIN <left-key> <right-key> <start> <end>",
		Short: "Join two series' sample sequences over a time range",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			left, ok := engine.LookupByKey(*db, []byte(args[0]))
			if !ok {
				return fail(cmd, fmt.Errorf("no such key %q", args[0]))
			}
			right, ok := engine.LookupByKey(*db, []byte(args[1]))
			if !ok {
				return fail(cmd, fmt.Errorf("no such key %q", args[1]))
			}
			start, end, err := parseRangeBounds(args[2], args[3])
			if err != nil {
				return fail(cmd, err)
			}
			jt, err := parseJoinType(joinType)
			if err != nil {
				return fail(cmd, err)
			}
			leftSamples := query.Range(left, start, end, query.RangeOptions{})
			rightSamples := query.Range(right, start, end, query.RangeOptions{})
			rows := query.Join(leftSamples, rightSamples, query.JoinOptions{Type: jt})
			for _, r := range rows {
				fmt.Fprintf(cmd.OutOrStdout(), "%d %s %s\n", r.Timestamp, formatSide(r.Left, r.HasLeft), formatSide(r.Right, r.HasRight))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&joinType, "type", "INNER", "INNER|FULL|LEFT|RIGHT|SEMI|ANTI|ASOF")
	return cmd
}

func formatSide(v float64, has bool) string {
	if !has {
		return "-"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func parseJoinType(s string) (query.JoinType, error) {
	switch strings.ToUpper(s) {
	case "INNER":
		return query.JoinInner, nil
	case "FULL":
		return query.JoinFull, nil
	case "LEFT":
		return query.JoinLeft, nil
	case "RIGHT":
		return query.JoinRight, nil
	case "SEMI":
		return query.JoinSemi, nil
	case "ANTI":
		return query.JoinAnti, nil
	case "ASOF":
		return query.JoinAsOf, nil
	default:
		return 0, fmt.Errorf("unknown join type %q", s)
	}
}

// --- CARD / LABELNAMES / LABELVALUES ---

func newCardCmd(engine *store.Engine, db *int32) *cobra.Command {
	var match string
	cmd := &cobra.Command{
		Use:   "CARD",
		Short: "Count the series matching a selector",
		RunE: func(cmd *cobra.Command, args []string) error {
			matchers, err := parseMatchers(match)
			if err != nil {
				return fail(cmd, err)
			}
			bm := matchers.Resolve(engine.Index(*db))
			fmt.Fprintln(cmd.OutOrStdout(), bm.GetCardinality())
			return nil
		},
	}
	cmd.Flags().StringVar(&match, "match", "", "name=value,... selector, default the universe set")
	return cmd
}

// newLabelNamesCmd and newLabelValuesCmd derive global label enumeration
// from the index's live registrations (index.PostingIndex exposes
// per-(label,value) and prefix lookups, not a direct "distinct label names"
// accessor, so the CLI aggregates it client-side the same way a
// command-path LABELNAMES handler built on the index's public surface
// would).
func newLabelNamesCmd(engine *store.Engine, db *int32) *cobra.Command {
	var match string
	cmd := &cobra.Command{
		Use:   "LABELNAMES",
		Short: "List distinct label names across series matching a selector",
		RunE: func(cmd *cobra.Command, args []string) error {
			matchers, err := parseMatchers(match)
			if err != nil {
				return fail(cmd, err)
			}
			bm := matchers.Resolve(engine.Index(*db))
			names := make(map[string]struct{})
			for _, e := range engine.Index(*db).Entries() {
				if !bm.Contains(e.ID) {
					continue
				}
				for _, l := range e.Labels {
					names[l[0]] = struct{}{}
				}
			}
			printSortedSet(cmd, names)
			return nil
		},
	}
	cmd.Flags().StringVar(&match, "match", "", "name=value,... selector, default the universe set")
	return cmd
}

func newLabelValuesCmd(engine *store.Engine, db *int32) *cobra.Command {
	var match string
	cmd := &cobra.Command{
		Use:   "LABELVALUES <label>",
		Short: "List distinct values of a label across series matching a selector",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			matchers, err := parseMatchers(match)
			if err != nil {
				return fail(cmd, err)
			}
			bm := matchers.Resolve(engine.Index(*db))
			values := make(map[string]struct{})
			for _, e := range engine.Index(*db).Entries() {
				if !bm.Contains(e.ID) {
					continue
				}
				for _, l := range e.Labels {
					if l[0] == args[0] {
						values[l[1]] = struct{}{}
					}
				}
			}
			printSortedSet(cmd, values)
			return nil
		},
	}
	cmd.Flags().StringVar(&match, "match", "", "name=value,... selector, default the universe set")
	return cmd
}

func printSortedSet(cmd *cobra.Command, set map[string]struct{}) {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	for _, v := range out {
		fmt.Fprintln(cmd.OutOrStdout(), v)
	}
}

// --- INFO / STATS ---

func newInfoCmd(engine *store.Engine, db *int32) *cobra.Command {
	return &cobra.Command{
		Use:   "INFO <key>",
		Short: "Print one series' configuration and summary stats",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, ok := engine.LookupByKey(*db, []byte(args[0]))
			if !ok {
				return fail(cmd, fmt.Errorf("no such key %q", args[0]))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "id: %d\n", s.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "labels: %s\n", formatLabels(s.Labels))
			fmt.Fprintf(cmd.OutOrStdout(), "retention_ms: %d\n", s.RetentionMillis)
			fmt.Fprintf(cmd.OutOrStdout(), "encoding: %s\n", s.ChunkCompression)
			fmt.Fprintf(cmd.OutOrStdout(), "chunk_count: %d\n", s.ChunkCount())
			fmt.Fprintf(cmd.OutOrStdout(), "total_samples: %d\n", s.TotalSamples)
			fmt.Fprintf(cmd.OutOrStdout(), "first_ts: %d\n", s.FirstTimestamp)
			fmt.Fprintf(cmd.OutOrStdout(), "last_ts: %d\n", s.LastSample.Timestamp)
			fmt.Fprintf(cmd.OutOrStdout(), "mem_bytes: %d\n", engine.MemUsage(s))
			fmt.Fprintf(cmd.OutOrStdout(), "rules: %d\n", len(s.Rules))
			return nil
		},
	}
}

func formatLabels(labels series.Labels) string {
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = l.Name.String() + "=" + l.Value.String()
	}
	return strings.Join(parts, ",")
}

func newStatsCmd(engine *store.Engine, db *int32) *cobra.Command {
	return &cobra.Command{
		Use:   "STATS",
		Short: "Print engine-wide summary stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbIDs := engine.DBIDs()
			fmt.Fprintf(cmd.OutOrStdout(), "databases: %d\n", len(dbIDs))
			for _, id := range dbIDs {
				fmt.Fprintf(cmd.OutOrStdout(), "db[%d].series: %d\n", id, engine.SeriesCount(id))
			}
			return nil
		},
	}
}
