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

// Package log is a small leveled, structured logger in the style of
// erigon-lib/log/v3: a Logger interface taking a message plus alternating
// key-value pairs, module-local child loggers via New("component", name),
// and a pluggable Handler so the host process can redirect output without
// the engine depending on any particular sink.
package log

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-stack/stack"
)

// Lvl is a logging level, ordered least to most severe.
type Lvl int

const (
	LvlDebug Lvl = iota
	LvlInfo
	LvlWarn
	LvlError
)

func (l Lvl) String() string {
	switch l {
	case LvlDebug:
		return "DEBUG"
	case LvlInfo:
		return "INFO"
	case LvlWarn:
		return "WARN"
	case LvlError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Record is one emitted log line, handed to a Handler.
type Record struct {
	Time time.Time
	Lvl  Lvl
	Msg  string
	Ctx  []any // alternating key, value
	Call stack.Call
}

// Handler consumes emitted Records. Log must not block the caller for
// long; background tasks and the command path both log through it.
type Handler interface {
	Log(r Record) error
}

// Logger is the interface every component holds: a child created with New
// carries its own fixed context (e.g. "component", "chunk") prepended to
// every record it emits.
type Logger interface {
	Debug(msg string, ctx ...any)
	Info(msg string, ctx ...any)
	Warn(msg string, ctx ...any)
	Error(msg string, ctx ...any)
	New(ctx ...any) Logger
}

type logger struct {
	ctx     []any
	handler Handler
}

var (
	rootMu      sync.RWMutex
	rootHandler Handler = StreamHandler(os.Stderr)
)

// SetHandler replaces the process-wide default handler. Intended for the
// host process to redirect engine logging at startup.
func SetHandler(h Handler) {
	rootMu.Lock()
	defer rootMu.Unlock()
	rootHandler = h
}

func currentHandler() Handler {
	rootMu.RLock()
	defer rootMu.RUnlock()
	return rootHandler
}

// New builds a root logger carrying the given key-value context. Components
// call this once at construction, e.g. log.New("component", "chunk").
func New(ctx ...any) Logger {
	return &logger{ctx: append([]any(nil), ctx...), handler: currentHandler()}
}

func (l *logger) New(ctx ...any) Logger {
	merged := append(append([]any(nil), l.ctx...), ctx...)
	return &logger{ctx: merged, handler: l.handler}
}

func (l *logger) write(lvl Lvl, msg string, ctx ...any) {
	h := l.handler
	if h == nil {
		h = currentHandler()
	}
	merged := append(append([]any(nil), l.ctx...), ctx...)
	// skip write's own frame and the Debug/Info/Warn/Error wrapper to land
	// on the caller that actually emitted this record.
	_ = h.Log(Record{Time: time.Now(), Lvl: lvl, Msg: msg, Ctx: merged, Call: stack.Caller(2)})
}

func (l *logger) Debug(msg string, ctx ...any) { l.write(LvlDebug, msg, ctx...) }
func (l *logger) Info(msg string, ctx ...any)  { l.write(LvlInfo, msg, ctx...) }
func (l *logger) Warn(msg string, ctx ...any)  { l.write(LvlWarn, msg, ctx...) }
func (l *logger) Error(msg string, ctx ...any) { l.write(LvlError, msg, ctx...) }

// FormatRecord renders a Record the way StreamHandler does, exposed so
// alternate Handlers can reuse the same line format.
func FormatRecord(r Record) string {
	s := fmt.Sprintf("%s [%s] %s %+v", r.Time.Format(time.RFC3339), r.Lvl, r.Msg, r.Call)
	for i := 0; i+1 < len(r.Ctx); i += 2 {
		s += fmt.Sprintf(" %v=%v", r.Ctx[i], r.Ctx[i+1])
	}
	return s
}
