// Copyright 2026 The Ecovisor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ecovisor

import (
	"strings"
	"sync"
	"time"
)

const (
	MaxLogRecords = 1000
)

type LogRecord struct {
	Id   int64     `json:"id,string"`
	Time time.Time `json:"time"`
	Text string    `json:"text"`
}

// Log keeps the most recent lines written to it in a ring.  Every line gets
// a new id, and the id of the newest line doubles as an etag for the whole
// log.  Ids start at the creation time in nanoseconds, so that a client
// caching ids across a daemon restart will see them change.
type Log struct {
	records []LogRecord
	written int // lines written since creation or Clear
	id      int64
	cvs     map[*sync.Cond]bool
	mx      sync.Mutex
}

// Write implements io.Writer, so that a log.Logger can feed the Log.  Each
// newline separated line becomes its own record.
func (l *Log) Write(b []byte) (int, error) {
	now := time.Now()
	str := strings.TrimRight(string(b), "\n")
	l.mx.Lock()
	for _, line := range strings.Split(str, "\n") {
		l.id++
		l.records[l.written%len(l.records)] = LogRecord{
			Id:   l.id,
			Time: now,
			Text: line,
		}
		l.written++
	}
	for cv := range l.cvs {
		cv.Broadcast()
	}
	l.mx.Unlock()
	return len(b), nil
}

// Clear discards all records.  The id moves forward, so watchers see a
// change.
func (l *Log) Clear() {
	l.mx.Lock()
	l.written = 0
	if now := time.Now().UnixNano(); now > l.id {
		l.id = now
	} else {
		l.id++
	}
	for cv := range l.cvs {
		cv.Broadcast()
	}
	l.mx.Unlock()
}

// GetRecords returns the stored records, oldest first, and the current id.
// If last is the current id, nil is returned without copying anything.
func (l *Log) GetRecords(last int64) ([]LogRecord, int64) {
	l.mx.Lock()
	defer l.mx.Unlock()
	if l.id == last {
		return nil, last
	}
	cnt := l.written
	if cnt > len(l.records) {
		cnt = len(l.records)
	}
	recs := make([]LogRecord, 0, cnt)
	for i := l.written - cnt; i < l.written; i++ {
		recs = append(recs, l.records[i%len(l.records)])
	}
	return recs, l.id
}

// Watch waits until the id differs from last, or until expire has passed,
// and returns the current id.  An expire of zero just polls.
func (l *Log) Watch(last int64, expire time.Duration) int64 {
	expired := false
	var timer *time.Timer
	cv := sync.NewCond(&l.mx)
	if expire > 0 {
		timer = time.AfterFunc(expire, func() {
			l.mx.Lock()
			expired = true
			cv.Broadcast()
			l.mx.Unlock()
		})
	} else {
		expired = true
	}

	l.mx.Lock()
	l.cvs[cv] = true
	for l.id == last && !expired {
		cv.Wait()
	}
	delete(l.cvs, cv)
	last = l.id
	l.mx.Unlock()
	if timer != nil {
		timer.Stop()
	}
	return last
}

// NewLog returns a Log holding up to MaxLogRecords lines.
func NewLog() *Log {
	return NewLogSize(MaxLogRecords)
}

func NewLogSize(n int) *Log {
	if n < 1 {
		n = 1
	}
	return &Log{
		records: make([]LogRecord, n),
		id:      time.Now().UnixNano(),
		cvs:     make(map[*sync.Cond]bool),
	}
}
