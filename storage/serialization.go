// Copyright 2025 Poiesic Systems
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


package storage

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/vortex/core"
)

// MarshalIndexedChunk serializes an IndexedChunk to bytes.
func MarshalIndexedChunk(record *core.IndexedChunk) []byte {
	size := ord.String.Size(record.Text) +
		sizeMetadata(record.Metadata) +
		varint.Int.Size(record.ChunkIndex) +
		ord.String.Size(record.ContentHash) +
		sizeVector(record.Vector) +
		varint.Int64.Size(record.InsertedAt.UnixMicro())

	w := &writer{bs: make([]byte, size)}
	w.string(record.Text)
	w.metadata(record.Metadata)
	w.int(record.ChunkIndex)
	w.string(record.ContentHash)
	w.vector(record.Vector)
	w.int64(record.InsertedAt.UnixMicro())
	return w.bs
}

// UnmarshalIndexedChunk deserializes an IndexedChunk from bytes.
func UnmarshalIndexedChunk(data []byte) (*core.IndexedChunk, error) {
	r := &reader{bs: data}
	record := &core.IndexedChunk{}
	record.Text = r.string()
	record.Metadata = r.metadata()
	record.ChunkIndex = r.int()
	record.ContentHash = r.string()
	record.Vector = r.vector()
	record.InsertedAt = time.UnixMicro(r.int64()).UTC()
	if r.err != nil {
		return nil, fmt.Errorf("%w: chunk: %w", ErrSerializationFailed, r.err)
	}
	return record, nil
}

// MarshalMessage serializes a ConversationMessage to bytes.
func MarshalMessage(msg *core.ConversationMessage) []byte {
	size := ord.String.Size(msg.MessageID) +
		ord.String.Size(msg.PreviousMessageID) +
		varint.Int.Size(int(msg.Role)) +
		ord.String.Size(msg.Content) +
		varint.Int.Size(len(msg.Sources)) +
		varint.Int64.Size(msg.Timestamp)
	for _, s := range msg.Sources {
		size += sizeMetadata(s)
	}

	w := &writer{bs: make([]byte, size)}
	w.string(msg.MessageID)
	w.string(msg.PreviousMessageID)
	w.int(int(msg.Role))
	w.string(msg.Content)
	w.int(len(msg.Sources))
	for _, s := range msg.Sources {
		w.metadata(s)
	}
	w.int64(msg.Timestamp)
	return w.bs
}

// UnmarshalMessage deserializes a ConversationMessage from bytes.
func UnmarshalMessage(data []byte) (*core.ConversationMessage, error) {
	r := &reader{bs: data}
	msg := &core.ConversationMessage{}
	msg.MessageID = r.string()
	msg.PreviousMessageID = r.string()
	msg.Role = core.Role(r.int())
	msg.Content = r.string()
	if n := r.length(); n > 0 {
		msg.Sources = make([]core.SourceMetadata, n)
		for i := range msg.Sources {
			msg.Sources[i] = r.metadata()
		}
	}
	msg.Timestamp = r.int64()
	if r.err != nil {
		return nil, fmt.Errorf("%w: message: %w", ErrSerializationFailed, r.err)
	}
	return msg, nil
}

// MarshalReport serializes an IngestionReport to bytes.
func MarshalReport(report *core.IngestionReport) []byte {
	counts := reportCounts(report)
	size := ord.String.Size(report.Collection) +
		varint.Int64.Size(report.StartedAt.UnixMicro()) +
		varint.Int64.Size(report.FinishedAt.UnixMicro()) +
		varint.Int.Size(len(report.Failures))
	for _, c := range counts {
		size += varint.Int.Size(*c)
	}
	for _, f := range report.Failures {
		size += ord.String.Size(f.Source) + ord.String.Size(f.Reason)
	}

	w := &writer{bs: make([]byte, size)}
	w.string(report.Collection)
	w.int64(report.StartedAt.UnixMicro())
	w.int64(report.FinishedAt.UnixMicro())
	for _, c := range counts {
		w.int(*c)
	}
	w.int(len(report.Failures))
	for _, f := range report.Failures {
		w.string(f.Source)
		w.string(f.Reason)
	}
	return w.bs
}

// UnmarshalReport deserializes an IngestionReport from bytes.
func UnmarshalReport(data []byte) (*core.IngestionReport, error) {
	r := &reader{bs: data}
	report := &core.IngestionReport{}
	report.Collection = r.string()
	report.StartedAt = time.UnixMicro(r.int64()).UTC()
	report.FinishedAt = time.UnixMicro(r.int64()).UTC()
	for _, c := range reportCounts(report) {
		*c = r.int()
	}
	if n := r.length(); n > 0 {
		report.Failures = make([]core.SourceFailure, n)
		for i := range report.Failures {
			report.Failures[i].Source = r.string()
			report.Failures[i].Reason = r.string()
		}
	}
	if r.err != nil {
		return nil, fmt.Errorf("%w: report: %w", ErrSerializationFailed, r.err)
	}
	return report, nil
}

// reportCounts lists the counters of a report in their wire order.
func reportCounts(r *core.IngestionReport) []*int {
	return []*int{
		&r.Processed, &r.Skipped, &r.Failed,
		&r.ChunksStaged, &r.DuplicateChunks, &r.ChunksUnchanged, &r.ChunksWritten,
	}
}

func sizeMetadata(m core.SourceMetadata) int {
	return ord.String.Size(m.Link) +
		ord.String.Size(m.Name) +
		ord.String.Size(m.Author) +
		ord.String.Size(core.FormatDate(m.PublicationDate))
}

func sizeVector(v []float32) int {
	size := varint.Int.Size(len(v))
	for _, f := range v {
		size += raw.Float32.Size(f)
	}
	return size
}

// writer marshals fields into a buffer sized in advance.
type writer struct {
	bs []byte
	n  int
}

func (w *writer) string(v string) {
	w.n += ord.String.Marshal(v, w.bs[w.n:])
}

func (w *writer) int(v int) {
	w.n += varint.Int.Marshal(v, w.bs[w.n:])
}

func (w *writer) int64(v int64) {
	w.n += varint.Int64.Marshal(v, w.bs[w.n:])
}

func (w *writer) metadata(m core.SourceMetadata) {
	w.string(m.Link)
	w.string(m.Name)
	w.string(m.Author)
	w.string(core.FormatDate(m.PublicationDate))
}

func (w *writer) vector(v []float32) {
	w.int(len(v))
	for _, f := range v {
		w.n += raw.Float32.Marshal(f, w.bs[w.n:])
	}
}

// reader unmarshals fields in order. After the first failure every call is a
// no-op and err holds the cause.
type reader struct {
	bs  []byte
	n   int
	err error
}

func (r *reader) string() string {
	if r.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(r.bs[r.n:])
	r.n += n
	r.err = err
	return v
}

func (r *reader) int() int {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Int.Unmarshal(r.bs[r.n:])
	r.n += n
	r.err = err
	return v
}

func (r *reader) int64() int64 {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Int64.Unmarshal(r.bs[r.n:])
	r.n += n
	r.err = err
	return v
}

// length reads a collection length and rejects values the remaining input
// cannot possibly hold.
func (r *reader) length() int {
	n := r.int()
	if r.err == nil && (n < 0 || n > len(r.bs)-r.n) {
		r.err = ErrTruncatedRecord
		return 0
	}
	return n
}

func (r *reader) metadata() core.SourceMetadata {
	return core.SourceMetadata{
		Link:            r.string(),
		Name:            r.string(),
		Author:          r.string(),
		PublicationDate: core.ParseDate(r.string()),
	}
}

func (r *reader) vector() []float32 {
	n := r.length()
	if n == 0 {
		return nil
	}
	v := make([]float32, n)
	for i := range v {
		if r.err != nil {
			return nil
		}
		var m int
		v[i], m, r.err = raw.Float32.Unmarshal(r.bs[r.n:])
		r.n += m
	}
	return v
}
