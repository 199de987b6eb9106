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

package badger

import (
	"encoding/json"
	"fmt"

	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/docqa/vectorstore"
)

// indexValue is the stored form of an index descriptor.
type indexValue struct {
	Name      string
	Dimension int
	Metric    string
}

// storedRecord is the stored form of a vector record. Metadata is an open
// map, so it is kept as embedded JSON.
type storedRecord struct {
	Values   []float32
	Metadata []byte
}

// recordValue is a decoded record.
type recordValue struct {
	Values   []float32
	Metadata map[string]any
}

var (
	indexValueMUS   mus.Serializer[indexValue]   = indexValueSer{}
	storedRecordMUS mus.Serializer[storedRecord] = storedRecordSer{}

	float32SliceMUS = ord.NewSliceSer[float32](raw.Float32)
)

type indexValueSer struct{}

func (indexValueSer) Marshal(v indexValue, bs []byte) (n int) {
	n = ord.String.Marshal(v.Name, bs)
	n += varint.Int.Marshal(v.Dimension, bs[n:])
	return n + ord.String.Marshal(v.Metric, bs[n:])
}

func (indexValueSer) Unmarshal(bs []byte) (v indexValue, n int, err error) {
	v.Name, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	v.Dimension, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Metric, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	return
}

func (indexValueSer) Size(v indexValue) (size int) {
	size = ord.String.Size(v.Name)
	size += varint.Int.Size(v.Dimension)
	return size + ord.String.Size(v.Metric)
}

func (indexValueSer) Skip(bs []byte) (n int, err error) {
	n, err = ord.String.Skip(bs)
	if err != nil {
		return
	}
	var n1 int
	n1, err = varint.Int.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = ord.String.Skip(bs[n:])
	n += n1
	return
}

type storedRecordSer struct{}

func (storedRecordSer) Marshal(v storedRecord, bs []byte) (n int) {
	n = float32SliceMUS.Marshal(v.Values, bs)
	return n + ord.ByteSlice.Marshal(v.Metadata, bs[n:])
}

func (storedRecordSer) Unmarshal(bs []byte) (v storedRecord, n int, err error) {
	v.Values, n, err = float32SliceMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	v.Metadata, n1, err = ord.ByteSlice.Unmarshal(bs[n:])
	n += n1
	return
}

func (storedRecordSer) Size(v storedRecord) (size int) {
	size = float32SliceMUS.Size(v.Values)
	return size + ord.ByteSlice.Size(v.Metadata)
}

func (storedRecordSer) Skip(bs []byte) (n int, err error) {
	n, err = float32SliceMUS.Skip(bs)
	if err != nil {
		return
	}
	var n1 int
	n1, err = ord.ByteSlice.Skip(bs[n:])
	n += n1
	return
}

func marshalIndex(spec vectorstore.IndexSpec) ([]byte, error) {
	v := indexValue{
		Name:      spec.Name,
		Dimension: spec.Dimension,
		Metric:    string(spec.Metric),
	}
	buf := make([]byte, indexValueMUS.Size(v))
	indexValueMUS.Marshal(v, buf)
	return buf, nil
}

func unmarshalIndex(data []byte) (vectorstore.IndexSpec, error) {
	v, _, err := indexValueMUS.Unmarshal(data)
	if err != nil {
		return vectorstore.IndexSpec{}, fmt.Errorf("failed to decode index descriptor: %w", err)
	}
	return vectorstore.IndexSpec{
		Name:      v.Name,
		Dimension: v.Dimension,
		Metric:    vectorstore.Metric(v.Metric),
	}, nil
}

func marshalRecord(r vectorstore.Record) ([]byte, error) {
	v := storedRecord{Values: r.Values}
	if len(r.Metadata) > 0 {
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to encode record %s: %w", r.ID, err)
		}
		v.Metadata = meta
	}
	buf := make([]byte, storedRecordMUS.Size(v))
	storedRecordMUS.Marshal(v, buf)
	return buf, nil
}

func unmarshalRecord(data []byte) (recordValue, error) {
	v, _, err := storedRecordMUS.Unmarshal(data)
	if err != nil {
		return recordValue{}, fmt.Errorf("failed to decode record: %w", err)
	}
	record := recordValue{Values: v.Values}
	if len(v.Metadata) > 0 {
		if err := json.Unmarshal(v.Metadata, &record.Metadata); err != nil {
			return recordValue{}, fmt.Errorf("failed to decode record metadata: %w", err)
		}
	}
	return record, nil
}
