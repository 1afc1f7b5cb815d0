package monitor

import (
	"fmt"
	"math"
	"time"

	"github.com/golang/protobuf/proto"
	structpb "github.com/golang/protobuf/ptypes/struct"

	"github.com/robotalks/estim.go/pkg/comm"
)

// Sample is one observed register value.
type Sample struct {
	Name    string
	Address comm.Address
	Value   byte
	Time    time.Time
}

func stringValue(s string) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_StringValue{StringValue: s}}
}

func numberValue(n float64) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_NumberValue{NumberValue: n}}
}

// EncodeSample encodes a sample as a protobuf google.protobuf.Struct.
func EncodeSample(s Sample) ([]byte, error) {
	return proto.Marshal(&structpb.Struct{
		Fields: map[string]*structpb.Value{
			"name":    stringValue(s.Name),
			"address": numberValue(float64(s.Address)),
			"value":   numberValue(float64(s.Value)),
			"time":    stringValue(s.Time.UTC().Format(time.RFC3339Nano)),
		},
	})
}

// DecodeSample is the inverse of EncodeSample.
func DecodeSample(payload []byte) (s Sample, err error) {
	var st structpb.Struct
	if err = proto.Unmarshal(payload, &st); err != nil {
		return
	}
	for _, key := range []string{"name", "address", "value", "time"} {
		if st.Fields[key] == nil {
			return s, fmt.Errorf("sample: missing field %q", key)
		}
	}
	s.Name = st.Fields["name"].GetStringValue()
	addr, err := intField(&st, "address", 0xffff)
	if err != nil {
		return
	}
	value, err := intField(&st, "value", 0xff)
	if err != nil {
		return
	}
	s.Address, s.Value = comm.Address(addr), byte(value)
	s.Time, err = time.Parse(time.RFC3339Nano, st.Fields["time"].GetStringValue())
	return
}

// intField reads a whole number in [0, max] from a numeric field.
func intField(st *structpb.Struct, key string, max float64) (uint32, error) {
	n := st.Fields[key].GetNumberValue()
	if n != math.Trunc(n) || n < 0 || n > max {
		return 0, fmt.Errorf("sample: %s %v out of range [0, %v]", key, n, max)
	}
	return uint32(n), nil
}
