// Package v1 contains the telemetry messages published by linkping.
// Types mirror event.proto.
package v1

import (
	"github.com/golang/protobuf/proto"
)

// Event is the telemetry record of one controller action.
type Event struct {
	Node         string `protobuf:"bytes,1,opt,name=node,proto3" json:"node,omitempty"`
	Role         string `protobuf:"bytes,2,opt,name=role,proto3" json:"role,omitempty"`
	Kind         string `protobuf:"bytes,3,opt,name=kind,proto3" json:"kind,omitempty"`
	Seq          uint32 `protobuf:"varint,4,opt,name=seq,proto3" json:"seq,omitempty"`
	Data         []byte `protobuf:"bytes,5,opt,name=data,proto3" json:"data,omitempty"`
	Written      int32  `protobuf:"varint,6,opt,name=written,proto3" json:"written,omitempty"`
	Error        string `protobuf:"bytes,7,opt,name=error,proto3" json:"error,omitempty"`
	TimeUnixNano int64  `protobuf:"varint,8,opt,name=time_unix_nano,json=timeUnixNano,proto3" json:"time_unix_nano,omitempty"`
}

// Reset implements proto.Message.
func (m *Event) Reset() { *m = Event{} }

// String implements proto.Message.
func (m *Event) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message.
func (*Event) ProtoMessage() {}

func init() {
	proto.RegisterType((*Event)(nil), "linkping.v1.Event")
}
