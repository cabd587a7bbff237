// Package visionpb is the ComputerVision gRPC contract (spec §6): a unary
// ProcessImage and a bidi-streaming ProcessImageBatch, both carrying
// ImgProcRequest{image bytes, model enum}. The vision backend's internal
// image models are out of scope (spec §1); this package only needs to
// speak the wire contract.
//
// No .proto/protoc-gen-go-grpc output was available to generate real
// message types from, so this contract is expressed as plain Go structs
// carried over a real gRPC transport using a JSON codec registered through
// grpc-go's own encoding.RegisterCodec extension point (the same
// mechanism protoc-gen-go-grpc's generated stubs use internally, just with
// JSON instead of protobuf wire format on this one service).
package visionpb

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// Model mirrors spec §6's enum{BLIP, BLIP_QUANTIZED}.
type Model int32

const (
	ModelBLIP Model = iota
	ModelBLIPQuantized
)

func (m Model) String() string {
	if m == ModelBLIPQuantized {
		return "BLIP_QUANTIZED"
	}
	return "BLIP"
}

type ImgProcRequest struct {
	Image []byte `json:"image"`
	Model Model  `json:"model"`
}

type ImgProcResponse struct {
	Description string `json:"description"`
}

const (
	serviceName             = "vision.ComputerVision"
	methodProcessImage      = "/" + serviceName + "/ProcessImage"
	methodProcessImageBatch = "/" + serviceName + "/ProcessImageBatch"
	codecName               = "json"
)

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// Client is a thin ComputerVision client over an existing *grpc.ClientConn.
type Client struct {
	cc *grpc.ClientConn
}

func NewClient(cc *grpc.ClientConn) *Client {
	return &Client{cc: cc}
}

// ProcessImage invokes the unary RPC for the single-file case (spec §4.6).
func (c *Client) ProcessImage(ctx context.Context, req *ImgProcRequest) (*ImgProcResponse, error) {
	resp := new(ImgProcResponse)
	if err := c.cc.Invoke(ctx, methodProcessImage, req, resp, grpc.CallContentSubtype(codecName)); err != nil {
		return nil, err
	}
	return resp, nil
}

// BatchStream is the bidi-streaming handle for ProcessImageBatch: the
// caller Sends every request in order, CloseSends, then Recvs responses in
// the same order (spec §4.6, §5 ordering guarantee).
type BatchStream interface {
	Send(*ImgProcRequest) error
	Recv() (*ImgProcResponse, error)
	CloseSend() error
}

type batchStream struct {
	grpc.ClientStream
}

func (b *batchStream) Send(req *ImgProcRequest) error {
	return b.ClientStream.SendMsg(req)
}

func (b *batchStream) Recv() (*ImgProcResponse, error) {
	resp := new(ImgProcResponse)
	if err := b.ClientStream.RecvMsg(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ProcessImageBatch opens the bidi stream for the multi-file case.
func (c *Client) ProcessImageBatch(ctx context.Context) (BatchStream, error) {
	desc := &grpc.StreamDesc{
		StreamName:    "ProcessImageBatch",
		ClientStreams: true,
		ServerStreams: true,
	}
	stream, err := c.cc.NewStream(ctx, desc, methodProcessImageBatch, grpc.CallContentSubtype(codecName))
	if err != nil {
		return nil, err
	}
	return &batchStream{ClientStream: stream}, nil
}
