// Package vision wraps the ComputerVision gRPC contract for the gateway's
// image endpoint, dispatching by file cardinality per spec §4.6: a single
// file goes out unary, two or more go out over the bidi stream and come
// back in input order.
package vision

import (
	"context"
	"fmt"
	"io"

	"github.com/wrenhollow/aegis/genproto/visionpb"
)

var ErrNoFiles = fmt.Errorf("at least one image is required")

type Client struct {
	vc *visionpb.Client
}

func New(vc *visionpb.Client) *Client {
	return &Client{vc: vc}
}

// Describe dispatches one image per spec §4.6's unary path.
func (c *Client) Describe(ctx context.Context, image []byte, model visionpb.Model) (string, error) {
	resp, err := c.vc.ProcessImage(ctx, &visionpb.ImgProcRequest{Image: image, Model: model})
	if err != nil {
		return "", err
	}
	return resp.Description, nil
}

// DescribeBatch dispatches two or more images over the bidi stream and
// returns descriptions in the same order the images were given, per spec
// §5's ordering guarantee.
func (c *Client) DescribeBatch(ctx context.Context, images [][]byte, model visionpb.Model) ([]string, error) {
	if len(images) == 0 {
		return nil, ErrNoFiles
	}

	stream, err := c.vc.ProcessImageBatch(ctx)
	if err != nil {
		return nil, fmt.Errorf("open batch stream: %w", err)
	}

	sendErrCh := make(chan error, 1)
	go func() {
		for _, img := range images {
			if err := stream.Send(&visionpb.ImgProcRequest{Image: img, Model: model}); err != nil {
				sendErrCh <- err
				return
			}
		}
		sendErrCh <- stream.CloseSend()
	}()

	descriptions := make([]string, 0, len(images))
	for range images {
		resp, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("receive batch response: %w", err)
		}
		descriptions = append(descriptions, resp.Description)
	}

	if err := <-sendErrCh; err != nil {
		return nil, fmt.Errorf("send batch request: %w", err)
	}

	if len(descriptions) != len(images) {
		return nil, fmt.Errorf("vision backend returned %d descriptions for %d images", len(descriptions), len(images))
	}

	return descriptions, nil
}

// Dispatch picks unary vs. batch by cardinality, per spec §4.6.
func (c *Client) Dispatch(ctx context.Context, images [][]byte, model visionpb.Model) ([]string, error) {
	if len(images) == 0 {
		return nil, ErrNoFiles
	}
	if len(images) == 1 {
		desc, err := c.Describe(ctx, images[0], model)
		if err != nil {
			return nil, err
		}
		return []string{desc}, nil
	}
	return c.DescribeBatch(ctx, images, model)
}
