package generatorserver

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mitchelldurbincs/PathGAN/internal/dataset"
)

// Client calls a remote GeneratorService
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an existing connection
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Dial opens a plaintext connection to address. The caller closes the
// returned connection.
func Dial(address string) (*Client, *grpc.ClientConn, error) {
	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to %s: %w", address, err)
	}
	return NewClient(conn), conn, nil
}

// Generate asks the server for one path. A nil seed lets the server draw
// its own noise.
func (c *Client) Generate(ctx context.Context, start, end dataset.Coord, seed *int64) ([]dataset.Coord, error) {
	fields := map[string]interface{}{
		"start": []interface{}{start.X, start.Y},
		"end":   []interface{}{end.X, end.Y},
	}
	if seed != nil {
		fields["seed"] = *seed
	}
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, generateMethod, req, resp); err != nil {
		return nil, err
	}

	moves := resp.GetFields()["moves"].GetListValue()
	if moves == nil {
		return nil, fmt.Errorf("response has no moves")
	}
	path := make([]dataset.Coord, len(moves.GetValues()))
	for i, v := range moves.GetValues() {
		c, err := coordValue(v)
		if err != nil {
			return nil, fmt.Errorf("move %d: %w", i, err)
		}
		path[i] = c
	}
	return path, nil
}
