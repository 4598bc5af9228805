package replicate

import "context"

// GenerateRequest is one image generation attempt.
type GenerateRequest struct {
	Prompt      string
	AspectRatio string
	RequestID   string
}

// Generator is the contract the batch processor consumes. Client satisfies
// it; tests substitute fakes.
type Generator interface {
	Model() string
	Generate(ctx context.Context, req GenerateRequest) ([]string, error)
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Generate creates a prediction for the request and waits until it reaches a
// terminal status, returning the output asset URLs.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) ([]string, error) {
	pred, err := c.Create(ctx, map[string]any{
		"prompt":       req.Prompt,
		"aspect_ratio": req.AspectRatio,
	})
	if err != nil {
		return nil, err
	}
	final, err := c.Wait(ctx, pred)
	if err != nil {
		return nil, err
	}
	return final.OutputURLs(), nil
}

var _ Generator = (*Client)(nil)
