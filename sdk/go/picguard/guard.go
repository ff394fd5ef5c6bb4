package picguard

import "context"

// ToolFunc is the function signature that Wrap guards. The args map may
// carry a proposal under ProposalKey.
type ToolFunc func(ctx context.Context, args map[string]any) (any, error)

// Wrap returns a new ToolFunc that verifies the invocation before
// calling fn. If verification blocks, it returns a *BlockedError
// without calling fn.
func (c *Client) Wrap(toolName string, fn ToolFunc) ToolFunc {
	return func(ctx context.Context, args map[string]any) (any, error) {
		result := c.Check(toolName, args)
		if !result.Allowed {
			return nil, &BlockedError{
				Tool:    toolName,
				Code:    result.Code,
				Message: result.Message,
				Details: result.Details,
			}
		}
		return fn(ctx, args)
	}
}
