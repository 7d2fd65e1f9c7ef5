package ledger

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"pixelwar.app/pxw/internal/types"
)

// ObjectChange is one entry of a transaction's object changes.
type ObjectChange struct {
	Type       string `json:"type"` // created, mutated, deleted, ...
	ObjectType string `json:"objectType"`
	ObjectID   string `json:"objectId"`
}

// TxResult is the confirmed outcome of a successful transaction.
type TxResult struct {
	Digest        string         `json:"digest"`
	ObjectChanges []ObjectChange `json:"objectChanges"`
}

// CreatedOfType returns the id of the first created object whose type ends
// with suffix, e.g. "::pixel_war::Game".
func (r *TxResult) CreatedOfType(suffix string) (string, bool) {
	for _, ch := range r.ObjectChanges {
		if ch.Type == "created" && strings.HasSuffix(ch.ObjectType, suffix) {
			return ch.ObjectID, true
		}
	}
	return "", false
}

// ExecutionError is returned when the transaction was executed but
// aborted. Status carries the raw failure text, e.g. a MoveAbort with
// its error code.
type ExecutionError struct {
	Digest string
	Status string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("transaction %s failed: %s", e.Digest, e.Status)
}

type executeResponse struct {
	Digest  string `json:"digest"`
	Effects *struct {
		Status struct {
			Status string `json:"status"`
			Error  string `json:"error"`
		} `json:"status"`
	} `json:"effects"`
	ObjectChanges []ObjectChange `json:"objectChanges"`
	Errors        []string       `json:"errors"`
}

var executeOptions = map[string]bool{
	"showEffects":       true,
	"showObjectChanges": true,
}

// ExecuteTransaction submits a signed transaction and waits for local
// execution. Node-level rejections come back as *RPCError, aborts as
// *ExecutionError.
func (c *Client) ExecuteTransaction(ctx context.Context, signed *types.SignedTransaction) (*TxResult, error) {
	var resp executeResponse
	params := []interface{}{
		signed.EncodedTx(),
		signed.Signatures,
		executeOptions,
		"WaitForLocalExecution",
	}
	if err := c.call(ctx, "sui_executeTransactionBlock", params, &resp); err != nil {
		return nil, err
	}

	if len(resp.Errors) > 0 {
		return nil, &ExecutionError{Digest: resp.Digest, Status: strings.Join(resp.Errors, "; ")}
	}
	if resp.Effects != nil && resp.Effects.Status.Status != "success" {
		status := resp.Effects.Status.Error
		if status == "" {
			status = resp.Effects.Status.Status
		}
		return nil, &ExecutionError{Digest: resp.Digest, Status: status}
	}

	c.logger.Info("transaction executed", zap.String("digest", resp.Digest), zap.Int("object_changes", len(resp.ObjectChanges)))
	return &TxResult{Digest: resp.Digest, ObjectChanges: resp.ObjectChanges}, nil
}
