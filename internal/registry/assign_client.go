package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// assignClient calls the AssignMeetingWithMh RPC on a remote meeting
// controller over the JSON-over-HTTP transport substituted for gRPC.
type assignClient struct {
	tokens   TokenSource
	client   *http.Client
	deadline time.Duration
}

func newAssignClient(tokens TokenSource, deadline time.Duration) *assignClient {
	return &assignClient{tokens: tokens, client: &http.Client{Timeout: deadline}, deadline: deadline}
}

type assignMeetingRequest struct {
	MeetingID        string  `json:"meeting_id"`
	HandlerPrimaryID string  `json:"mh_primary"`
	HandlerBackupID  *string `json:"mh_backup,omitempty"`
}

// assignMeetingWithMH POSTs the assignment to the controller's
// /internal/rpc/assign-meeting-with-mh endpoint with a bounded deadline. A
// non-2xx response or transport error is treated as a refusal.
func (c *assignClient) assignMeetingWithMH(ctx context.Context, controllerEndpoint string, meetingID uuid.UUID, primaryID string, backupID *string) error {
	ctx, cancel := context.WithTimeout(ctx, c.deadline)
	defer cancel()

	body, err := json.Marshal(assignMeetingRequest{
		MeetingID: meetingID.String(), HandlerPrimaryID: primaryID, HandlerBackupID: backupID,
	})
	if err != nil {
		return fmt.Errorf("encoding assignment request: %w", err)
	}

	url := controllerEndpoint + "/internal/rpc/assign-meeting-with-mh"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building assignment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.tokens(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling meeting controller: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("meeting controller refused assignment: status %d", resp.StatusCode)
	}
	return nil
}
