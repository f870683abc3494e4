package hostcheck

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractBalancedJSON_IgnoresPreambleAndPostamble(t *testing.T) {
	input := []byte("Starting scan...\nloaded 4212 rules\n" +
		`{"anything_changed":true,"added":["/etc/passwd"],"removed":[],"changed":[],"status_message":"ok"}` +
		"\nscan complete, 0 errors\n")

	body, err := extractBalancedJSON(input)
	require.NoError(t, err)
	assert.JSONEq(t, `{"anything_changed":true,"added":["/etc/passwd"],"removed":[],"changed":[],"status_message":"ok"}`, string(body))
}

func TestExtractBalancedJSON_HandlesBracesInsideStrings(t *testing.T) {
	input := []byte(`noise {"status_message":"weird { brace } in message","anything_changed":false,"added":[],"removed":[],"changed":[]} trailer`)
	body, err := extractBalancedJSON(input)
	require.NoError(t, err)

	var r Result
	require.NoError(t, json.Unmarshal(body, &r))
	assert.False(t, r.AnythingChanged)
	assert.Equal(t, "weird { brace } in message", r.StatusMessage)
}

func TestExtractBalancedJSON_ErrorsOnNoJSON(t *testing.T) {
	_, err := extractBalancedJSON([]byte("no json here at all"))
	require.Error(t, err)
}

type fakeContainerBackend struct {
	output []byte
	err    error
}

func (f fakeContainerBackend) ExecInContainer(ctx context.Context, containerID string, cmd []string) ([]byte, error) {
	return f.output, f.err
}

func TestContainerizedScanner_ParsesResult(t *testing.T) {
	backend := fakeContainerBackend{output: []byte(`{"anything_changed":true,"added":["/bin/ls"],"removed":[],"changed":[],"status_message":"drift detected"}`)}
	s := ContainerizedScanner{Backend: backend, ContainerID: "c1", Command: []string{"aide", "--check"}}

	result, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.True(t, result.AnythingChanged)
	assert.Equal(t, []string{"/bin/ls"}, result.Added)
	assert.Equal(t, "drift detected", result.StatusMessage)
}
