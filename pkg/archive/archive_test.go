package archive

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryArchiver(t *testing.T) {
	m := NewMemoryArchiver()
	record := Record{
		ExecutionID: "exec-1",
		WorkflowID:  "wf-1",
		Status:      "SUCCESS",
		StartedAt:   time.Now().Add(-time.Second),
		FinishedAt:  time.Now(),
		NodeStates:  map[string]string{"a": "SUCCESS", "b": "SKIPPED"},
	}

	require.NoError(t, m.Archive(context.Background(), record))
	assert.Equal(t, 1, m.Len())

	got, ok := m.Get("exec-1")
	require.True(t, ok)
	assert.Equal(t, "SUCCESS", got.Status)
	assert.Equal(t, "SKIPPED", got.NodeStates["b"])

	_, ok = m.Get("missing")
	assert.False(t, ok)
}

func TestMemoryArchiverReplacesByExecutionID(t *testing.T) {
	m := NewMemoryArchiver()
	require.NoError(t, m.Archive(context.Background(), Record{ExecutionID: "e", Status: "FAILED"}))
	require.NoError(t, m.Archive(context.Background(), Record{ExecutionID: "e", Status: "SUCCESS"}))

	assert.Equal(t, 1, m.Len())
	got, _ := m.Get("e")
	assert.Equal(t, "SUCCESS", got.Status)
}

func TestNewBlobArchiverValidation(t *testing.T) {
	_, err := NewBlobArchiver("", "runs", nil)
	assert.Error(t, err)

	_, err = NewBlobArchiver("AccountName=dev;AccountKey=a2V5", "", nil)
	assert.Error(t, err)

	_, err = NewBlobArchiver("BlobEndpoint=http://127.0.0.1:10000/dev", "runs", nil)
	assert.Error(t, err, "missing account name and key")
}

func TestNewBlobArchiverFromConnectionString(t *testing.T) {
	conn := "DefaultEndpointsProtocol=http;AccountName=devstoreaccount1;" +
		"AccountKey=Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw==;" +
		"BlobEndpoint=http://127.0.0.1:10000/devstoreaccount1"
	a, err := NewBlobArchiver(conn, "runs", nil)
	require.NoError(t, err)
	assert.NotNil(t, a)
}
