package llmclient

import (
	"context"
)

// fakeClient is a scripted Client that records every request it sees.
type fakeClient struct {
	response string
	err      error
	calls    int
	lastReq  GenerationRequest
}

func (f *fakeClient) Generate(_ context.Context, req GenerationRequest) (string, error) {
	f.calls++
	f.lastReq = req
	return f.response, f.err
}
